package resources

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	"github.com/angelmondragon/studyhub-backend/pkg/firebase"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	resourcesCollection = "classifiedResources"
	aiCollection        = "resourceAI"
)

type firestoreRepository struct {
	provider firebase.FirestoreProvider
}

// NewFirestoreRepository serves both Repository and AIRepository from Firestore.
func NewFirestoreRepository(provider firebase.FirestoreProvider) interface {
	Repository
	AIRepository
} {
	return &firestoreRepository{provider: provider}
}

func (r *firestoreRepository) List(ctx context.Context, filter Filter) ([]models.Resource, error) {
	client, err := r.provider.Firestore(ctx)
	if err != nil {
		return nil, err
	}

	query := client.Collection(resourcesCollection).Query
	eq := filter.equalities()
	fields := make([]string, 0, len(eq))
	for k := range eq {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for _, f := range fields {
		query = query.Where(f, "==", eq[f])
	}
	query = query.OrderBy("createdAt", firestore.Desc)
	if n, ok := filter.limit(); ok {
		query = query.Limit(n)
	}

	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	out := make([]models.Resource, 0, len(snaps))
	for _, snap := range snaps {
		var res models.Resource
		if err := snap.DataTo(&res); err != nil {
			return nil, err
		}
		res.ID = snap.Ref.ID
		out = append(out, res)
	}
	return out, nil
}

func (r *firestoreRepository) Get(ctx context.Context, id string) (*models.Resource, error) {
	client, err := r.provider.Firestore(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := client.Collection(resourcesCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var res models.Resource
	if err := snap.DataTo(&res); err != nil {
		return nil, err
	}
	res.ID = snap.Ref.ID
	return &res, nil
}

func (r *firestoreRepository) Create(ctx context.Context, res *models.Resource) error {
	client, err := r.provider.Firestore(ctx)
	if err != nil {
		return err
	}
	col := client.Collection(resourcesCollection)
	doc := col.NewDoc()
	if res.ID != "" {
		doc = col.Doc(res.ID)
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	res.UpdatedAt = res.CreatedAt
	if res.Tags == nil {
		res.Tags = []string{}
	}
	if _, err := doc.Create(ctx, res); err != nil {
		return err
	}
	res.ID = doc.ID
	return nil
}

func (r *firestoreRepository) Delete(ctx context.Context, id string) error {
	client, err := r.provider.Firestore(ctx)
	if err != nil {
		return err
	}
	ref := client.Collection(resourcesCollection).Doc(id)
	_, err = ref.Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	// Missing AI data is not an error; Delete without preconditions is a no-op then.
	_, err = client.Collection(aiCollection).Doc(id).Delete(ctx)
	return err
}

func (r *firestoreRepository) GetAI(ctx context.Context, resourceID string) (*models.ResourceAIData, error) {
	client, err := r.provider.Firestore(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := client.Collection(aiCollection).Doc(resourceID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var data models.ResourceAIData
	if err := snap.DataTo(&data); err != nil {
		return nil, err
	}
	data.ResourceID = resourceID
	return &data, nil
}

func (r *firestoreRepository) MergeAI(ctx context.Context, resourceID string, patch models.AIDataPatch) (*models.ResourceAIData, error) {
	client, err := r.provider.Firestore(ctx)
	if err != nil {
		return nil, err
	}
	ref := client.Collection(aiCollection).Doc(resourceID)

	now := time.Now().UTC()
	fields := map[string]any{"updatedAt": now}
	if patch.ShortSummary != nil {
		fields["shortSummary"] = *patch.ShortSummary
	}
	if patch.LongSummary != nil {
		fields["longSummary"] = *patch.LongSummary
	}
	if patch.KeyPoints != nil {
		fields["keyPoints"] = patch.KeyPoints
	}
	if patch.FlashcardsSet {
		cards := patch.Flashcards
		if cards == nil {
			cards = []models.Flashcard{}
		}
		fields["flashcards"] = cards
	}
	if _, err := ref.Set(ctx, fields, firestore.MergeAll); err != nil {
		return nil, err
	}
	return r.GetAI(ctx, resourceID)
}

package notifications

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	"github.com/angelmondragon/studyhub-backend/pkg/firebase"
	"github.com/angelmondragon/studyhub-backend/pkg/pagination"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Collection is the Firestore collection holding notification documents.
const Collection = "notifications"

type firestoreRepository struct {
	provider firebase.FirestoreProvider
}

// NewFirestoreRepository stores notifications in the notifications collection.
func NewFirestoreRepository(provider firebase.FirestoreProvider) Repository {
	return &firestoreRepository{provider: provider}
}

func (r *firestoreRepository) collection(ctx context.Context) (*firestore.CollectionRef, error) {
	client, err := r.provider.Firestore(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(Collection), nil
}

func (r *firestoreRepository) Create(ctx context.Context, n *models.Notification) error {
	col, err := r.collection(ctx)
	if err != nil {
		return err
	}
	if n.ReadBy == nil {
		n.ReadBy = []string{}
	}

	doc := col.NewDoc()
	if n.ID != "" {
		doc = col.Doc(n.ID)
	}
	// createdAt is left zero so the serverTimestamp tag fills it in.
	n.CreatedAt = time.Time{}
	if _, err := doc.Create(ctx, n); err != nil {
		return err
	}
	n.ID = doc.ID

	snap, err := doc.Get(ctx)
	if err != nil {
		n.CreatedAt = time.Now().UTC()
		return nil
	}
	return decodeNotification(snap, n)
}

func (r *firestoreRepository) List(ctx context.Context, params listParams) ([]models.Notification, *pagination.Cursor, error) {
	col, err := r.collection(ctx)
	if err != nil {
		return nil, nil, err
	}

	query := col.OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc).
		Limit(pagination.LimitWithBuffer(params.Limit))
	if c := params.Cursor; c != nil {
		query = query.StartAfter(c.CreatedAt, c.ID)
	}

	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, nil, err
	}
	rows := make([]models.Notification, 0, len(snaps))
	for _, snap := range snaps {
		var n models.Notification
		if err := decodeNotification(snap, &n); err != nil {
			return nil, nil, err
		}
		rows = append(rows, n)
	}
	items, next := pageOf(rows, params.Limit)
	return items, next, nil
}

func (r *firestoreRepository) MarkRead(ctx context.Context, notificationID, userID string) (markResult, error) {
	col, err := r.collection(ctx)
	if err != nil {
		return markResult{}, err
	}
	_, err = col.Doc(notificationID).Update(ctx, []firestore.Update{
		{Path: "readBy", Value: firestore.ArrayUnion(userID)},
	})
	if status.Code(err) == codes.NotFound {
		return markResult{}, nil
	}
	if err != nil {
		return markResult{}, err
	}
	return markResult{Found: true, Updated: true}, nil
}

func (r *firestoreRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	client, err := r.provider.Firestore(ctx)
	if err != nil {
		return 0, err
	}
	snaps, err := client.Collection(Collection).Select("readBy").Documents(ctx).GetAll()
	if err != nil {
		return 0, err
	}

	bw := client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for _, snap := range snaps {
		var n models.Notification
		if err := snap.DataTo(&n); err != nil {
			return 0, err
		}
		if n.ReadByUser(userID) {
			continue
		}
		job, err := bw.Update(snap.Ref, []firestore.Update{
			{Path: "readBy", Value: firestore.ArrayUnion(userID)},
		})
		if err != nil {
			bw.End()
			return 0, err
		}
		jobs = append(jobs, job)
	}
	bw.End()

	var updated int64
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

func decodeNotification(snap *firestore.DocumentSnapshot, n *models.Notification) error {
	if err := snap.DataTo(n); err != nil {
		return err
	}
	n.ID = snap.Ref.ID
	if n.ReadBy == nil {
		n.ReadBy = []string{}
	}
	return nil
}

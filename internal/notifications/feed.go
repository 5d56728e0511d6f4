package notifications

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/studyhub-backend/pkg/errors"
	"github.com/angelmondragon/studyhub-backend/pkg/firebase"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreFeed forwards documents added to the notifications collection into
// the hub, so notifications written by other processes (for example the
// client-side fallback write) still reach live subscribers.
type FirestoreFeed struct {
	provider firebase.FirestoreProvider
	hub      *Hub
	logg     *logger.Logger
	now      func() time.Time
}

func NewFirestoreFeed(provider firebase.FirestoreProvider, hub *Hub, logg *logger.Logger) (*FirestoreFeed, error) {
	if provider == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "firestore provider required")
	}
	if hub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notification hub required")
	}
	return &FirestoreFeed{provider: provider, hub: hub, logg: logg, now: time.Now}, nil
}

// Run watches until ctx is cancelled. Only documents created after Run starts are forwarded.
func (f *FirestoreFeed) Run(ctx context.Context) error {
	client, err := f.provider.Firestore(ctx)
	if err != nil {
		return err
	}

	it := client.Collection(Collection).
		Where("createdAt", ">", f.now().UTC()).
		Snapshots(ctx)
	defer it.Stop()

	if f.logg != nil {
		f.logg.Info(ctx, "notifications.feed.started")
	}
	for {
		snap, err := it.Next()
		if ctx.Err() != nil || status.Code(err) == codes.Canceled {
			return nil
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "watch notifications")
		}
		for _, change := range snap.Changes {
			if change.Kind != firestore.DocumentAdded {
				continue
			}
			var n models.Notification
			if err := decodeNotification(change.Doc, &n); err != nil {
				if f.logg != nil {
					f.logg.Warn(f.logg.WithField(ctx, "error", err.Error()), "notifications.feed.decode_failed")
				}
				continue
			}
			f.hub.Publish(ctx, n)
		}
	}
}

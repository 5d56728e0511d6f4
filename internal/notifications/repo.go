package notifications

import (
	"context"

	"github.com/angelmondragon/studyhub-backend/pkg/db"
	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	"github.com/angelmondragon/studyhub-backend/pkg/pagination"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Repository persists notification documents. Implementations exist for
// Firestore and for gorm (postgres/sqlite).
type Repository interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, params listParams) ([]models.Notification, *pagination.Cursor, error)
	MarkRead(ctx context.Context, notificationID, userID string) (markResult, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type listParams struct {
	Limit  int
	Cursor *pagination.Cursor
}

type markResult struct {
	Found   bool
	Updated bool
}

func pageOf(rows []models.Notification, limit int) ([]models.Notification, *pagination.Cursor) {
	return pagination.Trim(rows, limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
}

// IsAlreadyExists reports whether Create failed because the id is taken.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	return status.Code(err) == codes.AlreadyExists || db.IsUniqueViolation(err)
}

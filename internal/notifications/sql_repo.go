package notifications

import (
	"context"
	"time"

	"github.com/angelmondragon/studyhub-backend/internal/repo"
	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	"github.com/angelmondragon/studyhub-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type sqlRepository struct {
	repo.Base
}

// NewSQLRepository returns a notifications repository bound to the provided database.
func NewSQLRepository(db *gorm.DB) Repository {
	return &sqlRepository{Base: repo.NewBase(db)}
}

func (r *sqlRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.ReadBy == nil {
		n.ReadBy = []string{}
	}
	return r.DB(ctx).Create(n).Error
}

func (r *sqlRepository) List(ctx context.Context, params listParams) ([]models.Notification, *pagination.Cursor, error) {
	query := r.DB(ctx).Model(&models.Notification{})
	if c := params.Cursor; c != nil {
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)", c.CreatedAt, c.CreatedAt, c.ID)
	}

	var rows []models.Notification
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(params.Limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	items, next := pageOf(rows, params.Limit)
	return items, next, nil
}

func (r *sqlRepository) MarkRead(ctx context.Context, notificationID, userID string) (markResult, error) {
	var result markResult
	err := r.Tx(ctx, func(tx *gorm.DB) error {
		var n models.Notification
		err := repo.ForUpdate(tx).
			Where("id = ?", notificationID).
			Take(&n).Error
		if repo.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		result.Found = true
		if n.ReadByUser(userID) {
			return nil
		}
		n.ReadBy = append(n.ReadBy, userID)
		result.Updated = true
		return tx.Model(&n).Select("read_by").Updates(&n).Error
	})
	return result, err
}

func (r *sqlRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	var updated int64
	err := r.Tx(ctx, func(tx *gorm.DB) error {
		var rows []models.Notification
		if err := repo.ForUpdate(tx).
			Select("id", "read_by").
			Find(&rows).Error; err != nil {
			return err
		}
		for i := range rows {
			n := &rows[i]
			if n.ReadByUser(userID) {
				continue
			}
			n.ReadBy = append(n.ReadBy, userID)
			if err := tx.Model(n).Select("read_by").Updates(n).Error; err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	return updated, err
}

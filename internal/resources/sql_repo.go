package resources

import (
	"context"
	"sort"
	"time"

	"github.com/angelmondragon/studyhub-backend/internal/repo"
	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type sqlRepository struct {
	repo.Base
}

// NewSQLRepository serves both Repository and AIRepository from gorm.
func NewSQLRepository(db *gorm.DB) interface {
	Repository
	AIRepository
} {
	return &sqlRepository{Base: repo.NewBase(db)}
}

var sqlColumns = map[string]string{
	"placement":  "placement",
	"college":    "college",
	"department": "department",
	"year":       "year",
	"semester":   "semester",
	"course":     "course",
}

func (r *sqlRepository) List(ctx context.Context, filter Filter) ([]models.Resource, error) {
	query := r.DB(ctx).Model(&models.Resource{})
	eq := filter.equalities()
	keys := make([]string, 0, len(eq))
	for k := range eq {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		query = query.Where(sqlColumns[k]+" = ?", eq[k])
	}

	query = query.Order("created_at DESC, id DESC")
	if n, ok := filter.limit(); ok {
		query = query.Limit(n)
	}

	var rows []models.Resource
	err := query.Find(&rows).Error
	return rows, err
}

func (r *sqlRepository) Get(ctx context.Context, id string) (*models.Resource, error) {
	var res models.Resource
	err := r.DB(ctx).Where("id = ?", id).Take(&res).Error
	if repo.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *sqlRepository) Create(ctx context.Context, res *models.Resource) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = res.CreatedAt
	if res.Tags == nil {
		res.Tags = []string{}
	}
	return r.DB(ctx).Create(res).Error
}

func (r *sqlRepository) Delete(ctx context.Context, id string) error {
	return r.Tx(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("resource_id = ?", id).Delete(&models.ResourceAIData{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.Resource{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *sqlRepository) GetAI(ctx context.Context, resourceID string) (*models.ResourceAIData, error) {
	var data models.ResourceAIData
	err := r.DB(ctx).Where("resource_id = ?", resourceID).Take(&data).Error
	if repo.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &data, nil
}

func (r *sqlRepository) MergeAI(ctx context.Context, resourceID string, patch models.AIDataPatch) (*models.ResourceAIData, error) {
	var merged models.ResourceAIData
	err := r.Tx(ctx, func(tx *gorm.DB) error {
		err := repo.ForUpdate(tx).
			Where("resource_id = ?", resourceID).
			Take(&merged).Error
		exists := err == nil
		if err != nil && !repo.IsNotFound(err) {
			return err
		}
		merged.ResourceID = resourceID
		patch.Apply(&merged)
		merged.UpdatedAt = time.Now().UTC()
		if exists {
			return tx.Save(&merged).Error
		}
		return tx.Create(&merged).Error
	})
	if err != nil {
		return nil, err
	}
	return &merged, nil
}

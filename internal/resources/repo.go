package resources

import (
	"context"
	"errors"

	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	"github.com/angelmondragon/studyhub-backend/pkg/pagination"
)

// ErrNotFound is returned by repositories for unknown ids.
var ErrNotFound = errors.New("not found")

// Repository persists classified resources.
type Repository interface {
	List(ctx context.Context, filter Filter) ([]models.Resource, error)
	Get(ctx context.Context, id string) (*models.Resource, error)
	Create(ctx context.Context, resource *models.Resource) error
	// Delete removes the resource and its AI data. It returns ErrNotFound when nothing was deleted.
	Delete(ctx context.Context, id string) error
}

// AIRepository persists AI-derived fields keyed by resource id.
type AIRepository interface {
	// GetAI returns nil, nil when no generation has run yet.
	GetAI(ctx context.Context, resourceID string) (*models.ResourceAIData, error)
	// MergeAI applies patch to the stored record, creating it when absent, and
	// returns the merged record.
	MergeAI(ctx context.Context, resourceID string, patch models.AIDataPatch) (*models.ResourceAIData, error)
}

// Filter narrows List. Empty fields do not filter.
type Filter struct {
	Placement  string
	College    string
	Department string
	Year       string
	Semester   string
	Course     string
	// Limit caps the result at min(Limit, pagination.MaxLimit). Zero returns
	// every match.
	Limit int
}

func (f Filter) limit() (int, bool) {
	if f.Limit <= 0 {
		return 0, false
	}
	return min(f.Limit, pagination.MaxLimit), true
}

func (f Filter) equalities() map[string]string {
	out := map[string]string{}
	add := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	add("placement", f.Placement)
	add("college", f.College)
	add("department", f.Department)
	add("year", f.Year)
	add("semester", f.Semester)
	add("course", f.Course)
	return out
}

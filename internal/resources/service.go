package resources

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	"github.com/angelmondragon/studyhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/studyhub-backend/pkg/errors"
)

const maxTags = 20

// Service exposes classified resource operations.
type Service interface {
	List(ctx context.Context, filter Filter) ([]models.Resource, error)
	Get(ctx context.Context, id string) (*models.Resource, error)
	Create(ctx context.Context, input CreateInput, poster models.Poster) (*models.Resource, error)
	Delete(ctx context.Context, id string) error
	AIData(ctx context.Context, id string) (*models.ResourceAIData, error)
}

// CreateInput holds the payload to create a resource.
type CreateInput struct {
	Title       string
	Description string
	Placement   string
	College     string
	Department  string
	Year        string
	Semester    string
	Course      string
	Tags        []string
	File        models.Attachment
}

type service struct {
	repo Repository
	ai   AIRepository
}

func NewService(repo Repository, ai AIRepository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "resources repository required")
	}
	if ai == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ai data repository required")
	}
	return &service{repo: repo, ai: ai}, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]models.Resource, error) {
	filter = trimFilter(filter)
	if filter.Placement != "" && !enums.Placement(filter.Placement).IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid placement").
			WithDetails(map[string]any{"placement": filter.Placement})
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list resources")
	}
	if rows == nil {
		rows = []models.Resource{}
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, id string) (*models.Resource, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resource id required")
	}
	res, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Resource not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load resource")
	}
	return res, nil
}

func (s *service) Create(ctx context.Context, input CreateInput, poster models.Poster) (*models.Resource, error) {
	res, err := input.resource(poster)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, res); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create resource")
	}
	return res, nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "resource id required")
	}
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Resource not found")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete resource")
	}
	return nil
}

// AIData returns nil when nothing has been generated for the resource yet.
func (s *service) AIData(ctx context.Context, id string) (*models.ResourceAIData, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	data, err := s.ai.GetAI(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ai data")
	}
	return data, nil
}

func (in CreateInput) resource(poster models.Poster) (*models.Resource, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	placement, err := enums.ParsePlacement(strings.ToLower(strings.TrimSpace(in.Placement)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid placement").
			WithDetails(map[string]any{"placement": in.Placement})
	}
	res := &models.Resource{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Placement:   placement,
		College:     strings.TrimSpace(in.College),
		Department:  strings.TrimSpace(in.Department),
		Year:        strings.TrimSpace(in.Year),
		Semester:    strings.TrimSpace(in.Semester),
		Course:      strings.TrimSpace(in.Course),
		Tags:        dedupeTags(in.Tags),
		PostedBy:    poster,
		File:        in.File,
	}
	if placement == enums.PlacementAcademic && res.College == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "college is required for academic resources")
	}
	if len(res.Tags) > maxTags {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many tags").
			WithDetails(map[string]any{"max": maxTags})
	}
	return res, nil
}

func dedupeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

func trimFilter(f Filter) Filter {
	f.Placement = strings.ToLower(strings.TrimSpace(f.Placement))
	f.College = strings.TrimSpace(f.College)
	f.Department = strings.TrimSpace(f.Department)
	f.Year = strings.TrimSpace(f.Year)
	f.Semester = strings.TrimSpace(f.Semester)
	f.Course = strings.TrimSpace(f.Course)
	return f
}

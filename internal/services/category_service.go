package services

import (
	"context"
	"strings"

	"github.com/saeid-a/ConsultBookBack/internal/models"
	"github.com/saeid-a/ConsultBookBack/internal/repository"
)

type categoryStore interface {
	Create(ctx context.Context, input repository.CategoryInput) (*models.Category, error)
	Update(ctx context.Context, id int64, input repository.CategoryInput) (*models.Category, error)
	List(ctx context.Context) ([]models.Category, error)
	Delete(ctx context.Context, id int64) error
}

type CategoryService struct {
	repo categoryStore
}

func NewCategoryService(repo categoryStore) *CategoryService {
	return &CategoryService{repo: repo}
}

type CategoryRequest struct {
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description *string `json:"description"`
	SortOrder   int     `json:"sort_order"`
}

func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	return s.repo.List(ctx)
}

func (s *CategoryService) Create(ctx context.Context, req CategoryRequest) (*models.Category, error) {
	input, err := categoryInput(req)
	if err != nil {
		return nil, err
	}
	category, err := s.repo.Create(ctx, input)
	return category, mapWriteError(err)
}

func (s *CategoryService) Update(ctx context.Context, id int64, req CategoryRequest) (*models.Category, error) {
	input, err := categoryInput(req)
	if err != nil {
		return nil, err
	}
	category, err := s.repo.Update(ctx, id, input)
	return category, mapWriteError(err)
}

func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	return mapWriteError(s.repo.Delete(ctx, id))
}

func categoryInput(req CategoryRequest) (repository.CategoryInput, error) {
	problems := fieldErrors{}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		problems.add("name", "is required")
	}
	slug := slugify(req.Slug)
	if slug == "" {
		slug = slugify(name)
	}
	if slug == "" && name != "" {
		problems.add("slug", "could not be derived from name")
	}
	if err := problems.err(); err != nil {
		return repository.CategoryInput{}, err
	}
	return repository.CategoryInput{
		Name:        name,
		Slug:        slug,
		Description: trimOptional(req.Description),
		SortOrder:   req.SortOrder,
	}, nil
}

// mapWriteError translates storage errors of admin writes.
func mapWriteError(err error) error {
	switch {
	case err == nil:
		return nil
	case repository.IsNotFound(err):
		return ErrNotFound
	case repository.IsUniqueViolation(err):
		return ErrConflict
	default:
		return err
	}
}

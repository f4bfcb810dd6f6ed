package services

import (
	"context"
	"strings"

	"github.com/saeid-a/ConsultBookBack/internal/models"
	"github.com/saeid-a/ConsultBookBack/internal/repository"
)

type consultationTypeStore interface {
	Create(ctx context.Context, input repository.ConsultationTypeInput) (*models.ConsultationType, error)
	Update(ctx context.Context, id int64, input repository.ConsultationTypeInput) (*models.ConsultationType, error)
	GetByID(ctx context.Context, id int64) (*models.ConsultationType, error)
	List(ctx context.Context, filter repository.ConsultationTypeFilter) ([]models.ConsultationType, error)
	Delete(ctx context.Context, id int64) error
}

type ConsultationTypeService struct {
	repo consultationTypeStore
}

func NewConsultationTypeService(repo consultationTypeStore) *ConsultationTypeService {
	return &ConsultationTypeService{repo: repo}
}

type ConsultationTypeRequest struct {
	CategoryID      *int64  `json:"category_id"`
	Name            string  `json:"name"`
	Slug            string  `json:"slug"`
	Description     *string `json:"description"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
	BufferBefore    int     `json:"buffer_before"`
	BufferAfter     int     `json:"buffer_after"`
	Status          string  `json:"status"`
}

// ListActive is the public catalogue.
func (s *ConsultationTypeService) ListActive(ctx context.Context, categoryID int64) ([]models.ConsultationType, error) {
	return s.repo.List(ctx, repository.ConsultationTypeFilter{
		Status:     models.ConsultationTypeStatusActive,
		CategoryID: categoryID,
	})
}

func (s *ConsultationTypeService) List(ctx context.Context, filter repository.ConsultationTypeFilter) ([]models.ConsultationType, error) {
	if filter.Status != "" && !isTypeStatus(filter.Status) {
		return nil, ErrInvalidStatus
	}
	return s.repo.List(ctx, filter)
}

func (s *ConsultationTypeService) Get(ctx context.Context, id int64) (*models.ConsultationType, error) {
	ctype, err := s.repo.GetByID(ctx, id)
	return ctype, mapWriteError(err)
}

// GetActive hides inactive types from public callers.
func (s *ConsultationTypeService) GetActive(ctx context.Context, id int64) (*models.ConsultationType, error) {
	ctype, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ctype.IsActive() {
		return nil, ErrNotFound
	}
	return ctype, nil
}

func (s *ConsultationTypeService) Create(ctx context.Context, req ConsultationTypeRequest) (*models.ConsultationType, error) {
	input, err := consultationTypeInput(req)
	if err != nil {
		return nil, err
	}
	ctype, err := s.repo.Create(ctx, input)
	return ctype, mapTypeWriteError(err)
}

func (s *ConsultationTypeService) Update(ctx context.Context, id int64, req ConsultationTypeRequest) (*models.ConsultationType, error) {
	input, err := consultationTypeInput(req)
	if err != nil {
		return nil, err
	}
	ctype, err := s.repo.Update(ctx, id, input)
	return ctype, mapTypeWriteError(err)
}

// Delete fails with ErrConflict while bookings still reference the type.
func (s *ConsultationTypeService) Delete(ctx context.Context, id int64) error {
	err := s.repo.Delete(ctx, id)
	if repository.IsForeignKeyViolation(err) {
		return ErrConflict
	}
	return mapWriteError(err)
}

func consultationTypeInput(req ConsultationTypeRequest) (repository.ConsultationTypeInput, error) {
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
	if req.DurationMinutes <= 0 || req.DurationMinutes > 24*60 {
		problems.add("duration_minutes", "must be between 1 and 1440")
	}
	if req.Price < 0 {
		problems.add("price", "must not be negative")
	}
	if req.BufferBefore < 0 {
		problems.add("buffer_before", "must not be negative")
	}
	if req.BufferAfter < 0 {
		problems.add("buffer_after", "must not be negative")
	}
	if req.CategoryID != nil && *req.CategoryID <= 0 {
		problems.add("category_id", "must be a positive id")
	}

	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status == "" {
		status = models.ConsultationTypeStatusActive
	}
	if !isTypeStatus(status) {
		problems.add("status", "must be active or inactive")
	}

	if err := problems.err(); err != nil {
		return repository.ConsultationTypeInput{}, err
	}
	return repository.ConsultationTypeInput{
		CategoryID:      req.CategoryID,
		Name:            name,
		Slug:            slug,
		Description:     trimOptional(req.Description),
		DurationMinutes: req.DurationMinutes,
		Price:           roundMoney(req.Price),
		BufferBefore:    req.BufferBefore,
		BufferAfter:     req.BufferAfter,
		Status:          status,
	}, nil
}

func mapTypeWriteError(err error) error {
	if repository.IsForeignKeyViolation(err) {
		return &ValidationError{Fields: map[string]string{"category_id": "unknown category"}}
	}
	return mapWriteError(err)
}

func isTypeStatus(status string) bool {
	return status == models.ConsultationTypeStatusActive || status == models.ConsultationTypeStatusInactive
}

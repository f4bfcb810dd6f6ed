package services

import (
	"context"
	"strings"
	"time"

	"github.com/saeid-a/ConsultBookBack/internal/availability"
	"github.com/saeid-a/ConsultBookBack/internal/models"
	"github.com/saeid-a/ConsultBookBack/internal/repository"
)

type availabilityRuleStore interface {
	Create(ctx context.Context, input repository.AvailabilityRuleInput) (*models.AvailabilityRule, error)
	Update(ctx context.Context, id int64, input repository.AvailabilityRuleInput) (*models.AvailabilityRule, error)
	GetByID(ctx context.Context, id int64) (*models.AvailabilityRule, error)
	List(ctx context.Context) ([]models.AvailabilityRule, error)
	Delete(ctx context.Context, id int64) error
}

type AvailabilityRuleService struct {
	repo availabilityRuleStore
}

func NewAvailabilityRuleService(repo availabilityRuleStore) *AvailabilityRuleService {
	return &AvailabilityRuleService{repo: repo}
}

type AvailabilityRuleRequest struct {
	RuleType           string  `json:"rule_type"`
	DayOfWeek          *int    `json:"day_of_week"`
	SpecificDate       *string `json:"specific_date"`
	StartTime          string  `json:"start_time"`
	EndTime            string  `json:"end_time"`
	IsAvailable        *bool   `json:"is_available"`
	ConsultationTypeID *int64  `json:"consultation_type_id"`
}

func (s *AvailabilityRuleService) List(ctx context.Context) ([]models.AvailabilityRule, error) {
	return s.repo.List(ctx)
}

func (s *AvailabilityRuleService) Get(ctx context.Context, id int64) (*models.AvailabilityRule, error) {
	rule, err := s.repo.GetByID(ctx, id)
	return rule, mapWriteError(err)
}

func (s *AvailabilityRuleService) Create(ctx context.Context, req AvailabilityRuleRequest) (*models.AvailabilityRule, error) {
	input, err := availabilityRuleInput(req)
	if err != nil {
		return nil, err
	}
	rule, err := s.repo.Create(ctx, input)
	return rule, mapRuleWriteError(err)
}

func (s *AvailabilityRuleService) Update(ctx context.Context, id int64, req AvailabilityRuleRequest) (*models.AvailabilityRule, error) {
	input, err := availabilityRuleInput(req)
	if err != nil {
		return nil, err
	}
	rule, err := s.repo.Update(ctx, id, input)
	return rule, mapRuleWriteError(err)
}

func (s *AvailabilityRuleService) Delete(ctx context.Context, id int64) error {
	return mapWriteError(s.repo.Delete(ctx, id))
}

func availabilityRuleInput(req AvailabilityRuleRequest) (repository.AvailabilityRuleInput, error) {
	problems := fieldErrors{}

	ruleType := strings.ToLower(strings.TrimSpace(req.RuleType))
	specificDate := trimOptional(req.SpecificDate)
	if specificDate != nil {
		if _, err := time.Parse(time.DateOnly, *specificDate); err != nil {
			problems.add("specific_date", "must be formatted YYYY-MM-DD")
		}
	}
	if req.DayOfWeek != nil && (*req.DayOfWeek < 0 || *req.DayOfWeek > 6) {
		problems.add("day_of_week", "must be between 0 (Sunday) and 6 (Saturday)")
	}

	isAvailable := true
	if req.IsAvailable != nil {
		isAvailable = *req.IsAvailable
	}

	switch ruleType {
	case models.RuleTypeWeekly:
		if req.DayOfWeek == nil {
			problems.add("day_of_week", "is required for weekly rules")
		}
		specificDate = nil
	case models.RuleTypeSpecificDate:
		if specificDate == nil {
			problems.add("specific_date", "is required for specific_date rules")
		}
		req.DayOfWeek = nil
	case models.RuleTypeBlock:
		if (specificDate == nil) == (req.DayOfWeek == nil) {
			problems.add("specific_date", "blocks need either specific_date or day_of_week")
		}
		isAvailable = false
	default:
		problems.add("rule_type", "must be weekly, specific_date or block")
	}

	start, startErr := availability.ParseClock(strings.TrimSpace(req.StartTime))
	if startErr != nil || start >= availability.Clock(24*60) {
		problems.add("start_time", "must be formatted HH:MM")
	}
	end, endErr := availability.ParseClock(strings.TrimSpace(req.EndTime))
	if endErr != nil {
		problems.add("end_time", "must be formatted HH:MM")
	}
	if startErr == nil && endErr == nil && start >= end {
		problems.add("end_time", "must be after start_time")
	}

	if req.ConsultationTypeID != nil && *req.ConsultationTypeID <= 0 {
		problems.add("consultation_type_id", "must be a positive id")
	}

	if err := problems.err(); err != nil {
		return repository.AvailabilityRuleInput{}, err
	}
	return repository.AvailabilityRuleInput{
		RuleType:           ruleType,
		DayOfWeek:          req.DayOfWeek,
		SpecificDate:       specificDate,
		StartTime:          start.String(),
		EndTime:            end.String(),
		IsAvailable:        isAvailable,
		ConsultationTypeID: req.ConsultationTypeID,
	}, nil
}

func mapRuleWriteError(err error) error {
	if repository.IsForeignKeyViolation(err) {
		return &ValidationError{Fields: map[string]string{"consultation_type_id": "unknown consultation type"}}
	}
	return mapWriteError(err)
}

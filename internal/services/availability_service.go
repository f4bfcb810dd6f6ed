package services

import (
	"context"
	"time"

	"github.com/saeid-a/ConsultBookBack/internal/availability"
	"github.com/saeid-a/ConsultBookBack/internal/logging"
	"github.com/saeid-a/ConsultBookBack/internal/models"
	"github.com/saeid-a/ConsultBookBack/internal/obs"
	"github.com/saeid-a/ConsultBookBack/internal/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type ruleReader interface {
	ListForDate(ctx context.Context, date string, weekday int) ([]models.AvailabilityRule, error)
	ListForRange(ctx context.Context, from, to string) ([]models.AvailabilityRule, error)
}

type bookedIntervalReader interface {
	ListActiveIntervals(ctx context.Context, date string, excludeID int64) ([]models.BookedInterval, error)
	ListActiveIntervalsBetween(ctx context.Context, from, to string) ([]models.BookedInterval, error)
}

type consultationTypeReader interface {
	GetByID(ctx context.Context, id int64) (*models.ConsultationType, error)
}

// BusySource reports externally busy time on business days.
// BusyIntervalsBetween covers the days from first to last inclusive, keyed
// by YYYY-MM-DD.
type BusySource interface {
	BusyIntervals(ctx context.Context, date time.Time) ([]availability.Interval, error)
	BusyIntervalsBetween(ctx context.Context, first, last time.Time) (map[string][]availability.Interval, error)
}

type AvailabilitySettings struct {
	Location               *time.Location
	StepMinutes            int
	DefaultDurationMinutes int
	MinNoticeMinutes       int
	MaxAdvanceDays         int
}

type AvailabilityService struct {
	rules    ruleReader
	bookings bookedIntervalReader
	types    consultationTypeReader
	busy     BusySource
	settings AvailabilitySettings
	logger   *zap.Logger
	now      func() time.Time
}

func NewAvailabilityService(
	rules ruleReader,
	bookings bookedIntervalReader,
	types consultationTypeReader,
	busy BusySource,
	settings AvailabilitySettings,
	logger *zap.Logger,
) *AvailabilityService {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.StepMinutes <= 0 {
		settings.StepMinutes = availability.DefaultStepMinutes
	}
	if settings.DefaultDurationMinutes <= 0 {
		settings.DefaultDurationMinutes = 30
	}
	return &AvailabilityService{
		rules:    rules,
		bookings: bookings,
		types:    types,
		busy:     busy,
		settings: settings,
		logger:   logging.OrNop(logger),
		now:      time.Now,
	}
}

func (s *AvailabilityService) Location() *time.Location {
	return s.settings.Location
}

// GetSlots lists the free start times on date for the consultation type.
// Without a type the default duration and only global rules apply.
func (s *AvailabilityService) GetSlots(ctx context.Context, date string, consultationTypeID *int64) ([]models.TimeSlot, error) {
	ctx, span := obs.Tracer().Start(ctx, "availability.GetSlots")
	defer span.End()
	span.SetAttributes(attribute.String("booking.date", date))

	day, err := s.parseDate(date)
	if err != nil {
		return nil, err
	}

	var ctype *models.ConsultationType
	if consultationTypeID != nil {
		ctype, err = s.bookableType(ctx, *consultationTypeID)
		if err != nil {
			return nil, err
		}
		span.SetAttributes(attribute.Int64("consultation_type.id", ctype.ID))
	}

	slots, err := s.slotsForDay(ctx, day, ctype)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("slots.count", len(slots)))
	return toTimeSlots(slots), nil
}

// GetAvailableDates lists the days of month (YYYY-MM) with at least one
// free slot. Rules, bookings and busy time are loaded once for the bookable
// part of the month.
func (s *AvailabilityService) GetAvailableDates(ctx context.Context, month string, consultationTypeID *int64) ([]string, error) {
	ctx, span := obs.Tracer().Start(ctx, "availability.GetAvailableDates")
	defer span.End()
	span.SetAttributes(attribute.String("booking.month", month))

	first, err := time.ParseInLocation("2006-01", month, s.settings.Location)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"month": "must be formatted YYYY-MM"}}
	}

	var ctype *models.ConsultationType
	if consultationTypeID != nil {
		ctype, err = s.bookableType(ctx, *consultationTypeID)
		if err != nil {
			return nil, err
		}
	}

	type bookableDay struct {
		day       time.Time
		notBefore availability.Clock
	}
	days := make([]bookableDay, 0, 31)
	for day := first; day.Month() == first.Month(); day = day.AddDate(0, 0, 1) {
		if notBefore, ok := s.bookingHorizon(day); ok {
			days = append(days, bookableDay{day: day, notBefore: notBefore})
		}
	}
	dates := make([]string, 0)
	if len(days) == 0 {
		return dates, nil
	}

	firstDay, lastDay := days[0].day, days[len(days)-1].day
	from, to := firstDay.Format(time.DateOnly), lastDay.Format(time.DateOnly)

	stored, err := s.rules.ListForRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	rules, err := EngineRules(stored)
	if err != nil {
		return nil, err
	}

	booked, err := s.bookings.ListActiveIntervalsBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	occupied := make(map[string][]availability.Interval, len(days))
	for _, booking := range booked {
		intervals, err := OccupiedIntervals([]models.BookedInterval{booking})
		if err != nil {
			return nil, err
		}
		occupied[booking.BookingDate] = append(occupied[booking.BookingDate], intervals...)
	}

	if s.busy != nil {
		external, err := s.busy.BusyIntervalsBetween(ctx, firstDay, lastDay)
		if err != nil {
			s.logger.Warn("external calendar busy lookup failed",
				zap.String("from", from),
				zap.String("to", to),
				zap.Error(err),
			)
		}
		for date, intervals := range external {
			occupied[date] = append(occupied[date], intervals...)
		}
	}

	for _, d := range days {
		date := d.day.Format(time.DateOnly)
		if slots := s.calculate(d.day, d.notBefore, ctype, rules, occupied[date]); len(slots) > 0 {
			dates = append(dates, date)
		}
	}
	span.SetAttributes(attribute.Int("dates.count", len(dates)))
	return dates, nil
}

// IsSlotAvailable reports whether start is one of the computed slots for
// the type on date.
func (s *AvailabilityService) IsSlotAvailable(ctx context.Context, date string, start availability.Clock, ctype *models.ConsultationType) (bool, error) {
	day, err := s.parseDate(date)
	if err != nil {
		return false, err
	}
	slots, err := s.slotsForDay(ctx, day, ctype)
	if err != nil {
		return false, err
	}
	for _, slot := range slots {
		if slot.Start == start {
			return true, nil
		}
	}
	return false, nil
}

func (s *AvailabilityService) slotsForDay(ctx context.Context, day time.Time, ctype *models.ConsultationType) ([]availability.Slot, error) {
	notBefore, ok := s.bookingHorizon(day)
	if !ok {
		return []availability.Slot{}, nil
	}

	date := day.Format(time.DateOnly)
	stored, err := s.rules.ListForDate(ctx, date, int(day.Weekday()))
	if err != nil {
		return nil, err
	}
	rules, err := EngineRules(stored)
	if err != nil {
		return nil, err
	}

	booked, err := s.bookings.ListActiveIntervals(ctx, date, 0)
	if err != nil {
		return nil, err
	}
	occupied, err := OccupiedIntervals(booked)
	if err != nil {
		return nil, err
	}
	if s.busy != nil {
		external, err := s.busy.BusyIntervals(ctx, day)
		if err != nil {
			s.logger.Warn("external calendar busy lookup failed", zap.String("date", date), zap.Error(err))
		} else {
			occupied = append(occupied, external...)
		}
	}

	return s.calculate(day, notBefore, ctype, rules, occupied), nil
}

func (s *AvailabilityService) calculate(
	day time.Time,
	notBefore availability.Clock,
	ctype *models.ConsultationType,
	rules []availability.Rule,
	occupied []availability.Interval,
) []availability.Slot {
	query := availability.Query{
		Date:            day.Format(time.DateOnly),
		Weekday:         day.Weekday(),
		DurationMinutes: s.settings.DefaultDurationMinutes,
		StepMinutes:     s.settings.StepMinutes,
		NotBefore:       notBefore,
	}
	if ctype != nil {
		id := ctype.ID
		query.ConsultationTypeID = &id
		query.DurationMinutes = ctype.DurationMinutes
		query.BufferBefore = ctype.BufferBefore
		query.BufferAfter = ctype.BufferAfter
	}
	return availability.Calculate(query, rules, occupied)
}

// bookingHorizon returns the earliest bookable clock on day, or false when
// the day is outside the bookable range.
func (s *AvailabilityService) bookingHorizon(day time.Time) (availability.Clock, bool) {
	now := s.now().In(s.settings.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.settings.Location)

	if day.Before(today) {
		return 0, false
	}
	if s.settings.MaxAdvanceDays > 0 && day.After(today.AddDate(0, 0, s.settings.MaxAdvanceDays)) {
		return 0, false
	}

	earliest := now.Add(time.Duration(s.settings.MinNoticeMinutes) * time.Minute)
	earliestDay := time.Date(earliest.Year(), earliest.Month(), earliest.Day(), 0, 0, 0, 0, s.settings.Location)
	switch {
	case day.Before(earliestDay):
		return 0, false
	case day.Equal(earliestDay):
		clock := availability.ClockOf(earliest)
		if earliest.Second() > 0 || earliest.Nanosecond() > 0 {
			clock = clock.Add(1)
		}
		return clock, true
	default:
		return 0, true
	}
}

func (s *AvailabilityService) parseDate(date string) (time.Time, error) {
	day, err := time.ParseInLocation(time.DateOnly, date, s.settings.Location)
	if err != nil {
		return time.Time{}, &ValidationError{Fields: map[string]string{"date": "must be formatted YYYY-MM-DD"}}
	}
	return day, nil
}

func (s *AvailabilityService) bookableType(ctx context.Context, id int64) (*models.ConsultationType, error) {
	ctype, err := s.types.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !ctype.IsActive() {
		return nil, ErrInactiveType
	}
	return ctype, nil
}

// EngineRules converts stored rules to engine rules.
func EngineRules(stored []models.AvailabilityRule) ([]availability.Rule, error) {
	rules := make([]availability.Rule, 0, len(stored))
	for _, rule := range stored {
		start, err := availability.ParseClock(rule.StartTime)
		if err != nil {
			return nil, err
		}
		end, err := availability.ParseClock(rule.EndTime)
		if err != nil {
			return nil, err
		}
		converted := availability.Rule{
			Type:               availability.RuleType(rule.RuleType),
			DayOfWeek:          -1,
			Window:             availability.Interval{Start: start, End: end},
			Available:          rule.IsAvailable,
			ConsultationTypeID: rule.ConsultationTypeID,
		}
		if rule.DayOfWeek != nil {
			converted.DayOfWeek = *rule.DayOfWeek
		}
		if rule.SpecificDate != nil {
			converted.Date = *rule.SpecificDate
		}
		rules = append(rules, converted)
	}
	return rules, nil
}

// OccupiedIntervals pads each booking by its own type's buffers.
func OccupiedIntervals(booked []models.BookedInterval) ([]availability.Interval, error) {
	occupied := make([]availability.Interval, 0, len(booked))
	for _, booking := range booked {
		start, err := availability.ParseClock(booking.BookingTime)
		if err != nil {
			return nil, err
		}
		occupied = append(occupied, availability.NewInterval(start, booking.DurationMinutes).
			Pad(booking.BufferBefore, booking.BufferAfter))
	}
	return occupied, nil
}

func toTimeSlots(slots []availability.Slot) []models.TimeSlot {
	result := make([]models.TimeSlot, 0, len(slots))
	for _, slot := range slots {
		result = append(result, models.TimeSlot{Start: slot.Start.String(), End: slot.End.String()})
	}
	return result
}

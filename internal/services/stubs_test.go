package services

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/ConsultBookBack/internal/availability"
	"github.com/saeid-a/ConsultBookBack/internal/models"
	"github.com/saeid-a/ConsultBookBack/internal/repository"
)

const testDate = "2030-03-18" // a Monday

func testNow() time.Time {
	return time.Date(2030, 3, 1, 8, 0, 0, 0, time.UTC)
}

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

type stubRuleRepo struct {
	mu         sync.Mutex
	rules      []models.AvailabilityRule
	err        error
	dayCalls   int
	rangeCalls int
}

func (r *stubRuleRepo) ListForRange(_ context.Context, from, to string) ([]models.AvailabilityRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rangeCalls++
	if r.err != nil {
		return nil, r.err
	}
	matching := make([]models.AvailabilityRule, 0)
	for _, rule := range r.rules {
		if rule.SpecificDate == nil || (*rule.SpecificDate >= from && *rule.SpecificDate <= to) {
			matching = append(matching, rule)
		}
	}
	return matching, nil
}

func (r *stubRuleRepo) ListForDate(_ context.Context, date string, weekday int) ([]models.AvailabilityRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dayCalls++
	if r.err != nil {
		return nil, r.err
	}
	matching := make([]models.AvailabilityRule, 0)
	for _, rule := range r.rules {
		if rule.SpecificDate != nil && *rule.SpecificDate == date {
			matching = append(matching, rule)
			continue
		}
		if rule.SpecificDate == nil && rule.DayOfWeek != nil && *rule.DayOfWeek == weekday {
			matching = append(matching, rule)
		}
	}
	return matching, nil
}

func weeklyRule(day int, start, end string) models.AvailabilityRule {
	return models.AvailabilityRule{
		RuleType:    models.RuleTypeWeekly,
		DayOfWeek:   intPtr(day),
		StartTime:   start,
		EndTime:     end,
		IsAvailable: true,
	}
}

type stubTypeRepo struct {
	types map[int64]*models.ConsultationType
}

func (r *stubTypeRepo) GetByID(_ context.Context, id int64) (*models.ConsultationType, error) {
	ctype, ok := r.types[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ctype
	return &copied, nil
}

func newTypeRepo(types ...models.ConsultationType) *stubTypeRepo {
	repo := &stubTypeRepo{types: map[int64]*models.ConsultationType{}}
	for i := range types {
		repo.types[types[i].ID] = &types[i]
	}
	return repo
}

func activeType(id int64, duration int, price float64) models.ConsultationType {
	return models.ConsultationType{
		ID:              id,
		Name:            "Strategy call",
		Slug:            "strategy-call",
		DurationMinutes: duration,
		Price:           price,
		Status:          models.ConsultationTypeStatusActive,
	}
}

// stubBookingRepo is an in-memory booking store shared by the booking,
// payment and event handler tests.
type stubBookingRepo struct {
	mu        sync.Mutex
	bookings  map[int64]*models.Booking
	nextID    int64
	createErr error
	getErr    error
	lastList  repository.BookingListFilter

	intervalDayCalls   int
	intervalRangeCalls int
}

func newBookingRepo(bookings ...models.Booking) *stubBookingRepo {
	repo := &stubBookingRepo{bookings: map[int64]*models.Booking{}, nextID: 100}
	for i := range bookings {
		b := bookings[i]
		repo.bookings[b.ID] = &b
	}
	return repo
}

func (r *stubBookingRepo) activeIntervals(date string) []models.BookedInterval {
	return r.activeIntervalsBetween(date, date)
}

func (r *stubBookingRepo) activeIntervalsBetween(from, to string) []models.BookedInterval {
	intervals := make([]models.BookedInterval, 0)
	for _, b := range r.bookings {
		if b.BookingDate >= from && b.BookingDate <= to && b.Status != models.BookingStatusCancelled {
			intervals = append(intervals, models.BookedInterval{
				BookingID:       b.ID,
				BookingDate:     b.BookingDate,
				BookingTime:     b.BookingTime,
				DurationMinutes: b.DurationMinutes,
			})
		}
	}
	return intervals
}

func (r *stubBookingRepo) ListActiveIntervals(_ context.Context, date string, _ int64) ([]models.BookedInterval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intervalDayCalls++
	return r.activeIntervals(date), nil
}

func (r *stubBookingRepo) ListActiveIntervalsBetween(_ context.Context, from, to string) ([]models.BookedInterval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intervalRangeCalls++
	return r.activeIntervalsBetween(from, to), nil
}

func (r *stubBookingRepo) CreateWithLock(_ context.Context, input repository.CreateBookingInput, guard repository.BookingGuard) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	if guard != nil {
		if err := guard(r.activeIntervals(input.BookingDate)); err != nil {
			return nil, err
		}
	}
	r.nextID++
	booking := &models.Booking{
		ID:                 r.nextID,
		ReferenceNumber:    input.ReferenceNumber,
		ConsultationTypeID: input.ConsultationTypeID,
		CustomerName:       input.CustomerName,
		CustomerEmail:      input.CustomerEmail,
		CustomerPhone:      input.CustomerPhone,
		CustomerNotes:      input.CustomerNotes,
		BookingDate:        input.BookingDate,
		BookingTime:        input.BookingTime,
		DurationMinutes:    input.DurationMinutes,
		Status:             input.Status,
		PaymentStatus:      input.PaymentStatus,
		PaymentAmount:      input.PaymentAmount,
	}
	r.bookings[booking.ID] = booking
	copied := *booking
	return &copied, nil
}

func (r *stubBookingRepo) GetByID(_ context.Context, id int64) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	b, ok := r.bookings[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *b
	return &copied, nil
}

func (r *stubBookingRepo) GetByReference(_ context.Context, reference string) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.ReferenceNumber == reference {
			copied := *b
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *stubBookingRepo) GetByPaymentIntentID(_ context.Context, intentID string) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.PaymentIntentID != nil && *b.PaymentIntentID == intentID {
			copied := *b
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *stubBookingRepo) List(_ context.Context, filter repository.BookingListFilter) ([]models.Booking, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastList = filter
	bookings := make([]models.Booking, 0, len(r.bookings))
	for _, b := range r.bookings {
		if filter.Status == "" || b.Status == filter.Status {
			bookings = append(bookings, *b)
		}
	}
	return bookings, len(bookings), nil
}

func (r *stubBookingRepo) UpdateStatusIfCurrent(_ context.Context, id int64, current, next string) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || b.Status != current {
		return nil, pgx.ErrNoRows
	}
	b.Status = next
	copied := *b
	return &copied, nil
}

func (r *stubBookingRepo) UpdatePaymentStatusIfCurrent(_ context.Context, id int64, current, next string) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || b.PaymentStatus != current {
		return nil, pgx.ErrNoRows
	}
	b.PaymentStatus = next
	copied := *b
	return &copied, nil
}

func (r *stubBookingRepo) SetPaymentIntent(_ context.Context, id int64, intentID string) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	b.PaymentIntentID = &intentID
	copied := *b
	return &copied, nil
}

func (r *stubBookingRepo) SetCalendarEventID(_ context.Context, id int64, provider string, eventID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return pgx.ErrNoRows
	}
	setEventID(b, provider, eventID)
	return nil
}

func (r *stubBookingRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.bookings, id)
	return nil
}

func (r *stubBookingRepo) get(id int64) models.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.bookings[id]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.Type)
	}
	return types
}

type stubErrorLogs struct {
	mu      sync.Mutex
	entries []repository.CreateErrorLogInput
}

func (s *stubErrorLogs) CreateErrorLog(_ context.Context, input repository.CreateErrorLogInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, input)
	return nil
}

// stubBusySource reports the same busy intervals on every day.
type stubBusySource struct {
	mu         sync.Mutex
	intervals  []availability.Interval
	err        error
	dayCalls   int
	rangeCalls int
}

func (s *stubBusySource) BusyIntervals(_ context.Context, _ time.Time) ([]availability.Interval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dayCalls++
	return s.intervals, s.err
}

func (s *stubBusySource) BusyIntervalsBetween(_ context.Context, first, last time.Time) (map[string][]availability.Interval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rangeCalls++
	if s.err != nil {
		return nil, s.err
	}
	byDate := make(map[string][]availability.Interval)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		byDate[day.Format(time.DateOnly)] = s.intervals
	}
	return byDate, nil
}

func newTestAvailabilityService(rules *stubRuleRepo, bookings *stubBookingRepo, types *stubTypeRepo, busy BusySource) *AvailabilityService {
	service := NewAvailabilityService(rules, bookings, types, busy, AvailabilitySettings{
		Location:               time.UTC,
		StepMinutes:            30,
		DefaultDurationMinutes: 30,
		MaxAdvanceDays:         90,
	}, nil)
	service.now = testNow
	return service
}

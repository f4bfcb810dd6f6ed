package services

import (
	"context"
	"errors"
	"math"
	"net/mail"
	"strings"
	"time"

	"github.com/saeid-a/ConsultBookBack/internal/availability"
	"github.com/saeid-a/ConsultBookBack/internal/logging"
	"github.com/saeid-a/ConsultBookBack/internal/models"
	"github.com/saeid-a/ConsultBookBack/internal/obs"
	"github.com/saeid-a/ConsultBookBack/internal/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

type bookingStore interface {
	CreateWithLock(ctx context.Context, input repository.CreateBookingInput, guard repository.BookingGuard) (*models.Booking, error)
	GetByID(ctx context.Context, id int64) (*models.Booking, error)
	GetByReference(ctx context.Context, reference string) (*models.Booking, error)
	List(ctx context.Context, filter repository.BookingListFilter) ([]models.Booking, int, error)
	UpdateStatusIfCurrent(ctx context.Context, id int64, currentStatus, nextStatus string) (*models.Booking, error)
	Delete(ctx context.Context, id int64) error
}

type slotChecker interface {
	IsSlotAvailable(ctx context.Context, date string, start availability.Clock, ctype *models.ConsultationType) (bool, error)
	Location() *time.Location
}

type BookingService struct {
	bookings  bookingStore
	types     consultationTypeReader
	slots     slotChecker
	publisher EventPublisher
	reporter  *ErrorReporter
	logger    *zap.Logger
	now       func() time.Time
}

func NewBookingService(
	bookings bookingStore,
	types consultationTypeReader,
	slots slotChecker,
	publisher EventPublisher,
	reporter *ErrorReporter,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		bookings:  bookings,
		types:     types,
		slots:     slots,
		publisher: publisher,
		reporter:  reporter,
		logger:    logging.OrNop(logger),
		now:       time.Now,
	}
}

func (s *BookingService) SetPublisher(publisher EventPublisher) {
	s.publisher = publisher
}

type CreateBookingRequest struct {
	ConsultationTypeID int64   `json:"consultation_type_id"`
	CustomerName       string  `json:"customer_name"`
	CustomerEmail      string  `json:"customer_email"`
	CustomerPhone      *string `json:"customer_phone"`
	CustomerNotes      *string `json:"customer_notes"`
	BookingDate        string  `json:"booking_date"`
	BookingTime        string  `json:"booking_time"`
}

// CreateBooking checks the requested slot against the computed availability
// and then inserts under the per-day lock after re-checking the day's
// bookings, so two concurrent requests cannot both take overlapping time.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.BookingDetail, error) {
	ctx, span := obs.Tracer().Start(ctx, "booking.Create")
	defer span.End()

	start, err := normalizeBookingRequest(&req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("booking.date", req.BookingDate),
		attribute.String("booking.time", req.BookingTime),
		attribute.Int64("consultation_type.id", req.ConsultationTypeID),
	)

	ctype, err := s.types.GetByID(ctx, req.ConsultationTypeID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, &ValidationError{Fields: map[string]string{"consultation_type_id": "unknown consultation type"}}
		}
		return nil, err
	}
	if !ctype.IsActive() {
		return nil, ErrInactiveType
	}

	available, err := s.slots.IsSlotAvailable(ctx, req.BookingDate, start, ctype)
	if err != nil {
		return nil, err
	}
	if !available {
		span.SetStatus(codes.Error, "slot unavailable")
		return nil, ErrSlotUnavailable
	}

	bookingDate, _ := time.ParseInLocation(time.DateOnly, req.BookingDate, s.slots.Location())
	input := repository.CreateBookingInput{
		ReferenceNumber:    NewReferenceNumber(bookingDate),
		ConsultationTypeID: ctype.ID,
		CustomerName:       req.CustomerName,
		CustomerEmail:      req.CustomerEmail,
		CustomerPhone:      req.CustomerPhone,
		CustomerNotes:      req.CustomerNotes,
		BookingDate:        req.BookingDate,
		BookingTime:        start.String(),
		DurationMinutes:    ctype.DurationMinutes,
		Status:             models.BookingStatusPending,
		PaymentStatus:      models.PaymentStatusPending,
		PaymentAmount:      roundMoney(ctype.Price),
	}
	if ctype.IsFree() {
		input.Status = models.BookingStatusConfirmed
		input.PaymentStatus = models.PaymentStatusPaid
	}

	candidate := availability.NewInterval(start, ctype.DurationMinutes)
	booking, err := s.bookings.CreateWithLock(ctx, input, func(existing []models.BookedInterval) error {
		occupied, err := OccupiedIntervals(existing)
		if err != nil {
			return err
		}
		if availability.Conflicts(candidate, ctype.BufferBefore, ctype.BufferAfter, occupied) {
			return ErrSlotUnavailable
		}
		return nil
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, ErrConflict
		}
		if !errors.Is(err, ErrSlotUnavailable) {
			span.RecordError(err)
		}
		return nil, err
	}

	s.logger.Info("booking created",
		zap.Int64("booking_id", booking.ID),
		zap.String("reference", booking.ReferenceNumber),
		zap.String("date", booking.BookingDate),
		zap.String("time", booking.BookingTime),
	)
	publishEvent(ctx, s.publisher, s.reporter, s.logger, NewBookingEvent(EventBookingCreated, booking))
	if booking.Status == models.BookingStatusConfirmed {
		publishEvent(ctx, s.publisher, s.reporter, s.logger, NewBookingEvent(EventBookingConfirmed, booking))
	}

	return &models.BookingDetail{Booking: *booking, ConsultationType: ctype}, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.BookingDetail, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.withType(ctx, booking)
}

// LookupBooking finds a booking for a customer. A wrong email looks the same
// as an unknown reference.
func (s *BookingService) LookupBooking(ctx context.Context, reference, email string) (*models.BookingDetail, error) {
	booking, err := s.lookup(ctx, reference, email)
	if err != nil {
		return nil, err
	}
	return s.withType(ctx, booking)
}

// CancelByCustomer cancels a pending or confirmed booking that has not
// started yet.
func (s *BookingService) CancelByCustomer(ctx context.Context, reference, email string) (*models.BookingDetail, error) {
	booking, err := s.lookup(ctx, reference, email)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusPending && booking.Status != models.BookingStatusConfirmed {
		return nil, ErrInvalidStateTransition
	}
	startsAt, err := s.startsAt(booking)
	if err != nil {
		return nil, err
	}
	if !startsAt.After(s.now()) {
		return nil, ErrInvalidStateTransition
	}

	updated, err := s.transition(ctx, booking, models.BookingStatusCancelled)
	if err != nil {
		return nil, err
	}
	return s.withType(ctx, updated)
}

type ListBookingsResult struct {
	Bookings []models.Booking      `json:"bookings"`
	Meta     models.PaginationMeta `json:"meta"`
}

func (s *BookingService) ListBookings(ctx context.Context, filter repository.BookingListFilter, page, limit int) (*ListBookingsResult, error) {
	if filter.Status != "" && !isBookingStatus(filter.Status) {
		return nil, ErrInvalidStatus
	}
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	bookings, total, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &ListBookingsResult{
		Bookings: bookings,
		Meta:     paginationMeta(page, limit, total),
	}, nil
}

func (s *BookingService) UpdateStatus(ctx context.Context, id int64, requestedStatus string) (*models.BookingDetail, error) {
	nextStatus, err := normalizeBookingStatus(requestedStatus)
	if err != nil {
		return nil, err
	}

	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if booking.Status == nextStatus {
		return s.withType(ctx, booking)
	}

	updated, err := s.transition(ctx, booking, nextStatus)
	if err != nil {
		return nil, err
	}
	return s.withType(ctx, updated)
}

func (s *BookingService) DeleteBooking(ctx context.Context, id int64) error {
	if err := s.bookings.Delete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	s.logger.Info("booking deleted", zap.Int64("booking_id", id))
	return nil
}

// transition applies a lifecycle change with compare-and-set on the current
// status and publishes the matching event.
func (s *BookingService) transition(ctx context.Context, booking *models.Booking, nextStatus string) (*models.Booking, error) {
	if !CanTransition(booking.Status, nextStatus) {
		return nil, ErrInvalidStateTransition
	}
	updated, err := s.bookings.UpdateStatusIfCurrent(ctx, booking.ID, booking.Status, nextStatus)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}

	s.logger.Info("booking status changed",
		zap.Int64("booking_id", updated.ID),
		zap.String("from", booking.Status),
		zap.String("to", updated.Status),
	)
	if eventType := statusEvent(nextStatus); eventType != "" {
		publishEvent(ctx, s.publisher, s.reporter, s.logger, NewBookingEvent(eventType, updated))
	}
	return updated, nil
}

func (s *BookingService) lookup(ctx context.Context, reference, email string) (*models.Booking, error) {
	reference = strings.ToUpper(strings.TrimSpace(reference))
	email = strings.TrimSpace(email)
	if reference == "" || email == "" {
		return nil, &ValidationError{Fields: map[string]string{"reference_number": "reference and email are required"}}
	}

	booking, err := s.bookings.GetByReference(ctx, reference)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !strings.EqualFold(booking.CustomerEmail, email) {
		return nil, ErrNotFound
	}
	return booking, nil
}

func (s *BookingService) withType(ctx context.Context, booking *models.Booking) (*models.BookingDetail, error) {
	detail := &models.BookingDetail{Booking: *booking}
	ctype, err := s.types.GetByID(ctx, booking.ConsultationTypeID)
	if err != nil && !repository.IsNotFound(err) {
		return nil, err
	}
	if err == nil {
		detail.ConsultationType = ctype
	}
	return detail, nil
}

func (s *BookingService) startsAt(booking *models.Booking) (time.Time, error) {
	return BookingStart(booking, s.slots.Location())
}

// BookingStart is the absolute start instant of a booking in the business
// time zone.
func BookingStart(booking *models.Booking, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", booking.BookingDate+" "+booking.BookingTime, loc)
}

// CanTransition encodes the booking lifecycle: pending moves to confirmed or
// cancelled, confirmed moves to completed, cancelled or no-show, and the
// rest are terminal.
func CanTransition(current, next string) bool {
	switch current {
	case models.BookingStatusPending:
		return next == models.BookingStatusConfirmed || next == models.BookingStatusCancelled
	case models.BookingStatusConfirmed:
		return next == models.BookingStatusCompleted ||
			next == models.BookingStatusCancelled ||
			next == models.BookingStatusNoShow
	default:
		return false
	}
}

func statusEvent(status string) string {
	switch status {
	case models.BookingStatusConfirmed:
		return EventBookingConfirmed
	case models.BookingStatusCancelled:
		return EventBookingCancelled
	case models.BookingStatusCompleted:
		return EventBookingCompleted
	case models.BookingStatusNoShow:
		return EventBookingNoShow
	default:
		return ""
	}
}

func normalizeBookingStatus(status string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "pending":
		return models.BookingStatusPending, nil
	case "confirm", "confirmed":
		return models.BookingStatusConfirmed, nil
	case "complete", "completed":
		return models.BookingStatusCompleted, nil
	case "cancel", "cancelled", "canceled":
		return models.BookingStatusCancelled, nil
	case "no-show", "no_show", "noshow":
		return models.BookingStatusNoShow, nil
	default:
		return "", ErrInvalidStatus
	}
}

func isBookingStatus(status string) bool {
	switch status {
	case models.BookingStatusPending, models.BookingStatusConfirmed, models.BookingStatusCompleted,
		models.BookingStatusCancelled, models.BookingStatusNoShow:
		return true
	}
	return false
}

func normalizeBookingRequest(req *CreateBookingRequest) (availability.Clock, error) {
	problems := fieldErrors{}

	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.CustomerName == "" {
		problems.add("customer_name", "is required")
	} else if len(req.CustomerName) > 255 {
		problems.add("customer_name", "must be at most 255 characters")
	}

	parsedEmail, err := mail.ParseAddress(strings.TrimSpace(req.CustomerEmail))
	if err != nil {
		problems.add("customer_email", "must be a valid email address")
	} else {
		req.CustomerEmail = strings.ToLower(parsedEmail.Address)
	}

	req.CustomerPhone = trimOptional(req.CustomerPhone)
	if req.CustomerPhone != nil && len(*req.CustomerPhone) > 50 {
		problems.add("customer_phone", "must be at most 50 characters")
	}
	req.CustomerNotes = trimOptional(req.CustomerNotes)

	if req.ConsultationTypeID <= 0 {
		problems.add("consultation_type_id", "is required")
	}

	req.BookingDate = strings.TrimSpace(req.BookingDate)
	if _, err := time.Parse(time.DateOnly, req.BookingDate); err != nil {
		problems.add("booking_date", "must be formatted YYYY-MM-DD")
	}

	start, err := availability.ParseClock(strings.TrimSpace(req.BookingTime))
	if err != nil || start >= availability.Clock(24*60) {
		problems.add("booking_time", "must be formatted HH:MM")
	} else {
		req.BookingTime = start.String()
	}

	if err := problems.err(); err != nil {
		return 0, err
	}
	return start, nil
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func roundMoney(amount float64) float64 {
	return math.Round(amount*100) / 100
}

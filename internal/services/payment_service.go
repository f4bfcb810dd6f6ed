package services

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/ConsultBookBack/internal/logging"
	"github.com/saeid-a/ConsultBookBack/internal/models"
	"github.com/saeid-a/ConsultBookBack/internal/repository"
	"go.uber.org/zap"
)

const (
	stripeEventIntentSucceeded = "payment_intent.succeeded"
	stripeEventIntentFailed    = "payment_intent.payment_failed"
	stripeEventChargeRefunded  = "charge.refunded"
)

type paymentBookingStore interface {
	GetByID(ctx context.Context, id int64) (*models.Booking, error)
	GetByReference(ctx context.Context, reference string) (*models.Booking, error)
	GetByPaymentIntentID(ctx context.Context, intentID string) (*models.Booking, error)
	SetPaymentIntent(ctx context.Context, id int64, intentID string) (*models.Booking, error)
	UpdateStatusIfCurrent(ctx context.Context, id int64, currentStatus, nextStatus string) (*models.Booking, error)
	UpdatePaymentStatusIfCurrent(ctx context.Context, id int64, currentStatus, nextStatus string) (*models.Booking, error)
}

type PaymentService struct {
	bookings      paymentBookingStore
	gateway       PaymentGateway
	webhookSecret string
	currency      string
	publisher     EventPublisher
	reporter      *ErrorReporter
	logger        *zap.Logger
}

func NewPaymentService(
	bookings paymentBookingStore,
	gateway PaymentGateway,
	webhookSecret string,
	currency string,
	publisher EventPublisher,
	reporter *ErrorReporter,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		bookings:      bookings,
		gateway:       gateway,
		webhookSecret: webhookSecret,
		currency:      currency,
		publisher:     publisher,
		reporter:      reporter,
		logger:        logging.OrNop(logger),
	}
}

func (s *PaymentService) SetPublisher(publisher EventPublisher) {
	s.publisher = publisher
}

type PaymentIntentResult struct {
	BookingID       int64   `json:"booking_id"`
	ReferenceNumber string  `json:"reference_number"`
	PaymentIntentID string  `json:"payment_intent_id"`
	ClientSecret    string  `json:"client_secret"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
}

// CreateIntent starts a card payment for an unpaid pending booking. The
// customer proves ownership with the booking email.
func (s *PaymentService) CreateIntent(ctx context.Context, reference, email string) (*PaymentIntentResult, error) {
	if s.gateway == nil {
		return nil, ErrPaymentUnavailable
	}

	reference = strings.ToUpper(strings.TrimSpace(reference))
	if reference == "" || strings.TrimSpace(email) == "" {
		return nil, &ValidationError{Fields: map[string]string{"reference_number": "reference and email are required"}}
	}
	booking, err := s.bookings.GetByReference(ctx, reference)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !strings.EqualFold(booking.CustomerEmail, strings.TrimSpace(email)) {
		return nil, ErrNotFound
	}
	if booking.PaymentAmount <= 0 {
		return nil, ErrPaymentNotRequired
	}
	if booking.Status != models.BookingStatusPending {
		return nil, ErrInvalidStateTransition
	}
	if booking.PaymentStatus != models.PaymentStatusPending && booking.PaymentStatus != models.PaymentStatusFailed {
		return nil, ErrInvalidStateTransition
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, CreateIntentParams{
		AmountMinor:     MinorUnits(booking.PaymentAmount),
		Currency:        s.currency,
		BookingID:       booking.ID,
		ReferenceNumber: booking.ReferenceNumber,
		CustomerEmail:   booking.CustomerEmail,
		Description:     "Booking " + booking.ReferenceNumber,
	})
	if err != nil {
		return nil, err
	}
	if booking.PaymentIntentID == nil || *booking.PaymentIntentID != intent.ID {
		if _, err := s.bookings.SetPaymentIntent(ctx, booking.ID, intent.ID); err != nil {
			return nil, err
		}
	}

	s.logger.Info("payment intent created",
		zap.Int64("booking_id", booking.ID),
		zap.String("payment_intent_id", intent.ID),
	)
	return &PaymentIntentResult{
		BookingID:       booking.ID,
		ReferenceNumber: booking.ReferenceNumber,
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          booking.PaymentAmount,
		Currency:        s.currency,
	}, nil
}

// HandleWebhook verifies and applies a Stripe event. Replays are harmless:
// every change is a compare-and-set on the current payment status.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	event, object, err := constructStripeEvent(payload, signatureHeader, s.webhookSecret)
	if err != nil {
		return err
	}
	eventType := string(event.Type)

	var apply func(context.Context, *models.Booking) error
	intentID := object.ID
	switch eventType {
	case stripeEventIntentSucceeded:
		apply = s.markPaid
	case stripeEventIntentFailed:
		apply = s.markFailed
	case stripeEventChargeRefunded:
		intentID = object.PaymentIntent
		apply = s.markRefunded
	default:
		s.logger.Debug("ignoring stripe event", zap.String("type", eventType), zap.String("event_id", event.ID))
		return nil
	}

	booking, err := s.resolveBooking(ctx, intentID, object.Metadata)
	if err != nil {
		if repository.IsNotFound(err) {
			s.logger.Warn("stripe event for unknown booking",
				zap.String("type", eventType),
				zap.String("event_id", event.ID),
				zap.String("payment_intent_id", intentID),
			)
			return nil
		}
		return err
	}

	s.logger.Info("applying stripe event",
		zap.String("type", eventType),
		zap.String("event_id", event.ID),
		zap.Int64("booking_id", booking.ID),
	)
	return apply(ctx, booking)
}

// Refund returns the full payment of a paid booking and cancels it when it
// is still open.
func (s *PaymentService) Refund(ctx context.Context, bookingID int64) (*models.Booking, error) {
	if s.gateway == nil {
		return nil, ErrPaymentUnavailable
	}
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if booking.PaymentStatus != models.PaymentStatusPaid || booking.PaymentIntentID == nil {
		return nil, ErrInvalidStateTransition
	}

	if err := s.gateway.Refund(ctx, *booking.PaymentIntentID); err != nil {
		return nil, err
	}
	if err := s.markRefunded(ctx, booking); err != nil {
		return nil, err
	}
	return s.bookings.GetByID(ctx, bookingID)
}

func (s *PaymentService) resolveBooking(ctx context.Context, intentID string, metadata map[string]string) (*models.Booking, error) {
	if intentID != "" {
		booking, err := s.bookings.GetByPaymentIntentID(ctx, intentID)
		if err == nil || !repository.IsNotFound(err) {
			return booking, err
		}
	}
	id, err := strconv.ParseInt(metadata["booking_id"], 10, 64)
	if err != nil || id <= 0 {
		return nil, pgx.ErrNoRows
	}
	return s.bookings.GetByID(ctx, id)
}

func (s *PaymentService) markPaid(ctx context.Context, booking *models.Booking) error {
	switch booking.PaymentStatus {
	case models.PaymentStatusPaid, models.PaymentStatusRefunded:
		return nil
	}
	updated, err := s.bookings.UpdatePaymentStatusIfCurrent(ctx, booking.ID, booking.PaymentStatus, models.PaymentStatusPaid)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return err
	}
	if updated.Status != models.BookingStatusPending {
		// paid after the booking was cancelled; an admin decides on the refund
		s.reporter.Warn(ctx, "payments.webhook", ErrInvalidStateTransition, map[string]any{
			"booking_id": updated.ID,
			"status":     updated.Status,
		})
		return nil
	}

	confirmed, err := s.bookings.UpdateStatusIfCurrent(ctx, updated.ID, models.BookingStatusPending, models.BookingStatusConfirmed)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return err
	}
	publishEvent(ctx, s.publisher, s.reporter, s.logger, NewBookingEvent(EventBookingConfirmed, confirmed))
	return nil
}

func (s *PaymentService) markFailed(ctx context.Context, booking *models.Booking) error {
	if booking.PaymentStatus != models.PaymentStatusPending {
		return nil
	}
	updated, err := s.bookings.UpdatePaymentStatusIfCurrent(ctx, booking.ID, models.PaymentStatusPending, models.PaymentStatusFailed)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return err
	}
	publishEvent(ctx, s.publisher, s.reporter, s.logger, NewBookingEvent(EventBookingPaymentFailed, updated))
	return nil
}

func (s *PaymentService) markRefunded(ctx context.Context, booking *models.Booking) error {
	if booking.PaymentStatus != models.PaymentStatusPaid {
		return nil
	}
	updated, err := s.bookings.UpdatePaymentStatusIfCurrent(ctx, booking.ID, models.PaymentStatusPaid, models.PaymentStatusRefunded)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return err
	}
	if !CanTransition(updated.Status, models.BookingStatusCancelled) {
		return nil
	}

	cancelled, err := s.bookings.UpdateStatusIfCurrent(ctx, updated.ID, updated.Status, models.BookingStatusCancelled)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return err
	}
	publishEvent(ctx, s.publisher, s.reporter, s.logger, NewBookingEvent(EventBookingCancelled, cancelled))
	return nil
}

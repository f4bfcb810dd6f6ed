package services

import (
	"context"

	"github.com/saeid-a/ConsultBookBack/internal/logging"
	"github.com/saeid-a/ConsultBookBack/internal/models"
	"github.com/saeid-a/ConsultBookBack/internal/repository"
	"go.uber.org/zap"
)

type bookingReader interface {
	GetByID(ctx context.Context, id int64) (*models.Booking, error)
}

type bookingNotifier interface {
	BookingReceived(ctx context.Context, booking *models.Booking, ctype *models.ConsultationType) error
	AdminNewBooking(ctx context.Context, booking *models.Booking, ctype *models.ConsultationType) error
	BookingConfirmed(ctx context.Context, booking *models.Booking, ctype *models.ConsultationType) error
	BookingCancelled(ctx context.Context, booking *models.Booking, ctype *models.ConsultationType) error
}

type calendarSyncer interface {
	SyncBooking(ctx context.Context, booking *models.Booking, ctype *models.ConsultationType) error
	RemoveBooking(ctx context.Context, booking *models.Booking) error
}

// BookingEventHandler runs the side effects of booking events: customer and
// admin email and calendar mirroring. Side-effect failures are reported,
// not returned, so a redelivered event does not resend mail that already
// went out.
type BookingEventHandler struct {
	bookings bookingReader
	types    consultationTypeReader
	notifier bookingNotifier
	calendar calendarSyncer
	reporter *ErrorReporter
	logger   *zap.Logger
}

func NewBookingEventHandler(
	bookings bookingReader,
	types consultationTypeReader,
	notifier bookingNotifier,
	calendar calendarSyncer,
	reporter *ErrorReporter,
	logger *zap.Logger,
) *BookingEventHandler {
	return &BookingEventHandler{
		bookings: bookings,
		types:    types,
		notifier: notifier,
		calendar: calendar,
		reporter: reporter,
		logger:   logging.OrNop(logger),
	}
}

func (h *BookingEventHandler) HandleEvent(ctx context.Context, event Event) error {
	booking, err := h.bookings.GetByID(ctx, event.BookingID)
	if err != nil {
		if repository.IsNotFound(err) {
			h.logger.Info("booking gone before event handling",
				zap.String("event", event.Type),
				zap.Int64("booking_id", event.BookingID),
			)
			return nil
		}
		return err
	}
	ctype, err := h.types.GetByID(ctx, booking.ConsultationTypeID)
	if err != nil && !repository.IsNotFound(err) {
		return err
	}

	details := map[string]any{"event": event.Type, "booking_id": booking.ID}
	switch event.Type {
	case EventBookingCreated:
		h.notify(ctx, "notifications.received", details, h.notifier.BookingReceived, booking, ctype)
		h.notify(ctx, "notifications.admin_new", details, h.notifier.AdminNewBooking, booking, ctype)
	case EventBookingConfirmed:
		h.notify(ctx, "notifications.confirmed", details, h.notifier.BookingConfirmed, booking, ctype)
		if h.calendar != nil {
			if err := h.calendar.SyncBooking(ctx, booking, ctype); err != nil {
				h.reporter.Report(ctx, "calendar.sync", err, details)
			}
		}
	case EventBookingCancelled:
		h.notify(ctx, "notifications.cancelled", details, h.notifier.BookingCancelled, booking, ctype)
		if h.calendar != nil {
			if err := h.calendar.RemoveBooking(ctx, booking); err != nil {
				h.reporter.Report(ctx, "calendar.remove", err, details)
			}
		}
	case EventBookingPaymentFailed:
		h.logger.Warn("booking payment failed",
			zap.Int64("booking_id", booking.ID),
			zap.String("reference", booking.ReferenceNumber),
		)
	default:
		h.logger.Debug("no side effects for event", zap.String("event", event.Type))
	}
	return nil
}

func (h *BookingEventHandler) notify(
	ctx context.Context,
	source string,
	details map[string]any,
	send func(context.Context, *models.Booking, *models.ConsultationType) error,
	booking *models.Booking,
	ctype *models.ConsultationType,
) {
	if err := send(ctx, booking, ctype); err != nil {
		h.reporter.Warn(ctx, source, err, details)
	}
}

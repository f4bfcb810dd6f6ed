package services

import (
	"context"
	"errors"
	"time"

	"github.com/saeid-a/ConsultBookBack/internal/models"
	"go.uber.org/zap"
)

const (
	EventBookingCreated       = "booking.created"
	EventBookingConfirmed     = "booking.confirmed"
	EventBookingCancelled     = "booking.cancelled"
	EventBookingCompleted     = "booking.completed"
	EventBookingNoShow        = "booking.no_show"
	EventBookingPaymentFailed = "booking.payment_failed"
)

// EventRoutingKeys is every routing key the notification worker binds.
var EventRoutingKeys = []string{"booking.*"}

type Event struct {
	Type            string    `json:"type"`
	BookingID       int64     `json:"booking_id"`
	ReferenceNumber string    `json:"reference_number"`
	Status          string    `json:"status"`
	PaymentStatus   string    `json:"payment_status"`
	OccurredAt      time.Time `json:"occurred_at"`
}

func NewBookingEvent(eventType string, booking *models.Booking) Event {
	return Event{
		Type:            eventType,
		BookingID:       booking.ID,
		ReferenceNumber: booking.ReferenceNumber,
		Status:          booking.Status,
		PaymentStatus:   booking.PaymentStatus,
		OccurredAt:      time.Now().UTC(),
	}
}

type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

type EventHandler interface {
	HandleEvent(ctx context.Context, event Event) error
}

// InlinePublisher runs the handler in the request path. It is the default
// when no broker is configured.
type InlinePublisher struct {
	handler EventHandler
}

func NewInlinePublisher(handler EventHandler) *InlinePublisher {
	return &InlinePublisher{handler: handler}
}

func (p *InlinePublisher) Publish(ctx context.Context, event Event) error {
	return p.handler.HandleEvent(ctx, event)
}

type jsonPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// BrokerPublisher sends events to the message broker with the event type as
// routing key.
type BrokerPublisher struct {
	broker jsonPublisher
}

func NewBrokerPublisher(broker jsonPublisher) *BrokerPublisher {
	return &BrokerPublisher{broker: broker}
}

func (p *BrokerPublisher) Publish(ctx context.Context, event Event) error {
	return p.broker.PublishJSON(ctx, event.Type, event)
}

// FanoutPublisher delivers to every publisher and joins the failures.
type FanoutPublisher struct {
	publishers []EventPublisher
}

func NewFanoutPublisher(publishers ...EventPublisher) *FanoutPublisher {
	return &FanoutPublisher{publishers: publishers}
}

func (p *FanoutPublisher) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, publisher := range p.publishers {
		if publisher == nil {
			continue
		}
		if err := publisher.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// publishEvent never fails the caller: the booking change is already
// committed when events go out.
func publishEvent(ctx context.Context, publisher EventPublisher, reporter *ErrorReporter, logger *zap.Logger, event Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		reporter.Report(ctx, "events.publish", err, map[string]any{
			"event":      event.Type,
			"booking_id": event.BookingID,
		})
		return
	}
	logger.Debug("booking event published",
		zap.String("event", event.Type),
		zap.Int64("booking_id", event.BookingID),
	)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/saeid-a/ConsultBookBack/internal/services"
	"github.com/saeid-a/ConsultBookBack/pkg/mq"
	"go.uber.org/zap"
)

type reminderSender interface {
	SendDueReminders(ctx context.Context, now time.Time) (int, error)
}

type failureReporter interface {
	Report(ctx context.Context, source string, err error, details map[string]any)
}

// handleDelivery decodes a booking event and runs its side-effects.
// Malformed payloads are dropped instead of requeued.
func handleDelivery(handler services.EventHandler) mq.Handler {
	return func(ctx context.Context, routingKey string, body []byte) error {
		var event services.Event
		if err := json.Unmarshal(body, &event); err != nil {
			return mq.Permanent(fmt.Errorf("decode %s: %w", routingKey, err))
		}
		if event.BookingID <= 0 {
			return mq.Permanent(fmt.Errorf("%s: missing booking id", routingKey))
		}
		return handler.HandleEvent(ctx, event)
	}
}

func runReminders(ctx context.Context, sender reminderSender, reporter failureReporter, logger *zap.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		sendReminders(ctx, sender, reporter, logger)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func sendReminders(ctx context.Context, sender reminderSender, reporter failureReporter, logger *zap.Logger) {
	sent, err := sender.SendDueReminders(ctx, time.Now())
	if err != nil {
		reporter.Report(ctx, "worker.reminders", err, nil)
		return
	}
	if sent > 0 {
		logger.Info("reminders sent", zap.Int("count", sent))
	}
}

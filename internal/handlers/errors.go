package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/ConsultBookBack/internal/services"
)

type errorReporter interface {
	Report(ctx context.Context, source string, err error, details map[string]any)
}

// respondError maps service errors to HTTP responses. Anything unexpected is
// reported and answered with a generic 500.
func respondError(c *fiber.Ctx, reporter errorReporter, source string, err error) error {
	var validation *services.ValidationError
	switch {
	case errors.As(err, &validation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Validation failed", "fields": validation.Fields})
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrInvalidStatus):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidSignature):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid signature"})
	case errors.Is(err, services.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
	case errors.Is(err, services.ErrNotFound), errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	case errors.Is(err, services.ErrSlotUnavailable):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "The selected time is no longer available"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Request conflicts with existing data"})
	case errors.Is(err, services.ErrInvalidStateTransition),
		errors.Is(err, services.ErrInactiveType),
		errors.Is(err, services.ErrPaymentNotRequired):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrPaymentUnavailable), errors.Is(err, services.ErrCalendarUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	default:
		if reporter != nil {
			reporter.Report(c.Context(), source, err, map[string]any{
				"method": c.Method(),
				"path":   c.Path(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
}

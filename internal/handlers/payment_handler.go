package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/ConsultBookBack/internal/services"
)

type paymentService interface {
	CreateIntent(ctx context.Context, reference, email string) (*services.PaymentIntentResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error
}

type PaymentHandler struct {
	service  paymentService
	reporter errorReporter
}

func NewPaymentHandler(service *services.PaymentService, reporter *services.ErrorReporter) *PaymentHandler {
	return &PaymentHandler{service: service, reporter: reporter}
}

func (h *PaymentHandler) CreateIntent(c *fiber.Ctx) error {
	req, ok := parseLookupRequest(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reference_number and email are required"})
	}

	result, err := h.service.CreateIntent(c.Context(), req.ReferenceNumber, req.Email)
	if err != nil {
		return respondError(c, h.reporter, "http.payments.intent", err)
	}
	return c.JSON(fiber.Map{"payment": result})
}

// StripeWebhook must see the raw body: the signature covers the exact bytes.
func (h *PaymentHandler) StripeWebhook(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)
	if err := h.service.HandleWebhook(c.Context(), payload, c.Get("Stripe-Signature")); err != nil {
		return respondError(c, h.reporter, "http.webhooks.stripe", err)
	}
	return c.JSON(fiber.Map{"received": true})
}

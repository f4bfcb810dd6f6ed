package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/ConsultBookBack/internal/models"
	"github.com/saeid-a/ConsultBookBack/internal/services"
)

type availabilityService interface {
	GetSlots(ctx context.Context, date string, consultationTypeID *int64) ([]models.TimeSlot, error)
	GetAvailableDates(ctx context.Context, month string, consultationTypeID *int64) ([]string, error)
}

type availabilityRuleService interface {
	List(ctx context.Context) ([]models.AvailabilityRule, error)
	Get(ctx context.Context, id int64) (*models.AvailabilityRule, error)
	Create(ctx context.Context, req services.AvailabilityRuleRequest) (*models.AvailabilityRule, error)
	Update(ctx context.Context, id int64, req services.AvailabilityRuleRequest) (*models.AvailabilityRule, error)
	Delete(ctx context.Context, id int64) error
}

type AvailabilityHandler struct {
	availability availabilityService
	rules        availabilityRuleService
	reporter     errorReporter
}

func NewAvailabilityHandler(
	availability *services.AvailabilityService,
	rules *services.AvailabilityRuleService,
	reporter *services.ErrorReporter,
) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability, rules: rules, reporter: reporter}
}

func (h *AvailabilityHandler) GetSlots(c *fiber.Ctx) error {
	date := strings.TrimSpace(c.Query("date"))
	if date == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "date is required"})
	}
	typeID, ok := parseOptionalID(c, "consultation_type_id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid consultation_type_id"})
	}

	slots, err := h.availability.GetSlots(c.Context(), date, typeID)
	if err != nil {
		return respondError(c, h.reporter, "http.availability.slots", err)
	}
	return c.JSON(fiber.Map{"date": date, "slots": slots})
}

func (h *AvailabilityHandler) GetAvailableDates(c *fiber.Ctx) error {
	month := strings.TrimSpace(c.Query("month"))
	if month == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "month is required"})
	}
	typeID, ok := parseOptionalID(c, "consultation_type_id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid consultation_type_id"})
	}

	dates, err := h.availability.GetAvailableDates(c.Context(), month, typeID)
	if err != nil {
		return respondError(c, h.reporter, "http.availability.dates", err)
	}
	return c.JSON(fiber.Map{"month": month, "dates": dates})
}

func (h *AvailabilityHandler) ListRules(c *fiber.Ctx) error {
	rules, err := h.rules.List(c.Context())
	if err != nil {
		return respondError(c, h.reporter, "http.admin.rules.list", err)
	}
	return c.JSON(fiber.Map{"rules": rules})
}

func (h *AvailabilityHandler) GetRule(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid rule id"})
	}
	rule, err := h.rules.Get(c.Context(), id)
	if err != nil {
		return respondError(c, h.reporter, "http.admin.rules.get", err)
	}
	return c.JSON(fiber.Map{"rule": rule})
}

func (h *AvailabilityHandler) CreateRule(c *fiber.Ctx) error {
	var req services.AvailabilityRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	rule, err := h.rules.Create(c.Context(), req)
	if err != nil {
		return respondError(c, h.reporter, "http.admin.rules.create", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"rule": rule})
}

func (h *AvailabilityHandler) UpdateRule(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid rule id"})
	}
	var req services.AvailabilityRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	rule, err := h.rules.Update(c.Context(), id, req)
	if err != nil {
		return respondError(c, h.reporter, "http.admin.rules.update", err)
	}
	return c.JSON(fiber.Map{"rule": rule})
}

func (h *AvailabilityHandler) DeleteRule(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid rule id"})
	}
	if err := h.rules.Delete(c.Context(), id); err != nil {
		return respondError(c, h.reporter, "http.admin.rules.delete", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/ConsultBookBack/internal/models"
	"github.com/saeid-a/ConsultBookBack/internal/services"
)

type logService interface {
	EmailLogs(ctx context.Context, page, limit int) ([]models.EmailLog, models.PaginationMeta, error)
	ErrorLogs(ctx context.Context, level string, page, limit int) ([]models.ErrorLog, models.PaginationMeta, error)
}

type LogHandler struct {
	service  logService
	reporter errorReporter
}

func NewLogHandler(service *services.LogService, reporter *services.ErrorReporter) *LogHandler {
	return &LogHandler{service: service, reporter: reporter}
}

func (h *LogHandler) EmailLogs(c *fiber.Ctx) error {
	page, limit := parsePagination(c)
	entries, meta, err := h.service.EmailLogs(c.Context(), page, limit)
	if err != nil {
		return respondError(c, h.reporter, "http.admin.logs.email", err)
	}
	return c.JSON(fiber.Map{"logs": entries, "pagination": meta})
}

func (h *LogHandler) ErrorLogs(c *fiber.Ctx) error {
	page, limit := parsePagination(c)
	level := strings.ToLower(strings.TrimSpace(c.Query("level")))
	entries, meta, err := h.service.ErrorLogs(c.Context(), level, page, limit)
	if err != nil {
		return respondError(c, h.reporter, "http.admin.logs.errors", err)
	}
	return c.JSON(fiber.Map{"logs": entries, "pagination": meta})
}

package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/ConsultBookBack/internal/models"
	"github.com/saeid-a/ConsultBookBack/internal/repository"
	"github.com/saeid-a/ConsultBookBack/internal/services"
)

type categoryService interface {
	List(ctx context.Context) ([]models.Category, error)
	Create(ctx context.Context, req services.CategoryRequest) (*models.Category, error)
	Update(ctx context.Context, id int64, req services.CategoryRequest) (*models.Category, error)
	Delete(ctx context.Context, id int64) error
}

type consultationTypeService interface {
	ListActive(ctx context.Context, categoryID int64) ([]models.ConsultationType, error)
	List(ctx context.Context, filter repository.ConsultationTypeFilter) ([]models.ConsultationType, error)
	Get(ctx context.Context, id int64) (*models.ConsultationType, error)
	GetActive(ctx context.Context, id int64) (*models.ConsultationType, error)
	Create(ctx context.Context, req services.ConsultationTypeRequest) (*models.ConsultationType, error)
	Update(ctx context.Context, id int64, req services.ConsultationTypeRequest) (*models.ConsultationType, error)
	Delete(ctx context.Context, id int64) error
}

// CatalogHandler serves categories and consultation types, publicly and to
// admins.
type CatalogHandler struct {
	categories categoryService
	types      consultationTypeService
	reporter   errorReporter
}

func NewCatalogHandler(
	categories *services.CategoryService,
	types *services.ConsultationTypeService,
	reporter *services.ErrorReporter,
) *CatalogHandler {
	return &CatalogHandler{categories: categories, types: types, reporter: reporter}
}

func (h *CatalogHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.categories.List(c.Context())
	if err != nil {
		return respondError(c, h.reporter, "http.categories.list", err)
	}
	return c.JSON(fiber.Map{"categories": categories})
}

func (h *CatalogHandler) CreateCategory(c *fiber.Ctx) error {
	var req services.CategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	category, err := h.categories.Create(c.Context(), req)
	if err != nil {
		return respondError(c, h.reporter, "http.categories.create", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"category": category})
}

func (h *CatalogHandler) UpdateCategory(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid category id"})
	}
	var req services.CategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	category, err := h.categories.Update(c.Context(), id, req)
	if err != nil {
		return respondError(c, h.reporter, "http.categories.update", err)
	}
	return c.JSON(fiber.Map{"category": category})
}

func (h *CatalogHandler) DeleteCategory(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid category id"})
	}
	if err := h.categories.Delete(c.Context(), id); err != nil {
		return respondError(c, h.reporter, "http.categories.delete", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *CatalogHandler) ListActiveTypes(c *fiber.Ctx) error {
	categoryID, ok := parseOptionalID(c, "category_id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid category_id"})
	}
	var id int64
	if categoryID != nil {
		id = *categoryID
	}
	types, err := h.types.ListActive(c.Context(), id)
	if err != nil {
		return respondError(c, h.reporter, "http.types.list", err)
	}
	return c.JSON(fiber.Map{"consultation_types": types})
}

func (h *CatalogHandler) GetActiveType(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid consultation type id"})
	}
	ctype, err := h.types.GetActive(c.Context(), id)
	if err != nil {
		return respondError(c, h.reporter, "http.types.get", err)
	}
	return c.JSON(fiber.Map{"consultation_type": ctype})
}

func (h *CatalogHandler) ListTypes(c *fiber.Ctx) error {
	categoryID, ok := parseOptionalID(c, "category_id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid category_id"})
	}
	filter := repository.ConsultationTypeFilter{Status: strings.TrimSpace(c.Query("status"))}
	if categoryID != nil {
		filter.CategoryID = *categoryID
	}
	types, err := h.types.List(c.Context(), filter)
	if err != nil {
		return respondError(c, h.reporter, "http.admin.types.list", err)
	}
	return c.JSON(fiber.Map{"consultation_types": types})
}

func (h *CatalogHandler) GetType(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid consultation type id"})
	}
	ctype, err := h.types.Get(c.Context(), id)
	if err != nil {
		return respondError(c, h.reporter, "http.admin.types.get", err)
	}
	return c.JSON(fiber.Map{"consultation_type": ctype})
}

func (h *CatalogHandler) CreateType(c *fiber.Ctx) error {
	var req services.ConsultationTypeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	ctype, err := h.types.Create(c.Context(), req)
	if err != nil {
		return respondError(c, h.reporter, "http.admin.types.create", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"consultation_type": ctype})
}

func (h *CatalogHandler) UpdateType(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid consultation type id"})
	}
	var req services.ConsultationTypeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	ctype, err := h.types.Update(c.Context(), id, req)
	if err != nil {
		return respondError(c, h.reporter, "http.admin.types.update", err)
	}
	return c.JSON(fiber.Map{"consultation_type": ctype})
}

func (h *CatalogHandler) DeleteType(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid consultation type id"})
	}
	if err := h.types.Delete(c.Context(), id); err != nil {
		return respondError(c, h.reporter, "http.admin.types.delete", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

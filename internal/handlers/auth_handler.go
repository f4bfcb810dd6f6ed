package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/ConsultBookBack/internal/services"
)

type authService interface {
	Login(email, password string) (*services.LoginResult, error)
}

type AuthHandler struct {
	service  authService
	reporter errorReporter
}

func NewAuthHandler(service *services.AuthService, reporter *services.ErrorReporter) *AuthHandler {
	return &AuthHandler{service: service, reporter: reporter}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Email and password are required"})
	}

	result, err := h.service.Login(req.Email, req.Password)
	if err != nil {
		return respondError(c, h.reporter, "http.auth.login", err)
	}

	return c.JSON(result)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"email": c.Locals("user_id"),
		"role":  c.Locals("role"),
	})
}

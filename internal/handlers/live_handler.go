package handlers

import (
	"errors"
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/ConsultBookBack/internal/services"
	livews "github.com/saeid-a/ConsultBookBack/internal/websocket"
	"github.com/saeid-a/ConsultBookBack/pkg/utils"
)

// LiveFeedHandler streams booking events to admin dashboards.
type LiveFeedHandler struct {
	hub       *livews.Hub
	jwtSecret string
}

func NewLiveFeedHandler(hub *livews.Hub, jwtSecret string) *LiveFeedHandler {
	return &LiveFeedHandler{hub: hub, jwtSecret: jwtSecret}
}

// WebSocketAuth accepts the token as a query parameter because browsers
// cannot set headers on websocket upgrades.
func (h *LiveFeedHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}
	if claims.Role != services.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	return c.Next()
}

func (h *LiveFeedHandler) HandleWebSocket(conn *websocket.Conn) {
	adminID, _ := conn.Locals("user_id").(string)
	client := livews.NewClient(h.hub, conn, adminID)

	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump()
}

func (h *LiveFeedHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}

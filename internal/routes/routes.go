package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/ConsultBookBack/internal/bootstrap"
	"github.com/saeid-a/ConsultBookBack/internal/config"
	"github.com/saeid-a/ConsultBookBack/internal/handlers"
	"github.com/saeid-a/ConsultBookBack/internal/middleware"
	livews "github.com/saeid-a/ConsultBookBack/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, deps *bootstrap.Container, hub *livews.Hub) error {
	authHandler := handlers.NewAuthHandler(deps.Auth, deps.Reporter)
	catalogHandler := handlers.NewCatalogHandler(deps.Categories, deps.Types, deps.Reporter)
	availabilityHandler := handlers.NewAvailabilityHandler(deps.Availability, deps.Rules, deps.Reporter)
	bookingHandler := handlers.NewBookingHandler(deps.Bookings, deps.Payments, deps.Calendar, deps.Reporter)
	paymentHandler := handlers.NewPaymentHandler(deps.Payments, deps.Reporter)
	logHandler := handlers.NewLogHandler(deps.Logs, deps.Reporter)
	liveHandler := handlers.NewLiveFeedHandler(hub, cfg.JWTSecret)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/login", middleware.RateLimit("login", cfg.RateLimitMax, cfg.RateLimitWindow), authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	v1 := api.Group("/v1")
	v1.Get("/categories", catalogHandler.ListCategories)
	v1.Get("/consultation-types", catalogHandler.ListActiveTypes)
	v1.Get("/consultation-types/:id", catalogHandler.GetActiveType)
	v1.Get("/availability/slots", availabilityHandler.GetSlots)
	v1.Get("/availability/dates", availabilityHandler.GetAvailableDates)

	bookings := v1.Group("/bookings")
	bookings.Post("", middleware.RateLimit("booking", cfg.RateLimitMax, cfg.RateLimitWindow), bookingHandler.CreateBooking)
	bookings.Post("/lookup", middleware.RateLimit("lookup", cfg.RateLimitMax, cfg.RateLimitWindow), bookingHandler.LookupBooking)
	bookings.Post("/lookup/cancel", middleware.RateLimit("cancel", cfg.RateLimitMax, cfg.RateLimitWindow), bookingHandler.CancelBooking)

	v1.Post("/payments/intent", middleware.RateLimit("payment", cfg.RateLimitMax, cfg.RateLimitWindow), paymentHandler.CreateIntent)
	v1.Post("/webhooks/stripe", paymentHandler.StripeWebhook)

	admin := v1.Group("/admin", middleware.AuthRequired(cfg.JWTSecret), middleware.AdminOnly())

	admin.Get("/categories", catalogHandler.ListCategories)
	admin.Post("/categories", catalogHandler.CreateCategory)
	admin.Put("/categories/:id", catalogHandler.UpdateCategory)
	admin.Delete("/categories/:id", catalogHandler.DeleteCategory)

	admin.Get("/consultation-types", catalogHandler.ListTypes)
	admin.Post("/consultation-types", catalogHandler.CreateType)
	admin.Get("/consultation-types/:id", catalogHandler.GetType)
	admin.Put("/consultation-types/:id", catalogHandler.UpdateType)
	admin.Delete("/consultation-types/:id", catalogHandler.DeleteType)

	admin.Get("/availability-rules", availabilityHandler.ListRules)
	admin.Post("/availability-rules", availabilityHandler.CreateRule)
	admin.Get("/availability-rules/:id", availabilityHandler.GetRule)
	admin.Put("/availability-rules/:id", availabilityHandler.UpdateRule)
	admin.Delete("/availability-rules/:id", availabilityHandler.DeleteRule)

	adminBookings := admin.Group("/bookings")
	adminBookings.Get("", bookingHandler.ListBookings)
	adminBookings.Get("/:id", bookingHandler.GetBooking)
	adminBookings.Put("/:id/status", bookingHandler.UpdateStatus)
	adminBookings.Delete("/:id", bookingHandler.DeleteBooking)
	adminBookings.Post("/:id/refund", bookingHandler.RefundBooking)
	adminBookings.Post("/:id/calendar-sync", bookingHandler.SyncCalendar)

	admin.Get("/email-logs", logHandler.EmailLogs)
	admin.Get("/error-logs", logHandler.ErrorLogs)

	// Browsers cannot set headers on a websocket upgrade, so the live feed
	// sits outside the admin group and checks the admin role itself.
	v1.Use("/ws", liveHandler.WebSocketAuth)
	v1.Get("/ws", websocket.New(liveHandler.HandleWebSocket))

	return registerDocsRoutes(app, cfg)
}

package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/saeid-a/ConsultBookBack/internal/bootstrap"
	"github.com/saeid-a/ConsultBookBack/internal/config"
	"github.com/saeid-a/ConsultBookBack/internal/database"
	"github.com/saeid-a/ConsultBookBack/internal/logging"
	"github.com/saeid-a/ConsultBookBack/internal/obs"
	"github.com/saeid-a/ConsultBookBack/internal/routes"
	"github.com/saeid-a/ConsultBookBack/internal/services"
	livews "github.com/saeid-a/ConsultBookBack/internal/websocket"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logging.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, "booknow-api", cfg.OTELEndpoint, cfg.AppEnv)
	if err != nil {
		zl.Fatal("failed to init tracer", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(shutdownCtx)
	}()

	// 2. Connect to Database
	db, err := database.Connect(ctx, cfg.DBUrl, zl)
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	deps, err := bootstrap.New(ctx, cfg, db, zl)
	if err != nil {
		zl.Fatal("failed to build services", zap.Error(err))
	}
	defer deps.Close()

	hub := livews.NewHub(zl)
	go hub.Run(ctx)
	deps.UsePublisher(services.NewFanoutPublisher(deps.DefaultPublisher(), hub))

	// 3. Setup Fiber
	app := fiber.New(fiber.Config{AppName: cfg.BusinessName})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(logger.New())

	// Routes
	if err := routes.RegisterRoutes(app, cfg, deps, hub); err != nil {
		zl.Fatal("failed to register routes", zap.Error(err))
	}

	go func() {
		<-ctx.Done()
		zl.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zl.Warn("server shutdown", zap.Error(err))
		}
	}()

	// 4. Start Server
	zl.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))
	if err := app.Listen(":" + cfg.Port); err != nil {
		zl.Fatal("server failed to start", zap.Error(err))
	}
}

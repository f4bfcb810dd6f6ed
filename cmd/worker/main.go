package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/saeid-a/ConsultBookBack/internal/bootstrap"
	"github.com/saeid-a/ConsultBookBack/internal/config"
	"github.com/saeid-a/ConsultBookBack/internal/database"
	"github.com/saeid-a/ConsultBookBack/internal/logging"
	"github.com/saeid-a/ConsultBookBack/internal/obs"
	"github.com/saeid-a/ConsultBookBack/internal/services"
	"github.com/saeid-a/ConsultBookBack/pkg/mq"
	"go.uber.org/zap"
)

const reminderInterval = 5 * time.Minute

func main() {
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

	shutdownTracer, err := obs.InitTracer(ctx, "booknow-worker", cfg.OTELEndpoint, cfg.AppEnv)
	if err != nil {
		zl.Fatal("failed to init tracer", zap.Error(err))
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

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

	go runReminders(ctx, deps.Notifications, deps.Reporter, zl, reminderInterval)

	if cfg.AMQPUrl == "" {
		zl.Info("AMQP_URL not set, running reminders only")
		<-ctx.Done()
		return
	}

	consumer, err := mq.NewConsumer(cfg.AMQPUrl, cfg.AMQPExchange, cfg.AMQPQueue, services.EventRoutingKeys)
	if err != nil {
		zl.Fatal("failed to start consumer", zap.Error(err))
	}
	defer consumer.Close()

	zl.Info("worker consuming", zap.String("queue", cfg.AMQPQueue))
	onError := func(key string, err error) {
		deps.Reporter.Report(ctx, "worker."+key, err, nil)
	}
	if err := consumer.Run(ctx, handleDelivery(deps.EventHandler), onError); err != nil && !errors.Is(err, context.Canceled) {
		zl.Fatal("consumer stopped", zap.Error(err))
	}
}

// Package bootstrap builds the repositories and services shared by the API
// server and the background worker.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saeid-a/ConsultBookBack/internal/config"
	"github.com/saeid-a/ConsultBookBack/internal/logging"
	"github.com/saeid-a/ConsultBookBack/internal/repository"
	"github.com/saeid-a/ConsultBookBack/internal/services"
	"github.com/saeid-a/ConsultBookBack/pkg/mq"
	"go.uber.org/zap"
)

type Container struct {
	Reporter      *services.ErrorReporter
	Auth          *services.AuthService
	Categories    *services.CategoryService
	Types         *services.ConsultationTypeService
	Rules         *services.AvailabilityRuleService
	Availability  *services.AvailabilityService
	Bookings      *services.BookingService
	Payments      *services.PaymentService
	Calendar      *services.CalendarService
	Notifications *services.NotificationService
	Logs          *services.LogService
	EventHandler  *services.BookingEventHandler

	broker *mq.Publisher
	logger *zap.Logger
}

func New(ctx context.Context, cfg *config.Config, db *pgxpool.Pool, logger *zap.Logger) (*Container, error) {
	logger = logging.OrNop(logger)

	categoryRepo := repository.NewCategoryRepository(db)
	typeRepo := repository.NewConsultationTypeRepository(db)
	ruleRepo := repository.NewAvailabilityRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	logRepo := repository.NewLogRepository(db)

	reporter := services.NewErrorReporter(logger, logRepo)

	auth, err := services.NewAuthService(cfg.AdminEmail, cfg.AdminPassword, cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	calendar := services.NewCalendarService(
		calendarProviders(ctx, cfg, logger),
		bookingRepo,
		reporter,
		logger,
		cfg.Location(),
		cfg.BusinessName,
	)

	var mailer services.Mailer
	if cfg.MailEnabled() {
		mailer = services.NewSMTPMailer(services.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.SenderAddress(),
			FromName: cfg.BusinessName,
		})
	} else {
		logger.Warn("SMTP_HOST not set, email notifications are disabled")
	}

	notifications, err := services.NewNotificationService(mailer, logRepo, bookingRepo, typeRepo, services.NotificationSettings{
		BusinessName: cfg.BusinessName,
		AdminEmail:   cfg.AdminEmail,
		Currency:     cfg.Currency,
		Location:     cfg.Location(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("notification service: %w", err)
	}

	availabilityService := services.NewAvailabilityService(ruleRepo, bookingRepo, typeRepo, calendar, services.AvailabilitySettings{
		Location:               cfg.Location(),
		StepMinutes:            cfg.SlotIntervalMinutes,
		DefaultDurationMinutes: cfg.DefaultDurationMinutes,
		MinNoticeMinutes:       cfg.MinNoticeMinutes,
		MaxAdvanceDays:         cfg.MaxAdvanceDays,
	}, logger)

	var gateway services.PaymentGateway
	if cfg.StripeEnabled() {
		gateway = services.NewStripeGateway(cfg.StripeSecretKey)
	}

	c := &Container{
		Reporter:      reporter,
		Auth:          auth,
		Categories:    services.NewCategoryService(categoryRepo),
		Types:         services.NewConsultationTypeService(typeRepo),
		Rules:         services.NewAvailabilityRuleService(ruleRepo),
		Availability:  availabilityService,
		Bookings:      services.NewBookingService(bookingRepo, typeRepo, availabilityService, nil, reporter, logger),
		Payments:      services.NewPaymentService(bookingRepo, gateway, cfg.StripeWebhookSecret, cfg.Currency, nil, reporter, logger),
		Calendar:      calendar,
		Notifications: notifications,
		Logs:          services.NewLogService(logRepo),
		EventHandler:  services.NewBookingEventHandler(bookingRepo, typeRepo, notifications, calendar, reporter, logger),
		logger:        logger,
	}

	if cfg.AMQPUrl != "" {
		broker, err := mq.NewPublisher(cfg.AMQPUrl, cfg.AMQPExchange)
		if err != nil {
			return nil, fmt.Errorf("amqp publisher: %w", err)
		}
		c.broker = broker
	}

	c.UsePublisher(c.DefaultPublisher())
	return c, nil
}

// DefaultPublisher sends events to the broker when one is configured and runs
// the side-effects in-process otherwise.
func (c *Container) DefaultPublisher() services.EventPublisher {
	if c.broker != nil {
		return services.NewBrokerPublisher(c.broker)
	}
	return services.NewInlinePublisher(c.EventHandler)
}

func (c *Container) UsePublisher(publisher services.EventPublisher) {
	c.Bookings.SetPublisher(publisher)
	c.Payments.SetPublisher(publisher)
}

func (c *Container) Close() {
	if c.broker == nil {
		return
	}
	if err := c.broker.Close(); err != nil {
		c.logger.Warn("failed to close amqp publisher", zap.Error(err))
	}
}

func calendarProviders(ctx context.Context, cfg *config.Config, logger *zap.Logger) []services.CalendarProvider {
	var providers []services.CalendarProvider
	if cfg.GoogleCalendarEnabled() {
		client := services.GoogleOAuthClient(ctx, services.OAuthCredentials{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RefreshToken: cfg.GoogleRefreshToken,
		})
		google, err := services.NewGoogleCalendar(ctx, client, cfg.GoogleCalendarID)
		if err != nil {
			logger.Error("google calendar sync disabled", zap.Error(err))
		} else {
			providers = append(providers, google)
			logger.Info("google calendar sync enabled", zap.String("calendar_id", cfg.GoogleCalendarID))
		}
	}
	if cfg.MicrosoftCalendarEnabled() {
		client := services.MicrosoftOAuthClient(ctx, services.OAuthCredentials{
			ClientID:     cfg.MicrosoftClientID,
			ClientSecret: cfg.MicrosoftClientSecret,
			RefreshToken: cfg.MicrosoftRefreshToken,
			TenantID:     cfg.MicrosoftTenantID,
		})
		providers = append(providers, services.NewMicrosoftCalendar(client, cfg.MicrosoftMailbox))
		logger.Info("microsoft calendar sync enabled")
	}
	return providers
}

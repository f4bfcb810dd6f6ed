package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port   string `envconfig:"PORT" default:"8080"`
	DBUrl  string `envconfig:"DB_URL" required:"true"`
	AppEnv string `envconfig:"APP_ENV" default:"production"`

	JWTSecret     string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL        time.Duration `envconfig:"JWT_TTL" default:"24h"`
	AdminEmail    string        `envconfig:"ADMIN_EMAIL"`
	AdminPassword string        `envconfig:"ADMIN_PASSWORD"`

	BusinessName           string `envconfig:"BUSINESS_NAME" default:"Book Now"`
	BusinessTimezone       string `envconfig:"BUSINESS_TIMEZONE" default:"UTC"`
	SlotIntervalMinutes    int    `envconfig:"SLOT_INTERVAL_MINUTES" default:"30"`
	DefaultDurationMinutes int    `envconfig:"DEFAULT_DURATION_MINUTES" default:"30"`
	MinNoticeMinutes       int    `envconfig:"MIN_NOTICE_MINUTES" default:"0"`
	MaxAdvanceDays         int    `envconfig:"MAX_ADVANCE_DAYS" default:"90"`
	Currency               string `envconfig:"CURRENCY" default:"usd"`

	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`

	SMTPHost string `envconfig:"SMTP_HOST"`
	SMTPPort int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser string `envconfig:"SMTP_USER"`
	SMTPPass string `envconfig:"SMTP_PASS"`
	MailFrom string `envconfig:"MAIL_FROM"`

	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	GoogleRefreshToken string `envconfig:"GOOGLE_REFRESH_TOKEN"`
	GoogleCalendarID   string `envconfig:"GOOGLE_CALENDAR_ID" default:"primary"`

	MicrosoftClientID     string `envconfig:"MICROSOFT_CLIENT_ID"`
	MicrosoftClientSecret string `envconfig:"MICROSOFT_CLIENT_SECRET"`
	MicrosoftTenantID     string `envconfig:"MICROSOFT_TENANT_ID" default:"common"`
	MicrosoftRefreshToken string `envconfig:"MICROSOFT_REFRESH_TOKEN"`
	MicrosoftMailbox      string `envconfig:"MICROSOFT_MAILBOX"`

	AMQPUrl      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"booknow.events"`
	AMQPQueue    string `envconfig:"AMQP_QUEUE" default:"booknow.notifications"`

	OTELEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	RateLimitMax    int           `envconfig:"RATE_LIMIT_MAX" default:"10"`
	RateLimitWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	location *time.Location
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	return loadFromEnv()
}

func loadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	cfg.AppEnv = normalizeEnv(cfg.AppEnv)
	cfg.Currency = strings.ToLower(strings.TrimSpace(cfg.Currency))

	loc, err := time.LoadLocation(strings.TrimSpace(cfg.BusinessTimezone))
	if err != nil {
		return nil, fmt.Errorf("BUSINESS_TIMEZONE is invalid: %w", err)
	}
	cfg.location = loc

	if cfg.SlotIntervalMinutes <= 0 {
		return nil, fmt.Errorf("SLOT_INTERVAL_MINUTES must be greater than 0")
	}
	if cfg.DefaultDurationMinutes <= 0 {
		return nil, fmt.Errorf("DEFAULT_DURATION_MINUTES must be greater than 0")
	}
	if cfg.MinNoticeMinutes < 0 || cfg.MaxAdvanceDays < 0 {
		return nil, fmt.Errorf("MIN_NOTICE_MINUTES and MAX_ADVANCE_DAYS must not be negative")
	}

	return &cfg, nil
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

// Location is the business time zone every booking date and time is in.
func (c *Config) Location() *time.Location {
	if c == nil || c.location == nil {
		return time.UTC
	}
	return c.location
}

func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}

func (c *Config) StripeEnabled() bool {
	return c != nil && c.StripeSecretKey != ""
}

func (c *Config) MailEnabled() bool {
	return c != nil && c.SMTPHost != ""
}

func (c *Config) GoogleCalendarEnabled() bool {
	return c != nil && c.GoogleClientID != "" && c.GoogleRefreshToken != ""
}

func (c *Config) MicrosoftCalendarEnabled() bool {
	return c != nil && c.MicrosoftClientID != "" && c.MicrosoftRefreshToken != ""
}

// SenderAddress falls back to the SMTP user when MAIL_FROM is not set.
func (c *Config) SenderAddress() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return c.SMTPUser
}

package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV"       envDefault:"local" validate:"required,oneof=local staging production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"  validate:"oneof=debug info warn error"`
	Port     string `env:"PORT"      envDefault:"8080"  validate:"required"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	SessionTTL   time.Duration `env:"SESSION_TTL"   envDefault:"720h" validate:"min=1m"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"false"`

	// VerificationSecret signs the ticket embedded in verification email links.
	VerificationSecret string `env:"VERIFICATION_SECRET,required" validate:"required,min=32"`
	AppBaseURL         string `env:"APP_BASE_URL" envDefault:"http://localhost:5173" validate:"required,url"`

	EmailTransport string `env:"EMAIL_TRANSPORT" envDefault:"log" validate:"oneof=log resend smtp queue"`
	ResendAPIKey   string `env:"RESEND_API_KEY"  validate:"required_if=EmailTransport resend"`
	ResendFrom     string `env:"RESEND_FROM"     validate:"required_if=EmailTransport resend"`
	SMTPHost       string `env:"SMTP_HOST"       validate:"required_if=EmailTransport smtp"`
	SMTPPort       int    `env:"SMTP_PORT"       envDefault:"587"`
	SMTPUsername   string `env:"SMTP_USERNAME"`
	SMTPPassword   string `env:"SMTP_PASSWORD"`
	AMQPURL        string `env:"AMQP_URL"        validate:"required_if=EmailTransport queue"`
	AMQPQueue      string `env:"AMQP_QUEUE"      envDefault:"verification_emails"`

	JanitorSchedule   string        `env:"JANITOR_SCHEDULE"    envDefault:"@every 10m" validate:"required"`
	UnverifiedUserTTL time.Duration `env:"UNVERIFIED_USER_TTL" envDefault:"24h"        validate:"min=1h"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Mailer configures cmd/mailer, which only needs the broker and a delivery transport.
type Mailer struct {
	Env      string `env:"ENV"       envDefault:"local" validate:"required,oneof=local staging production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"  validate:"oneof=debug info warn error"`

	AMQPURL   string `env:"AMQP_URL,required" validate:"required"`
	AMQPQueue string `env:"AMQP_QUEUE" envDefault:"verification_emails"`

	ResendAPIKey string `env:"RESEND_API_KEY"`
	ResendFrom   string `env:"RESEND_FROM" validate:"required_with=ResendAPIKey"`
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
}

func LoadMailer() (*Mailer, error) {
	cfg := &Mailer{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level { return parseLevel(c.LogLevel) }

func (c *Mailer) SlogLevel() slog.Level { return parseLevel(c.LogLevel) }

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

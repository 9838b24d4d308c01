package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ErlanBelekov/devlife/config"
	"github.com/resend/resend-go/v2"
)

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender logs emails instead of sending them. Used with EMAIL_TRANSPORT=log.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With("component", "log_sender")}
}

func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.logger.InfoContext(ctx, "email (not delivered)", "to", to, "subject", subject, "body", body)
	return nil
}

type ResendSender struct {
	client *resend.Client
	from   string
}

func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey), from: from}
}

func (s *ResendSender) Send(ctx context.Context, to, subject, body string) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// NewSender picks the transport named by cfg.EmailTransport. A QueueSender holds an
// AMQP connection; callers close it through Close.
func NewSender(cfg *config.Config, logger *slog.Logger) (Sender, error) {
	switch cfg.EmailTransport {
	case "resend":
		return NewResendSender(cfg.ResendAPIKey, cfg.ResendFrom), nil
	case "smtp":
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword), nil
	case "queue":
		return NewQueueSender(cfg.AMQPURL, cfg.AMQPQueue)
	default:
		return NewLogSender(logger), nil
	}
}

// NewDeliverySender picks the transport the mail relay delivers with. Only SMTP and Resend
// actually reach an inbox; anything else falls back to logging.
func NewDeliverySender(cfg *config.Mailer, logger *slog.Logger) Sender {
	switch {
	case cfg.SMTPHost != "":
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	case cfg.ResendAPIKey != "":
		return NewResendSender(cfg.ResendAPIKey, cfg.ResendFrom)
	default:
		return NewLogSender(logger)
	}
}

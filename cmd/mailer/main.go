// mailer drains the verification email queue and delivers each message over SMTP or Resend.
// Run alongside the server when EMAIL_TRANSPORT=queue.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/devlife/config"
	"github.com/ErlanBelekov/devlife/internal/email"
	ctxlog "github.com/ErlanBelekov/devlife/internal/log"
	"github.com/lmittmann/tint"
)

const reconnectDelay = 5 * time.Second

func main() {
	cfg, err := config.LoadMailer()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	relay := email.NewRelay(cfg.AMQPURL, cfg.AMQPQueue, email.NewDeliverySender(cfg, logger), logger)

	for {
		err := relay.Run(ctx)
		if ctx.Err() != nil {
			break
		}
		logger.Error("relay stopped, reconnecting", "error", err, "delay", reconnectDelay)

		select {
		case <-ctx.Done():
		case <-time.After(reconnectDelay):
		}
	}
	logger.Info("mailer shut down")
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}

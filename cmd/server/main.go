package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/devlife/config"
	"github.com/ErlanBelekov/devlife/internal/email"
	"github.com/ErlanBelekov/devlife/internal/health"
	"github.com/ErlanBelekov/devlife/internal/infrastructure/postgres"
	ctxlog "github.com/ErlanBelekov/devlife/internal/log"
	"github.com/ErlanBelekov/devlife/internal/metrics"
	"github.com/ErlanBelekov/devlife/internal/scheduler"
	"github.com/ErlanBelekov/devlife/internal/security"
	httptransport "github.com/ErlanBelekov/devlife/internal/transport/http"
	"github.com/ErlanBelekov/devlife/internal/transport/http/handler"
	"github.com/ErlanBelekov/devlife/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		stop()
		log.Fatalf("migrate: %v", err)
	}

	emailSender, err := email.NewSender(cfg, logger)
	if err != nil {
		stop()
		log.Fatalf("email: %v", err)
	}
	if c, ok := emailSender.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	// Credential store
	userRepo := postgres.NewUserRepository(pool)
	sessionRepo := postgres.NewSessionRepository(pool)
	tokenRepo := postgres.NewAPITokenRepository(pool)
	codeRepo := postgres.NewVerificationCodeRepository(pool)

	// Auth
	verification := usecase.NewVerificationUsecase(codeRepo)
	authUsecase := usecase.NewAuthUsecase(
		userRepo, sessionRepo, tokenRepo,
		verification,
		usecase.NewTicketSigner([]byte(cfg.VerificationSecret)),
		security.NewArgon2Hasher(security.DefaultArgon2Params()),
		emailSender,
		usecase.AuthOptions{
			SessionTTL:   cfg.SessionTTL,
			CookieSecure: cfg.CookieSecure,
			AppBaseURL:   cfg.AppBaseURL,
		},
	)
	authHandler := handler.NewAuthHandler(authUsecase, logger)

	// Tasks
	taskUsecase := usecase.NewTaskUsecase(postgres.NewTaskRepository(pool), postgres.NewSubmissionRepository(pool))
	taskHandler := handler.NewTaskHandler(taskUsecase, logger)

	metrics.Register()
	deps := []health.Dependency{{Name: "postgres", Pinger: pool}}
	if p, ok := emailSender.(health.Pinger); ok {
		deps = append(deps, health.Dependency{Name: "amqp", Pinger: p})
	}
	checker := health.NewChecker(logger, prometheus.DefaultRegisterer, deps...)

	janitor, err := scheduler.NewJanitor(sessionRepo, codeRepo, userRepo, cfg.JanitorSchedule, cfg.UnverifiedUserTTL, logger)
	if err != nil {
		stop()
		log.Fatalf("janitor: %v", err)
	}

	srv := http.Server{
		Addr: ":" + cfg.Port,
		Handler: httptransport.NewRouter(
			logger,
			httptransport.RouterConfig{HSTS: cfg.CookieSecure},
			authUsecase,
			authHandler,
			taskHandler,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		janitor.Start(ctx)
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
	<-janitorDone
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

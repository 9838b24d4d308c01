package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/devlife/internal/metrics"
	"github.com/robfig/cron/v3"
)

// expirer is satisfied by the session and verification code repositories.
type expirer interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type unverifiedPurger interface {
	PurgeUnverified(ctx context.Context, cutoff time.Time) (int, error)
}

// Janitor periodically removes expired sessions and verification codes, and unverified
// users that abandoned sign-up longer than unverifiedTTL ago.
type Janitor struct {
	sessions      expirer
	codes         expirer
	users         unverifiedPurger
	schedule      cron.Schedule
	unverifiedTTL time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// NewJanitor parses cronExpr with the standard cron parser, so descriptors like "@every 10m" work.
func NewJanitor(sessions, codes expirer, users unverifiedPurger, cronExpr string, unverifiedTTL time.Duration, logger *slog.Logger) (*Janitor, error) {
	sched, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("parse janitor schedule %q: %w", cronExpr, err)
	}
	return &Janitor{
		sessions:      sessions,
		codes:         codes,
		users:         users,
		schedule:      sched,
		unverifiedTTL: unverifiedTTL,
		logger:        logger.With("component", "janitor"),
		now:           time.Now,
	}, nil
}

func (j *Janitor) Start(ctx context.Context) {
	j.logger.Info("janitor started", "unverified_ttl", j.unverifiedTTL)

	for {
		next := j.schedule.Next(j.now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			j.logger.Info("janitor shut down")
			return
		case <-timer.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sweep. Each step is independent; a failing step is logged and the
// rest still run.
func (j *Janitor) RunOnce(ctx context.Context) {
	start := time.Now()
	defer func() { metrics.JanitorCycleDuration.Observe(time.Since(start).Seconds()) }()

	now := j.now()
	j.sweep(ctx, "sessions", func() (int, error) { return j.sessions.DeleteExpired(ctx, now) })
	j.sweep(ctx, "verification_codes", func() (int, error) { return j.codes.DeleteExpired(ctx, now) })
	j.sweep(ctx, "unverified_users", func() (int, error) { return j.users.PurgeUnverified(ctx, now.Add(-j.unverifiedTTL)) })
}

func (j *Janitor) sweep(ctx context.Context, kind string, fn func() (int, error)) {
	n, err := fn()
	if err != nil {
		j.logger.ErrorContext(ctx, "janitor sweep", "kind", kind, "error", err)
		return
	}
	if n > 0 {
		metrics.JanitorPurgedTotal.WithLabelValues(kind).Add(float64(n))
		j.logger.InfoContext(ctx, "janitor purged rows", "kind", kind, "count", n)
	}
}

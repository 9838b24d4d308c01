package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/devlife/internal/domain"
)

type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	FindByID(ctx context.Context, id string) (*domain.Session, error)
	// FindLatestByUser returns the newest unexpired session of the user.
	FindLatestByUser(ctx context.Context, userID string, now time.Time) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type APITokenRepository interface {
	// Upsert replaces whatever token the user had before.
	Upsert(ctx context.Context, userID, token string) error
	FindUserByToken(ctx context.Context, token string) (*domain.User, error)
}

type VerificationCodeRepository interface {
	// Replace deletes any code of the user and inserts the new one.
	Replace(ctx context.Context, code *domain.VerificationCode) error
	FindByUser(ctx context.Context, userID string) (*domain.VerificationCode, error)
	Delete(ctx context.Context, userID string) error
	// Consume deletes the row only if the code still matches. Returns
	// domain.ErrVerificationCodeNotFound when nothing was deleted.
	Consume(ctx context.Context, userID, code string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/devlife/internal/domain"
)

type UserRepository interface {
	// CreateWithCredential inserts the user and its password hash in one transaction.
	// Returns domain.ErrEmailTaken on a unique violation of the email.
	CreateWithCredential(ctx context.Context, email, passwordHash string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	GetCredential(ctx context.Context, userID string) (*domain.Credential, error)
	MarkVerified(ctx context.Context, userID string) error

	// DeleteUnverified removes an unverified user and everything hanging off it.
	// Returns false without error when the email is unknown or already verified.
	DeleteUnverified(ctx context.Context, email string) (bool, error)

	// PurgeUnverified deletes unverified users created before cutoff that hold no live
	// verification code. Returns the number of users removed.
	PurgeUnverified(ctx context.Context, cutoff time.Time) (int, error)
}

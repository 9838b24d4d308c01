package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ErlanBelekov/devlife/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type APITokenRepository struct {
	pool *pgxpool.Pool
}

func NewAPITokenRepository(pool *pgxpool.Pool) *APITokenRepository {
	return &APITokenRepository{pool: pool}
}

func (r *APITokenRepository) Upsert(ctx context.Context, userID, token string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO api_tokens (user_id, token) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET token = EXCLUDED.token, created_at = NOW()`,
		userID, token,
	)
	if err != nil {
		// A 23505 here is a token collision across users; surfaced as a hard error.
		return fmt.Errorf("upsert api token: %w", err)
	}
	return nil
}

func (r *APITokenRepository) FindUserByToken(ctx context.Context, token string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT u.id, u.email, u.verified, u.created_at
		FROM api_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token = $1`, token)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, err
	}
	return u, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/devlife/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VerificationCodeRepository struct {
	pool *pgxpool.Pool
}

func NewVerificationCodeRepository(pool *pgxpool.Pool) *VerificationCodeRepository {
	return &VerificationCodeRepository{pool: pool}
}

func (r *VerificationCodeRepository) Replace(ctx context.Context, c *domain.VerificationCode) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err = tx.Exec(ctx, `DELETE FROM email_verifications WHERE user_id = $1`, c.UserID); err != nil {
		return fmt.Errorf("delete previous code: %w", err)
	}

	if _, err = tx.Exec(ctx,
		`INSERT INTO email_verifications (user_id, code, expires_at) VALUES ($1, $2, $3)`,
		c.UserID, c.Code, c.ExpiresAt,
	); err != nil {
		if isPgError(err, codeForeignKeyViolation) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("insert code: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *VerificationCodeRepository) FindByUser(ctx context.Context, userID string) (*domain.VerificationCode, error) {
	var c domain.VerificationCode
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, code, expires_at FROM email_verifications WHERE user_id = $1`, userID,
	).Scan(&c.UserID, &c.Code, &c.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrVerificationCodeNotFound
		}
		return nil, fmt.Errorf("find code: %w", err)
	}
	return &c, nil
}

func (r *VerificationCodeRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM email_verifications WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete code: %w", err)
	}
	return nil
}

func (r *VerificationCodeRepository) Consume(ctx context.Context, userID, code string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM email_verifications WHERE user_id = $1 AND code = $2`, userID, code)
	if err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVerificationCodeNotFound
	}
	return nil
}

func (r *VerificationCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM email_verifications WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired codes: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

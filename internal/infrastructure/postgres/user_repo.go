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

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) CreateWithCredential(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`INSERT INTO users (email) VALUES ($1)
		RETURNING id, email, verified, created_at`,
		email,
	)
	u, err := scanUser(row)
	if err != nil {
		if isPgError(err, codeUniqueViolation) {
			return nil, domain.ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	if _, err = tx.Exec(ctx,
		`INSERT INTO credentials (user_id, password_hash) VALUES ($1, $2)`,
		u.ID, passwordHash,
	); err != nil {
		return nil, fmt.Errorf("insert credential: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, verified, created_at FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, verified, created_at FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *UserRepository) GetCredential(ctx context.Context, userID string) (*domain.Credential, error) {
	var c domain.Credential
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, password_hash FROM credentials WHERE user_id = $1`, userID,
	).Scan(&c.UserID, &c.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return &c, nil
}

func (r *UserRepository) MarkVerified(ctx context.Context, userID string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET verified = TRUE WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) DeleteUnverified(ctx context.Context, email string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Lock the row so a concurrent verification cannot flip it mid-delete.
	var userID string
	err = tx.QueryRow(ctx,
		`SELECT id FROM users WHERE email = $1 AND NOT verified FOR UPDATE`, email,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lock unverified user: %w", err)
	}

	if err = deleteUserRows(ctx, tx, userID); err != nil {
		return false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}
	return true, nil
}

func (r *UserRepository) PurgeUnverified(ctx context.Context, cutoff time.Time) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT u.id FROM users u
		WHERE NOT u.verified
		  AND u.created_at < $1
		  AND NOT EXISTS (
			SELECT 1 FROM email_verifications v
			WHERE v.user_id = u.id AND v.expires_at > NOW()
		  )
		LIMIT 100
		FOR UPDATE SKIP LOCKED`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("select stale users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return 0, fmt.Errorf("collect stale users: %w", err)
	}

	for _, id := range ids {
		if err = deleteUserRows(ctx, tx, id); err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return len(ids), nil
}

// deleteUserRows removes dependants before the user row itself; FKs have no cascades.
func deleteUserRows(ctx context.Context, tx pgx.Tx, userID string) error {
	stmts := []struct {
		name  string
		query string
	}{
		{"verification code", `DELETE FROM email_verifications WHERE user_id = $1`},
		{"credential", `DELETE FROM credentials WHERE user_id = $1`},
		{"sessions", `DELETE FROM sessions WHERE user_id = $1`},
		{"api token", `DELETE FROM api_tokens WHERE user_id = $1`},
		{"submissions", `DELETE FROM task_submissions WHERE user_id = $1`},
		{"user", `DELETE FROM users WHERE id = $1`},
	}
	for _, s := range stmts {
		if _, err := tx.Exec(ctx, s.query, userID); err != nil {
			return fmt.Errorf("delete %s: %w", s.name, err)
		}
	}
	return nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.Verified, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

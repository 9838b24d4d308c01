package postgres

import (
	"context"
	"fmt"

	"github.com/ErlanBelekov/devlife/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SubmissionRepository struct {
	pool *pgxpool.Pool
}

func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

func (r *SubmissionRepository) Upsert(ctx context.Context, userID, taskID string, status domain.SubmissionStatus) (*domain.Submission, error) {
	var s domain.Submission
	err := r.pool.QueryRow(ctx, `
		INSERT INTO task_submissions (user_id, task_id, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, task_id) DO UPDATE
		SET status = EXCLUDED.status, updated_at = NOW()
		RETURNING user_id, task_id, status, created_at, updated_at`,
		userID, taskID, string(status),
	).Scan(&s.UserID, &s.TaskID, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isPgError(err, codeForeignKeyViolation) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("upsert submission: %w", err)
	}
	return &s, nil
}

func (r *SubmissionRepository) ListTasksWithStatus(ctx context.Context, userID string) ([]*domain.TaskWithStatus, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+`, COALESCE(s.status, $2)
		FROM tasks t
		LEFT JOIN task_submissions s ON s.task_id = t.id AND s.user_id = $1
		ORDER BY t.created_at, t.id`,
		userID, string(domain.SubmissionNotDone),
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks with status: %w", err)
	}
	defer rows.Close()

	var out []*domain.TaskWithStatus
	for rows.Next() {
		var ts domain.TaskWithStatus
		if err := rows.Scan(
			&ts.ID, &ts.Title, &ts.Objective, &ts.Tags, &ts.Content, &ts.Author,
			&ts.CreatedAt, &ts.UpdatedAt, &ts.Status,
		); err != nil {
			return nil, fmt.Errorf("scan task with status: %w", err)
		}
		out = append(out, &ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks with status: %w", err)
	}
	return out, nil
}

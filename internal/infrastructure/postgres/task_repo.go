package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ErlanBelekov/devlife/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TaskRepository struct {
	pool *pgxpool.Pool
}

func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

const taskColumns = `t.id, t.title, t.objective, t.tags, t.content, t.author, t.created_at, t.updated_at`

func (r *TaskRepository) List(ctx context.Context) ([]*domain.Task, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks t ORDER BY t.created_at, t.id`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	var (
		t   domain.Task
		raw []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT `+taskColumns+`, tt.tests
		FROM tasks t
		LEFT JOIN task_tests tt ON tt.task_id = t.id
		WHERE t.id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.Objective, &t.Tags, &t.Content, &t.Author, &t.CreatedAt, &t.UpdatedAt, &raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}

	if len(raw) > 0 {
		var suite domain.TestSuite
		if err := json.Unmarshal(raw, &suite); err != nil {
			return nil, fmt.Errorf("decode tests of task %s: %w", id, err)
		}
		t.Tests = suite.Data
	}
	return &t, nil
}

func (r *TaskRepository) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("check task: %w", err)
	}
	return ok, nil
}

func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	tests, err := encodeTests(t.Tests)
	if err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		INSERT INTO tasks AS t (id, title, objective, tags, content, author)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+taskColumns,
		t.ID, t.Title, t.Objective, tagsOrEmpty(t.Tags), t.Content, t.Author,
	)
	created, err := scanTask(row)
	if err != nil {
		if isPgError(err, codeUniqueViolation) {
			return nil, domain.ErrTaskConflict
		}
		return nil, err
	}

	if _, err = tx.Exec(ctx, `INSERT INTO task_tests (task_id, tests) VALUES ($1, $2)`, created.ID, tests); err != nil {
		return nil, fmt.Errorf("insert tests: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	created.Tests = t.Tests
	return created, nil
}

func (r *TaskRepository) Update(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	tests, err := encodeTests(t.Tests)
	if err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE tasks AS t
		SET title = $2, objective = $3, tags = $4, content = $5, updated_at = NOW()
		WHERE t.id = $1
		RETURNING `+taskColumns,
		t.ID, t.Title, t.Objective, tagsOrEmpty(t.Tags), t.Content,
	)
	updated, err := scanTask(row)
	if err != nil {
		return nil, err
	}

	if _, err = tx.Exec(ctx, `
		INSERT INTO task_tests (task_id, tests) VALUES ($1, $2)
		ON CONFLICT (task_id) DO UPDATE SET tests = EXCLUDED.tests`,
		updated.ID, tests,
	); err != nil {
		return nil, fmt.Errorf("upsert tests: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	updated.Tests = t.Tests
	return updated, nil
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err = tx.Exec(ctx, `DELETE FROM task_submissions WHERE task_id = $1`, id); err != nil {
		return fmt.Errorf("delete submissions: %w", err)
	}
	if _, err = tx.Exec(ctx, `DELETE FROM task_tests WHERE task_id = $1`, id); err != nil {
		return fmt.Errorf("delete tests: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task
	err := row.Scan(&t.ID, &t.Title, &t.Objective, &t.Tags, &t.Content, &t.Author, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return &t, nil
}

func encodeTests(cases []domain.TestCase) ([]byte, error) {
	if cases == nil {
		cases = []domain.TestCase{}
	}
	b, err := json.Marshal(domain.TestSuite{Data: cases})
	if err != nil {
		return nil, fmt.Errorf("encode tests: %w", err)
	}
	return b, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

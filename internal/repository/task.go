package repository

import (
	"context"

	"github.com/ErlanBelekov/devlife/internal/domain"
)

type TaskRepository interface {
	List(ctx context.Context) ([]*domain.Task, error)
	// GetByID returns the task with its tests.
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, t *domain.Task) (*domain.Task, error)
	Update(ctx context.Context, t *domain.Task) (*domain.Task, error)
	// Delete removes the task together with its submissions and tests.
	Delete(ctx context.Context, id string) error
}

type SubmissionRepository interface {
	// Upsert keeps exactly one row per (user, task).
	Upsert(ctx context.Context, userID, taskID string, status domain.SubmissionStatus) (*domain.Submission, error)
	ListTasksWithStatus(ctx context.Context, userID string) ([]*domain.TaskWithStatus, error)
}

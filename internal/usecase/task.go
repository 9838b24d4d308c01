package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/ErlanBelekov/devlife/internal/domain"
	"github.com/ErlanBelekov/devlife/internal/metrics"
	"github.com/ErlanBelekov/devlife/internal/repository"
)

type TaskUsecase struct {
	tasks       repository.TaskRepository
	submissions repository.SubmissionRepository
}

func NewTaskUsecase(tasks repository.TaskRepository, submissions repository.SubmissionRepository) *TaskUsecase {
	return &TaskUsecase{tasks: tasks, submissions: submissions}
}

// Submit records the user's latest outcome for a task. Repeated submissions overwrite.
func (u *TaskUsecase) Submit(ctx context.Context, userID, taskID string, status domain.SubmissionStatus) (*domain.Submission, error) {
	if !status.Valid() {
		return nil, domain.ErrInvalidSubmissionStatus
	}

	ok, err := u.tasks.Exists(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("check task: %w", err)
	}
	if !ok {
		return nil, domain.ErrTaskNotFound
	}

	s, err := u.submissions.Upsert(ctx, userID, taskID, status)
	if err != nil {
		// The task may have been deleted between the check and the upsert.
		if errors.Is(err, domain.ErrTaskNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("upsert submission: %w", err)
	}
	metrics.SubmissionsTotal.WithLabelValues(string(status)).Inc()
	return s, nil
}

// TasksWithStatus lists every task with the user's status, "not done" when never submitted.
func (u *TaskUsecase) TasksWithStatus(ctx context.Context, userID string) ([]*domain.TaskWithStatus, error) {
	tasks, err := u.submissions.ListTasksWithStatus(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks with status: %w", err)
	}
	return tasks, nil
}

func (u *TaskUsecase) List(ctx context.Context) ([]*domain.Task, error) {
	tasks, err := u.tasks.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (u *TaskUsecase) Get(ctx context.Context, id string) (*domain.Task, error) {
	t, err := u.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

type TaskInput struct {
	ID        string
	Title     string
	Objective string
	Tags      []string
	Content   string
	Tests     []domain.TestCase
}

// Create stores a task authored by authorEmail together with its tests.
func (u *TaskUsecase) Create(ctx context.Context, authorEmail string, in TaskInput) (*domain.Task, error) {
	t, err := u.tasks.Create(ctx, &domain.Task{
		ID:        in.ID,
		Title:     in.Title,
		Objective: in.Objective,
		Tags:      in.Tags,
		Content:   in.Content,
		Author:    authorEmail,
		Tests:     in.Tests,
	})
	if err != nil {
		if errors.Is(err, domain.ErrTaskConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

func (u *TaskUsecase) Update(ctx context.Context, in TaskInput) (*domain.Task, error) {
	t, err := u.tasks.Update(ctx, &domain.Task{
		ID:        in.ID,
		Title:     in.Title,
		Objective: in.Objective,
		Tags:      in.Tags,
		Content:   in.Content,
		Tests:     in.Tests,
	})
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update task: %w", err)
	}
	return t, nil
}

// Delete removes the task with its submissions and tests.
func (u *TaskUsecase) Delete(ctx context.Context, id string) error {
	if err := u.tasks.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return err
		}
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

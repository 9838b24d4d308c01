package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ErlanBelekov/devlife/internal/domain"
	"github.com/ErlanBelekov/devlife/internal/transport/http/middleware"
	"github.com/ErlanBelekov/devlife/internal/usecase"
	"github.com/gin-gonic/gin"
)

type taskUsecaser interface {
	List(ctx context.Context) ([]*domain.Task, error)
	Get(ctx context.Context, id string) (*domain.Task, error)
	Create(ctx context.Context, authorEmail string, in usecase.TaskInput) (*domain.Task, error)
	Update(ctx context.Context, in usecase.TaskInput) (*domain.Task, error)
	Delete(ctx context.Context, id string) error
	TasksWithStatus(ctx context.Context, userID string) ([]*domain.TaskWithStatus, error)
	Submit(ctx context.Context, userID, taskID string, status domain.SubmissionStatus) (*domain.Submission, error)
}

type TaskHandler struct {
	taskUsecase taskUsecaser
	logger      *slog.Logger
}

func NewTaskHandler(taskUsecase taskUsecaser, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{taskUsecase: taskUsecase, logger: logger.With("component", "task_handler")}
}

type taskRequest struct {
	ID        string            `json:"id"        binding:"omitempty,max=64"`
	Title     string            `json:"title"     binding:"required,max=200"`
	Objective string            `json:"objective" binding:"max=2000"`
	Tags      []string          `json:"tags"      binding:"max=20,dive,max=40"`
	Content   string            `json:"content"   binding:"required"`
	Tests     []domain.TestCase `json:"tests"`
}

type submitRequest struct {
	TaskID string                  `json:"taskId" binding:"required"`
	Status domain.SubmissionStatus `json:"status" binding:"required"`
}

type taskResponse struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Objective string            `json:"objective"`
	Tags      []string          `json:"tags"`
	Content   string            `json:"content"`
	Author    string            `json:"author"`
	Tests     *domain.TestSuite `json:"tests,omitempty"`
	Status    string            `json:"status,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

type submissionResponse struct {
	TaskID    string                  `json:"taskId"`
	Status    domain.SubmissionStatus `json:"status"`
	UpdatedAt time.Time               `json:"updatedAt"`
}

func toTaskResponse(t *domain.Task, withTests bool) taskResponse {
	resp := taskResponse{
		ID:        t.ID,
		Title:     t.Title,
		Objective: t.Objective,
		Tags:      t.Tags,
		Content:   t.Content,
		Author:    t.Author,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if withTests {
		cases := t.Tests
		if cases == nil {
			cases = []domain.TestCase{}
		}
		resp.Tests = &domain.TestSuite{Data: cases}
	}
	return resp
}

// GET /task and GET /cli/task
func (h *TaskHandler) List(c *gin.Context) {
	tasks, err := h.taskUsecase.List(c.Request.Context())
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "list tasks", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResponse(t, false))
	}
	c.JSON(http.StatusOK, gin.H{"tasks": out})
}

// GET /task/:id and GET /cli/task/:id
func (h *TaskHandler) Get(c *gin.Context) {
	taskID := c.Param("id")

	task, err := h.taskUsecase.Get(c.Request.Context(), taskID)
	if err != nil {
		h.taskError(c, "get task", taskID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": toTaskResponse(task, true)})
}

// POST /task (session)
func (h *TaskHandler) Create(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}

	author := middleware.CurrentUser(c)
	task, err := h.taskUsecase.Create(c.Request.Context(), author.Email, toTaskInput(req.ID, req))
	if err != nil {
		h.taskError(c, "create task", req.ID, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": toTaskResponse(task, true)})
}

// PUT /task/:id (session)
func (h *TaskHandler) Update(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	taskID := c.Param("id")

	task, err := h.taskUsecase.Update(c.Request.Context(), toTaskInput(taskID, req))
	if err != nil {
		h.taskError(c, "update task", taskID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": toTaskResponse(task, true)})
}

// DELETE /task/:id (session)
func (h *TaskHandler) Delete(c *gin.Context) {
	taskID := c.Param("id")

	if err := h.taskUsecase.Delete(c.Request.Context(), taskID); err != nil {
		h.taskError(c, "delete task", taskID, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /task/status/:userId (session, own statuses only)
func (h *TaskHandler) Statuses(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if c.Param("userId") != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": errForbidden})
		return
	}

	tasks, err := h.taskUsecase.TasksWithStatus(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "tasks with status", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp := toTaskResponse(&t.Task, false)
		resp.Status = string(t.Status)
		out = append(out, resp)
	}
	c.JSON(http.StatusOK, gin.H{"tasks": out})
}

// POST /cli/task (bearer)
func (h *TaskHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := middleware.CurrentUser(c)
	sub, err := h.taskUsecase.Submit(c.Request.Context(), user.ID, req.TaskID, req.Status)
	if err != nil {
		h.taskError(c, "submit task", req.TaskID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submission": submissionResponse{
		TaskID:    sub.TaskID,
		Status:    sub.Status,
		UpdatedAt: sub.UpdatedAt,
	}})
}

func (h *TaskHandler) taskError(c *gin.Context, op, taskID string, err error) {
	switch {
	case errors.Is(err, domain.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errTaskNotFound})
	case errors.Is(err, domain.ErrTaskConflict):
		c.JSON(http.StatusConflict, gin.H{"error": errTaskConflict})
	case errors.Is(err, domain.ErrInvalidSubmissionStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidStatus})
	default:
		h.logger.ErrorContext(c.Request.Context(), op, "task_id", taskID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}

func toTaskInput(id string, req taskRequest) usecase.TaskInput {
	return usecase.TaskInput{
		ID:        id,
		Title:     req.Title,
		Objective: req.Objective,
		Tags:      req.Tags,
		Content:   req.Content,
		Tests:     req.Tests,
	}
}

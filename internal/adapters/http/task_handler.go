package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/goban/core/internal/domain/entities"
	"github.com/goban/core/internal/infrastructure/logger"
	"github.com/goban/core/internal/ports"
)

// TaskService is what TaskHandler needs from the task use cases
type TaskService interface {
	ListTasks(ctx context.Context) ([]*entities.MonitorTask, error)
	CreateTask(ctx context.Context, req ports.CreateTaskRequest) (*entities.MonitorTask, error)
	UpdateTask(ctx context.Context, id int64, req ports.UpdateTaskRequest) (*entities.MonitorTask, error)
	DeleteTask(ctx context.Context, id int64) error
	TestTask(ctx context.Context, id int64) ([]ports.VideoTestResult, error)
}

// TaskHandler handles monitor task requests
type TaskHandler struct {
	tasks  TaskService
	logger *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(tasks TaskService, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

// ListTasks handles listing monitor tasks
// @Summary List monitor tasks
// @Tags tasks
// @Produce json
// @Success 200 {array} entities.MonitorTask
// @Security BasicAuth
// @Router /tasks/list [get]
func (h *TaskHandler) ListTasks(c echo.Context) error {
	tasks, err := h.tasks.ListTasks(c.Request().Context())
	if err != nil {
		h.logger.WithError(err).Error("List tasks failed")
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, tasks)
}

// CreateTask handles creating a monitor task
// @Summary Create a monitor task
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body ports.CreateTaskRequest true "Task settings"
// @Success 200 {object} ports.TaskResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Security BasicAuth
// @Router /tasks/create [post]
func (h *TaskHandler) CreateTask(c echo.Context) error {
	var req ports.CreateTaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	task, err := h.tasks.CreateTask(c.Request().Context(), req)
	if err != nil {
		h.logger.WithError(err).Warnw("Create task failed", "user_id", req.UserID, "target_uid", req.TargetUID)
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, ports.TaskResponse{Message: "created", Task: task})
}

// UpdateTask handles partial task updates
// @Summary Update a monitor task
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param request body ports.UpdateTaskRequest true "Fields to change"
// @Success 200 {object} ports.TaskResponse
// @Failure 404 {object} ErrorResponse
// @Security BasicAuth
// @Router /tasks/{id} [put]
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req ports.UpdateTaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	task, err := h.tasks.UpdateTask(c.Request().Context(), id, req)
	if err != nil {
		h.logger.WithError(err).Warnw("Update task failed", "task_id", id)
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, ports.TaskResponse{Message: "updated", Task: task})
}

// DeleteTask handles removing a task
// @Summary Delete a monitor task
// @Tags tasks
// @Param id path int true "Task ID"
// @Success 200 {object} ports.MessageResponse
// @Security BasicAuth
// @Router /tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err := h.tasks.DeleteTask(c.Request().Context(), id); err != nil {
		h.logger.WithError(err).Warnw("Delete task failed", "task_id", id)
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, ports.MessageResponse{Message: "deleted"})
}

// TestTask handles a dry run of a task
// @Summary Dry-run a monitor task
// @Description Scans a few videos and lists matching comments without reporting them
// @Tags tasks
// @Param id path int true "Task ID"
// @Success 200 {object} ports.TaskTestResponse
// @Security BasicAuth
// @Router /tasks/{id}/test [get]
func (h *TaskHandler) TestTask(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	result, err := h.tasks.TestTask(c.Request().Context(), id)
	if err != nil {
		h.logger.WithError(err).Warnw("Test task failed", "task_id", id)
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, ports.TaskTestResponse{Message: "test finished", Result: result})
}

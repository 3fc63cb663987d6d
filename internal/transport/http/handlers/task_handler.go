package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/cruxpanel/backend/internal/core/ports"
	"github.com/cruxpanel/backend/internal/core/services"
	"github.com/cruxpanel/backend/internal/infrastructure/logger"
	"github.com/cruxpanel/backend/internal/transport/http/dto"
)

type TaskHandler struct {
	service ports.TaskService
	logger  *logger.Logger
}

func NewTaskHandler(service ports.TaskService, log *logger.Logger) *TaskHandler {
	return &TaskHandler{
		service: service,
		logger:  log,
	}
}

// StartTask accepts an operation and returns immediately with the task
// id. The caller follows progress on the websocket stream.
func (h *TaskHandler) StartTask(c *fiber.Ctx) error {
	var req dto.StartTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
		})
	}

	if errs := req.Validate(); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "validation failed",
			Details: errs,
		})
	}

	taskID, err := h.service.Start(c.Context(), ports.StartTaskInput{
		Kind:    req.Kind,
		Action:  req.Action,
		Target:  req.Target,
		Options: req.Options,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTaskConflict):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: err.Error(),
			})
		case errors.Is(err, services.ErrTaskInvalidInput):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: err.Error(),
			})
		default:
			h.logger.Errorw("task_start_failed",
				"kind", req.Kind,
				"action", req.Action,
				"target", req.Target,
				"error", err,
			)
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: "failed to start task",
			})
		}
	}

	return c.Status(fiber.StatusAccepted).JSON(dto.StartTaskResponse{
		TaskID: taskID,
	})
}

func (h *TaskHandler) GetTask(c *fiber.Ctx) error {
	taskID := c.Params("id")

	task, err := h.service.GetTask(taskID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTaskNotFound), errors.Is(err, services.ErrTaskGone):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: err.Error(),
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: err.Error(),
			})
		}
	}

	return c.JSON(dto.TaskToResponse(task))
}

// CancelTask requests cooperative cancellation of a running task.
func (h *TaskHandler) CancelTask(c *fiber.Ctx) error {
	taskID := c.Params("id")

	if err := h.service.Cancel(taskID); err != nil {
		switch {
		case errors.Is(err, services.ErrTaskNotFound), errors.Is(err, services.ErrTaskGone):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: err.Error(),
			})
		case errors.Is(err, services.ErrTaskNotRunning):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: err.Error(),
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: err.Error(),
			})
		}
	}

	return c.JSON(dto.SuccessResponse{Message: "cancellation requested"})
}

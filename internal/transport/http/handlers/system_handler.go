package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/cruxpanel/backend/internal/core/ports"
	"github.com/cruxpanel/backend/internal/core/services"
	"github.com/cruxpanel/backend/internal/infrastructure/logger"
	"github.com/cruxpanel/backend/internal/transport/http/dto"
)

type SystemHandler struct {
	service ports.TaskService
	logger  *logger.Logger
}

func NewSystemHandler(service ports.TaskService, log *logger.Logger) *SystemHandler {
	return &SystemHandler{service: service, logger: log}
}

// TriggerUpdate runs the panel self-update as a regular task. The update
// script restarts the server process, so streaming clients are expected
// to lose their connection and poll /health until it comes back.
func (h *SystemHandler) TriggerUpdate(c *fiber.Ctx) error {
	taskID, err := h.service.Start(c.Context(), ports.StartTaskInput{
		Kind:   "system",
		Action: "update",
		Target: "panel",
	})
	if err != nil {
		if errors.Is(err, services.ErrTaskConflict) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: "update already in progress",
			})
		}
		h.logger.Errorw("system_update_start_failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: "failed to start update",
		})
	}

	h.logger.Infow("system_update_started", "task_id", taskID)
	return c.Status(fiber.StatusAccepted).JSON(dto.StartTaskResponse{
		TaskID: taskID,
	})
}

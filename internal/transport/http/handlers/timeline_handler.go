package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cruxpanel/backend/internal/core/ports"
	"github.com/cruxpanel/backend/internal/transport/http/dto"
)

type TimelineHandler struct {
	repo ports.TimelineRepository
}

func NewTimelineHandler(repo ports.TimelineRepository) *TimelineHandler {
	return &TimelineHandler{repo: repo}
}

func (h *TimelineHandler) GetEvents(c *fiber.Ctx) error {
	if taskID := c.Query("task_id"); taskID != "" {
		events, err := h.repo.GetByTask(c.Context(), taskID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
		}
		return c.JSON(events)
	}
	events, err := h.repo.GetAll(c.Context(), 50)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(events)
}

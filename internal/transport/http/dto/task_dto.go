package dto

import (
	"time"

	"github.com/cruxpanel/backend/internal/domain"
)

type StartTaskRequest struct {
	Kind    string            `json:"kind" validate:"required"`
	Action  string            `json:"action" validate:"required"`
	Target  string            `json:"target" validate:"required"`
	Options map[string]string `json:"options,omitempty"`
}

func (r *StartTaskRequest) Validate() []string {
	var errors []string

	if r.Kind == "" {
		errors = append(errors, "kind is required")
	}
	if r.Action == "" {
		errors = append(errors, "action is required")
	}
	if r.Target == "" {
		errors = append(errors, "target is required")
	}

	return errors
}

type TaskResponse struct {
	ID           string           `json:"id"`
	Kind         string           `json:"kind"`
	Action       string           `json:"action"`
	Target       string           `json:"target"`
	State        domain.TaskState `json:"state"`
	Log          []string         `json:"log,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	TerminatedAt *time.Time       `json:"terminated_at,omitempty"`
}

func TaskToResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		ID:           task.ID,
		Kind:         task.Kind,
		Action:       task.Action,
		Target:       task.Target,
		State:        task.State,
		Log:          task.Log,
		CreatedAt:    task.CreatedAt,
		TerminatedAt: task.TerminatedAt,
	}
}

type StartTaskResponse struct {
	TaskID string `json:"task_id"`
}

type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

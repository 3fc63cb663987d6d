package domain

import "time"

type TaskState string

const (
	TaskStateRunning   TaskState = "running"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
)

// Terminal reports whether no further state transition is possible.
func (s TaskState) Terminal() bool {
	return s == TaskStateCompleted || s == TaskStateFailed
}

// Task is one long-running server-side operation. The log is append-only
// and has a single writer (the runner); everything else reads snapshots.
type Task struct {
	ID           string     `json:"id"`
	Kind         string     `json:"kind"`   // e.g. "php"
	Action       string     `json:"action"` // e.g. "install"
	Target       string     `json:"target"` // e.g. "8.2"
	State        TaskState  `json:"state"`
	Log          []string   `json:"log,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	TerminatedAt *time.Time `json:"terminated_at,omitempty"`
}

package domain

// Task timeline event types
const (
	EventTypeTaskStarted   = "TASK_STARTED"
	EventTypeTaskCompleted = "TASK_COMPLETED"
	EventTypeTaskFailed    = "TASK_FAILED"
	EventTypeTaskCanceled  = "TASK_CANCELED"
)

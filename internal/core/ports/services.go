package ports

import (
	"context"
	"time"

	"github.com/cruxpanel/backend/internal/domain"
	"github.com/cruxpanel/backend/pkg/streamwire"
)

type StartTaskInput struct {
	Kind    string
	Action  string
	Target  string
	Options map[string]string
}

// TaskService starts, cancels and inspects long-running operations.
// Start never blocks on the operation itself.
type TaskService interface {
	Start(ctx context.Context, input StartTaskInput) (string, error)
	Cancel(taskID string) error
	GetTask(taskID string) (*domain.Task, error)
}

// StreamService fans one task's log out to any number of subscribers.
type StreamService interface {
	Subscribe(ctx context.Context, taskID string) (<-chan streamwire.Frame, error)
	SubscriberCount() int
}

// OperationSpec is what an executor actually runs. Opaque to the
// streaming layer.
type OperationSpec struct {
	Kind    string
	Action  string
	Target  string
	Options map[string]string
}

// Executor runs one operation to completion, emitting output lines as
// they are produced. A non-nil error marks the task failed.
type Executor interface {
	Run(ctx context.Context, spec OperationSpec, emit func(line string)) error
}

// TokenValidator checks the opaque capability token presented on a
// streaming connection. Validate is called again on every heartbeat so an
// expired token tears the connection down mid-stream.
type TokenValidator interface {
	Validate(token string, now time.Time) error
}

package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cruxpanel/backend/internal/core/ports"
	"github.com/cruxpanel/backend/internal/domain"
	"github.com/cruxpanel/backend/internal/infrastructure/logger"
	"github.com/cruxpanel/backend/internal/infrastructure/metrics"
	"github.com/cruxpanel/backend/pkg/streamwire"
)

type TaskRunnerConfig struct {
	Registry     *TaskRegistry
	Executor     ports.Executor
	TimelineRepo ports.TimelineRepository
	Logger       *logger.Logger
	RunTimeout   time.Duration
}

// TaskRunner starts operations as independent units of work and is the
// registry's sole writer. Whatever happens to the operation, the task
// always reaches a terminal state within the run timeout.
type TaskRunner struct {
	registry     *TaskRegistry
	executor     ports.Executor
	timelineRepo ports.TimelineRepository
	logger       *logger.Logger
	runTimeout   time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewTaskRunner(cfg TaskRunnerConfig) *TaskRunner {
	timeout := cfg.RunTimeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &TaskRunner{
		registry:     cfg.Registry,
		executor:     cfg.Executor,
		timelineRepo: cfg.TimelineRepo,
		logger:       cfg.Logger,
		runTimeout:   timeout,
		cancels:      make(map[string]context.CancelFunc),
	}
}

// Start validates the request, registers the task and launches the
// operation. The caller gets the task id back immediately.
func (s *TaskRunner) Start(ctx context.Context, input ports.StartTaskInput) (string, error) {
	if input.Kind == "" || input.Action == "" || input.Target == "" {
		return "", ErrTaskInvalidInput
	}

	task, err := s.registry.Create(input.Kind, input.Action, input.Target)
	if err != nil {
		return "", err
	}

	runCtx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	s.mu.Lock()
	s.cancels[task.ID] = cancel
	s.mu.Unlock()

	metrics.TasksActive.Inc()
	s.logEvent(task, domain.EventTypeTaskStarted, domain.EventStatusPending, "operation started")

	go s.run(runCtx, task, ports.OperationSpec{
		Kind:    input.Kind,
		Action:  input.Action,
		Target:  input.Target,
		Options: input.Options,
	})

	return task.ID, nil
}

// Cancel stops a running operation. The run goroutine observes the
// cancelled context and finalizes the task as failed.
func (s *TaskRunner) Cancel(taskID string) error {
	task, err := s.registry.Snapshot(taskID)
	if err != nil {
		return err
	}
	if task.State.Terminal() {
		return ErrTaskNotRunning
	}

	s.mu.Lock()
	cancel, ok := s.cancels[taskID]
	s.mu.Unlock()
	if !ok {
		return ErrTaskNotRunning
	}

	s.logger.Infow("task_cancel_requested", "task_id", taskID)
	cancel()
	return nil
}

func (s *TaskRunner) GetTask(taskID string) (*domain.Task, error) {
	return s.registry.Snapshot(taskID)
}

func (s *TaskRunner) run(ctx context.Context, task *domain.Task, spec ports.OperationSpec) {
	defer func() {
		s.mu.Lock()
		if cancel, ok := s.cancels[task.ID]; ok {
			cancel()
			delete(s.cancels, task.ID)
		}
		s.mu.Unlock()

		if r := recover(); r != nil {
			s.logger.Errorw("task_runner_panic", "task_id", task.ID, "panic", r)
			s.finalize(task, fmt.Sprintf("internal error: %v", r), "panic")
		}
	}()

	err := s.executor.Run(ctx, spec, func(line string) {
		if appendErr := s.registry.Append(task.ID, line); appendErr != nil {
			s.logger.Warnw("task_log_append_failed", "task_id", task.ID, "error", appendErr)
		}
	})

	if err == nil {
		_ = s.registry.Append(task.ID, streamwire.StatusSentinelPrefix+string(domain.TaskStateCompleted))
		_ = s.registry.SetState(task.ID, domain.TaskStateCompleted)
		metrics.TasksActive.Dec()
		metrics.TasksCompleted.WithLabelValues(task.Kind).Inc()
		s.logEvent(task, domain.EventTypeTaskCompleted, domain.EventStatusSuccess, "operation completed")
		return
	}

	reason := "error"
	msg := err.Error()
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		reason = "timeout"
		msg = fmt.Sprintf("operation timed out after %s", s.runTimeout)
	case ctx.Err() == context.Canceled:
		reason = "canceled"
		msg = "operation canceled"
	}
	s.finalize(task, msg, reason)
}

// finalize appends the failure line plus the status sentinel and moves
// the task to failed. Safe to call at most once per task; the registry
// ignores writes after the terminal transition.
func (s *TaskRunner) finalize(task *domain.Task, msg, reason string) {
	_ = s.registry.Append(task.ID, "Error: "+msg)
	_ = s.registry.Append(task.ID, streamwire.StatusSentinelPrefix+string(domain.TaskStateFailed))
	if err := s.registry.SetState(task.ID, domain.TaskStateFailed); err != nil {
		return
	}
	metrics.TasksActive.Dec()
	metrics.TasksFailed.WithLabelValues(task.Kind, reason).Inc()

	eventType := domain.EventTypeTaskFailed
	if reason == "canceled" {
		eventType = domain.EventTypeTaskCanceled
	}
	s.logEvent(task, eventType, domain.EventStatusFailed, msg)
}

func (s *TaskRunner) logEvent(task *domain.Task, eventType string, status domain.EventStatus, msg string) {
	if s.timelineRepo == nil {
		return
	}

	event := &domain.TimelineEvent{
		Type:    eventType,
		Status:  status,
		Message: msg,
		TaskID:  task.ID,
		Meta: domain.JSONB{
			"kind":   task.Kind,
			"action": task.Action,
			"target": task.Target,
		},
		CreatedAt: time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.timelineRepo.Create(ctx, event); err != nil {
		s.logger.Errorw("timeline_event_failed", "task_id", task.ID, "error", err)
	}
}

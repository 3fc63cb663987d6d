package services

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cruxpanel/backend/internal/domain"
	"github.com/cruxpanel/backend/internal/infrastructure/logger"
	"github.com/cruxpanel/backend/pkg/streamwire"
)

// taskRecord is the registry's mutable view of one task. The log is
// append-only with a single writer; readers take the lock only long
// enough to copy the slice header and length, then read the immutable
// prefix without it.
type taskRecord struct {
	mu      sync.Mutex
	task    domain.Task
	log     []string
	updated chan struct{} // closed and replaced on every change
	evicted bool
}

// notifyLocked wakes everything waiting on the record. Callers hold mu.
func (rec *taskRecord) notifyLocked() {
	close(rec.updated)
	rec.updated = make(chan struct{})
}

// TaskRegistry is the in-memory table of task records. It owns identity,
// state and the append-only log; the runner is the sole mutator.
type TaskRegistry struct {
	mu      sync.RWMutex
	records map[string]*taskRecord
	running map[string]string   // kind+"\x00"+target -> taskID
	gone    map[string]struct{} // tombstones for evicted task ids
	grace   time.Duration
	logger  *logger.Logger
}

func NewTaskRegistry(grace time.Duration, log *logger.Logger) *TaskRegistry {
	if grace <= 0 {
		grace = 5 * time.Minute
	}
	return &TaskRegistry{
		records: make(map[string]*taskRecord),
		running: make(map[string]string),
		gone:    make(map[string]struct{}),
		grace:   grace,
		logger:  log,
	}
}

func conflictKey(kind, target string) string {
	return kind + "\x00" + target
}

// Create registers a new task in state running. It fails with
// ErrTaskConflict when another task with the same (kind, target) is still
// running; installing and uninstalling the same target can never overlap.
func (r *TaskRegistry) Create(kind, action, target string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := conflictKey(kind, target)
	if other, busy := r.running[key]; busy {
		r.logger.Warnw("task_create_conflict", "kind", kind, "target", target, "running_task", other)
		return nil, ErrTaskConflict
	}

	task := domain.Task{
		ID:        uuid.New().String(),
		Kind:      kind,
		Action:    action,
		Target:    target,
		State:     domain.TaskStateRunning,
		CreatedAt: time.Now(),
	}
	r.records[task.ID] = &taskRecord{
		task:    task,
		updated: make(chan struct{}),
	}
	r.running[key] = task.ID

	r.logger.Infow("task_created", "task_id", task.ID, "kind", kind, "action", action, "target", target)
	return &task, nil
}

// Append adds one log line. Only the runner calls this.
func (r *TaskRegistry) Append(taskID, line string) error {
	rec, err := r.record(taskID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.task.State.Terminal() {
		return ErrTaskNotRunning
	}
	rec.log = append(rec.log, line)
	rec.notifyLocked()
	return nil
}

// SetState moves the task to a terminal state. The transition is
// monotonic; a second call is a no-op returning ErrTaskNotRunning.
// Eviction is scheduled after the retention grace period.
func (r *TaskRegistry) SetState(taskID string, state domain.TaskState) error {
	rec, err := r.record(taskID)
	if err != nil {
		return err
	}
	if !state.Terminal() {
		return ErrTaskInvalidInput
	}

	rec.mu.Lock()
	if rec.task.State.Terminal() {
		rec.mu.Unlock()
		return ErrTaskNotRunning
	}
	now := time.Now()
	rec.task.State = state
	rec.task.TerminatedAt = &now
	kind, target := rec.task.Kind, rec.task.Target
	rec.notifyLocked()
	rec.mu.Unlock()

	r.mu.Lock()
	delete(r.running, conflictKey(kind, target))
	r.mu.Unlock()

	r.logger.Infow("task_terminated", "task_id", taskID, "state", state)
	time.AfterFunc(r.grace, func() { r.evict(taskID) })
	return nil
}

// Snapshot returns a copy of the task including its log so far. Status
// sentinel lines are wire-internal and never surface here.
func (r *TaskRegistry) Snapshot(taskID string) (*domain.Task, error) {
	rec, err := r.record(taskID)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	task := rec.task
	task.Log = make([]string, 0, len(rec.log))
	for _, line := range rec.log {
		if strings.HasPrefix(line, streamwire.StatusSentinelPrefix) {
			continue
		}
		task.Log = append(task.Log, line)
	}
	return &task, nil
}

// logView is the hub's read side: the lines appended at or past offset,
// the current state, and a channel closed on the next change. gone is set
// once the record has been evicted.
func (r *TaskRegistry) logView(taskID string, offset int) (lines []string, state domain.TaskState, updated <-chan struct{}, gone bool, err error) {
	rec, recErr := r.record(taskID)
	if recErr != nil {
		return nil, "", nil, true, recErr
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if offset < len(rec.log) {
		lines = append([]string(nil), rec.log[offset:]...)
	}
	return lines, rec.task.State, rec.updated, rec.evicted, nil
}

func (r *TaskRegistry) record(taskID string) (*taskRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[taskID]
	if !ok {
		if _, evicted := r.gone[taskID]; evicted {
			return nil, ErrTaskGone
		}
		return nil, ErrTaskNotFound
	}
	return rec, nil
}

// evict drops the record and leaves a tombstone behind for one more
// grace period, so stale references can tell an evicted task apart from
// one that never existed.
func (r *TaskRegistry) evict(taskID string) {
	r.mu.Lock()
	rec, ok := r.records[taskID]
	delete(r.records, taskID)
	if ok {
		r.gone[taskID] = struct{}{}
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	rec.mu.Lock()
	rec.evicted = true
	rec.notifyLocked()
	rec.mu.Unlock()

	time.AfterFunc(r.grace, func() {
		r.mu.Lock()
		delete(r.gone, taskID)
		r.mu.Unlock()
	})
	r.logger.Infow("task_evicted", "task_id", taskID)
}

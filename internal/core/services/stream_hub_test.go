package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cruxpanel/backend/internal/domain"
	"github.com/cruxpanel/backend/internal/infrastructure/logger"
	"github.com/cruxpanel/backend/pkg/streamwire"
)

func collectFrames(t *testing.T, ch <-chan streamwire.Frame, want int) []streamwire.Frame {
	t.Helper()
	var frames []streamwire.Frame
	timeout := time.After(2 * time.Second)
	for len(frames) < want {
		select {
		case f, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed after %d frames, want %d", len(frames), want)
			}
			frames = append(frames, f)
		case <-timeout:
			t.Fatalf("timed out after %d frames, want %d", len(frames), want)
		}
	}
	return frames
}

func TestHub_SubscribeUnknownTask(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	hub := NewStreamHub(r, logger.Nop())

	_, err := hub.Subscribe(context.Background(), "no-such-task")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Subscribe() error = %v, want ErrTaskNotFound", err)
	}
}

func TestHub_BacklogThenStatus(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	hub := NewStreamHub(r, logger.Nop())

	task, _ := r.Create("backup", "create", "example.com")
	r.Append(task.ID, "step 1")
	r.Append(task.ID, "step 2")
	r.Append(task.ID, streamwire.StatusSentinelPrefix+"completed")
	r.SetState(task.ID, domain.TaskStateCompleted)

	ch, err := hub.Subscribe(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	frames := collectFrames(t, ch, 3)
	if frames[0].Kind != streamwire.FrameLog || frames[0].Text != "step 1" {
		t.Errorf("frame 0 = %+v, want log step 1", frames[0])
	}
	if frames[1].Kind != streamwire.FrameLog || frames[1].Text != "step 2" {
		t.Errorf("frame 1 = %+v, want log step 2", frames[1])
	}
	if frames[2].Kind != streamwire.FrameStatus || frames[2].State != "completed" {
		t.Errorf("frame 2 = %+v, want status completed", frames[2])
	}

	if _, ok := <-ch; ok {
		t.Error("channel not closed after status frame")
	}
}

func TestHub_LiveFollow(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	hub := NewStreamHub(r, logger.Nop())

	task, _ := r.Create("backup", "create", "example.com")

	ch, err := hub.Subscribe(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	go func() {
		r.Append(task.ID, "live 1")
		r.Append(task.ID, "live 2")
		r.Append(task.ID, streamwire.StatusSentinelPrefix+"failed")
		r.SetState(task.ID, domain.TaskStateFailed)
	}()

	frames := collectFrames(t, ch, 3)
	if frames[0].Text != "live 1" || frames[1].Text != "live 2" {
		t.Errorf("log frames = %+v, want live 1, live 2", frames[:2])
	}
	if frames[2].Kind != streamwire.FrameStatus || frames[2].State != "failed" {
		t.Errorf("final frame = %+v, want status failed", frames[2])
	}
}

func TestHub_IndependentCursors(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	hub := NewStreamHub(r, logger.Nop())

	task, _ := r.Create("backup", "create", "example.com")
	r.Append(task.ID, "early")

	early, err := hub.Subscribe(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	r.Append(task.ID, "late")
	r.Append(task.ID, streamwire.StatusSentinelPrefix+"completed")
	r.SetState(task.ID, domain.TaskStateCompleted)

	// A late subscriber still replays the full backlog.
	late, err := hub.Subscribe(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	for name, ch := range map[string]<-chan streamwire.Frame{"early": early, "late": late} {
		frames := collectFrames(t, ch, 3)
		if frames[0].Text != "early" || frames[1].Text != "late" {
			t.Errorf("%s subscriber log frames = %+v, want early, late", name, frames[:2])
		}
		if frames[2].State != "completed" {
			t.Errorf("%s subscriber final frame = %+v, want status completed", name, frames[2])
		}
	}
}

func TestHub_StatusWithoutSentinel(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	hub := NewStreamHub(r, logger.Nop())

	// Terminal state with no sentinel line still ends the stream with a
	// status frame after all log lines.
	task, _ := r.Create("backup", "create", "example.com")
	r.Append(task.ID, "only line")
	r.SetState(task.ID, domain.TaskStateCompleted)

	ch, _ := hub.Subscribe(context.Background(), task.ID)
	frames := collectFrames(t, ch, 2)
	if frames[0].Text != "only line" {
		t.Errorf("frame 0 = %+v, want log", frames[0])
	}
	if frames[1].Kind != streamwire.FrameStatus || frames[1].State != "completed" {
		t.Errorf("frame 1 = %+v, want status completed", frames[1])
	}
}

func TestHub_GoneAfterEviction(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	hub := NewStreamHub(r, logger.Nop())

	task, _ := r.Create("backup", "create", "example.com")
	ch, err := hub.Subscribe(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	r.evict(task.ID)

	frames := collectFrames(t, ch, 1)
	if frames[0].Kind != streamwire.FrameGone {
		t.Errorf("frame = %+v, want gone", frames[0])
	}
}

func TestHub_SubscribeEvictedTask(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	hub := NewStreamHub(r, logger.Nop())

	task, _ := r.Create("backup", "create", "example.com")
	r.evict(task.ID)

	if _, err := hub.Subscribe(context.Background(), task.ID); !errors.Is(err, ErrTaskGone) {
		t.Errorf("Subscribe(evicted) error = %v, want ErrTaskGone", err)
	}
}

func TestHub_SubscriberCount(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	hub := NewStreamHub(r, logger.Nop())

	task, _ := r.Create("backup", "create", "example.com")

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := hub.Subscribe(ctx, task.ID); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	if got := hub.SubscriberCount(); got != 1 {
		t.Errorf("SubscriberCount() = %d, want 1", got)
	}

	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber not released after context cancel")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

package services

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/cruxpanel/backend/internal/infrastructure/logger"
	"github.com/cruxpanel/backend/internal/infrastructure/metrics"
	"github.com/cruxpanel/backend/pkg/streamwire"
)

// StreamHub serves one task's log to any number of subscribers. Each
// subscriber owns an independent cursor: full backlog replay in append
// order, then live forwarding, then exactly one status frame.
type StreamHub struct {
	registry    *TaskRegistry
	logger      *logger.Logger
	subscribers atomic.Int64
}

func NewStreamHub(registry *TaskRegistry, log *logger.Logger) *StreamHub {
	return &StreamHub{registry: registry, logger: log}
}

// Subscribe attaches to a retained task. The returned channel is closed
// after the terminal status frame, after a gone frame (task evicted
// mid-stream), or when ctx is cancelled. ErrTaskNotFound if the task is
// not currently retained.
func (h *StreamHub) Subscribe(ctx context.Context, taskID string) (<-chan streamwire.Frame, error) {
	if _, err := h.registry.record(taskID); err != nil {
		return nil, err
	}

	ch := make(chan streamwire.Frame, 16)
	h.subscribers.Add(1)
	metrics.StreamSubscribers.Inc()
	h.logger.Infow("stream_subscribe", "task_id", taskID)

	go h.forward(ctx, taskID, ch)
	return ch, nil
}

// SubscriberCount reports currently attached subscribers.
func (h *StreamHub) SubscriberCount() int {
	return int(h.subscribers.Load())
}

func (h *StreamHub) forward(ctx context.Context, taskID string, ch chan<- streamwire.Frame) {
	defer func() {
		close(ch)
		h.subscribers.Add(-1)
		metrics.StreamSubscribers.Dec()
		h.logger.Infow("stream_unsubscribe", "task_id", taskID)
	}()

	cursor := 0
	for {
		lines, state, updated, gone, err := h.registry.logView(taskID, cursor)
		if err != nil || gone {
			h.send(ctx, ch, streamwire.Frame{Kind: streamwire.FrameGone})
			return
		}

		for _, line := range lines {
			cursor++
			if rest, ok := strings.CutPrefix(line, streamwire.StatusSentinelPrefix); ok {
				h.send(ctx, ch, streamwire.Frame{Kind: streamwire.FrameStatus, State: rest})
				return
			}
			if !h.send(ctx, ch, streamwire.Frame{Kind: streamwire.FrameLog, Text: line}) {
				return
			}
		}

		// The sentinel line normally closes the stream above; this is the
		// fallback for a terminal state observed without one. The log view
		// is atomic, so a terminal state here means the log is complete.
		if state.Terminal() {
			h.send(ctx, ch, streamwire.Frame{Kind: streamwire.FrameStatus, State: string(state)})
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-updated:
		}
	}
}

func (h *StreamHub) send(ctx context.Context, ch chan<- streamwire.Frame, f streamwire.Frame) bool {
	select {
	case ch <- f:
		return true
	case <-ctx.Done():
		return false
	}
}

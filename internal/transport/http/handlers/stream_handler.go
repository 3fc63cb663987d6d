package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/cruxpanel/backend/internal/config"
	"github.com/cruxpanel/backend/internal/core/ports"
	"github.com/cruxpanel/backend/internal/core/services"
	"github.com/cruxpanel/backend/internal/infrastructure/logger"
	"github.com/cruxpanel/backend/pkg/streamwire"
)

type StreamHandler struct {
	hub       ports.StreamService
	validator ports.TokenValidator
	cfg       config.StreamConfig
	logger    *logger.Logger
}

func NewStreamHandler(hub ports.StreamService, validator ports.TokenValidator, cfg config.StreamConfig, log *logger.Logger) *StreamHandler {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &StreamHandler{
		hub:       hub,
		validator: validator,
		cfg:       cfg,
		logger:    log,
	}
}

// Handle attaches one websocket to a task's log stream. Frames arrive in
// order; the stream ends after the status frame or a gone frame for
// evicted tasks.
func (h *StreamHandler) Handle(c *websocket.Conn) {
	taskID := c.Params("id")
	token := c.Query("token")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames, err := h.hub.Subscribe(ctx, taskID)
	if err != nil {
		reason := "subscription failed"
		code := websocket.CloseInternalServerErr
		if errors.Is(err, services.ErrTaskNotFound) || errors.Is(err, services.ErrTaskGone) {
			reason = err.Error()
			code = websocket.ClosePolicyViolation
		}
		h.logger.Warnw("stream_subscribe_rejected", "task_id", taskID, "error", err)
		h.closeWith(c, code, reason)
		return
	}

	h.logger.Infow("stream_subscribed", "task_id", taskID)

	// Reader goroutine: the browser never sends frames on this stream,
	// but reading is what surfaces pong frames and disconnects.
	go func() {
		defer cancel()
		c.SetReadDeadline(time.Now().Add(h.readTimeout()))
		c.SetPongHandler(func(string) error {
			return c.SetReadDeadline(time.Now().Add(h.readTimeout()))
		})
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(h.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				h.closeWith(c, websocket.CloseNormalClosure, "stream complete")
				return
			}
			payload, err := streamwire.Encode(frame)
			if err != nil {
				h.logger.Errorw("stream_encode_failed", "task_id", taskID, "error", err)
				continue
			}
			c.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.Infow("stream_client_gone", "task_id", taskID)
				return
			}
		case <-heartbeat.C:
			if err := h.validator.Validate(token, time.Now()); err != nil {
				h.logger.Warnw("stream_token_rejected", "task_id", taskID, "error", err)
				h.closeWith(c, websocket.ClosePolicyViolation, "token expired")
				return
			}
			c.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *StreamHandler) readTimeout() time.Duration {
	return h.cfg.HeartbeatInterval*2 + h.cfg.WriteTimeout
}

func (h *StreamHandler) closeWith(c *websocket.Conn, code int, reason string) {
	c.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
	c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	c.Close()
}

package handlers

import (
	"fmt"
	"strconv"

	"github.com/gofiber/contrib/websocket"

	"github.com/cruxpanel/backend/internal/config"
	"github.com/cruxpanel/backend/internal/infrastructure/logger"
	"github.com/cruxpanel/backend/internal/infrastructure/metrics"
	"github.com/cruxpanel/backend/internal/pty"
	"github.com/cruxpanel/backend/pkg/streamwire"
)

type TerminalHandler struct {
	cfg    config.TerminalConfig
	logger *logger.Logger
}

func NewTerminalHandler(cfg config.TerminalConfig, log *logger.Logger) *TerminalHandler {
	return &TerminalHandler{cfg: cfg, logger: log}
}

// Handle bridges one websocket to a local shell under a pseudo-terminal.
// Binary frames starting with the resize tag change the window size;
// everything else is raw keystrokes. Closing the socket kills the shell.
func (h *TerminalHandler) Handle(c *websocket.Conn) {
	rows := queryInt(c, "rows", h.cfg.DefaultRows)
	cols := queryInt(c, "cols", h.cfg.DefaultCols)

	session, err := pty.Start(pty.Options{
		Shell: h.cfg.Shell,
		Rows:  uint16(rows),
		Cols:  uint16(cols),
	}, h.logger)
	if err != nil {
		h.logger.Errorw("terminal_start_failed", "shell", h.cfg.Shell, "error", err)
		c.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("Error: failed to start shell: %v\r\n", err)))
		c.Close()
		return
	}
	defer session.Close()

	metrics.TerminalSessions.Inc()
	defer metrics.TerminalSessions.Dec()

	// Shell output to websocket.
	go func() {
		for chunk := range session.Output() {
			if err := c.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				break
			}
		}
		h.logger.Infow("terminal_session_closed")
		c.Close()
	}()

	// Websocket input to shell.
	for {
		_, payload, err := c.ReadMessage()
		if err != nil {
			break
		}
		frame, err := streamwire.DecodeTerm(payload)
		if err != nil {
			h.logger.Warnw("terminal_bad_frame", "error", err)
			continue
		}
		if frame.Resize {
			if err := session.Resize(uint16(frame.Rows), uint16(frame.Cols)); err != nil {
				h.logger.Warnw("terminal_resize_failed", "rows", frame.Rows, "cols", frame.Cols, "error", err)
			}
			continue
		}
		if len(frame.Data) == 0 {
			continue
		}
		if err := session.Write(frame.Data); err != nil {
			break
		}
	}
}

func queryInt(c *websocket.Conn, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

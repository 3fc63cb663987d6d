// Package streamclient is the Go consumer for the panel's task API and
// streaming endpoints. It is what the web frontend does, without the
// browser: start operations, follow their log over websocket, open
// interactive terminals and ride out panel self-updates.
package streamclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fasthttp/websocket"
	"go.uber.org/zap"

	"github.com/cruxpanel/backend/pkg/streamwire"
)

var (
	// ErrStreamInterrupted reports a stream that died before the task's
	// status frame arrived. The task itself may still be running.
	ErrStreamInterrupted = errors.New("streamclient: stream interrupted before completion")

	// ErrStreamRejected reports a handshake or policy close from the
	// server (unknown task, evicted task, bad token).
	ErrStreamRejected = errors.New("streamclient: stream rejected")
)

type Config struct {
	BaseURL     string
	AdminToken  string
	StreamToken string
	Timeout     time.Duration
	Logger      *zap.Logger
}

type Client struct {
	baseURL     string
	adminToken  string
	streamToken string
	httpClient  *http.Client
	dialer      *websocket.Dialer
	logger      *zap.Logger
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		adminToken:  cfg.AdminToken,
		streamToken: cfg.StreamToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		dialer: &websocket.Dialer{
			HandshakeTimeout: timeout,
		},
		logger: cfg.Logger,
	}
}

type StartTaskRequest struct {
	Kind    string            `json:"kind"`
	Action  string            `json:"action"`
	Target  string            `json:"target"`
	Options map[string]string `json:"options,omitempty"`
}

type TaskInfo struct {
	ID           string     `json:"id"`
	Kind         string     `json:"kind"`
	Action       string     `json:"action"`
	Target       string     `json:"target"`
	State        string     `json:"state"`
	Log          []string   `json:"log,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	TerminatedAt *time.Time `json:"terminated_at,omitempty"`
}

// StartTask submits an operation and returns the task id to stream.
func (c *Client) StartTask(ctx context.Context, req StartTaskRequest) (string, error) {
	var resp struct {
		TaskID string `json:"task_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/tasks", req, http.StatusAccepted, &resp); err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

func (c *Client) GetTask(ctx context.Context, taskID string) (*TaskInfo, error) {
	var info TaskInfo
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/tasks/"+taskID, nil, http.StatusOK, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// CancelTask requests cooperative cancellation.
func (c *Client) CancelTask(ctx context.Context, taskID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/v1/tasks/"+taskID, nil, http.StatusOK, nil)
}

// StreamHandler receives the decoded stream. OnStatus fires exactly once
// for a stream that runs to completion.
type StreamHandler struct {
	OnLog    func(line string)
	OnStatus func(state string)
}

// StreamTask follows one task's log over websocket until the status
// frame. A disconnect before that returns ErrStreamInterrupted; callers
// decide whether to resubscribe or poll GetTask.
func (c *Client) StreamTask(ctx context.Context, taskID string, handler StreamHandler) error {
	wsURL, err := c.wsURL("/ws/tasks/"+taskID, nil)
	if err != nil {
		return err
	}

	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("streamclient: dial failed: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	statusSeen := false
	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if statusSeen {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.ClosePolicyViolation {
				return fmt.Errorf("%w: %s", ErrStreamRejected, closeErr.Text)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Any close before the status frame, clean or not, leaves the
			// outcome unknown.
			return ErrStreamInterrupted
		}
		if msgType != websocket.TextMessage {
			continue
		}

		frame, err := streamwire.Decode(payload)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("stream_bad_frame", zap.String("task_id", taskID), zap.Error(err))
			}
			continue
		}

		switch frame.Kind {
		case streamwire.FrameLog:
			if handler.OnLog != nil {
				handler.OnLog(frame.Text)
			}
		case streamwire.FrameStatus:
			if !statusSeen {
				statusSeen = true
				if handler.OnStatus != nil {
					handler.OnStatus(frame.State)
				}
			}
		case streamwire.FrameGone:
			return fmt.Errorf("%w: task gone", ErrStreamRejected)
		}
	}
}

func (c *Client) wsURL(path string, params url.Values) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("streamclient: bad base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = path
	if params == nil {
		params = url.Values{}
	}
	if c.streamToken != "" {
		params.Set("token", c.streamToken)
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("streamclient: failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("streamclient: failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.adminToken != "" {
		req.Header.Set("X-Admin-Token", c.adminToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("streamclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("streamclient: failed to read response: %w", err)
	}

	if resp.StatusCode != wantStatus {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("streamclient: server returned status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("streamclient: server returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("streamclient: failed to parse response: %w", err)
		}
	}
	return nil
}

package streamclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ReloadState is reported while waiting out a panel self-update.
type ReloadState string

const (
	StateUpdating         ReloadState = "updating"
	StateWaitingForServer ReloadState = "waiting_for_server"
	StateHealthy          ReloadState = "healthy"
)

// ErrServerUnavailable reports that the panel never came back within the
// attempt budget.
var ErrServerUnavailable = errors.New("streamclient: server did not become healthy")

type ReloadOptions struct {
	Interval    time.Duration
	MaxAttempts int
	OnState     func(state ReloadState)
}

func (o *ReloadOptions) withDefaults() ReloadOptions {
	out := *o
	if out.Interval <= 0 {
		out.Interval = 2 * time.Second
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 60
	}
	return out
}

// TriggerUpdate starts the panel self-update task.
func (c *Client) TriggerUpdate(ctx context.Context) (string, error) {
	var resp struct {
		TaskID string `json:"task_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/system/update", nil, http.StatusAccepted, &resp); err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

// WaitForServer polls /health at a fixed interval until the panel
// answers again. State transitions are reported at most once each in
// order: waiting_for_server, then healthy.
func (c *Client) WaitForServer(ctx context.Context, opts ReloadOptions) error {
	opts = opts.withDefaults()

	notify := func(s ReloadState) {
		if opts.OnState != nil {
			opts.OnState(s)
		}
	}
	notify(StateWaitingForServer)

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if c.healthy(ctx) {
			if c.logger != nil {
				c.logger.Info("server_healthy", zap.Int("attempts", attempt))
			}
			notify(StateHealthy)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	return fmt.Errorf("%w after %d attempts", ErrServerUnavailable, opts.MaxAttempts)
}

// UpdateAndReload triggers the self-update and blocks until the panel is
// reachable again. The reload hook is the caller's OnState(StateHealthy).
func (c *Client) UpdateAndReload(ctx context.Context, opts ReloadOptions) error {
	if opts.OnState != nil {
		opts.OnState(StateUpdating)
	}
	if _, err := c.TriggerUpdate(ctx); err != nil {
		return err
	}
	return c.WaitForServer(ctx, opts)
}

func (c *Client) healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

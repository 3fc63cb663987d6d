package streamclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestWaitForServer_RecoversAfterFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 5 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	var states []ReloadState
	err := client.WaitForServer(context.Background(), ReloadOptions{
		Interval:    5 * time.Millisecond,
		MaxAttempts: 20,
		OnState:     func(s ReloadState) { states = append(states, s) },
	})
	if err != nil {
		t.Fatalf("WaitForServer() error: %v", err)
	}

	if len(states) != 2 || states[0] != StateWaitingForServer || states[1] != StateHealthy {
		t.Errorf("states = %v, want [waiting_for_server healthy]", states)
	}
	if got := calls.Load(); got != 6 {
		t.Errorf("health checks = %d, want 6", got)
	}
}

func TestWaitForServer_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	err := client.WaitForServer(context.Background(), ReloadOptions{
		Interval:    5 * time.Millisecond,
		MaxAttempts: 3,
	})
	if !errors.Is(err, ErrServerUnavailable) {
		t.Errorf("WaitForServer() error = %v, want ErrServerUnavailable", err)
	}
}

func TestWaitForServer_ContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.WaitForServer(ctx, ReloadOptions{
		Interval:    time.Hour,
		MaxAttempts: 10,
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("WaitForServer() error = %v, want context.Canceled", err)
	}
}

func TestUpdateAndReload(t *testing.T) {
	var healthy atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/system/update", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		go func() {
			time.Sleep(20 * time.Millisecond)
			healthy.Store(true)
		}()
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"task_id":"update-1"}`))
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	var states []ReloadState
	err := client.UpdateAndReload(context.Background(), ReloadOptions{
		Interval:    5 * time.Millisecond,
		MaxAttempts: 50,
		OnState:     func(s ReloadState) { states = append(states, s) },
	})
	if err != nil {
		t.Fatalf("UpdateAndReload() error: %v", err)
	}

	want := []ReloadState{StateUpdating, StateWaitingForServer, StateHealthy}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("state %d = %q, want %q", i, states[i], want[i])
		}
	}
}

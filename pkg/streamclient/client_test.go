package streamclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStartTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/tasks" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-Admin-Token"); got != "secret" {
			t.Errorf("admin token = %q, want secret", got)
		}

		var req StartTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Kind != "backup" || req.Target != "example.com" {
			t.Errorf("request = %+v", req)
		}

		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"task_id":"abc-123"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, AdminToken: "secret"})

	taskID, err := client.StartTask(context.Background(), StartTaskRequest{
		Kind: "backup", Action: "create", Target: "example.com",
	})
	if err != nil {
		t.Fatalf("StartTask() error: %v", err)
	}
	if taskID != "abc-123" {
		t.Errorf("taskID = %q, want abc-123", taskID)
	}
}

func TestStartTask_Conflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"task: conflicting operation in progress"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	_, err := client.StartTask(context.Background(), StartTaskRequest{
		Kind: "backup", Action: "create", Target: "example.com",
	})
	if err == nil {
		t.Fatal("StartTask() should fail on 409")
	}
	if !strings.Contains(err.Error(), "conflicting operation") {
		t.Errorf("error %q should carry the server message", err)
	}
}

func TestGetTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tasks/abc-123" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"id":"abc-123","kind":"backup","action":"create","target":"example.com","state":"completed","log":["done"],"created_at":"2026-01-02T15:04:05Z"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	info, err := client.GetTask(context.Background(), "abc-123")
	if err != nil {
		t.Fatalf("GetTask() error: %v", err)
	}
	if info.State != "completed" || len(info.Log) != 1 {
		t.Errorf("info = %+v", info)
	}
}

func TestCancelTask_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"task: not found"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	if err := client.CancelTask(context.Background(), "missing"); err == nil {
		t.Fatal("CancelTask() should fail on 404")
	}
}

func TestWSURL(t *testing.T) {
	client := NewClient(Config{BaseURL: "https://panel.example.com", StreamToken: "tok"})

	got, err := client.wsURL("/ws/tasks/abc", nil)
	if err != nil {
		t.Fatalf("wsURL() error: %v", err)
	}
	if got != "wss://panel.example.com/ws/tasks/abc?token=tok" {
		t.Errorf("wsURL() = %q", got)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeTestConfig(t, `
server:
  host: 127.0.0.1
  port: 9090
tasks:
  script_dir: /opt/crux/scripts
  run_timeout: 10m
auth:
  stream_token: tok
  stream_token_ttl: 1h
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Address() != "127.0.0.1:9090" {
		t.Errorf("Address() = %q, want 127.0.0.1:9090", cfg.Server.Address())
	}
	if cfg.Tasks.ScriptDir != "/opt/crux/scripts" {
		t.Errorf("ScriptDir = %q", cfg.Tasks.ScriptDir)
	}
	if cfg.Tasks.RunTimeout != 10*time.Minute {
		t.Errorf("RunTimeout = %v, want 10m", cfg.Tasks.RunTimeout)
	}
	if cfg.Auth.StreamTokenTTL != time.Hour {
		t.Errorf("StreamTokenTTL = %v, want 1h", cfg.Auth.StreamTokenTTL)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeTestConfig(t, `
server:
  port: 8080
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Tasks.RunTimeout != 30*time.Minute {
		t.Errorf("RunTimeout default = %v, want 30m", cfg.Tasks.RunTimeout)
	}
	if cfg.Tasks.GracePeriod != 5*time.Minute {
		t.Errorf("GracePeriod default = %v, want 5m", cfg.Tasks.GracePeriod)
	}
	if cfg.Terminal.Shell != "/bin/bash" {
		t.Errorf("Shell default = %q, want /bin/bash", cfg.Terminal.Shell)
	}
	if cfg.Terminal.DefaultRows != 24 || cfg.Terminal.DefaultCols != 80 {
		t.Errorf("terminal size default = %dx%d, want 24x80", cfg.Terminal.DefaultRows, cfg.Terminal.DefaultCols)
	}
	if cfg.Stream.HeartbeatInterval != 30*time.Second {
		t.Errorf("HeartbeatInterval default = %v, want 30s", cfg.Stream.HeartbeatInterval)
	}
	if cfg.Database.TimelineRetention != 30*24*time.Hour {
		t.Errorf("TimelineRetention default = %v, want 720h", cfg.Database.TimelineRetention)
	}
	if cfg.Database.Enabled() {
		t.Error("database should be disabled without a host")
	}
	if cfg.Tasks.Remote.Enabled() {
		t.Error("remote execution should be disabled without a host")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "localhost", Port: 5432, User: "crux", Password: "pw", Name: "crux", SSLMode: "disable",
	}
	want := "host=localhost port=5432 user=crux password=pw dbname=crux sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

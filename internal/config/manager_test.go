package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"
)

const managerConfig = `
llm:
  api_key: test-key
elevenlabs:
  api_key: eleven
logging:
  level: info
`

func TestManagerStatus(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, managerConfig)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr, err := NewManager(path, logger)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	status := mgr.Status()
	if status.Path != path {
		t.Fatalf("Status().Path = %q, want %q", status.Path, path)
	}
	if status.Checksum == "" {
		t.Fatal("Status().Checksum is empty")
	}
	if status.LoadedAt.IsZero() {
		t.Fatal("Status().LoadedAt is zero")
	}
	if status.ReloadCount == 0 {
		t.Fatal("Status().ReloadCount should be > 0")
	}
}

func TestManagerReloadUpdatesChecksum(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, managerConfig)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr, err := NewManager(path, logger)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	before := mgr.Status()

	var notified *Config
	mgr.OnChange(func(c *Config) { notified = c })

	updated := managerConfig + "  format: text\n"
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := mgr.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	after := mgr.Status()
	if after.Checksum == before.Checksum {
		t.Fatal("checksum should change after the file changes")
	}
	if after.ReloadCount != before.ReloadCount+1 {
		t.Fatalf("ReloadCount = %d, want %d", after.ReloadCount, before.ReloadCount+1)
	}
	if notified == nil || notified.Logging.Format != "text" {
		t.Fatal("OnChange listener should receive the new config")
	}
	if mgr.Get().Logging.Format != "text" {
		t.Fatalf("Get().Logging.Format = %q, want text", mgr.Get().Logging.Format)
	}
}

func TestManagerReloadKeepsConfigOnError(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, managerConfig)
	mgr, err := NewManager(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	current := mgr.Get()

	if err := os.WriteFile(path, []byte("llm: [broken"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := mgr.Reload(); err == nil {
		t.Fatal("Reload() should fail on invalid YAML")
	}
	if mgr.Get() != current {
		t.Fatal("a failed reload must keep the current config")
	}
}

func TestManagerWatch(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, managerConfig)
	mgr, err := NewManager(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	changed := make(chan *Config, 1)
	mgr.OnChange(func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Watch(ctx); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if err := os.WriteFile(path, []byte(managerConfig+"  format: text\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	select {
	case cfg := <-changed:
		if cfg.Logging.Format != "text" {
			t.Fatalf("reloaded format = %q, want text", cfg.Logging.Format)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for hot reload")
	}
}

func TestManagerWithoutFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "g")
	t.Setenv("ELEVENLABS_API_KEY", "e")

	mgr, err := NewManager("", nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if err := mgr.Watch(context.Background()); err != nil {
		t.Fatalf("Watch() without a file should be a no-op, got %v", err)
	}
	if mgr.Get().LLM.APIKey != "g" {
		t.Fatalf("APIKey = %q, want g", mgr.Get().LLM.APIKey)
	}
}

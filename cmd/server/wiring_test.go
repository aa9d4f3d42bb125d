package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/blueberrycongee/grandpal/internal/archive"
	"github.com/blueberrycongee/grandpal/internal/config"
	"github.com/blueberrycongee/grandpal/internal/llm"
	"github.com/blueberrycongee/grandpal/internal/llm/anthropic"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()

	fileStore, err := newStore(config.MemoryConfig{Backend: config.BackendFile, Dir: filepath.Join(dir, "memories")})
	if err != nil {
		t.Fatalf("newStore(file) error = %v", err)
	}
	if got := fileStore.Name(); got != "file" {
		t.Fatalf("file store name = %q", got)
	}

	sqliteStore, err := newStore(config.MemoryConfig{
		Backend:    config.BackendSQLite,
		SQLitePath: filepath.Join(dir, "nested", "grandpal.db"),
	})
	if err != nil {
		t.Fatalf("newStore(sqlite) error = %v", err)
	}
	defer sqliteStore.Close()
	if got := sqliteStore.Name(); got != "sqlite" {
		t.Fatalf("sqlite store name = %q", got)
	}

	if _, err := newStore(config.MemoryConfig{Backend: "postgres"}); err == nil {
		t.Fatal("expected error for unsupported backend")
	}
}

func TestNewModel(t *testing.T) {
	logger := discardLogger()

	m, err := newModel(config.LLMConfig{Provider: config.ProviderGemini, APIKey: "g-key", Model: "gemini-2.0-flash"}, logger)
	if err != nil {
		t.Fatalf("newModel(gemini) error = %v", err)
	}
	if _, ok := m.(*llm.HTTPModel); !ok {
		t.Fatalf("gemini model type = %T, want *llm.HTTPModel", m)
	}

	m, err = newModel(config.LLMConfig{Provider: config.ProviderAnthropic, APIKey: "a-key", Model: "claude-sonnet-4-5"}, logger)
	if err != nil {
		t.Fatalf("newModel(anthropic) error = %v", err)
	}
	if _, ok := m.(*anthropic.Model); !ok {
		t.Fatalf("anthropic model type = %T, want *anthropic.Model", m)
	}

	if _, err := newModel(config.LLMConfig{Provider: config.ProviderGemini, Model: "gemini-2.0-flash"}, logger); err == nil {
		t.Fatal("expected error without an api key")
	}
	if _, err := newModel(config.LLMConfig{Provider: "openai", APIKey: "k", Model: "m"}, logger); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestNewArchive_Disabled(t *testing.T) {
	sink, err := newArchive(context.Background(), config.ArchiveConfig{})
	if err != nil {
		t.Fatalf("newArchive error = %v", err)
	}
	if _, ok := sink.(archive.Nop); !ok {
		t.Fatalf("sink type = %T, want archive.Nop", sink)
	}
}

func TestNewArchive_EnabledWithoutBucket(t *testing.T) {
	_, err := newArchive(context.Background(), config.ArchiveConfig{S3: config.S3Config{Enabled: true}})
	if err == nil {
		t.Fatal("expected error when the bucket is missing")
	}
}

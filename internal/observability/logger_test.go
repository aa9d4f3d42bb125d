package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)

	logger := NewLogger(LoggerConfig{Level: level, Output: &buf})
	logger.Info("hidden")
	logger.Warn("shown")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("info line should be filtered at warn level, got %s", output)
	}
	if !strings.Contains(output, `"msg":"shown"`) {
		t.Errorf("expected JSON warn line, got %s", output)
	}

	level.Set(slog.LevelDebug)
	logger.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Error("level changes should apply without rebuilding the logger")
	}
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Output: &buf, Format: "text"})
	logger.Info("hello", "user", "alice")

	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("expected text output, got %s", buf.String())
	}
}

func TestNewLogger_Redacts(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Output: &buf, Redactor: NewRedactor()})

	err := errors.New(`Post "https://generativelanguage.googleapis.com/v1beta/models/m:generateContent?key=super-secret": dial tcp: timeout`)
	logger.Error("model call failed", "error", err, "note", "mail me at grandma@example.com")

	output := buf.String()
	if strings.Contains(output, "super-secret") {
		t.Errorf("api key leaked: %s", output)
	}
	if strings.Contains(output, "grandma@example.com") {
		t.Errorf("email leaked: %s", output)
	}
	if !strings.Contains(output, "key=[REDACTED]") {
		t.Errorf("expected redaction marker, got %s", output)
	}
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Output: &buf})
	ctx := ContextWithRequestID(context.Background(), "test-req-123")

	LoggerFromContext(ctx, logger).Info("test message")
	if !strings.Contains(buf.String(), "test-req-123") {
		t.Errorf("expected request ID in output, got %s", buf.String())
	}

	if LoggerFromContext(context.Background(), logger) != logger {
		t.Error("logger without request ID should be returned unchanged")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

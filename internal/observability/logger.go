// Package observability provides structured logging, request IDs and tracing.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LoggerConfig contains configuration for the logger.
type LoggerConfig struct {
	Level     *slog.LevelVar
	Output    io.Writer
	AddSource bool
	Format    string // json, text
	Redactor  *Redactor
}

// NewLogger creates a slog logger. String and error attributes pass through
// the redactor when one is configured.
func NewLogger(cfg LoggerConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	level := cfg.Level
	if level == nil {
		level = new(slog.LevelVar)
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}
	if cfg.Redactor != nil {
		opts.ReplaceAttr = redactAttr(cfg.Redactor)
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a configured level name onto a slog level. Unknown names
// yield info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoggerFromContext returns logger annotated with the request ID in ctx, if any.
func LoggerFromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if id := RequestIDFromContext(ctx); id != "" {
		return logger.With("request_id", id)
	}
	return logger
}

// Identifier attributes are never redacted; hex and UUID ids can look like
// phone numbers.
var plainAttrs = map[string]bool{
	"request_id": true,
	"session_id": true,
	"user_id":    true,
}

func redactAttr(r *Redactor) func([]string, slog.Attr) slog.Attr {
	return func(_ []string, a slog.Attr) slog.Attr {
		if plainAttrs[a.Key] {
			return a
		}
		switch a.Value.Kind() {
		case slog.KindString:
			a.Value = slog.StringValue(r.Redact(a.Value.String()))
		case slog.KindAny:
			if err, ok := a.Value.Any().(error); ok {
				a.Value = slog.StringValue(r.Redact(err.Error()))
			}
		}
		return a
	}
}

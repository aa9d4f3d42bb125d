// Package archive uploads finished conversation transcripts for later review.
package archive

import (
	"context"
	"time"
)

// Entry is one ended session.
type Entry struct {
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	Reason     string    `json:"reason"`
	EndedAt    time.Time `json:"ended_at"`
	Transcript string    `json:"transcript"`
	Extraction any       `json:"extraction,omitempty"`
}

// Sink stores ended sessions.
type Sink interface {
	Archive(ctx context.Context, entry Entry) error
}

// Nop discards every entry.
type Nop struct{}

// Archive implements Sink.
func (Nop) Archive(context.Context, Entry) error { return nil }

package memory

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by a Store when no record exists for a user.
	ErrNotFound = errors.New("memory: record not found")

	// ErrCorrupt is returned by a Store when a stored record cannot be decoded.
	ErrCorrupt = errors.New("memory: record corrupt")

	// ErrInvalidUserID is returned for user ids that cannot be used as keys.
	ErrInvalidUserID = errors.New("memory: invalid user id")
)

// Store persists whole user records.
type Store interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Load returns the stored record for userID, ErrNotFound when there is
	// none, or an error wrapping ErrCorrupt when it cannot be decoded.
	Load(ctx context.Context, userID string) (*Record, error)

	// Save replaces the stored record for userID. Readers never observe a
	// partially written record.
	Save(ctx context.Context, userID string, rec *Record) error

	// Close releases backend resources.
	Close() error
}

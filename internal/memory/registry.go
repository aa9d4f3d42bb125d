package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/blueberrycongee/grandpal/internal/metrics"
	"github.com/blueberrycongee/grandpal/internal/observability"
)

// Registry owns the live UserMemory instances of a process, keyed by user id.
type Registry struct {
	mu     sync.Mutex
	users  map[string]*UserMemory
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry creates a registry backed by store.
func NewRegistry(store Store, opts ...RegistryOption) *Registry {
	r := &Registry{
		users:  make(map[string]*UserMemory),
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the backing store.
func (r *Registry) Store() Store { return r.store }

// GetOrCreate returns the live memory for userID, loading it from the store
// on first reference. A missing record starts empty; a corrupt one is
// replaced by an empty record and reported. Nothing is written until the
// first mutation.
func (r *Registry) GetOrCreate(ctx context.Context, userID, userName string) (*UserMemory, error) {
	if !ValidUserID(userID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUserID, userID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.users[userID]; ok {
		return m, nil
	}

	rec, err := r.store.Load(ctx, userID)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		rec = NewRecord(userName, r.now())
	case errors.Is(err, ErrCorrupt):
		observability.LoggerFromContext(ctx, r.logger).Warn("stored memory is corrupt, starting fresh",
			"user_id", userID,
			"backend", r.store.Name(),
			"error", err,
		)
		metrics.RecordCorruptRecord(r.store.Name())
		rec = NewRecord(userName, r.now())
	default:
		return nil, fmt.Errorf("load memory for %s: %w", userID, err)
	}

	m := newUserMemory(userID, userName, rec, r.store, r.now)
	r.users[userID] = m
	return m, nil
}

// Lookup reads the persisted record for userID without registering it.
// It returns ErrNotFound when nothing usable is stored.
func (r *Registry) Lookup(ctx context.Context, userID string) (*Record, error) {
	if !ValidUserID(userID) {
		return nil, ErrNotFound
	}
	rec, err := r.store.Load(ctx, userID)
	if errors.Is(err, ErrCorrupt) {
		observability.LoggerFromContext(ctx, r.logger).Warn("stored memory is corrupt",
			"user_id", userID,
			"backend", r.store.Name(),
			"error", err,
		)
		metrics.RecordCorruptRecord(r.store.Name())
		return nil, ErrNotFound
	}
	return rec, err
}

// Len returns the number of live memories.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

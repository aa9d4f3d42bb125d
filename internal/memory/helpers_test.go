package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.Local)

func fixedClock() time.Time { return testNow }

// countingStore wraps a Store, counting saves and optionally failing them.
type countingStore struct {
	Store

	mu      sync.Mutex
	saves   int
	saveErr error
	failAt  int
}

func (s *countingStore) Save(ctx context.Context, userID string, rec *Record) error {
	s.mu.Lock()
	s.saves++
	n := s.saves
	saveErr := s.saveErr
	s.mu.Unlock()

	if saveErr != nil && n >= s.failAt {
		return saveErr
	}
	return s.Store.Save(ctx, userID, rec)
}

func (s *countingStore) setSaveErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

func (s *countingStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func openMemory(t *testing.T, store Store, name string) *UserMemory {
	t.Helper()
	reg := NewRegistry(store, WithClock(fixedClock))
	mem, err := reg.GetOrCreate(context.Background(), NormalizeUserID(name), name)
	require.NoError(t, err)
	return mem
}

package brain

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/grandpal/internal/archive"
	"github.com/blueberrycongee/grandpal/internal/llm"
	"github.com/blueberrycongee/grandpal/internal/llm/llmtest"
	"github.com/blueberrycongee/grandpal/internal/memory"
)

const extractionJSON = `{"family_members": [{"name": "Emma", "relation": "granddaughter", "details": "loves painting"}],
"interests": ["painting"], "topics_discussed": ["Emma's visit"], "emotional_state": "happy", "needs_followup": null}`

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingSink struct {
	mu      sync.Mutex
	entries []archive.Entry
}

func (s *recordingSink) Archive(_ context.Context, e archive.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *recordingSink) Entries() []archive.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]archive.Entry(nil), s.entries...)
}

// companionModel replies to chat with a numbered line and answers extraction
// prompts with extractionJSON.
func companionModel() *llmtest.Scripted {
	var mu sync.Mutex
	n := 0
	return &llmtest.Scripted{
		ChatFunc: func(_ context.Context, _ string, _ []llm.Turn, _ string) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			n++
			if n == 1 {
				return "Hello there, dear!", nil
			}
			return "How wonderful.", nil
		},
		GenerateFunc: func(_ context.Context, prompt string) (string, error) {
			if strings.HasPrefix(prompt, "Analyze this conversation") {
				return extractionJSON, nil
			}
			return `{"emotion": "happy", "confidence": 0.9, "needs_support": false}`, nil
		},
	}
}

type fixture struct {
	registry *Registry
	memories *memory.Registry
	store    *memory.FileStore
	model    *llmtest.Scripted
	clock    *testClock
	sink     *recordingSink
}

func newFixture(t *testing.T, model *llmtest.Scripted, mutate ...func(*Options)) *fixture {
	t.Helper()
	store, err := memory.NewFileStore(t.TempDir())
	require.NoError(t, err)

	clock := newTestClock()
	memories := memory.NewRegistry(store, memory.WithClock(clock.Now))
	sink := &recordingSink{}
	opts := Options{
		Memories:    memories,
		Extractor:   memory.NewExtractor(model, nil),
		Model:       model,
		Archive:     sink,
		IdleTimeout: 30 * time.Minute,
		Clock:       clock.Now,
	}
	for _, m := range mutate {
		m(&opts)
	}
	return &fixture{
		registry: NewRegistry(opts),
		memories: memories,
		store:    store,
		model:    model,
		clock:    clock,
		sink:     sink,
	}
}

// removeAndBlock replaces dir with a regular file so writes into it fail.
func removeAndBlock(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.WriteFile(dir, []byte("blocked"), 0o644)
}

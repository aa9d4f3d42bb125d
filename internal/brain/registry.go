package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/blueberrycongee/grandpal/internal/archive"
	"github.com/blueberrycongee/grandpal/internal/cache"
	"github.com/blueberrycongee/grandpal/internal/llm"
	"github.com/blueberrycongee/grandpal/internal/memory"
	"github.com/blueberrycongee/grandpal/internal/metrics"
	"github.com/blueberrycongee/grandpal/internal/observability"
)

// ErrSessionNotFound is returned for session ids that are not live.
var ErrSessionNotFound = errors.New("brain: session not found")

// End reasons.
const (
	ReasonExplicit = "explicit"
	ReasonIdle     = "idle"
	ReasonShutdown = "shutdown"
)

// Options configures a Registry. Memories, Extractor and Model are required.
type Options struct {
	Memories      *memory.Registry
	Extractor     *memory.Extractor
	Model         llm.Model
	Persona       *Persona
	Cache         cache.Cache
	Archive       archive.Sink
	CompanionName string
	IdleTimeout   time.Duration // zero disables expiry
	Logger        *slog.Logger
	Clock         func() time.Time
}

// Registry holds the live sessions of the process.
type Registry struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*Brain
	creating singleflight.Group
}

// NewRegistry creates an empty session registry.
func NewRegistry(opts Options) *Registry {
	if opts.Persona == nil {
		opts.Persona = DefaultPersona()
	}
	if opts.Cache == nil {
		opts.Cache = cache.Nop{}
	}
	if opts.Archive == nil {
		opts.Archive = archive.Nop{}
	}
	if opts.CompanionName == "" {
		opts.CompanionName = DefaultCompanionName
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Registry{opts: opts, sessions: make(map[string]*Brain)}
}

// GetOrCreate returns the live session for sessionID, creating it on first
// use. Creation loads the user's memory, counts the conversation and fixes
// the system instruction for the life of the session. Concurrent first calls
// for one session share a single creation, and memory I/O runs without
// holding the registry lock.
func (r *Registry) GetOrCreate(ctx context.Context, sessionID, userName string) (*Brain, error) {
	if b := r.lookup(sessionID); b != nil {
		return b, nil
	}

	v, err, _ := r.creating.Do(sessionID, func() (any, error) {
		if b := r.lookup(sessionID); b != nil {
			return b, nil
		}
		b, err := r.newBrain(ctx, sessionID, userName)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.sessions[sessionID] = b
		metrics.ActiveSessions.Set(float64(len(r.sessions)))
		r.mu.Unlock()

		observability.LoggerFromContext(ctx, r.opts.Logger).Info("session started",
			"session_id", sessionID,
			"user_id", b.UserID(),
			"conversation_count", b.Memory().ConversationCount(),
		)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Brain), nil
}

func (r *Registry) lookup(sessionID string) *Brain {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[sessionID]
}

func (r *Registry) newBrain(ctx context.Context, sessionID, userName string) (*Brain, error) {
	mem, err := r.opts.Memories.GetOrCreate(ctx, memory.NormalizeUserID(userName), userName)
	if err != nil {
		return nil, err
	}
	if err := mem.IncrementConversation(ctx); err != nil {
		return nil, err
	}

	b := &Brain{
		sessionID: sessionID,
		companion: r.opts.CompanionName,
		system:    r.opts.Persona.Render(userName, mem.ContextSummary()),
		memory:    mem,
		model:     r.opts.Model,
		cache:     r.opts.Cache,
		logger:    r.opts.Logger,
		now:       r.opts.Clock,
		createdAt: r.opts.Clock(),
	}
	b.touch()
	return b, nil
}

// Get returns a live session or ErrSessionNotFound.
func (r *Registry) Get(sessionID string) (*Brain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.sessions[sessionID]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// End extracts memories from the session's transcript and removes it.
// Unknown ids are a no-op.
func (r *Registry) End(ctx context.Context, sessionID string) error {
	b := r.remove(sessionID)
	if b == nil {
		return nil
	}
	return r.finish(ctx, b, ReasonExplicit)
}

// Sweep ends every session idle for at least the configured timeout and
// returns how many were ended.
func (r *Registry) Sweep(ctx context.Context) int {
	if r.opts.IdleTimeout <= 0 {
		return 0
	}
	cutoff := r.opts.Clock().Add(-r.opts.IdleTimeout)

	r.mu.Lock()
	var expired []*Brain
	for id, b := range r.sessions {
		if !b.LastActive().After(cutoff) {
			expired = append(expired, b)
			delete(r.sessions, id)
		}
	}
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	r.mu.Unlock()

	for _, b := range expired {
		sweepCtx, _ := observability.GetOrCreateRequestID(ctx)
		if err := r.finish(sweepCtx, b, ReasonIdle); err != nil {
			r.opts.Logger.Error("ending idle session failed", "session_id", b.SessionID(), "error", err)
		}
	}
	return len(expired)
}

// Run sweeps idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || r.opts.IdleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(ctx); n > 0 {
				r.opts.Logger.Info("idle sessions ended", "count", n)
			}
		}
	}
}

// Shutdown ends every live session. The first error is returned after all
// sessions have been attempted.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	all := make([]*Brain, 0, len(r.sessions))
	for id, b := range r.sessions {
		all = append(all, b)
		delete(r.sessions, id)
	}
	metrics.ActiveSessions.Set(0)
	r.mu.Unlock()

	var firstErr error
	for _, b := range all {
		if err := r.finish(ctx, b, ReasonShutdown); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Registry) remove(sessionID string) *Brain {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	delete(r.sessions, sessionID)
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	return b
}

// finish runs extraction and archiving for a session already removed from
// the registry.
func (r *Registry) finish(ctx context.Context, b *Brain, reason string) error {
	logger := b.log(ctx)
	metrics.SessionsEnded.WithLabelValues(reason).Inc()

	transcript := b.Transcript()
	if transcript == "" {
		logger.Info("session ended", "reason", reason, "turns", 0)
		return nil
	}

	ext, err := r.opts.Extractor.Extract(ctx, b.Memory(), transcript)
	if err != nil {
		logger.Error("saving memories failed", "reason", reason, "error", err)
		return fmt.Errorf("end session %s: %w", b.SessionID(), err)
	}

	if err := r.opts.Archive.Archive(ctx, archive.Entry{
		SessionID:  b.SessionID(),
		UserID:     b.UserID(),
		UserName:   b.UserName(),
		Reason:     reason,
		EndedAt:    r.opts.Clock(),
		Transcript: transcript,
		Extraction: ext,
	}); err != nil {
		logger.Warn("archiving transcript failed", "error", err)
	}

	logger.Info("session ended", "reason", reason, "transcript_bytes", len(transcript))
	return nil
}

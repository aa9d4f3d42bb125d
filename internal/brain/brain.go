// Package brain runs conversation sessions: it composes the personalized
// system instruction from user memory, keeps the session history, produces
// greetings and replies, and hands the transcript to memory extraction when
// the session ends.
package brain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blueberrycongee/grandpal/internal/cache"
	"github.com/blueberrycongee/grandpal/internal/llm"
	"github.com/blueberrycongee/grandpal/internal/memory"
	"github.com/blueberrycongee/grandpal/internal/observability"
	"github.com/blueberrycongee/grandpal/pkg/types"
)

// DefaultCompanionName is the assistant's speaker label in transcripts.
const DefaultCompanionName = "GrandPal"

const fallbackReply = "I'm sorry, %s, I had a little trouble there. Could you say that again?"

// entry is one history turn. Prompt turns are sent to the model but left out
// of the transcript. A user turn whose reply failed stays in the transcript
// but is never sent to the model again.
type entry struct {
	turn     llm.Turn
	prompt   bool
	answered bool
}

// Brain is one live conversation.
type Brain struct {
	sessionID string
	companion string
	system    string
	memory    *memory.UserMemory
	model     llm.Model
	cache     cache.Cache
	logger    *slog.Logger
	now       func() time.Time
	createdAt time.Time

	lastActive atomic.Int64 // unix nanos

	mu      sync.Mutex
	history []entry
}

// SessionID returns the session identifier.
func (b *Brain) SessionID() string { return b.sessionID }

// UserName returns the display name of the user.
func (b *Brain) UserName() string { return b.memory.UserName() }

// UserID returns the memory key of the user.
func (b *Brain) UserID() string { return b.memory.UserID() }

// Memory returns the user's live memory.
func (b *Brain) Memory() *memory.UserMemory { return b.memory }

// SystemPrompt returns the fixed system instruction of the session.
func (b *Brain) SystemPrompt() string { return b.system }

// CreatedAt returns when the session started.
func (b *Brain) CreatedAt() time.Time { return b.createdAt }

// LastActive returns the time of the last greeting or reply.
func (b *Brain) LastActive() time.Time {
	return time.Unix(0, b.lastActive.Load())
}

func (b *Brain) touch() {
	b.lastActive.Store(b.now().UnixNano())
}

// History returns the turns the model sees as context: completed exchanges
// only, prompts included.
func (b *Brain) History() []llm.Turn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.modelHistory()
}

// modelHistory keeps assistant turns and the user turns they answered.
// Callers hold b.mu.
func (b *Brain) modelHistory() []llm.Turn {
	out := make([]llm.Turn, 0, len(b.history))
	for _, e := range b.history {
		if e.turn.Role == types.RoleUser && !e.answered {
			continue
		}
		out = append(out, e.turn)
	}
	return out
}

// Respond appends message as a user turn, asks the model for a reply and
// records it. Model failures return a gentle fallback instead of an error;
// the failed user turn is kept for the transcript only.
func (b *Brain) Respond(ctx context.Context, message string) string {
	return b.respond(ctx, message, false)
}

// Greeting asks the model for an opening line. Returning users get a hint
// built from their recent topics and family.
func (b *Brain) Greeting(ctx context.Context) string {
	return b.respond(ctx, b.greetingPrompt(), true)
}

func (b *Brain) greetingPrompt() string {
	name := b.memory.UserName()
	snap := b.memory.Snapshot()
	count := snap.ConversationCount

	if count <= 1 {
		return fmt.Sprintf("Generate a warm, friendly first greeting for %s who you're meeting for the first time. Keep it to 1-2 sentences. Be warm and welcoming.", name)
	}

	var hint strings.Builder
	if topics := snap.RecentTopics; len(topics) > 0 {
		if len(topics) > 2 {
			topics = topics[len(topics)-2:]
		}
		fmt.Fprintf(&hint, "Last time you talked about: %s. ", strings.Join(topics, ", "))
	}
	if family := snap.Profile.FamilyMembers; len(family) > 0 {
		if len(family) > 3 {
			family = family[:3]
		}
		names := make([]string, len(family))
		for i, fm := range family {
			names[i] = fm.Name
		}
		fmt.Fprintf(&hint, "You know about their family: %s. ", strings.Join(names, ", "))
	}

	return fmt.Sprintf(`Generate a warm greeting for %s who you've talked to %d times before.

%s

Reference something from previous conversations if relevant, or just give a warm "welcome back" greeting.
Keep it to 1-2 sentences. Be genuine and warm, like greeting an old friend.`, name, count, hint.String())
}

func (b *Brain) respond(ctx context.Context, message string, prompt bool) string {
	kind := "message"
	if prompt {
		kind = "greeting"
	}
	ctx, span := observability.StartTurnSpan(ctx, b.sessionID, b.memory.UserID(), kind)
	defer span.End()

	b.mu.Lock()
	defer b.mu.Unlock()

	history := b.modelHistory()
	b.history = append(b.history, entry{turn: llm.Turn{Role: types.RoleUser, Content: message}, prompt: prompt})
	pending := len(b.history) - 1
	b.touch()

	reply, err := b.model.Chat(ctx, b.system, history, message)
	if err != nil {
		observability.RecordError(span, err)
		b.log(ctx).Warn("model reply failed, using fallback", "error", err)
		return fmt.Sprintf(fallbackReply, b.memory.UserName())
	}

	b.history[pending].answered = true
	b.history = append(b.history, entry{turn: llm.Turn{Role: types.RoleAssistant, Content: reply}})
	b.touch()
	return reply
}

// Transcript renders the conversation for extraction, one block per turn:
// "<speaker>: <content>\n\n". Greeting prompts are omitted.
func (b *Brain) Transcript() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var sb strings.Builder
	for _, e := range b.history {
		if e.prompt {
			continue
		}
		speaker := b.memory.UserName()
		if e.turn.Role == types.RoleAssistant {
			speaker = b.companion
		}
		sb.WriteString(speaker)
		sb.WriteString(": ")
		sb.WriteString(e.turn.Content)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func (b *Brain) log(ctx context.Context) *slog.Logger {
	return observability.LoggerFromContext(ctx, b.logger).With(
		"session_id", b.sessionID,
		"user_id", b.memory.UserID(),
	)
}

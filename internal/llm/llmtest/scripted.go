// Package llmtest provides deterministic llm.Model fakes for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/blueberrycongee/grandpal/internal/llm"
)

// ErrUnscripted is returned when a call has no scripted behaviour.
var ErrUnscripted = errors.New("llmtest: no scripted response")

// ChatCall captures the arguments of one Chat invocation.
type ChatCall struct {
	System  string
	History []llm.Turn
	Message string
}

// Scripted is an llm.Model whose answers come from caller-supplied funcs.
// All calls are recorded.
type Scripted struct {
	ChatFunc     func(ctx context.Context, system string, history []llm.Turn, message string) (string, error)
	GenerateFunc func(ctx context.Context, prompt string) (string, error)

	mu      sync.Mutex
	chats   []ChatCall
	prompts []string
}

var _ llm.Model = (*Scripted)(nil)

// Reply returns a model that answers every call with text.
func Reply(text string) *Scripted {
	return &Scripted{
		ChatFunc: func(context.Context, string, []llm.Turn, string) (string, error) {
			return text, nil
		},
		GenerateFunc: func(context.Context, string) (string, error) {
			return text, nil
		},
	}
}

// Fail returns a model that fails every call with err.
func Fail(err error) *Scripted {
	return &Scripted{
		ChatFunc: func(context.Context, string, []llm.Turn, string) (string, error) {
			return "", err
		},
		GenerateFunc: func(context.Context, string) (string, error) {
			return "", err
		},
	}
}

// Chat implements llm.Model.
func (s *Scripted) Chat(ctx context.Context, system string, history []llm.Turn, message string) (string, error) {
	s.mu.Lock()
	s.chats = append(s.chats, ChatCall{
		System:  system,
		History: append([]llm.Turn(nil), history...),
		Message: message,
	})
	fn := s.ChatFunc
	s.mu.Unlock()

	if fn == nil {
		return "", ErrUnscripted
	}
	return fn(ctx, system, history, message)
}

// Generate implements llm.Model.
func (s *Scripted) Generate(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	fn := s.GenerateFunc
	s.mu.Unlock()

	if fn == nil {
		return "", ErrUnscripted
	}
	return fn(ctx, prompt)
}

// ChatCalls returns a copy of the recorded Chat calls.
func (s *Scripted) ChatCalls() []ChatCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatCall(nil), s.chats...)
}

// Prompts returns a copy of the recorded Generate prompts.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

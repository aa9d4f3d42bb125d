// Package llm is the narrow language-model contract the companion depends on.
// Adapters turn a system instruction plus conversation history into a single
// reply, hiding provider wire formats behind Model.
package llm

import (
	"context"

	"github.com/blueberrycongee/grandpal/pkg/types"
)

// Turn is one entry of a conversation history.
type Turn struct {
	Role    string `json:"role"` // user, assistant
	Content string `json:"content"`
}

// Model generates text replies.
type Model interface {
	// Chat answers message given a system instruction and the prior turns.
	Chat(ctx context.Context, system string, history []Turn, message string) (string, error)

	// Generate answers a single stateless prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Messages renders a system instruction, prior turns and the new message in
// the unified chat format.
func Messages(system string, history []Turn, message string) []types.ChatMessage {
	msgs := make([]types.ChatMessage, 0, len(history)+2)
	if system != "" {
		msgs = append(msgs, types.TextMessage(types.RoleSystem, system))
	}
	for _, t := range history {
		role := types.RoleUser
		if t.Role == types.RoleAssistant {
			role = types.RoleAssistant
		}
		msgs = append(msgs, types.TextMessage(role, t.Content))
	}
	return append(msgs, types.TextMessage(types.RoleUser, message))
}

// Package types defines the chat request and response shapes shared by the
// model adapters. The layout follows the OpenAI chat completion format so
// that adapters only need to translate at the edges.
package types //nolint:revive // package name is intentional

import "github.com/goccy/go-json"

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatRequest is the provider-neutral input for a single model call.
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
	TopP           *float64        `json:"top_p,omitempty"`
	Stop           []string        `json:"stop,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ChatMessage represents a single message in the conversation.
// Content holds a JSON string for plain text messages.
type ChatMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// ResponseFormat specifies the output format for the model.
type ResponseFormat struct {
	Type string `json:"type"`
}

// TextMessage builds a message whose content is the given plain text.
func TextMessage(role, text string) ChatMessage {
	raw, err := json.Marshal(text)
	if err != nil {
		raw = []byte(`""`)
	}
	return ChatMessage{Role: role, Content: raw}
}

// Text returns the message content as plain text. Content that is not a JSON
// string (for example a raw object emitted by a JSON-mode model) is returned
// verbatim.
func (m ChatMessage) Text() string {
	if len(m.Content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return s
	}
	return string(m.Content)
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}

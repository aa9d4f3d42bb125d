package voice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/grandpal/internal/config"
	llmerrors "github.com/blueberrycongee/grandpal/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.ElevenLabsConfig{APIKey: "xi-test", BaseURL: srv.URL + "/"})
}

func TestClient_SignedURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/convai/conversation/get_signed_url", r.URL.Path)
		assert.Equal(t, "agent_123", r.URL.Query().Get("agent_id"))
		assert.Equal(t, "xi-test", r.Header.Get("xi-api-key"))
		_, _ = w.Write([]byte(`{"signed_url":"wss://example.test/convai?token=t"}`))
	})

	got, err := c.SignedURL(context.Background(), "agent_123")
	require.NoError(t, err)
	assert.Equal(t, "wss://example.test/convai?token=t", got)
}

func TestClient_SignedURLMissing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := c.SignedURL(context.Background(), "agent_123")
	require.Error(t, err)
}

func TestClient_Agent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/convai/agents/agent_123", r.URL.Path)
		_, _ = w.Write([]byte(`{"agent_id":"agent_123","name":"GrandPal","conversation_config":{}}`))
	})

	agent, err := c.Agent(context.Background(), "agent_123")
	require.NoError(t, err)
	assert.Equal(t, &Agent{AgentID: "agent_123", Name: "GrandPal"}, agent)
}

func TestClient_Voices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/voices", r.URL.Path)
		_, _ = w.Write([]byte(`{"voices":[{"voice_id":"v1","name":"Rachel","category":"premade","labels":{}}]}`))
	})

	voices, err := c.Voices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Voice{{VoiceID: "v1", Name: "Rachel", Category: "premade"}}, voices)
}

func TestClient_MapsErrors(t *testing.T) {
	tests := []struct {
		status int
		want   int
	}{
		{http.StatusUnauthorized, http.StatusUnauthorized},
		{http.StatusNotFound, http.StatusNotFound},
		{http.StatusTooManyRequests, http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"detail":"nope"}`))
		})

		_, err := c.Voices(context.Background())
		require.Error(t, err)
		llmErr, ok := llmerrors.As(err)
		require.True(t, ok)
		assert.Equal(t, tt.want, llmErr.HTTPStatusCode())
		assert.Equal(t, "elevenlabs", llmErr.Provider)
	}
}

func TestClient_Unreachable(t *testing.T) {
	c := NewClient(config.ElevenLabsConfig{APIKey: "k", BaseURL: "http://127.0.0.1:1"})

	_, err := c.Voices(context.Background())
	require.Error(t, err)
	llmErr, ok := llmerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, llmErr.HTTPStatusCode())
}

package gemini

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/grandpal/internal/provider"
	llmerrors "github.com/blueberrycongee/grandpal/pkg/errors"
	"github.com/blueberrycongee/grandpal/pkg/types"
)

func TestNew(t *testing.T) {
	p, err := New(provider.ProviderConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if p.Name() != ProviderName {
		t.Errorf("Name() = %s, want %s", p.Name(), ProviderName)
	}

	if _, err := New(provider.ProviderConfig{}); err == nil {
		t.Error("New() without an api key should fail")
	}
}

func TestProvider_BuildRequest(t *testing.T) {
	p, _ := New(provider.ProviderConfig{
		APIKey:  "test-api-key",
		BaseURL: "https://generativelanguage.googleapis.com/",
		Headers: map[string]string{"X-Trace": "1"},
	})

	req := &types.ChatRequest{
		Model: "gemini-1.5-pro",
		Messages: []types.ChatMessage{
			types.TextMessage(types.RoleSystem, "You are GrandPal."),
			types.TextMessage(types.RoleUser, "Hello"),
			types.TextMessage(types.RoleAssistant, "Hi there"),
			types.TextMessage(types.RoleUser, "How are you?"),
		},
		MaxTokens:      256,
		Temperature:    types.Float64Ptr(0.7),
		ResponseFormat: &types.ResponseFormat{Type: "json_object"},
	}

	httpReq, err := p.BuildRequest(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, httpReq.Method)
	assert.Equal(t,
		"https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-pro:generateContent?key=test-api-key",
		httpReq.URL.String())
	assert.Equal(t, "application/json", httpReq.Header.Get("Content-Type"))
	assert.Equal(t, "1", httpReq.Header.Get("X-Trace"))

	body, err := io.ReadAll(httpReq.Body)
	require.NoError(t, err)

	var got geminiRequest
	require.NoError(t, json.Unmarshal(body, &got))

	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, "You are GrandPal.", got.SystemInstruction.Parts[0].Text)
	require.Len(t, got.Contents, 3)
	assert.Equal(t, "user", got.Contents[0].Role)
	assert.Equal(t, "model", got.Contents[1].Role)
	assert.Equal(t, "Hi there", got.Contents[1].Parts[0].Text)
	assert.Equal(t, 256, got.GenerationConfig.MaxOutputTokens)
	assert.Equal(t, 0.7, *got.GenerationConfig.Temperature)
	assert.Equal(t, "application/json", got.GenerationConfig.ResponseMimeType)
}

func TestProvider_BuildRequestRequiresModel(t *testing.T) {
	p, _ := New(provider.ProviderConfig{APIKey: "k"})
	_, err := p.BuildRequest(context.Background(), &types.ChatRequest{})
	require.Error(t, err)
	llmErr, ok := llmerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, llmerrors.TypeInvalidRequest, llmErr.Type)
}

func TestProvider_ParseResponse(t *testing.T) {
	p, _ := New(provider.ProviderConfig{APIKey: "k"})

	body := `{
		"candidates": [{
			"content": {"role": "model", "parts": [{"text": "Hello, "}, {"text": "dear \"friend\""}]},
			"finishReason": "STOP",
			"index": 0
		}],
		"usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 4, "totalTokenCount": 14},
		"modelVersion": "gemini-1.5-pro-002"
	}`
	resp := &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(body))}

	chatResp, err := p.ParseResponse(resp)
	require.NoError(t, err)

	assert.Equal(t, `Hello, dear "friend"`, chatResp.Text())
	assert.Equal(t, "stop", chatResp.Choices[0].FinishReason)
	assert.Equal(t, "gemini-1.5-pro-002", chatResp.Model)
	require.NotNil(t, chatResp.Usage)
	assert.Equal(t, 14, chatResp.Usage.TotalTokens)
}

func TestProvider_ParseResponseBlocked(t *testing.T) {
	p, _ := New(provider.ProviderConfig{APIKey: "k"})
	resp := &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(strings.NewReader(`{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`)),
	}

	_, err := p.ParseResponse(resp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt blocked: SAFETY")
}

func TestProvider_ParseResponseInvalidJSON(t *testing.T) {
	p, _ := New(provider.ProviderConfig{APIKey: "k"})
	resp := &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(`not json`))}

	_, err := p.ParseResponse(resp)
	assert.ErrorContains(t, err, "unmarshal response")
}

func TestProvider_MapError(t *testing.T) {
	p, _ := New(provider.ProviderConfig{APIKey: "k"})

	tests := []struct {
		name       string
		statusCode int
		body       string
		wantType   string
		wantMsg    string
	}{
		{"bad key", 400, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`, llmerrors.TypeInvalidRequest, "API key not valid"},
		{"forbidden", 403, `{"error":{"message":"denied"}}`, llmerrors.TypeAuthentication, "denied"},
		{"quota", 429, `{"error":{"message":"Resource exhausted"}}`, llmerrors.TypeRateLimit, "Resource exhausted"},
		{"overloaded", 503, `oops`, llmerrors.TypeServiceUnavailable, "unknown error"},
		{"server", 500, `{}`, llmerrors.TypeInternalError, "unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.MapError(tt.statusCode, []byte(tt.body))
			llmErr, ok := llmerrors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantType, llmErr.Type)
			assert.Equal(t, tt.wantMsg, llmErr.Message)
			assert.Equal(t, ProviderName, llmErr.Provider)
		})
	}
}

func TestProvider_RoundTripAgainstServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent") {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"pong"}]},"finishReason":"STOP"}]}`))
	}))
	defer server.Close()

	p, _ := New(provider.ProviderConfig{APIKey: "secret", BaseURL: server.URL})
	httpReq, err := p.BuildRequest(context.Background(), &types.ChatRequest{
		Model:    "gemini-test",
		Messages: []types.ChatMessage{types.TextMessage(types.RoleUser, "ping")},
	})
	require.NoError(t, err)

	resp, err := server.Client().Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	chatResp, err := p.ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "pong", chatResp.Text())
}

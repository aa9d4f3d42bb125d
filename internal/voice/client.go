// Package voice is a small client for the ElevenLabs conversational agent API.
package voice

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/grandpal/internal/config"
	"github.com/blueberrycongee/grandpal/internal/httputil"
	llmerrors "github.com/blueberrycongee/grandpal/pkg/errors"
)

const providerName = "elevenlabs"

// Agent describes a configured voice agent.
type Agent struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
}

// Voice is one entry of the voice library.
type Voice struct {
	VoiceID  string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Client calls the ElevenLabs REST API with the xi-api-key header.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a client from cfg.
func NewClient(cfg config.ElevenLabsConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io"
	}

	c := &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SignedURL returns a short-lived websocket URL for a conversation with agentID.
func (c *Client) SignedURL(ctx context.Context, agentID string) (string, error) {
	var out struct {
		SignedURL string `json:"signed_url"`
	}
	q := url.Values{"agent_id": {agentID}}
	if err := c.get(ctx, "/v1/convai/conversation/get_signed_url?"+q.Encode(), &out); err != nil {
		return "", err
	}
	if out.SignedURL == "" {
		return "", llmerrors.NewServiceUnavailableError(providerName, "", "response carried no signed_url")
	}
	return out.SignedURL, nil
}

// Agent fetches the agent's details.
func (c *Client) Agent(ctx context.Context, agentID string) (*Agent, error) {
	var out Agent
	if err := c.get(ctx, "/v1/convai/agents/"+url.PathEscape(agentID), &out); err != nil {
		return nil, err
	}
	if out.AgentID == "" {
		out.AgentID = agentID
	}
	return &out, nil
}

// Voices lists the voices available to the account.
func (c *Client) Voices(ctx context.Context) ([]Voice, error) {
	var out struct {
		Voices []Voice `json:"voices"`
	}
	if err := c.get(ctx, "/v1/voices", &out); err != nil {
		return nil, err
	}
	if out.Voices == nil {
		out.Voices = []Voice{}
	}
	return out.Voices, nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("voice: build request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return llmerrors.NewServiceUnavailableError(providerName, "", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return llmerrors.FromStatus(resp.StatusCode, providerName, "", string(httputil.ReadErrorBody(resp)))
	}

	body, err := httputil.ReadLimitedBody(resp.Body, httputil.DefaultMaxResponseBodyBytes)
	if err != nil {
		return fmt.Errorf("voice: read response: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("voice: decode response: %w", err)
	}
	return nil
}

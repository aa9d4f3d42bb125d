// Package provider defines the interface for LLM provider adapters.
// Each provider implements this interface to handle request/response
// transformation between the unified chat types and its wire format.
package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/blueberrycongee/grandpal/pkg/types"
)

// Provider defines the interface that all HTTP-based model adapters must implement.
// It handles the complete lifecycle of a request: building, sending, and parsing.
type Provider interface {
	// Name returns the provider identifier (e.g., "gemini").
	Name() string

	// BuildRequest transforms a unified ChatRequest into a provider-specific HTTP request.
	BuildRequest(ctx context.Context, req *types.ChatRequest) (*http.Request, error)

	// ParseResponse transforms a provider-specific response into a unified ChatResponse.
	ParseResponse(resp *http.Response) (*types.ChatResponse, error)

	// MapError converts a provider-specific error response into a standardized LLMError.
	MapError(statusCode int, body []byte) error
}

// ProviderFactory creates provider instances from configuration.
type ProviderFactory func(cfg ProviderConfig) (Provider, error)

// ProviderConfig contains provider-specific configuration.
type ProviderConfig struct {
	Name    string
	Type    string
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Headers map[string]string
}

// Package anthropic adapts the Anthropic Messages API to llm.Model.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/blueberrycongee/grandpal/internal/llm"
	"github.com/blueberrycongee/grandpal/internal/metrics"
	"github.com/blueberrycongee/grandpal/internal/observability"
	llmerrors "github.com/blueberrycongee/grandpal/pkg/errors"
)

// ProviderName is the identifier for this provider.
const ProviderName = "anthropic"

// Options configures a Model.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature *float64
	Timeout     time.Duration
	MaxRetries  *int
	HTTPClient  *http.Client
	Tracer      trace.Tracer
	Logger      *slog.Logger
}

// Model implements llm.Model with the Anthropic Go SDK.
type Model struct {
	client      *anthropic.Client
	model       string
	maxTokens   int64
	temperature *float64
	timeout     time.Duration
	tracer      trace.Tracer
	logger      *slog.Logger
}

var _ llm.Model = (*Model)(nil)

// New creates an Anthropic-backed model.
func New(opts Options) (*Model, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("anthropic: model is required")
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	if opts.MaxRetries != nil {
		clientOpts = append(clientOpts, option.WithMaxRetries(*opts.MaxRetries))
	}
	c := anthropic.NewClient(clientOpts...)

	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(observability.TracerName)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Model{
		client:      &c,
		model:       opts.Model,
		maxTokens:   maxTokens,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
		tracer:      tracer,
		logger:      logger,
	}, nil
}

// Chat implements llm.Model.
func (m *Model) Chat(ctx context.Context, system string, history []llm.Turn, message string) (string, error) {
	msgs := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, t := range history {
		if t.Role == "assistant" {
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Content)))
			continue
		}
		msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Content)))
	}
	msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(message)))
	return m.send(ctx, "chat", system, msgs)
}

// Generate implements llm.Model.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	msgs := []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))}
	return m.send(ctx, "generate", "", msgs)
}

func (m *Model) send(ctx context.Context, operation, system string, msgs []anthropic.MessageParam) (text string, err error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	var temperature float64
	if m.temperature != nil {
		temperature = *m.temperature
	}
	ctx, span := observability.StartModelSpan(ctx, m.tracer, operation, observability.ModelCallAttributes{
		Provider:    ProviderName,
		Model:       m.model,
		MaxTokens:   int(m.maxTokens),
		Temperature: temperature,
	})
	start := time.Now()
	defer func() {
		metrics.RecordModelCall(ProviderName, m.model, err, time.Since(start))
		if err != nil {
			observability.RecordError(span, err)
		}
		span.End()
	}()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: m.maxTokens,
		Messages:  msgs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if m.temperature != nil {
		params.Temperature = anthropic.Float(*m.temperature)
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return "", m.mapError(ctx, err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	metrics.RecordTokens(ProviderName, m.model, int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens))
	observability.RecordModelUsage(span, int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens), string(resp.StopReason))
	m.logger.Debug("model call completed",
		"provider", ProviderName,
		"model", m.model,
		"operation", operation,
		"latency", time.Since(start),
	)
	return b.String(), nil
}

func (m *Model) mapError(ctx context.Context, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return llmerrors.FromStatus(apiErr.StatusCode, ProviderName, m.model, apiErr.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return llmerrors.NewTimeoutError(ProviderName, m.model, "model call timed out")
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return llmerrors.NewServiceUnavailableError(ProviderName, m.model, err.Error())
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/blueberrycongee/grandpal/internal/httputil"
	"github.com/blueberrycongee/grandpal/internal/metrics"
	"github.com/blueberrycongee/grandpal/internal/observability"
	"github.com/blueberrycongee/grandpal/internal/provider"
	llmerrors "github.com/blueberrycongee/grandpal/pkg/errors"
	"github.com/blueberrycongee/grandpal/pkg/types"
)

// HTTPOptions configures an HTTPModel.
type HTTPOptions struct {
	Model       string
	MaxTokens   int
	Temperature *float64
	Timeout     time.Duration
	HTTPClient  *http.Client
	Tracer      trace.Tracer
	Logger      *slog.Logger
}

// HTTPModel drives a provider adapter over plain HTTP.
type HTTPModel struct {
	provider    provider.Provider
	client      *http.Client
	model       string
	maxTokens   int
	temperature *float64
	timeout     time.Duration
	tracer      trace.Tracer
	logger      *slog.Logger
}

// NewHTTPModel creates a Model backed by the given provider adapter.
func NewHTTPModel(p provider.Provider, opts HTTPOptions) *HTTPModel {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(observability.TracerName)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPModel{
		provider:    p,
		client:      client,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
		tracer:      tracer,
		logger:      logger,
	}
}

// Chat implements Model.
func (m *HTTPModel) Chat(ctx context.Context, system string, history []Turn, message string) (string, error) {
	return m.complete(ctx, "chat", &types.ChatRequest{
		Model:       m.model,
		Messages:    Messages(system, history, message),
		MaxTokens:   m.maxTokens,
		Temperature: m.temperature,
	})
}

// Generate implements Model.
func (m *HTTPModel) Generate(ctx context.Context, prompt string) (string, error) {
	return m.complete(ctx, "generate", &types.ChatRequest{
		Model:       m.model,
		Messages:    Messages("", nil, prompt),
		MaxTokens:   m.maxTokens,
		Temperature: m.temperature,
	})
}

func (m *HTTPModel) complete(ctx context.Context, operation string, req *types.ChatRequest) (text string, err error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	var temperature float64
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	ctx, span := observability.StartModelSpan(ctx, m.tracer, operation, observability.ModelCallAttributes{
		Provider:    m.provider.Name(),
		Model:       m.model,
		MaxTokens:   m.maxTokens,
		Temperature: temperature,
	})
	start := time.Now()
	defer func() {
		metrics.RecordModelCall(m.provider.Name(), m.model, err, time.Since(start))
		if err != nil {
			observability.RecordError(span, err)
		}
		span.End()
	}()

	httpReq, err := m.provider.BuildRequest(ctx, req)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return "", m.transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", m.provider.MapError(resp.StatusCode, httputil.ReadErrorBody(resp))
	}

	chatResp, err := m.provider.ParseResponse(resp)
	if err != nil {
		return "", err
	}

	if chatResp.Usage != nil {
		metrics.RecordTokens(m.provider.Name(), m.model, chatResp.Usage.PromptTokens, chatResp.Usage.CompletionTokens)
		finish := ""
		if len(chatResp.Choices) > 0 {
			finish = chatResp.Choices[0].FinishReason
		}
		observability.RecordModelUsage(span, chatResp.Usage.PromptTokens, chatResp.Usage.CompletionTokens, finish)
	}

	m.logger.Debug("model call completed",
		"provider", m.provider.Name(),
		"model", m.model,
		"operation", operation,
		"latency", time.Since(start),
	)
	return chatResp.Text(), nil
}

func (m *HTTPModel) transportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return llmerrors.NewTimeoutError(m.provider.Name(), m.model, "model call timed out")
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return llmerrors.NewServiceUnavailableError(m.provider.Name(), m.model, err.Error())
}

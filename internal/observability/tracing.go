package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/blueberrycongee/grandpal/internal/config"
)

// TracerName names the tracer shared by every package of the service.
const TracerName = "grandpal"

// ServiceVersion is reported on the trace resource.
var ServiceVersion = "dev"

// Span attribute keys for companion sessions.
const (
	AttrSessionID = attribute.Key("grandpal.session_id")
	AttrUserID    = attribute.Key("grandpal.user_id")
	AttrTurnKind  = attribute.Key("grandpal.turn.kind")
)

// TracingConfig contains configuration for OpenTelemetry tracing.
type TracingConfig = config.TracingConfig

// DefaultTracingConfig returns the tracing section of the default config.
func DefaultTracingConfig() TracingConfig {
	return config.DefaultConfig().Tracing
}

// TracerProvider owns the SDK provider when tracing is enabled.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing installs an OTLP/gRPC exporter as the global tracer provider.
// When tracing is disabled the global no-op tracer is kept.
func InitTracing(ctx context.Context, cfg TracingConfig) (*TracerProvider, error) {
	if !cfg.Enabled {
		return &TracerProvider{tracer: otel.Tracer(TracerName)}, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(newSampler(cfg.SampleRate))),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{provider: provider, tracer: provider.Tracer(TracerName)}, nil
}

func newResource(serviceName string) (*resource.Resource, error) {
	if serviceName == "" {
		serviceName = TracerName
	}
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	)
}

func newSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Tracer returns the tracer instance.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// Shutdown flushes pending spans and stops the exporter.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}

// StartTurnSpan starts the span covering one conversation turn. kind is
// "message" or "greeting".
func StartTurnSpan(ctx context.Context, sessionID, userID, kind string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "brain.turn",
		trace.WithAttributes(
			AttrSessionID.String(sessionID),
			AttrUserID.String(userID),
			AttrTurnKind.String(kind),
		),
	)
}

// StartExtractionSpan starts the span covering memory extraction for a user.
func StartExtractionSpan(ctx context.Context, tracer trace.Tracer, userID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "memory.extract", trace.WithAttributes(AttrUserID.String(userID)))
}

// ModelCallAttributes describes a model call for its span.
type ModelCallAttributes struct {
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float64
}

// StartModelSpan starts a client span for a model call, using the gen_ai
// semantic convention attribute names.
func StartModelSpan(ctx context.Context, tracer trace.Tracer, operation string, attrs ModelCallAttributes) (context.Context, trace.Span) {
	kvs := []attribute.KeyValue{
		attribute.String("gen_ai.system", attrs.Provider),
		attribute.String("gen_ai.request.model", attrs.Model),
	}
	if attrs.MaxTokens > 0 {
		kvs = append(kvs, attribute.Int("gen_ai.request.max_tokens", attrs.MaxTokens))
	}
	if attrs.Temperature > 0 {
		kvs = append(kvs, attribute.Float64("gen_ai.request.temperature", attrs.Temperature))
	}
	return tracer.Start(ctx, "llm."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(kvs...),
	)
}

// RecordModelUsage records token usage and the finish reason on a model span.
func RecordModelUsage(span trace.Span, inputTokens, outputTokens int, finishReason string) {
	span.SetAttributes(
		attribute.Int("gen_ai.usage.input_tokens", inputTokens),
		attribute.Int("gen_ai.usage.output_tokens", outputTokens),
		attribute.String("gen_ai.response.finish_reason", finishReason),
	)
}

// RecordError records err on span and marks it failed.
func RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

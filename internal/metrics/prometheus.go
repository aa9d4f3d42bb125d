// Package metrics provides Prometheus metrics collection for the companion service.
// It tracks model calls, memory persistence, extraction output, sessions and HTTP traffic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "grandpal"
)

// LatencyBuckets defines histogram buckets for model latency (in seconds).
var LatencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 3.0, 5.0,
	7.5, 10.0, 15.0, 20.0, 30.0, 60.0, 120.0,
}

// =============================================================================
// Model Metrics
// =============================================================================

var (
	// ModelRequests counts model calls by provider, model and outcome.
	ModelRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_requests_total",
			Help:      "Total number of language model calls",
		},
		[]string{"provider", "model", "status"},
	)

	// ModelLatency tracks model call latency.
	ModelLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_latency_seconds",
			Help:      "Language model call latency in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"provider", "model"},
	)

	// TokenUsage tracks token consumption by type.
	TokenUsage = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_usage_total",
			Help:      "Total token usage",
		},
		[]string{"provider", "model", "type"}, // type: input, output
	)
)

// =============================================================================
// Memory Metrics
// =============================================================================

var (
	// MemoryWrites counts full-record persists by backend and result.
	MemoryWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_writes_total",
			Help:      "Total number of user memory persists",
		},
		[]string{"backend", "result"},
	)

	// MemoryCorruptRecords counts stored records that could not be decoded.
	MemoryCorruptRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_corrupt_records_total",
			Help:      "Stored user memory records that failed to decode and were replaced by defaults",
		},
		[]string{"backend"},
	)

	// ExtractionFacts counts facts folded into memory by kind.
	ExtractionFacts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_facts_total",
			Help:      "Facts extracted from transcripts and folded into memory",
		},
		[]string{"kind"},
	)

	// ExtractionFailures counts extractions that produced no result.
	ExtractionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_failures_total",
			Help:      "Extractions that yielded an empty result",
		},
		[]string{"reason"}, // model_error, no_json, invalid_json
	)
)

// =============================================================================
// Session Metrics
// =============================================================================

var (
	// ActiveSessions tracks live conversation sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of live conversation sessions",
		},
	)

	// SessionsEnded counts finished sessions by reason.
	SessionsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Conversation sessions ended",
		},
		[]string{"reason"}, // explicit, idle, shutdown
	)

	// EmotionCacheLookups counts emotion cache hits and misses.
	EmotionCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emotion_cache_lookups_total",
			Help:      "Emotion analysis cache lookups",
		},
		[]string{"result"}, // hit, miss
	)
)

// =============================================================================
// HTTP Metrics
// =============================================================================

var (
	// HTTPRequests counts API requests by route and status.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPLatency tracks API request latency by route.
	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// RateLimited counts requests rejected by the per-client limiter.
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
	)
)

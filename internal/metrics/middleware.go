package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RecordModelCall records metrics for a completed model call.
func RecordModelCall(provider, model string, err error, latency time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	model = sanitizeModelLabel(model)
	ModelRequests.WithLabelValues(provider, model, status).Inc()
	ModelLatency.WithLabelValues(provider, model).Observe(latency.Seconds())
}

// RecordTokens records token usage metrics.
func RecordTokens(provider, model string, inputTokens, outputTokens int) {
	model = sanitizeModelLabel(model)
	if inputTokens > 0 {
		TokenUsage.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		TokenUsage.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}

// RecordMemoryWrite records the outcome of a full-record persist.
func RecordMemoryWrite(backend string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	MemoryWrites.WithLabelValues(backend, result).Inc()
}

// RecordCorruptRecord counts a stored record that failed to decode.
func RecordCorruptRecord(backend string) {
	MemoryCorruptRecords.WithLabelValues(backend).Inc()
}

// RecordExtractionFacts adds n folded facts of the given kind.
func RecordExtractionFacts(kind string, n int) {
	if n > 0 {
		ExtractionFacts.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordExtractionFailure counts an extraction that produced no result.
func RecordExtractionFailure(reason string) {
	ExtractionFailures.WithLabelValues(reason).Inc()
}

// RecordEmotionCache counts an emotion cache lookup.
func RecordEmotionCache(hit bool) {
	if hit {
		EmotionCacheLookups.WithLabelValues("hit").Inc()
		return
	}
	EmotionCacheLookups.WithLabelValues("miss").Inc()
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher.
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Middleware returns an HTTP middleware that records request metrics.
// It must wrap the ServeMux directly so the matched route pattern is
// visible on the request after dispatch.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(recorder, r)

		route := routeLabel(r.Pattern)
		HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(recorder.statusCode)).Inc()
		HTTPLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// routeLabel strips the method prefix from a ServeMux pattern.
func routeLabel(pattern string) string {
	if pattern == "" {
		return "unmatched"
	}
	if _, path, ok := strings.Cut(pattern, " "); ok {
		return path
	}
	return pattern
}

const maxModelLabelLen = 64

func sanitizeModelLabel(model string) string {
	modelName := strings.TrimSpace(strings.TrimPrefix(model, "models/"))
	if modelName == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(min(len(modelName), maxModelLabelLen))
	for _, r := range modelName {
		if (r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') ||
			r == '-' || r == '_' || r == '.' || r == ':' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
		if b.Len() >= maxModelLabelLen {
			break
		}
	}

	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "unknown"
	}
	return out
}

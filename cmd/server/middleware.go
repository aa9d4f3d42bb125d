package main

import (
	"context"
	"net/http"

	"github.com/blueberrycongee/grandpal/internal/config"
	"github.com/blueberrycongee/grandpal/internal/metrics"
	"github.com/blueberrycongee/grandpal/internal/observability"
)

// buildMiddlewareStack wraps the mux with, from the outside in: CORS, request
// IDs, the optional rate limiter and request metrics. Metrics sit directly on
// the mux so the matched pattern is visible after dispatch.
func buildMiddlewareStack(ctx context.Context, cfg *config.Config) (func(http.Handler) http.Handler, error) {
	if cfg == nil {
		return nil, errNilConfig
	}

	var limiter *clientLimiter
	if cfg.RateLimit.Enabled {
		limiter = newClientLimiter(cfg.RateLimit)
		go limiter.run(ctx)
	}

	return func(next http.Handler) http.Handler {
		if next == nil {
			return nil
		}
		handler := metrics.Middleware(next)
		if limiter != nil {
			handler = limiter.middleware(handler)
		}
		handler = observability.RequestIDMiddleware(handler)
		handler = corsMiddleware(cfg.Server.CORS, handler)
		return handler
	}, nil
}

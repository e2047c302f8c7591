// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/cellarsync/internal/logging"
	"github.com/tomtom215/cellarsync/internal/metrics"
)

// CorrelationHeader carries the correlation ID in both directions.
const CorrelationHeader = "X-Correlation-ID"

// MiddlewareConfig configures CORS and rate limiting.
type MiddlewareConfig struct {
	CORSAllowedOrigins []string
	CORSMaxAge         int // seconds

	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// DefaultMiddlewareConfig allows no cross-origin callers and 100 req/min.
func DefaultMiddlewareConfig() MiddlewareConfig {
	return MiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSMaxAge:         86400,
		RateLimitRequests:  100,
		RateLimitWindow:    time.Minute,
	}
}

// CORS builds the go-chi/cors handler.
func CORS(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", CorrelationHeader},
		ExposedHeaders: []string{CorrelationHeader},
		MaxAge:         cfg.CORSMaxAge,
	})
}

// RateLimit limits requests per client IP. A non-positive request count
// disables limiting.
func RateLimit(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	if cfg.RateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(cfg.RateLimitRequests, cfg.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			NewResponseWriter(w, r).Error(http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Rate limit exceeded")
		}),
	)
}

// CorrelationID adopts the caller's correlation ID or generates one, puts
// it in the request context and echoes it in the response.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationHeader)
		if id == "" || len(id) > 64 {
			id = logging.GenerateCorrelationID()
		}
		w.Header().Set(CorrelationHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithCorrelationID(r.Context(), id)))
	})
}

// SecurityHeaders sets the baseline response headers for JSON endpoints.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Metrics records request count and latency keyed by the chi route pattern,
// so path parameters do not explode label cardinality.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordAPIRequest(r.Method, route, status, time.Since(start))
	})
}

// RequestLogger logs one line per request through the context logger.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Ctx(r.Context()).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

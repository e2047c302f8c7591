// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

// Package metrics defines the Prometheus collectors exported on /metrics in
// serve mode. The CLI registers the same collectors; they are simply never
// scraped there.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream inventory API

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cellarsync_upstream_requests_total",
			Help: "Upstream API attempts by operation and status class (2xx, 4xx, 5xx, transport)",
		},
		[]string{"operation", "status_class"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cellarsync_upstream_request_duration_seconds",
			Help:    "Duration of single upstream API attempts",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	UpstreamRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cellarsync_upstream_retries_total",
			Help: "Retries scheduled after a retryable failure",
		},
		[]string{"operation", "status_class"},
	)

	// Circuit breaker

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Reconciliation

	SyncOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cellarsync_sync_outcomes_total",
			Help: "Per-item reconciliation outcomes",
		},
		[]string{"mode", "outcome"},
	)

	SyncPassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cellarsync_sync_pass_duration_seconds",
			Help:    "Duration of complete reconciliation passes",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"mode"},
	)

	SyncLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cellarsync_sync_last_success_timestamp",
			Help: "Unix time of the last pass that finished without a failed item",
		},
		[]string{"account"},
	)

	LowStockItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cellarsync_low_stock_items",
			Help: "Remote items below the low-stock threshold at the last account check",
		},
		[]string{"account"},
	)

	AccountCheckFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cellarsync_account_check_failures_total",
			Help: "Accounts whose inventory could not be fetched during check-all",
		},
	)

	// Serve mode HTTP surface

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cellarsync_api_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cellarsync_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cellarsync_websocket_connections",
			Help: "Open activity stream connections",
		},
	)
)

// StatusClass buckets an HTTP status. Zero means the request never got a
// response.
func StatusClass(status int) string {
	switch {
	case status == 0:
		return "transport"
	case status < 200:
		return "1xx"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// RecordUpstreamRequest records one upstream attempt.
func RecordUpstreamRequest(operation string, status int, duration time.Duration) {
	UpstreamRequests.WithLabelValues(operation, StatusClass(status)).Inc()
	UpstreamRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRetry records a scheduled retry.
func RecordRetry(operation string, status int) {
	UpstreamRetries.WithLabelValues(operation, StatusClass(status)).Inc()
}

// RecordSyncOutcome counts one per-item outcome.
func RecordSyncOutcome(mode, outcome string) {
	SyncOutcomes.WithLabelValues(mode, outcome).Inc()
}

// RecordSyncPass records a finished pass. clean is false when any item failed.
func RecordSyncPass(mode, account string, duration time.Duration, clean bool) {
	SyncPassDuration.WithLabelValues(mode).Observe(duration.Seconds())
	if clean {
		SyncLastSuccess.WithLabelValues(account).Set(float64(time.Now().Unix()))
	}
}

// RecordAPIRequest records a served HTTP request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

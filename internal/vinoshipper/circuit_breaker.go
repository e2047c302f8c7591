// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package vinoshipper

import (
	"errors"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cellarsync/internal/logging"
	"github.com/tomtom215/cellarsync/internal/metrics"
)

// BreakerSettings configures a CircuitBreaker.
type BreakerSettings struct {
	MaxRequests  uint32        // requests allowed while half-open
	Interval     time.Duration // closed-state count reset period
	Timeout      time.Duration // open-state duration before half-open
	MinRequests  uint32        // requests needed before the ratio is evaluated
	FailureRatio float64       // failure ratio that opens the circuit
}

// DefaultBreakerSettings opens after 60% failures over at least 10 requests
// and probes again after two minutes.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      2 * time.Minute,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// CircuitBreaker stops a client from hammering an account whose upstream is
// persistently failing. It wraps a whole retried call, so one logical
// operation counts once no matter how many attempts it made.
type CircuitBreaker struct {
	cb   *gobreaker.CircuitBreaker[[]byte]
	name string
}

// NewCircuitBreaker creates a breaker reporting under name.
func NewCircuitBreaker(name string, s BreakerSettings) *CircuitBreaker {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= s.FailureRatio {
				logging.Warn().Str("breaker", name).Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).Msg("Opening circuit")
				return true
			}
			return false
		},
		IsSuccessful: func(err error) bool {
			return !countsAsUpstreamFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", stateToString(from)).
				Str("to", stateToString(to)).Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &CircuitBreaker{cb: cb, name: name}
}

// Execute runs fn through the breaker. A rejected call returns an APIError
// of kind KindCircuitOpen.
func (b *CircuitBreaker) Execute(fn func() ([]byte, error)) ([]byte, error) {
	body, err := b.cb.Execute(fn)
	if err == nil {
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(0)
		return body, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		return nil, &APIError{
			Message: "circuit open for " + b.name + ": upstream failing, try again later",
			Kind:    KindCircuitOpen,
			cause:   err,
		}
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(float64(b.cb.Counts().ConsecutiveFailures))
	return nil, err
}

// countsAsUpstreamFailure classifies err by upstream health alone, whatever
// the retry policy made of it. Transport errors, 5xx, 408 and 429 count;
// rejections the remote made on purpose (400, 401, 404) and validation
// errors do not.
func countsAsUpstreamFailure(err error) bool {
	if err == nil {
		return false
	}
	apiErr, ok := AsAPIError(err)
	if !ok {
		return true
	}
	switch apiErr.Kind {
	case KindValidation, KindCircuitOpen:
		return false
	case KindTransport:
		return true
	}
	code := apiErr.StatusCode
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

// State returns closed, half-open or open.
func (b *CircuitBreaker) State() string {
	return stateToString(b.cb.State())
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package vinoshipper

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/tomtom215/cellarsync/internal/validation"
)

// RetryPolicy controls how failed upstream requests are retried.
// A policy is a value: copy it freely, never mutate one that a Client holds.
type RetryPolicy struct {
	MaxRetries           int           `json:"max_retries" validate:"gte=0"`
	InitialDelay         time.Duration `json:"initial_delay" validate:"gte=0,ltefield=MaxDelay"`
	MaxDelay             time.Duration `json:"max_delay" validate:"gte=0"`
	BackoffMultiplier    float64       `json:"backoff_multiplier" validate:"gt=1"`
	RetryableStatusCodes []int         `json:"retryable_status_codes" validate:"dive,gte=100,lte=599"`
}

// DefaultRetryPolicy retries rate limiting and server errors three times,
// starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:           3,
		InitialDelay:         time.Second,
		MaxDelay:             10 * time.Second,
		BackoffMultiplier:    2,
		RetryableStatusCodes: []int{429, 500, 502, 503, 504},
	}
}

// AggressiveRetryPolicy retries more often with shorter waits and also
// treats request timeouts (408) as transient.
func AggressiveRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:           5,
		InitialDelay:         500 * time.Millisecond,
		MaxDelay:             8 * time.Second,
		BackoffMultiplier:    1.5,
		RetryableStatusCodes: []int{408, 429, 500, 502, 503, 504},
	}
}

// ConservativeRetryPolicy retries server errors only, twice, with long waits.
func ConservativeRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:           2,
		InitialDelay:         2 * time.Second,
		MaxDelay:             15 * time.Second,
		BackoffMultiplier:    3,
		RetryableStatusCodes: []int{500, 502, 503, 504},
	}
}

// NoRetryPolicy makes exactly one attempt.
func NoRetryPolicy() RetryPolicy {
	return RetryPolicy{BackoffMultiplier: 2}
}

// RetryPolicyByName resolves a preset: default, aggressive, conservative or
// none. Names are case-insensitive; "" means default.
func RetryPolicyByName(name string) (RetryPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return DefaultRetryPolicy(), nil
	case "aggressive":
		return AggressiveRetryPolicy(), nil
	case "conservative":
		return ConservativeRetryPolicy(), nil
	case "none", "no_retry":
		return NoRetryPolicy(), nil
	default:
		return RetryPolicy{}, fmt.Errorf("unknown retry preset %q", name)
	}
}

// Validate checks the policy invariants.
func (p RetryPolicy) Validate() error {
	return validation.ValidateStruct(p)
}

// Attempts is the total number of calls a retried operation may make.
func (p RetryPolicy) Attempts() int {
	return p.MaxRetries + 1
}

// RetriesStatus reports whether an HTTP status is in the retryable set.
func (p RetryPolicy) RetriesStatus(status int) bool {
	return slices.Contains(p.RetryableStatusCodes, status)
}

// clone returns a copy that shares no backing array with p.
func (p RetryPolicy) clone() RetryPolicy {
	p.RetryableStatusCodes = slices.Clone(p.RetryableStatusCodes)
	return p
}

// BaseDelay is the capped exponential delay before jitter:
// min(InitialDelay * BackoffMultiplier^attempt, MaxDelay).
func BaseDelay(attempt int, p RetryPolicy) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	exp := float64(p.InitialDelay) * math.Pow(p.BackoffMultiplier, float64(attempt))
	if math.IsInf(exp, 0) || math.IsNaN(exp) || exp > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(exp)
}

// ComputeDelay returns the wait before retry number attempt+1. The result
// lies in [BaseDelay, 1.25*BaseDelay]. rnd must return values in [0, 1);
// tests pass a fixed function, production passes rand.Float64.
func ComputeDelay(attempt int, p RetryPolicy, rnd func() float64) time.Duration {
	base := BaseDelay(attempt, p)
	r := rnd()
	if r < 0 {
		r = 0
	} else if r >= 1 {
		r = math.Nextafter(1, 0)
	}
	jitter := time.Duration(float64(base) * 0.25 * r)
	return base + jitter
}

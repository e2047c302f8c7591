// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package vinoshipper

import (
	"context"
	"math/rand/v2"
	"time"
)

// Retrier decorates fallible operations with retry and backoff.
type Retrier struct {
	Policy RetryPolicy

	// Jitter returns values in [0, 1). Defaults to math/rand/v2.Float64.
	Jitter func() float64

	// Sleep waits for d or until ctx is done. Defaults to a timer select.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnRetry is called before each wait with the zero-based number of the
	// attempt that just failed.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// policy's attempts are used up. The error from the last attempt is
// returned unchanged.
func Do[T any](ctx context.Context, r Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	jitter := r.Jitter
	if jitter == nil {
		jitter = rand.Float64
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= r.Policy.MaxRetries || !r.Policy.IsRetryable(err) {
			return zero, err
		}

		delay := ComputeDelay(attempt, r.Policy, jitter)
		if apiErr, ok := AsAPIError(err); ok && apiErr.RetryAfter > delay {
			delay = max(delay, min(apiErr.RetryAfter, r.Policy.MaxDelay))
		}
		if r.OnRetry != nil {
			r.OnRetry(attempt, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

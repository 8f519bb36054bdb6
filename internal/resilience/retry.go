// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package resilience

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Retry defaults.
const (
	DefaultMaxRetries    = 3
	DefaultInitialDelay  = time.Second
	DefaultBackoffFactor = 2.0
	DefaultMaxDelay      = 10 * time.Second
)

// DefaultRetryableStatuses lists the HTTP statuses that are worth retrying.
var DefaultRetryableStatuses = []int{408, 429, 500, 502, 503, 504}

// Options configures Do.
type Options struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	InitialDelay  time.Duration
	BackoffFactor float64

	// MaxDelay caps a single backoff sleep. Zero means uncapped.
	MaxDelay time.Duration

	// RetryableStatuses replaces the default list when non-nil.
	RetryableStatuses []int

	// Limiter, when set, paces every attempt including the first.
	Limiter *rate.Limiter

	// OnRetry is called before each backoff sleep. attempt is 1-based.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultOptions returns 3 retries with 1s initial delay doubling up to 10s.
func DefaultOptions() Options {
	return Options{
		MaxRetries:        DefaultMaxRetries,
		InitialDelay:      DefaultInitialDelay,
		BackoffFactor:     DefaultBackoffFactor,
		MaxDelay:          DefaultMaxDelay,
		RetryableStatuses: slices.Clone(DefaultRetryableStatuses),
	}
}

func (o Options) normalized() Options {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.InitialDelay < 0 {
		o.InitialDelay = 0
	}
	if o.BackoffFactor < 1 {
		o.BackoffFactor = 1
	}
	if o.RetryableStatuses == nil {
		o.RetryableStatuses = DefaultRetryableStatuses
	}
	return o
}

// Backoff returns the sleep after failed attempt k (0-based):
// min(InitialDelay * BackoffFactor^k, MaxDelay).
func (o Options) Backoff(k int) time.Duration {
	o = o.normalized()
	d := float64(o.InitialDelay) * math.Pow(o.BackoffFactor, float64(k))
	if o.MaxDelay > 0 && (d > float64(o.MaxDelay) || math.IsInf(d, 0)) {
		return o.MaxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Retryable reports whether err should be retried under o.
func (o Options) Retryable(err error) bool {
	if err == nil {
		return false
	}
	if status := StatusOf(err); status != 0 {
		return slices.Contains(o.normalized().RetryableStatuses, status)
	}
	return IsTimeout(err)
}

// =============================================================================
// RETRY LOOP
// =============================================================================

// Do runs fn until it succeeds, fails with a non-retryable error, or
// MaxRetries retries have been spent. The error of the last attempt is
// returned unchanged so callers can classify it. A cancelled ctx stops the
// loop between attempts and returns ctx.Err().
func Do[T any](ctx context.Context, opts Options, fn func(context.Context) (T, error)) (T, error) {
	opts = opts.normalized()
	var zero T

	for attempt := 0; ; attempt++ {
		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(ctx); err != nil {
				return zero, fmt.Errorf("rate limiter: %w", err)
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		if ctx.Err() != nil {
			return zero, err
		}
		if attempt >= opts.MaxRetries || !opts.Retryable(err) {
			return zero, err
		}

		delay := opts.Backoff(attempt)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

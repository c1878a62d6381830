package nus

import (
	"context"

	"golang.org/x/time/rate"
)

// rateLimiter wraps golang.org/x/time/rate.Limiter so it can be swapped
// for an unlimited no-op when requestsPerSecond <= 0.
type rateLimiter struct {
	limiter *rate.Limiter
}

func newRateLimiter(requestsPerSecond float64) *rateLimiter {
	if requestsPerSecond <= 0 {
		return &rateLimiter{}
	}
	// burst of 1: every request is individually spaced, never bursts
	// ahead, matching the token-bucket description in spec.md §4.5.
	return &rateLimiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1)}
}

// Wait blocks the caller until a token is available. It never drops a
// request; cancellation propagates as an ordinary error.
func (r *rateLimiter) Wait(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}

// Package limiter throttles outbound provider requests with a token bucket
// shared by all workers: capacity and refill rate both equal the configured
// requests-per-second, so the sustained rate is bounded independent of the
// concurrency level.
package limiter

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/time/rate"
)

// Limiter grants one permit per outbound provider request.
type Limiter struct {
	bucket *rate.Limiter
}

// New creates a Limiter allowing requestsPerSecond sustained permits with a
// burst capacity of the same size. Rates below one permit per second keep a
// burst of one.
func New(requestsPerSecond float64) *Limiter {
	burst := int(math.Ceil(requestsPerSecond))
	if burst < 1 {
		burst = 1
	}
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Acquire blocks until one permit is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.bucket.Wait(ctx); err != nil {
		return fmt.Errorf("acquire rate permit: %w", err)
	}
	return nil
}

// Allow reports whether a permit is immediately available, consuming it if
// so. Used by callers that prefer to skip work instead of waiting.
func (l *Limiter) Allow() bool {
	return l.bucket.Allow()
}

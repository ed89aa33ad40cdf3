// Package ratelimit wraps golang.org/x/time/rate with an optional limiter
// that can be disabled entirely by passing a non-positive rate.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limiter paces outgoing requests using a token bucket. A nil inner limiter
// means pacing is disabled and all operations pass through immediately.
type Limiter struct {
	limiter *rate.Limiter
	rps     float64
}

// New creates a limiter allowing rps requests per second with a burst of 1.
// A rate of zero or less returns a disabled limiter.
func New(rps float64) *Limiter {
	if rps <= 0 {
		return &Limiter{}
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		rps:     rps,
	}
}

// Enabled reports whether pacing is active.
func (l *Limiter) Enabled() bool {
	return l.limiter != nil
}

// RPS returns the configured requests-per-second rate, 0 when disabled.
func (l *Limiter) RPS() float64 {
	return l.rps
}

// Wait blocks until the next request is permitted or the context is done.
// Returns immediately when the limiter is disabled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.limiter == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed right now without waiting.
// Always true when the limiter is disabled.
func (l *Limiter) Allow() bool {
	if l.limiter == nil {
		return true
	}
	return l.limiter.Allow()
}

// Reserve reserves a token and returns the reservation so the caller can
// inspect the required delay. Returns nil when the limiter is disabled.
func (l *Limiter) Reserve() *rate.Reservation {
	if l.limiter == nil {
		return nil
	}
	return l.limiter.Reserve()
}

// String describes the limiter configuration for logs.
func (l *Limiter) String() string {
	if l.limiter == nil {
		return "rate limiting disabled"
	}
	if l.rps < 1 {
		return fmt.Sprintf("1 request per %.1f seconds", 1/l.rps)
	}
	return fmt.Sprintf("%.2f rps", l.rps)
}

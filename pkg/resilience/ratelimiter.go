package resilience

import (
	"context"

	"golang.org/x/time/rate"
)

// LimiterOpts configures the rate limiter.
type LimiterOpts struct {
	// Rate is the number of calls allowed per second. Zero or less means unlimited.
	Rate float64
	// Burst is the maximum number of calls admitted at once.
	Burst int
}

// Limiter is a token bucket over golang.org/x/time/rate.
type Limiter struct {
	lim *rate.Limiter
}

// NewLimiter creates a rate limiter.
func NewLimiter(opts LimiterOpts) *Limiter {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	limit := rate.Limit(opts.Rate)
	if opts.Rate <= 0 {
		limit = rate.Inf
	}
	return &Limiter{lim: rate.NewLimiter(limit, opts.Burst)}
}

// Wait blocks until a call is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.lim.Wait(ctx)
}

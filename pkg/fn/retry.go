package fn

import (
	"context"
	"errors"
	"math"
	"time"
)

// BackoffFunc returns how long to wait after the given zero-based failed attempt.
type BackoffFunc func(attempt int) time.Duration

// RetryOpts configures retry behavior.
type RetryOpts struct {
	MaxAttempts int
	Backoff     BackoffFunc
	// Retryable reports whether err is worth another attempt. Nil retries
	// everything except context cancellation.
	Retryable func(error) bool
	// OnRetry, when set, is called before each backoff sleep.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Exponential returns base * 2^attempt, capped at max when max > 0.
func Exponential(base, max time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
		if max > 0 && d > max {
			return max
		}
		return d
	}
}

// Constant waits d between every attempt.
func Constant(d time.Duration) BackoffFunc {
	return func(int) time.Duration { return d }
}

// IsContextErr reports whether err came from a cancelled or expired context.
func IsContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (o RetryOpts) retryable(err error) bool {
	if IsContextErr(err) {
		return false
	}
	if o.Retryable == nil {
		return true
	}
	return o.Retryable(err)
}

// Retry calls f until it succeeds, returns a non-retryable error, or
// MaxAttempts is reached. The last result is returned.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) Result[T]) Result[T] {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	var result Result[T]

	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		result = f(ctx)
		if result.IsOk() {
			return result
		}
		_, err := result.Unwrap()
		if !opts.retryable(err) || attempt == opts.MaxAttempts-1 {
			break
		}

		var wait time.Duration
		if opts.Backoff != nil {
			wait = opts.Backoff(attempt)
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, err, wait)
		}
		if err := Sleep(ctx, wait); err != nil {
			return Err[T](err)
		}
	}
	return result
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

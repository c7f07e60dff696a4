// Package retry repeats idempotent API calls with exponential backoff.
//
// Only errors marked with Retryable are attempted again. Everything else,
// including every failure of a mutating request, surfaces on the first try.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts int // 0 retries until ctx is done
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
	Jitter      float64 // fraction of the wait, 0-1

	// OnRetry is called before sleeping ahead of another attempt.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultConfig is used for trash, share and quota reads and downloads.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		InitialWait: 200 * time.Millisecond,
		MaxWait:     5 * time.Second,
		Multiplier:  2,
		Jitter:      0.1,
	}
}

// Once makes a single attempt.
func Once() Config {
	return Config{MaxAttempts: 1}
}

type transient struct{ err error }

func (t transient) Error() string { return t.err.Error() }
func (t transient) Unwrap() error { return t.err }

// Retryable marks err as worth another attempt. nil stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return transient{err}
}

// IsRetryable reports whether err carries the Retryable mark.
func IsRetryable(err error) bool {
	var t transient
	return errors.As(err, &t)
}

// Cause strips the Retryable mark from the top of err.
func Cause(err error) error {
	if t, ok := err.(transient); ok {
		return t.err
	}
	return err
}

// RetryableStatus reports whether a response status may succeed on a
// later attempt: timeouts, throttling and server errors other than 501.
func RetryableStatus(status int) bool {
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return true
	}
	return status >= 500 && status != http.StatusNotImplemented
}

// Backoff returns the wait after the given failed attempt (1-based).
func (c Config) Backoff(attempt int) time.Duration {
	factor := c.Multiplier
	if factor <= 0 {
		factor = 1
	}
	wait := float64(c.InitialWait) * math.Pow(factor, float64(attempt-1))
	if limit := float64(c.MaxWait); limit > 0 && wait > limit {
		wait = limit
	}
	if c.Jitter > 0 {
		wait *= 1 + c.Jitter*(2*rand.Float64()-1)
	}
	return time.Duration(wait)
}

func (c Config) exhausted(attempt int) bool {
	return c.MaxAttempts > 0 && attempt >= c.MaxAttempts
}

// Do runs fn until it succeeds, fails permanently or attempts run out.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult is Do for functions that produce a value. The returned
// error never carries the Retryable mark.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		v, err := fn()
		switch {
		case err == nil:
			return v, nil
		case !IsRetryable(err):
			return zero, err
		case ctx.Err() != nil:
			return zero, ctx.Err()
		case cfg.exhausted(attempt):
			return zero, Cause(err)
		}

		wait := cfg.Backoff(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, wait, Cause(err))
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

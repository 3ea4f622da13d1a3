package ocr

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"
)

// RetryPolicy governs retries around a flaky call: bounded attempts,
// multiplicative backoff with jitter, and a predicate selecting which
// errors are worth retrying.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries. Default: 3.
	MaxAttempts int
	// BaseDelay is the wait after the first failure, doubled per attempt.
	// Default: 500ms.
	BaseDelay time.Duration
	// MaxDelay caps the backoff. Default: 30s.
	MaxDelay time.Duration
	// Jitter adds up to this fraction of the delay randomly. Default: 0.2.
	Jitter float64
	// Retryable decides whether an error is transient. Nil retries all.
	Retryable func(error) bool
	// Logger logs retry attempts. Nil for silent retries.
	Logger *slog.Logger
}

func (p *RetryPolicy) defaults() {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.Jitter <= 0 {
		p.Jitter = 0.2
	}
}

// Do runs fn under the policy. It respects context cancellation between
// attempts and returns the last error once attempts are exhausted or a
// non-retryable error occurs.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	p.defaults()

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return lastErr
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return lastErr
		}
		if attempt == p.MaxAttempts-1 {
			break
		}

		wait := p.BaseDelay * (1 << uint(attempt))
		if wait > p.MaxDelay {
			wait = p.MaxDelay
		}
		wait += time.Duration(rand.Float64() * p.Jitter * float64(wait))

		if p.Logger != nil {
			p.Logger.WarnContext(ctx, "ocr: retrying call",
				"attempt", attempt+1,
				"max_attempts", p.MaxAttempts,
				"backoff_ms", wait.Milliseconds(),
				"error", err)
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(wait):
		}
	}
	return lastErr
}

// errTransient marks wrapped errors as retryable.
type errTransient struct{ err error }

func (e *errTransient) Error() string { return e.err.Error() }
func (e *errTransient) Unwrap() error { return e.err }

// Transient wraps err so IsTransient reports true.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &errTransient{err: err}
}

// IsTransient reports whether err was marked retryable via Transient, or is
// a context deadline (per-call timeout, worth another try with fresh budget).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var t *errTransient
	if errors.As(err, &t) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

package retry

import (
	"context"
	"errors"
	"time"
)

// Policy describes how an external call is retried: how many attempts, how long
// each attempt may take, and how long to wait between attempts.
type Policy struct {
	MaxAttempts int
	Timeout     time.Duration
	Backoff     func(attempt int) time.Duration
}

// ExponentialBackoff returns 2^attempt seconds for attempt 0, 1, 2, ...
func ExponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return time.Duration(1<<uint(attempt)) * time.Second
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err so Do stops retrying immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// OnRetry is invoked before each re-attempt with the 1-based attempt number
// that failed, the error, and the delay before the next attempt.
type OnRetry func(attempt int, err error, delay time.Duration)

// Do runs fn under the policy. Each attempt gets its own deadline when
// Timeout is set. The last error is returned after attempts are exhausted.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error, onRetry OnRetry) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = ExponentialBackoff
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if p.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}
		delay := backoff(attempt + 1)
		if onRetry != nil {
			onRetry(attempt+1, err, delay)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

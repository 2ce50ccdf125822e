package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	defaultAttempts = 3
	defaultDelay    = 5 * time.Second
)

// RetryPolicy is the bounded retry policy applied to every external call.
type RetryPolicy struct {
	Attempts int           `mapstructure:"attempts"`
	Delay    time.Duration `mapstructure:"delay"`
}

// DefaultRetryPolicy returns 3 attempts with a fixed 5s delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: defaultAttempts, Delay: defaultDelay}
}

// ErrNotRetryable marks an error that must not be retried.
var ErrNotRetryable = errors.New("not retryable")

// Permanent wraps err so Retry gives up immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrNotRetryable, err)
}

// Retry runs fn until it succeeds, the attempts are exhausted, fn returns a
// Permanent error or ctx is done. The returned error is the last one seen.
// onRetry, when set, is called before every wait.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error, onRetry func(attempt int, err error)) error {
	attempts := policy.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}

		if errors.Is(err, ErrNotRetryable) || attempt == attempts {
			return err
		}

		if onRetry != nil {
			onRetry(attempt, err)
		}

		if waitErr := WaitFor(ctx, policy.Delay); waitErr != nil {
			return err
		}
	}

	return err
}

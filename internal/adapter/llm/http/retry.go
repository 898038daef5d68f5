package http

import (
	"context"
	"errors"
	"time"
)

// RetryConfig bounds the retry loop around one provider call.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig returns the standard dispatch retry schedule:
// exponential from a 1s base, capped at 10s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// Backoff returns the wait before the retry that follows the given failed
// attempt (1-based): min(base * 2^(attempt-1), cap).
func Backoff(attempt int, config RetryConfig) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := config.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= config.MaxDelay {
			return config.MaxDelay
		}
	}
	if delay > config.MaxDelay {
		return config.MaxDelay
	}
	return delay
}

// ShouldRetry reports whether another attempt may succeed. Only typed
// dispatch errors carry retryability; anything else fails immediately.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var dispatchErr *Error
	if errors.As(err, &dispatchErr) {
		return dispatchErr.IsRetryable()
	}
	return false
}

// Operation is one provider call attempt.
type Operation func(ctx context.Context) error

// RetryWithBackoff runs the operation up to MaxAttempts times, waiting the
// backoff delay between attempts. It returns nil on the first success, the
// error unchanged when it is not retryable, and the last error once the
// attempt budget is spent. Context cancellation cuts the loop short.
func RetryWithBackoff(ctx context.Context, operation Operation, config RetryConfig) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation(ctx)
		if lastErr == nil {
			return nil
		}
		if !ShouldRetry(lastErr) {
			return lastErr
		}
		if attempt == config.MaxAttempts {
			break
		}

		select {
		case <-time.After(Backoff(attempt, config)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

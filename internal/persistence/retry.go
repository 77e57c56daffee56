package persistence

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig configures retry behaviour for transactional operations.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns a retry configuration with sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
}

// ErrRetriesExhausted wraps the last error once every attempt failed.
type ErrRetriesExhausted struct {
	Attempts int
	Err      error
}

func (e *ErrRetriesExhausted) Error() string {
	return fmt.Sprintf("persistence: operation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ErrRetriesExhausted) Unwrap() error {
	return e.Err
}

// RetryHelper re-runs operations that failed with a retryable store error.
type RetryHelper struct {
	config RetryConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryHelper creates a new retry helper.
func NewRetryHelper(config RetryConfig) *RetryHelper {
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.BackoffFactor < 1 {
		config.BackoffFactor = 1
	}
	return &RetryHelper{config: config, sleep: sleepContext}
}

// WithRetry executes fn, retrying while it returns an error for which
// IsRetryable holds. Non-retryable errors are returned unchanged.
func (rh *RetryHelper) WithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := rh.config.InitialDelay

	for attempt := 0; attempt <= rh.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := rh.sleep(ctx, delay); err != nil {
				return err
			}
			delay = time.Duration(float64(delay) * rh.config.BackoffFactor)
			if rh.config.MaxDelay > 0 && delay > rh.config.MaxDelay {
				delay = rh.config.MaxDelay
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err
	}

	return &ErrRetriesExhausted{Attempts: rh.config.MaxRetries + 1, Err: lastErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

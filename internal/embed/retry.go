package embed

import (
	"context"
	"time"
)

// retryConfig tunes exponential backoff around provider calls.
type retryConfig struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	multiplier  float64
}

func defaultRetryConfig() retryConfig {
	return retryConfig{
		maxAttempts: 3,
		baseDelay:   100 * time.Millisecond,
		maxDelay:    5 * time.Second,
		multiplier:  2.0,
	}
}

// retryWithBackoff runs fn up to cfg.maxAttempts times with exponential
// backoff between attempts. Context cancellation stops retrying immediately
// and wins over the last provider error.
func retryWithBackoff[T any](ctx context.Context, cfg retryConfig, fn func() (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	backoff := cfg.baseDelay

	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if attempt < cfg.maxAttempts-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * cfg.multiplier)
				if backoff > cfg.maxDelay {
					backoff = cfg.maxDelay
				}
			}
		}
	}
	return zero, lastErr
}

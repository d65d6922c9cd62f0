package scraper

import (
	"context"
	"log/slog"
	"time"
)

// RetryConfig tunes retryWithBackoff.
type RetryConfig struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// Backoff is the wait before the first retry; each subsequent retry
	// doubles it, capped at BackoffMax when set.
	Backoff    time.Duration
	BackoffMax time.Duration
}

// retryWithBackoff runs op up to cfg.Attempts times. Attempts are strictly
// sequential: each one completes before the next begins. Non-retryable
// errors abort immediately with no further attempts consumed. The int
// return is the number of retries consumed (0 for first-try success).
func retryWithBackoff[T any](ctx context.Context, cfg RetryConfig, label string, op func() (T, error)) (T, int, error) {
	var zero T

	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, attempt, err
		}

		result, err := op()
		if err == nil {
			return result, attempt, nil
		}
		lastErr = err

		if IsNonRetryable(err) {
			slog.Warn("non-retryable failure",
				slog.String("operation", label),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			return zero, attempt, err
		}

		if attempt == attempts-1 {
			break
		}

		delay := backoffDelay(cfg, attempt)
		slog.Debug("retrying after backoff",
			slog.String("operation", label),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, attempt, ctx.Err()
		}
		timer.Stop()
	}

	return zero, attempts - 1, lastErr
}

func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	base := cfg.Backoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	delay := base * time.Duration(1<<attempt)
	if max := cfg.BackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

package synth

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds repeated synthesis attempts during batch export, where
// a transient backend hiccup should not fail an entire multi-chapter job.
// Interactive playback does not retry; the listener just toggles play again.
type RetryPolicy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration // backoff cap
}

// DefaultRetryPolicy returns the export-path retry defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second}
}

// Synthesize calls p.Synthesize with exponential backoff between failures.
// Cancellation is never retried and passes straight through.
func (rp RetryPolicy) Synthesize(ctx context.Context, p Provider, req Request) ([]byte, error) {
	attempts := rp.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := rp.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		audio, err := p.Synthesize(ctx, req)
		if err == nil {
			return audio, nil
		}
		if errors.Is(err, ErrCancelled) || errors.Is(err, ErrInvalidInput) {
			return nil, err
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ErrCancelled
		case <-time.After(delay):
		}
		delay *= 2
		if rp.MaxDelay > 0 && delay > rp.MaxDelay {
			delay = rp.MaxDelay
		}
	}
	return nil, lastErr
}

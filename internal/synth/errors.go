package synth

import (
	"context"
	"errors"
	"fmt"
)

// ErrCancelled marks a synthesis call aborted by its caller. It is never a
// failure: callers suppress it instead of logging or surfacing it.
var ErrCancelled = errors.New("synthesis cancelled")

// ErrInvalidInput marks a request with no speakable text.
var ErrInvalidInput = errors.New("invalid input")

// SynthesisError reports a non-success response from the synthesis backend.
type SynthesisError struct {
	Status int
	Body   string
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis backend error (status %d): %s", e.Status, e.Body)
}

// cancelErr maps a transport or context error to ErrCancelled when the
// context was the cause, otherwise wraps it.
func cancelErr(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrCancelled
	}
	return fmt.Errorf("synthesis request: %w", err)
}

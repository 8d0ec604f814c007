package synth

import (
	"context"
	"sync"
	"time"
)

// MockProvider is an in-memory Provider for tests and local development.
// It returns the request text as the "audio" payload so callers can assert
// which block produced which buffer.
type MockProvider struct {
	// Delay is how long each Synthesize call blocks before returning,
	// honoring ctx cancellation while waiting.
	Delay time.Duration
	// FailFirst makes the first N Synthesize calls fail with a backend error.
	FailFirst int
	// VoiceList is returned by Voices; nil means an error.
	VoiceList []Voice

	mu    sync.Mutex
	calls []Request
	fails int
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	shouldFail := m.fails < m.FailFirst
	if shouldFail {
		m.fails++
	}
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ErrCancelled
		case <-time.After(m.Delay):
		}
	}
	if ctx.Err() != nil {
		return nil, ErrCancelled
	}
	if shouldFail {
		return nil, &SynthesisError{Status: 500, Body: "mock failure"}
	}
	return []byte(req.Text), nil
}

func (m *MockProvider) Voices(ctx context.Context) ([]Voice, error) {
	if m.VoiceList == nil {
		return nil, &SynthesisError{Status: 503, Body: "mock voices unavailable"}
	}
	return m.VoiceList, nil
}

// Calls returns a copy of every request seen so far.
func (m *MockProvider) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

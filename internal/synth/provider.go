package synth

import "context"

// Provider is the interface for text-to-speech backends.
type Provider interface {
	// Synthesize converts one block of text into an audio buffer. It honors
	// ctx cancellation at the transport level and returns ErrCancelled when
	// aborted.
	Synthesize(ctx context.Context, req Request) ([]byte, error)
	// Voices lists the voice identifiers the backend offers.
	Voices(ctx context.Context) ([]Voice, error)
	Name() string // "elevenlabs"
}

// Request is the common synthesis input for any provider.
type Request struct {
	Text  string
	Voice string
	Speed float64 // 1.0 is normal speed
}

// Voice identifies one selectable backend voice.
type Voice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DefaultVoices is the fixed fallback list served when the backend is
// unreachable or returns malformed data. Degrading to a static list keeps
// the voice picker usable; it is not an error.
func DefaultVoices() []Voice {
	return []Voice{
		{ID: "21m00Tcm4TlvDq8ikWAM", Name: "Rachel"},
		{ID: "AZnzlk1XvdvUeBnXmlld", Name: "Domi"},
		{ID: "EXAVITQu4vr4xnSDxMaL", Name: "Bella"},
		{ID: "ErXwobaYiN019PkySvjV", Name: "Antoni"},
		{ID: "TxGEqnHWrfWFTfGW9XjX", Name: "Josh"},
		{ID: "pNInz6obpgDQGcFmaJgB", Name: "Adam"},
	}
}

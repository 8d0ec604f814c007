package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the ElevenLabs API root used when none is configured.
const DefaultBaseURL = "https://api.elevenlabs.io"

// ElevenLabsClient calls the ElevenLabs Text-to-Speech API.
// Implements the Provider interface.
type ElevenLabsClient struct {
	apiKey  string
	baseURL string
	model   string // "eleven_multilingual_v2", "eleven_turbo_v2_5"
	timeout time.Duration
	client  *http.Client
}

// ttsRequest is the JSON request body for the ElevenLabs TTS endpoint.
type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// voicesResponse is the JSON response from the ElevenLabs voices endpoint.
type voicesResponse struct {
	Voices []struct {
		VoiceID string `json:"voice_id"`
		Name    string `json:"name"`
	} `json:"voices"`
}

// NewElevenLabsClient creates a new ElevenLabs TTS client. The API key is
// held only for outbound request headers and never persisted.
func NewElevenLabsClient(apiKey, baseURL, model string, timeout time.Duration) *ElevenLabsClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &ElevenLabsClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name.
func (el *ElevenLabsClient) Name() string { return "elevenlabs" }

// Synthesize sends one block of text to the ElevenLabs TTS API and returns
// the raw audio bytes. Cancelling ctx aborts the transport-level call and
// yields ErrCancelled.
func (el *ElevenLabsClient) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: empty text", ErrInvalidInput)
	}
	if req.Voice == "" {
		return nil, fmt.Errorf("%w: missing voice", ErrInvalidInput)
	}

	speed := req.Speed
	if speed == 1.0 {
		speed = 0 // omitted from JSON; backend default
	}
	body, err := json.Marshal(ttsRequest{
		Text:    req.Text,
		ModelID: el.model,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Speed:           speed,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := el.baseURL + "/v1/text-to-speech/" + url.PathEscape(req.Voice)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", el.apiKey)

	resp, err := el.client.Do(httpReq)
	if err != nil {
		return nil, cancelErr(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &SynthesisError{Status: resp.StatusCode, Body: string(detail)}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, cancelErr(ctx, err)
	}
	if len(audio) == 0 {
		return nil, &SynthesisError{Status: resp.StatusCode, Body: "empty audio response"}
	}
	return audio, nil
}

// Voices queries the backend for available voices.
func (el *ElevenLabsClient) Voices(ctx context.Context) ([]Voice, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, el.baseURL+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", el.apiKey)

	resp, err := el.client.Do(httpReq)
	if err != nil {
		return nil, cancelErr(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &SynthesisError{Status: resp.StatusCode, Body: string(detail)}
	}

	var result voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode voices response: %w", err)
	}
	if len(result.Voices) == 0 {
		return nil, fmt.Errorf("voices response contained no voices")
	}

	voices := make([]Voice, 0, len(result.Voices))
	for _, v := range result.Voices {
		voices = append(voices, Voice{ID: v.VoiceID, Name: v.Name})
	}
	return voices, nil
}

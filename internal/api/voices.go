package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/readaloud/internal/synth"
)

// VoicesHandler serves the voice list, degrading to a fixed default set when
// the synthesis backend is unreachable or returns malformed data.
type VoicesHandler struct {
	provider synth.Provider
	log      zerolog.Logger
}

// NewVoicesHandler creates a voices handler.
func NewVoicesHandler(provider synth.Provider, log zerolog.Logger) *VoicesHandler {
	return &VoicesHandler{provider: provider, log: log.With().Str("handler", "voices").Logger()}
}

// Routes registers the voices endpoint.
func (h *VoicesHandler) Routes(r chi.Router) {
	r.Get("/voices", h.List)
}

type voicesResponse struct {
	Voices   []synth.Voice `json:"voices"`
	Fallback bool          `json:"fallback"`
}

// List handles GET /api/v1/voices.
func (h *VoicesHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		WriteJSON(w, http.StatusOK, voicesResponse{Voices: synth.DefaultVoices(), Fallback: true})
		return
	}

	voices, err := h.provider.Voices(r.Context())
	if err != nil {
		// Degrade gracefully rather than erroring: the picker stays usable.
		h.log.Warn().Err(err).Msg("voice list unavailable, serving defaults")
		WriteJSON(w, http.StatusOK, voicesResponse{Voices: synth.DefaultVoices(), Fallback: true})
		return
	}
	WriteJSON(w, http.StatusOK, voicesResponse{Voices: voices})
}

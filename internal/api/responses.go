package api

import (
	"encoding/json"
	"net/http"
)

// Machine-readable error kinds returned alongside HTTP status codes.
const (
	ErrKindInvalidInput    = "invalid_input"
	ErrKindSynthesisFailed = "synthesis_failed"
	ErrKindTranscodeFailed = "transcode_failed"
	ErrKindProbeFailed     = "probe_failed"
	ErrKindMuxFailed       = "mux_failed"
	ErrKindNotFound        = "not_found"
	ErrKindInternal        = "internal"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// WriteErrorKind writes a JSON error response with a machine-readable kind.
func WriteErrorKind(w http.ResponseWriter, status int, kind, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg, Kind: kind})
}

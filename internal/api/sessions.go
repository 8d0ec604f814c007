package api

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/readaloud/internal/playback"
)

// SessionStore tracks live playback controllers by ID. It implements
// metrics.SessionStats for scrape-time gauges.
type SessionStore struct {
	newController func() *playback.Controller

	mu       sync.Mutex
	sessions map[string]*playback.Controller
}

// NewSessionStore creates a registry whose sessions are built by factory.
func NewSessionStore(factory func() *playback.Controller) *SessionStore {
	return &SessionStore{
		newController: factory,
		sessions:      make(map[string]*playback.Controller),
	}
}

// Create registers a new controller and returns its ID.
func (s *SessionStore) Create() (string, *playback.Controller) {
	b := make([]byte, 8)
	rand.Read(b)
	id := hex.EncodeToString(b)

	ctrl := s.newController()
	s.mu.Lock()
	s.sessions[id] = ctrl
	s.mu.Unlock()
	return id, ctrl
}

// Get returns the controller for id, or nil.
func (s *SessionStore) Get(id string) *playback.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

// Delete closes and removes a session. Reports whether it existed.
func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	ctrl, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		ctrl.Close()
	}
	return ok
}

// CloseAll tears down every session; used at shutdown.
func (s *SessionStore) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*playback.Controller)
	s.mu.Unlock()
	for _, ctrl := range sessions {
		ctrl.Close()
	}
}

// SessionCount reports the number of live sessions.
func (s *SessionStore) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// CachedBlockCount sums cached audio buffers across sessions.
func (s *SessionStore) CachedBlockCount() int {
	s.mu.Lock()
	sessions := make([]*playback.Controller, 0, len(s.sessions))
	for _, c := range s.sessions {
		sessions = append(sessions, c)
	}
	s.mu.Unlock()

	total := 0
	for _, c := range sessions {
		total += c.CachedBlocks()
	}
	return total
}

// SessionHandler exposes interactive playback control over HTTP.
type SessionHandler struct {
	store *SessionStore
	log   zerolog.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(store *SessionStore, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{store: store, log: log.With().Str("handler", "sessions").Logger()}
}

// Routes registers the session endpoints.
func (h *SessionHandler) Routes(r chi.Router) {
	r.Post("/sessions", h.Create)
	r.Get("/sessions/{id}", h.Snapshot)
	r.Delete("/sessions/{id}", h.Delete)
	r.Post("/sessions/{id}/text", h.SetText)
	r.Post("/sessions/{id}/toggle", h.Toggle)
	r.Post("/sessions/{id}/skip-forward", h.SkipForward)
	r.Post("/sessions/{id}/skip-backward", h.SkipBackward)
	r.Post("/sessions/{id}/jump", h.Jump)
	r.Post("/sessions/{id}/stop", h.Stop)
}

type createSessionRequest struct {
	Text string `json:"text"`
}

type sessionResponse struct {
	ID string `json:"id"`
	playback.Snapshot
	Blocks []string `json:"blocks,omitempty"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorKind(w, http.StatusBadRequest, ErrKindInvalidInput, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		WriteErrorKind(w, http.StatusBadRequest, ErrKindInvalidInput, "text is required")
		return
	}

	id, ctrl := h.store.Create()
	ctrl.SetText(req.Text)

	h.log.Info().Str("session_id", id).Int("blocks", ctrl.Snapshot().Total).Msg("session created")
	WriteJSON(w, http.StatusCreated, h.sessionResponse(id, ctrl, true))
}

func (h *SessionHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	id, ctrl := h.lookup(w, r)
	if ctrl == nil {
		return
	}
	WriteJSON(w, http.StatusOK, h.sessionResponse(id, ctrl, false))
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.store.Delete(id) {
		WriteErrorKind(w, http.StatusNotFound, ErrKindNotFound, "no such session")
		return
	}
	h.log.Info().Str("session_id", id).Msg("session deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) SetText(w http.ResponseWriter, r *http.Request) {
	id, ctrl := h.lookup(w, r)
	if ctrl == nil {
		return
	}
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorKind(w, http.StatusBadRequest, ErrKindInvalidInput, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		WriteErrorKind(w, http.StatusBadRequest, ErrKindInvalidInput, "text is required")
		return
	}
	ctrl.SetText(req.Text)
	WriteJSON(w, http.StatusOK, h.sessionResponse(id, ctrl, true))
}

func (h *SessionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, ctrl := h.lookup(w, r)
	if ctrl == nil {
		return
	}
	ctrl.TogglePlay()
	WriteJSON(w, http.StatusOK, h.sessionResponse(id, ctrl, false))
}

func (h *SessionHandler) SkipForward(w http.ResponseWriter, r *http.Request) {
	id, ctrl := h.lookup(w, r)
	if ctrl == nil {
		return
	}
	ctrl.SkipForward()
	WriteJSON(w, http.StatusOK, h.sessionResponse(id, ctrl, false))
}

func (h *SessionHandler) SkipBackward(w http.ResponseWriter, r *http.Request) {
	id, ctrl := h.lookup(w, r)
	if ctrl == nil {
		return
	}
	ctrl.SkipBackward()
	WriteJSON(w, http.StatusOK, h.sessionResponse(id, ctrl, false))
}

type jumpRequest struct {
	Index    int  `json:"index"`
	Autoplay bool `json:"autoplay"`
}

func (h *SessionHandler) Jump(w http.ResponseWriter, r *http.Request) {
	id, ctrl := h.lookup(w, r)
	if ctrl == nil {
		return
	}
	var req jumpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorKind(w, http.StatusBadRequest, ErrKindInvalidInput, "invalid JSON body: "+err.Error())
		return
	}
	if err := ctrl.JumpTo(req.Index, req.Autoplay); err != nil {
		WriteErrorKind(w, http.StatusBadRequest, ErrKindInvalidInput, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, h.sessionResponse(id, ctrl, false))
}

func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id, ctrl := h.lookup(w, r)
	if ctrl == nil {
		return
	}
	ctrl.Stop()
	WriteJSON(w, http.StatusOK, h.sessionResponse(id, ctrl, false))
}

func (h *SessionHandler) lookup(w http.ResponseWriter, r *http.Request) (string, *playback.Controller) {
	id := chi.URLParam(r, "id")
	ctrl := h.store.Get(id)
	if ctrl == nil {
		WriteErrorKind(w, http.StatusNotFound, ErrKindNotFound, "no such session")
		return id, nil
	}
	return id, ctrl
}

func (h *SessionHandler) sessionResponse(id string, ctrl *playback.Controller, withBlocks bool) sessionResponse {
	resp := sessionResponse{ID: id, Snapshot: ctrl.Snapshot()}
	if withBlocks {
		for _, b := range ctrl.Blocks() {
			resp.Blocks = append(resp.Blocks, b.Text)
		}
	}
	return resp
}

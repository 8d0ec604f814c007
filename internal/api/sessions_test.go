package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/readaloud/internal/cache"
	"github.com/snarg/readaloud/internal/playback"
	"github.com/snarg/readaloud/internal/synth"
)

// nullSink discards audio immediately.
type nullSink struct{}

func (nullSink) Play(ctx context.Context, audio []byte) error { return nil }

func newSessionRouter(t *testing.T) (http.Handler, *SessionStore) {
	t.Helper()
	store := NewSessionStore(func() *playback.Controller {
		return playback.New(playback.Options{
			Provider:      &synth.MockProvider{},
			Cache:         cache.New(8),
			Sink:          nullSink{},
			Voice:         "v",
			Speed:         1.0,
			MaxBlockLen:   300,
			PrefetchDelay: time.Hour,
			Log:           zerolog.Nop(),
		})
	})
	t.Cleanup(store.CloseAll)

	h := NewSessionHandler(store, zerolog.Nop())
	r := chi.NewRouter()
	h.Routes(r)
	return r, store
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, sessionResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	h.ServeHTTP(rec, req)
	var resp sessionResponse
	if rec.Code < 300 && rec.Code != http.StatusNoContent {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal %s %s: %v (body %s)", method, path, err, rec.Body.String())
		}
	}
	return rec, resp
}

func TestSessionCreate(t *testing.T) {
	h, store := newSessionRouter(t)

	rec, resp := doJSON(t, h, "POST", "/sessions", `{"text":"One. Two.\n\nThree."}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if resp.ID == "" {
		t.Error("missing session id")
	}
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}
	if len(resp.Blocks) != 2 {
		t.Errorf("blocks = %v", resp.Blocks)
	}
	if store.SessionCount() != 1 {
		t.Errorf("session count = %d", store.SessionCount())
	}
}

func TestSessionCreateRequiresText(t *testing.T) {
	h, _ := newSessionRouter(t)
	rec, _ := doJSON(t, h, "POST", "/sessions", `{"text":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestSessionNotFound(t *testing.T) {
	h, _ := newSessionRouter(t)
	rec, _ := doJSON(t, h, "GET", "/sessions/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
	var body ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Kind != ErrKindNotFound {
		t.Errorf("kind = %q", body.Kind)
	}
}

func TestSessionJump(t *testing.T) {
	h, _ := newSessionRouter(t)
	_, created := doJSON(t, h, "POST", "/sessions", `{"text":"One.\n\nTwo.\n\nThree."}`)

	rec, resp := doJSON(t, h, "POST", "/sessions/"+created.ID+"/jump", `{"index":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if resp.CurrentIndex != 2 {
		t.Errorf("current index = %d, want 2", resp.CurrentIndex)
	}

	rec, _ = doJSON(t, h, "POST", "/sessions/"+created.ID+"/jump", `{"index":99}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("out-of-range jump status = %d", rec.Code)
	}
}

func TestSessionSkipAndStop(t *testing.T) {
	h, _ := newSessionRouter(t)
	_, created := doJSON(t, h, "POST", "/sessions", `{"text":"One.\n\nTwo."}`)

	rec, resp := doJSON(t, h, "POST", "/sessions/"+created.ID+"/skip-forward", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp.CurrentIndex != 1 {
		t.Errorf("current index = %d, want 1", resp.CurrentIndex)
	}

	rec, resp = doJSON(t, h, "POST", "/sessions/"+created.ID+"/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp.CurrentIndex != 0 {
		t.Errorf("current index after stop = %d", resp.CurrentIndex)
	}
}

func TestSessionDelete(t *testing.T) {
	h, store := newSessionRouter(t)
	_, created := doJSON(t, h, "POST", "/sessions", `{"text":"One."}`)

	rec, _ := doJSON(t, h, "DELETE", "/sessions/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d", rec.Code)
	}
	if store.SessionCount() != 0 {
		t.Errorf("session count = %d", store.SessionCount())
	}

	rec, _ = doJSON(t, h, "DELETE", "/sessions/"+created.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d", rec.Code)
	}
}

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/readaloud/internal/config"
)

func newTestServer(t *testing.T, token string) http.Handler {
	t.Helper()
	cfg := &config.Config{
		HTTPAddr:  ":0",
		AuthToken: token,
	}
	srv := NewServer(cfg, Deps{Exporter: &fakeExporter{}}, "test", time.Now(), zerolog.Nop())
	return srv.Handler()
}

func TestServerHealthIsUnauthenticated(t *testing.T) {
	h := newTestServer(t, "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/health", nil))
	if rec.Code == http.StatusUnauthorized {
		t.Error("health should not require auth")
	}
}

func TestServerMetricsIsUnauthenticated(t *testing.T) {
	h := newTestServer(t, "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("metrics status = %d", rec.Code)
	}
}

func TestServerAPIRequiresAuth(t *testing.T) {
	h := newTestServer(t, "secret")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/voices", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/voices", nil)
	req.Header.Set("Authorization", "Bearer secret")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated status = %d", rec.Code)
	}
}

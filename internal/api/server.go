package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/snarg/readaloud/internal/config"
	"github.com/snarg/readaloud/internal/metrics"
	"github.com/snarg/readaloud/internal/synth"
)

// Deps carries the wired components the HTTP surface exposes. Any field may
// be nil; the corresponding routes then report the feature as unavailable.
type Deps struct {
	Sessions *SessionStore
	Provider synth.Provider
	Exporter Exporter
	Tools    ToolChecker
	Player   PlayerChecker
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(cfg *config.Config, deps Deps, version string, startTime time.Time, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(metrics.InstrumentHandler)
	r.Use(CORS)

	// Health and metrics endpoints — no auth
	health := NewHealthHandler(deps.Tools, deps.Player, cfg.SynthAPIKey != "", version, startTime)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	// Authenticated routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuth(cfg.AuthToken))

		NewVoicesHandler(deps.Provider, log).Routes(r)

		if deps.Sessions != nil {
			NewSessionHandler(deps.Sessions, log).Routes(r)
		}

		if deps.Exporter != nil {
			retry := synth.RetryPolicy{
				MaxAttempts: cfg.ExportRetryAttempts,
				BaseDelay:   cfg.ExportRetryBaseDelay,
				MaxDelay:    cfg.ExportRetryMaxDelay,
			}
			NewExportHandler(deps.Exporter, deps.Provider, retry, cfg.DefaultVoice, cfg.DefaultSpeed, log).Routes(r)
		}
	})

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}

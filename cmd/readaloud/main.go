package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/snarg/readaloud/internal/api"
	"github.com/snarg/readaloud/internal/assemble"
	"github.com/snarg/readaloud/internal/cache"
	"github.com/snarg/readaloud/internal/config"
	"github.com/snarg/readaloud/internal/metrics"
	"github.com/snarg/readaloud/internal/playback"
	"github.com/snarg/readaloud/internal/synth"
	"github.com/snarg/readaloud/internal/transcode"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file (default .env)")
	flag.StringVar(&overrides.HTTPAddr, "addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.SynthAPIKey, "api-key", "", "synthesis API key (overrides SYNTH_API_KEY)")
	flag.StringVar(&overrides.TempDir, "temp-dir", "", "export scratch directory (overrides TEMP_DIR)")
	flag.Parse()

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("readaloud starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Synthesis backend
	var provider synth.Provider
	if cfg.SynthAPIKey != "" {
		provider = synth.NewElevenLabsClient(cfg.SynthAPIKey, cfg.SynthBaseURL, cfg.SynthModel, cfg.SynthTimeout)
	} else {
		log.Warn().Msg("no synthesis API key configured, sessions and text export are unavailable")
	}

	// Transcoding and export pipeline
	tcLog := log.With().Str("component", "transcode").Logger()
	transcoder := transcode.New(cfg.FFmpegPath, cfg.FFprobePath, tcLog)
	if err := transcoder.Check(); err != nil {
		log.Warn().Err(err).Msg("transcoding tools missing, export is unavailable")
	}
	assembler := assemble.New(transcoder, cfg.FFmpegPath, cfg.TempDir, log.With().Str("component", "assemble").Logger())

	// Local playback sink
	sink := playback.NewExecSink(cfg.PlayerPath, log.With().Str("component", "player").Logger())
	if err := sink.CheckPlayer(); err != nil {
		log.Warn().Err(err).Msg("playback binary missing, sessions will fail to play")
	}

	// Playback sessions
	var sessions *api.SessionStore
	if provider != nil {
		p := provider
		sessions = api.NewSessionStore(func() *playback.Controller {
			return playback.New(playback.Options{
				Provider:      p,
				Cache:         cache.New(cfg.CacheCapacity),
				Sink:          sink,
				Voice:         cfg.DefaultVoice,
				Speed:         cfg.DefaultSpeed,
				MaxBlockLen:   cfg.MaxBlockLen,
				PrefetchDelay: cfg.PrefetchDelay,
				Log:           log.With().Str("component", "playback").Logger(),
			})
		})
		defer sessions.CloseAll()
		prometheus.MustRegister(metrics.NewCollector(sessions))
	}

	// HTTP server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, api.Deps{
		Sessions: sessions,
		Provider: provider,
		Exporter: assembler,
		Tools:    transcoder,
		Player:   sink,
	}, version, startTime, httpLog)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("readaloud stopped")
}

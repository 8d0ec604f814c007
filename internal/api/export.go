package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/readaloud/internal/assemble"
	"github.com/snarg/readaloud/internal/metrics"
	"github.com/snarg/readaloud/internal/segment"
	"github.com/snarg/readaloud/internal/synth"
	"github.com/snarg/readaloud/internal/transcode"
)

// exportBlockLen is the block-size threshold used when synthesizing chapter
// text for export. Export is not latency-sensitive, so blocks are much
// larger than the interactive target.
const exportBlockLen = 4000

// Exporter assembles chapters into one streamed audiobook container.
// Satisfied by *assemble.Assembler.
type Exporter interface {
	Assemble(ctx context.Context, chapters []assemble.Chapter, w io.Writer) error
}

// ExportHandler handles audiobook export requests.
type ExportHandler struct {
	exporter     Exporter
	provider     synth.Provider
	retry        synth.RetryPolicy
	defaultVoice string
	defaultSpeed float64
	log          zerolog.Logger
}

// NewExportHandler creates an export handler. provider may be nil when no
// synthesis backend is configured; text chapters are then rejected.
func NewExportHandler(exporter Exporter, provider synth.Provider, retry synth.RetryPolicy, defaultVoice string, defaultSpeed float64, log zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		exporter:     exporter,
		provider:     provider,
		retry:        retry,
		defaultVoice: defaultVoice,
		defaultSpeed: defaultSpeed,
		log:          log.With().Str("handler", "export").Logger(),
	}
}

// Routes registers the export endpoint.
func (h *ExportHandler) Routes(r chi.Router) {
	r.Post("/export", h.Export)
}

// exportChapter carries one chapter either as raw audio bytes (base64 in
// JSON) or as text to synthesize server-side.
type exportChapter struct {
	Title string `json:"title"`
	Audio []byte `json:"audio,omitempty"`
	Text  string `json:"text,omitempty"`
}

type exportRequest struct {
	Title    string          `json:"title"`
	Voice    string          `json:"voice,omitempty"`
	Speed    float64         `json:"speed,omitempty"`
	Chapters []exportChapter `json:"chapters"`
}

// Export handles POST /api/v1/export: transcode + mux the chapters into one
// chaptered m4b streamed to the client.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorKind(w, http.StatusBadRequest, ErrKindInvalidInput, "invalid JSON body: "+err.Error())
		return
	}
	if len(req.Chapters) == 0 {
		WriteErrorKind(w, http.StatusBadRequest, ErrKindInvalidInput, "at least one chapter is required")
		return
	}
	for i, ch := range req.Chapters {
		if len(ch.Audio) == 0 && strings.TrimSpace(ch.Text) == "" {
			WriteErrorKind(w, http.StatusBadRequest, ErrKindInvalidInput,
				fmt.Sprintf("chapter %d: audio or text is required", i))
			return
		}
	}

	ctx := r.Context()
	log := h.log.With().Int("chapters", len(req.Chapters)).Str("title", req.Title).Logger()
	log.Info().Msg("export started")

	chapters, err := h.resolveChapters(ctx, req)
	if err != nil {
		h.finish(w, nil, start, log, err)
		return
	}

	w.Header().Set("Content-Type", "audio/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(req.Title)))

	cw := &countingWriter{w: w}
	err = h.exporter.Assemble(ctx, chapters, cw)
	h.finish(w, cw, start, log, err)
}

// resolveChapters turns the request into assembler input, synthesizing text
// chapters under the bounded retry policy.
func (h *ExportHandler) resolveChapters(ctx context.Context, req exportRequest) ([]assemble.Chapter, error) {
	voice := req.Voice
	if voice == "" {
		voice = h.defaultVoice
	}
	speed := req.Speed
	if speed == 0 {
		speed = h.defaultSpeed
	}

	chapters := make([]assemble.Chapter, 0, len(req.Chapters))
	for i, ch := range req.Chapters {
		audio := ch.Audio
		if len(audio) == 0 {
			if h.provider == nil {
				return nil, fmt.Errorf("chapter %d: %w: no synthesis backend configured", i, synth.ErrInvalidInput)
			}
			var err error
			audio, err = h.synthesizeChapter(ctx, ch.Text, voice, speed)
			if err != nil {
				return nil, fmt.Errorf("chapter %d (%s): %w", i, ch.Title, err)
			}
		}
		chapters = append(chapters, assemble.Chapter{Title: ch.Title, Audio: audio})
	}
	return chapters, nil
}

// synthesizeChapter renders one chapter's text block by block and joins the
// audio. Export-mode blocks are large; retry shields the whole export from
// transient backend failures.
func (h *ExportHandler) synthesizeChapter(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	blocks := segment.Segment(text, exportBlockLen)
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: chapter text is empty after cleanup", synth.ErrInvalidInput)
	}

	var audio []byte
	for _, b := range blocks {
		buf, err := h.retry.Synthesize(ctx, h.provider, synth.Request{Text: b.Text, Voice: voice, Speed: speed})
		if err != nil {
			return nil, err
		}
		audio = append(audio, buf...)
	}
	return audio, nil
}

// finish reports the outcome: metrics, logging, and — if nothing has been
// streamed yet — an error response with a machine-readable kind.
func (h *ExportHandler) finish(w http.ResponseWriter, cw *countingWriter, start time.Time, log zerolog.Logger, err error) {
	elapsed := time.Since(start)

	if err == nil {
		metrics.ExportsTotal.WithLabelValues("ok").Inc()
		metrics.ExportDuration.Observe(elapsed.Seconds())
		log.Info().Dur("elapsed_ms", elapsed).Int64("bytes", cw.n).Msg("export complete")
		return
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, synth.ErrCancelled) {
		// Client went away; nothing to report and nothing to log as an error.
		metrics.ExportsTotal.WithLabelValues("cancelled").Inc()
		log.Debug().Dur("elapsed_ms", elapsed).Msg("export cancelled")
		return
	}

	metrics.ExportsTotal.WithLabelValues("failed").Inc()
	status, kind := exportErrorKind(err)
	if kind == ErrKindTranscodeFailed || kind == ErrKindProbeFailed || kind == ErrKindMuxFailed {
		metrics.SubprocessFailuresTotal.WithLabelValues(strings.TrimSuffix(kind, "_failed")).Inc()
	}
	log.Error().Err(err).Dur("elapsed_ms", elapsed).Str("kind", kind).Msg("export failed")

	if cw == nil || cw.n == 0 {
		WriteErrorKind(w, status, kind, "export failed")
	}
	// Headers already sent: the truncated stream is the failure signal.
}

func exportErrorKind(err error) (int, string) {
	var se *synth.SynthesisError
	switch {
	case errors.Is(err, synth.ErrInvalidInput), errors.Is(err, assemble.ErrNoChapters):
		return http.StatusBadRequest, ErrKindInvalidInput
	case errors.As(err, &se):
		return http.StatusBadGateway, ErrKindSynthesisFailed
	case errors.Is(err, transcode.ErrTranscodeFailed):
		return http.StatusInternalServerError, ErrKindTranscodeFailed
	case errors.Is(err, transcode.ErrProbeFailed):
		return http.StatusInternalServerError, ErrKindProbeFailed
	case errors.Is(err, assemble.ErrMuxFailed):
		return http.StatusInternalServerError, ErrKindMuxFailed
	default:
		return http.StatusInternalServerError, ErrKindInternal
	}
}

func exportFilename(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "audiobook"
	}
	title = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', ':', '*', '?', '<', '>', '|':
			return '-'
		}
		return r
	}, title)
	return title + ".m4b"
}

// countingWriter tracks whether the response stream has started.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// Package transcode canonicalizes chapter audio through external ffmpeg and
// ffprobe subprocesses. Every chapter is brought to one fixed PCM format so
// durations and mux timestamps never drift across heterogeneous sources.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Canonical PCM parameters. 44.1kHz stereo s16le WAV.
const (
	canonicalRate     = "44100"
	canonicalChannels = "2"
	canonicalCodec    = "pcm_s16le"
)

var (
	// ErrTranscodeFailed marks an ffmpeg exit failure. Subprocess failures
	// are deterministic local problems; callers never retry them.
	ErrTranscodeFailed = errors.New("transcode failed")
	// ErrProbeFailed marks an ffprobe exit failure or unparseable output.
	ErrProbeFailed = errors.New("probe failed")
)

// Result describes one canonicalized chapter.
type Result struct {
	PCMPath  string
	Duration float64 // seconds, as measured by ffprobe
}

// Transcoder runs ffmpeg/ffprobe against files in a caller-owned directory.
type Transcoder struct {
	ffmpeg  string
	ffprobe string
	log     zerolog.Logger
}

// New creates a Transcoder using the given binary paths, defaulting to
// "ffmpeg" and "ffprobe" from PATH.
func New(ffmpegPath, ffprobePath string, log zerolog.Logger) *Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Transcoder{ffmpeg: ffmpegPath, ffprobe: ffprobePath, log: log}
}

// FFmpegPath returns the configured ffmpeg binary.
func (t *Transcoder) FFmpegPath() string { return t.ffmpeg }

// Check verifies both binaries are resolvable. Call once at startup.
func (t *Transcoder) Check() error {
	if _, err := exec.LookPath(t.ffmpeg); err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}
	if _, err := exec.LookPath(t.ffprobe); err != nil {
		return fmt.Errorf("ffprobe not found: %w", err)
	}
	return nil
}

// ToPCM writes raw chapter audio into dir, converts it to canonical PCM and
// measures its exact duration. The raw intermediate is deleted before
// returning so ephemeral storage holds at most one copy per chapter.
func (t *Transcoder) ToPCM(ctx context.Context, raw []byte, dir, base string) (Result, error) {
	rawPath := filepath.Join(dir, base+".src")
	pcmPath := filepath.Join(dir, base+".wav")

	if err := os.WriteFile(rawPath, raw, 0o644); err != nil {
		return Result{}, fmt.Errorf("write raw audio: %w", err)
	}

	if out, err := t.run(ctx, t.ffmpeg, transcodeArgs(rawPath, pcmPath)...); err != nil {
		os.Remove(rawPath)
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("%w: %v: %s", ErrTranscodeFailed, err, tail(out))
	}

	duration, err := t.Probe(ctx, pcmPath)
	if err != nil {
		os.Remove(rawPath)
		return Result{}, err
	}

	os.Remove(rawPath)
	t.log.Debug().Str("chapter", base).Float64("duration_s", duration).Msg("chapter transcoded")
	return Result{PCMPath: pcmPath, Duration: duration}, nil
}

// Probe measures the exact duration of an audio file in seconds.
func (t *Transcoder) Probe(ctx context.Context, path string) (float64, error) {
	out, err := t.run(ctx, t.ffprobe, probeArgs(path)...)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: %v: %s", ErrProbeFailed, err, tail(out))
	}
	duration, err := parseProbeOutput(out)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	return duration, nil
}

// run invokes a subprocess and returns its combined output. The caller's
// ctx kills the process on cancellation.
func (t *Transcoder) run(ctx context.Context, bin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func transcodeArgs(in, out string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", in,
		"-ar", canonicalRate,
		"-ac", canonicalChannels,
		"-c:a", canonicalCodec,
		out,
	}
}

func probeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
}

func parseProbeOutput(out string) (float64, error) {
	s := strings.TrimSpace(out)
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected ffprobe output %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %f", d)
	}
	return d, nil
}

// tail trims subprocess output to its last line for error messages.
func tail(out string) string {
	out = strings.TrimSpace(out)
	if idx := strings.LastIndexByte(out, '\n'); idx >= 0 {
		out = out[idx+1:]
	}
	if len(out) > 200 {
		out = out[len(out)-200:]
	}
	return out
}

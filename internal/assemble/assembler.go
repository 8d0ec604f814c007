// Package assemble turns per-chapter audio into a single chaptered audiobook
// container streamed to the caller.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/snarg/readaloud/internal/transcode"
)

// ErrMuxFailed marks a mux/concat subprocess failure. Fatal to the export;
// never retried.
var ErrMuxFailed = errors.New("mux failed")

// ErrNoChapters marks an export request with nothing to assemble.
var ErrNoChapters = errors.New("no chapters supplied")

// Chapter is one unit of an export request: a title plus raw audio bytes in
// any container the transcode subprocess accepts.
type Chapter struct {
	Title string
	Audio []byte
}

// ChapterTranscoder canonicalizes one chapter's raw audio. Satisfied by
// *transcode.Transcoder.
type ChapterTranscoder interface {
	ToPCM(ctx context.Context, raw []byte, dir, base string) (transcode.Result, error)
}

// Assembler runs the chapter pipeline and muxes the result.
type Assembler struct {
	tc      ChapterTranscoder
	ffmpeg  string
	tempDir string // base for worksets; "" means system temp
	log     zerolog.Logger
}

// New creates an Assembler. ffmpegPath defaults to "ffmpeg".
func New(tc ChapterTranscoder, ffmpegPath, tempDir string, log zerolog.Logger) *Assembler {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Assembler{tc: tc, ffmpeg: ffmpegPath, tempDir: tempDir, log: log}
}

// Assemble transcodes every chapter in order, builds the chapter timeline,
// muxes one streamable m4b container and copies it to w as it is read from
// disk. All temporary files live in one WorkSet removed on every exit path.
func (a *Assembler) Assemble(ctx context.Context, chapters []Chapter, w io.Writer) error {
	if len(chapters) == 0 {
		return ErrNoChapters
	}

	ws, err := NewWorkSet(a.tempDir, a.log)
	if err != nil {
		return err
	}
	defer ws.Close()

	// Chapters are processed strictly sequentially: the running clock for
	// the timeline needs no further synchronization, and peak temp-disk
	// usage stays bounded to one raw copy at a time.
	titles := make([]string, 0, len(chapters))
	durations := make([]float64, 0, len(chapters))
	pcmPaths := make([]string, 0, len(chapters))
	for i, ch := range chapters {
		res, err := a.tc.ToPCM(ctx, ch.Audio, ws.Dir(), fmt.Sprintf("chapter-%03d", i))
		if err != nil {
			return fmt.Errorf("chapter %d (%s): %w", i, ch.Title, err)
		}
		titles = append(titles, ch.Title)
		durations = append(durations, res.Duration)
		pcmPaths = append(pcmPaths, res.PCMPath)
	}

	marks := BuildTimeline(titles, durations)

	listPath := ws.Path("chapters.txt")
	if err := writeWith(listPath, func(f io.Writer) error { return WriteConcatList(f, pcmPaths) }); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	metaPath := ws.Path("ffmetadata.txt")
	if err := writeWith(metaPath, func(f io.Writer) error { return WriteFFMetadata(f, marks) }); err != nil {
		return fmt.Errorf("write chapter metadata: %w", err)
	}

	outPath := ws.Path("book.m4b")
	if err := a.mux(ctx, listPath, metaPath, outPath); err != nil {
		return err
	}

	f, err := os.Open(outPath)
	if err != nil {
		return fmt.Errorf("open muxed output: %w", err)
	}
	defer f.Close()

	// Stream from disk; a client disconnect shows up as a write error and
	// the deferred WorkSet close still runs.
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("stream output: %w", err)
	}
	return nil
}

// mux invokes one ffmpeg run over the concat list plus the metadata
// document, producing an m4b with embedded chapter markers laid out for
// progressive delivery.
func (a *Assembler) mux(ctx context.Context, listPath, metaPath, outPath string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg, muxArgs(listPath, metaPath, outPath)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v: %s", ErrMuxFailed, err, lastLine(string(out)))
	}
	if _, err := os.Stat(outPath); err != nil {
		return fmt.Errorf("%w: produced no output", ErrMuxFailed)
	}
	return nil
}

func muxArgs(listPath, metaPath, outPath string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-i", metaPath,
		"-map_metadata", "1",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-f", "ipod",
		outPath,
	}
}

func writeWith(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func lastLine(out string) string {
	out = strings.TrimSpace(out)
	if idx := strings.LastIndexByte(out, '\n'); idx >= 0 {
		out = out[idx+1:]
	}
	return out
}

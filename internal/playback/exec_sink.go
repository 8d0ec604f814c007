package playback

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"
)

// ExecSink plays audio buffers through an external player subprocess
// (ffplay by default), fed over stdin. Play blocks until the player exits;
// cancelling ctx kills the process.
type ExecSink struct {
	player string
	log    zerolog.Logger
}

// NewExecSink creates a subprocess-backed sink.
func NewExecSink(player string, log zerolog.Logger) *ExecSink {
	if player == "" {
		player = "ffplay"
	}
	return &ExecSink{player: player, log: log}
}

// CheckPlayer verifies the player binary is resolvable.
func (s *ExecSink) CheckPlayer() error {
	if _, err := exec.LookPath(s.player); err != nil {
		return fmt.Errorf("audio player not found: %w", err)
	}
	return nil
}

func (s *ExecSink) Play(ctx context.Context, audio []byte) error {
	cmd := exec.CommandContext(ctx, s.player,
		"-autoexit",
		"-nodisp",
		"-loglevel", "error",
		"-i", "pipe:0",
	)
	cmd.Stdin = bytes.NewReader(audio)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("audio player: %w", err)
	}
	return nil
}

package assemble

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// WorkSet owns every temporary file created for one export request. It is
// never shared across requests; Close removes the whole set exactly once on
// any exit path, including client cancellation.
type WorkSet struct {
	dir string
	log zerolog.Logger

	once sync.Once
}

// NewWorkSet creates a uniquely named temp directory for one export.
// baseDir falls back to the system temp dir when empty.
func NewWorkSet(baseDir string, log zerolog.Logger) (*WorkSet, error) {
	dir, err := os.MkdirTemp(baseDir, "readaloud-export-*")
	if err != nil {
		return nil, fmt.Errorf("create export workdir: %w", err)
	}
	return &WorkSet{dir: dir, log: log}, nil
}

// Dir returns the workset directory.
func (ws *WorkSet) Dir() string { return ws.dir }

// Path returns the path of name inside the workset.
func (ws *WorkSet) Path(name string) string { return filepath.Join(ws.dir, name) }

// Close deletes the workset directory and everything in it. Idempotent.
func (ws *WorkSet) Close() {
	ws.once.Do(func() {
		if err := os.RemoveAll(ws.dir); err != nil {
			ws.log.Warn().Err(err).Str("dir", ws.dir).Msg("failed to remove export workdir")
			return
		}
		ws.log.Debug().Str("dir", ws.dir).Msg("export workdir removed")
	})
}

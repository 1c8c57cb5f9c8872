package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/paizhu/internal/fsutil"
)

// Handoff delivers a finished archive out of the cache directory and
// returns where it ended up.
type Handoff interface {
	Deliver(ctx context.Context, archivePath string) (string, error)
}

// DirHandoff copies archives into a directory.
type DirHandoff struct {
	Dir string
}

// Deliver copies the archive into h.Dir under its own file name.
func (h DirHandoff) Deliver(ctx context.Context, archivePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if h.Dir == "" {
		return "", fmt.Errorf("export directory not set")
	}
	if err := os.MkdirAll(h.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}
	dest := filepath.Join(h.Dir, filepath.Base(archivePath))
	if _, err := fsutil.CopyFile(archivePath, dest); err != nil {
		return "", fmt.Errorf("copying archive to %s: %w", h.Dir, err)
	}
	return dest, nil
}

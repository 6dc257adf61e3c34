// Package fs persists painted surfaces to the local filesystem.
package fs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bft-labs/subcast/internal/ports"
)

// SnapshotWriter stores PNG snapshots in a directory.
type SnapshotWriter struct {
	dir string
}

// NewSnapshotWriter creates a SnapshotWriter for the given directory.
func NewSnapshotWriter(dir string) *SnapshotWriter {
	return &SnapshotWriter{dir: dir}
}

// Save encodes src and stores it as <name>.png.
// Uses atomic write (write to temp file, then rename) so readers never see
// a partial image.
func (w *SnapshotWriter) Save(ctx context.Context, name string, src ports.Encoder) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := src.EncodePNG(&buf); err != nil {
		return fmt.Errorf("encode snapshot %s: %w", name, err)
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}

	path := w.Path(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Path returns the full path of the snapshot called name.
func (w *SnapshotWriter) Path(name string) string {
	return filepath.Join(w.dir, name+".png")
}

var _ ports.SnapshotStore = (*SnapshotWriter)(nil)

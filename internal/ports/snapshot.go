package ports

import (
	"context"
	"io"
)

// Encoder renders a surface as an image file.
type Encoder interface {
	EncodePNG(w io.Writer) error
}

// SnapshotStore persists rendered surfaces under a name.
type SnapshotStore interface {
	Save(ctx context.Context, name string, src Encoder) error
}

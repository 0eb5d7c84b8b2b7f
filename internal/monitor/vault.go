package monitor

import (
	"context"
	"io"
)

// Vault keeps archived copies of the record store.
// Archives are streamed so large tables are never held in memory twice.
type Vault interface {
	// PutArchive stores a named archive. size is the number of bytes read from r.
	// version is kept alongside for consistency checks.
	PutArchive(ctx context.Context, name string, r io.Reader, size int64, version int64) error

	// GetArchive writes a named archive to w.
	GetArchive(ctx context.Context, name string, w io.Writer) error

	// GetArchiveVersion returns the version of a named archive, or 0 if none exists.
	GetArchiveVersion(ctx context.Context, name string) (int64, error)

	// ValidateSetup checks that the backend is reachable and writable.
	ValidateSetup(ctx context.Context) error
}

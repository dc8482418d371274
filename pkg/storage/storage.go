// Package storage holds recorded audio blobs.
//
// A FileStore is addressed by forward-slash paths relative to its root.
// Local keeps files on disk; S3Store keeps them in an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
)

// FileStore reads and writes files. Implementations are safe for concurrent
// use.
type FileStore interface {
	// Read opens path. A missing file yields an error wrapping
	// os.ErrNotExist.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write creates or truncates path. The data is committed when the
	// returned writer is closed.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes path. Deleting a missing file is not an error.
	Delete(ctx context.Context, path string) error

	Exists(ctx context.Context, path string) (bool, error)
}

// WriteFile writes data to path in one call.
func WriteFile(ctx context.Context, fs FileStore, path string, data []byte) error {
	w, err := fs.Write(ctx, path)
	if err != nil {
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	return nil
}

// ReadFile reads the whole of path.
func ReadFile(ctx context.Context, fs FileStore, path string) ([]byte, error) {
	r, err := fs.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

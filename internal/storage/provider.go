// Package storage defines the blob store contract used to archive retired
// crawl tasks. Implementations live in the memory, local and gcs subpackages.
package storage

import (
	"context"
	"io"
)

// BlobStore writes opaque objects and returns a URI addressing them.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// NoOpBlobStore discards every object. It backs archive.provider=none.
type NoOpBlobStore struct{}

// PutObject drains r and returns an empty URI.
func (NoOpBlobStore) PutObject(_ context.Context, _ string, _ string, r io.Reader) (string, error) {
	if r != nil {
		_, _ = io.Copy(io.Discard, r)
	}
	return "", nil
}

// Package memory holds in-memory stores for development and tests: a blob
// store for task archives plus TaskStore and IndexSourceStore implementations.
package memory

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/puzpuzpuz/xsync/v4"
)

// BlobStore keeps objects in memory and returns memory:// URIs.
type BlobStore struct {
	data *xsync.Map[string, []byte]
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{data: xsync.NewMap[string, []byte]()}
}

// PutObject stores a copy of the reader contents under path.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, r io.Reader) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read object: %w", err)
	}
	s.data.Store(path, data)
	return "memory://" + path, nil
}

// Object returns a copy of the object stored at path.
func (s *BlobStore) Object(path string) ([]byte, bool) {
	data, ok := s.data.Load(path)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Keys lists stored object paths in lexical order.
func (s *BlobStore) Keys() []string {
	keys := make([]string, 0, s.data.Size())
	s.data.Range(func(k string, _ []byte) bool {
		keys = append(keys, k)
		return true
	})
	slices.Sort(keys)
	return keys
}

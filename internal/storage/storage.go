package storage

import (
	"context"
	"io"
)

// ObjectInfo describes a stored output object.
type ObjectInfo struct {
	Size        int64
	ContentType string
}

// ObjectStore persists generated document bytes keyed by an opaque reference.
// Objects are written once at job completion and never mutated, so concurrent
// reads after completion are safe.
type ObjectStore interface {
	// Put stores the object under key with the given content type.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get opens the object for streaming. The caller must close the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
}

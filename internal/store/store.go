package store

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound is returned when a key does not reference a stored object.
var ErrObjectNotFound = errors.New("object not found")

// BlobProperties describes a stored object.
type BlobProperties struct {
	Size        int64
	ContentType string
}

// ObjectStore abstracts the audio object store backend.
type ObjectStore interface {
	// Put stores an object under key.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Properties returns size and content type for key.
	// Returns ErrObjectNotFound if the object does not exist.
	Properties(ctx context.Context, key string) (BlobProperties, error)

	// PresignRead returns a time-scoped read-only URL for key.
	PresignRead(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Package storage defines blob storage backends for uploaded recipe images.
// Objects are addressed by slash-separated keys such as
// "uploads/recipe/<uuid>.png".
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrObjectNotFound indicates no object is stored under the key.
	ErrObjectNotFound = errors.New("storage object not found")

	// ErrInvalidKey indicates a key that is empty, absolute or escapes the
	// storage root.
	ErrInvalidKey = errors.New("invalid storage key")
)

// Backend defines the interface for storage backends.
// Implementations include the local filesystem and S3-compatible services.
type Backend interface {
	// Put stores size bytes from r under key, replacing any existing object.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Get opens the object stored under key. The caller must close it.
	// Returns ErrObjectNotFound when absent.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// List calls fn for every object whose key starts with prefix + "/".
	// Iteration stops at the first error returned by fn.
	List(ctx context.Context, prefix string, fn func(ObjectInfo) error) error
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

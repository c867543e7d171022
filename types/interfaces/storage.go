package interfaces

import (
	"bytes"
	"context"
)

// Storage is a flat key/value object store. Keys use forward slashes
// regardless of the backend.
type Storage interface {
	// GetStorageName returns a short backend name used in logs and reports.
	GetStorageName() string

	ListObjects(ctx context.Context, prefix string) ([]string, error)

	PutObjectBytes(ctx context.Context, key string, content *bytes.Buffer) error
	GetObjectBytes(ctx context.Context, key string) (*bytes.Buffer, error)

	ObjectExists(ctx context.Context, key string) bool
}

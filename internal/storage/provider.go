// Package storage defines the interfaces for a blob storage provider.
// This abstraction keeps the document endpoints independent of a specific
// backend (Google Cloud Storage, the local filesystem, or memory).
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound signals that the requested object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Path    string
	Size    int64
	Updated time.Time
}

// Provider defines the common interface for a blob storage provider.
type Provider interface {
	// PutObject stores data under the path and returns a backend URI.
	PutObject(ctx context.Context, path, contentType string, data []byte) (string, error)
	// GetObject loads an object or returns ErrObjectNotFound.
	GetObject(ctx context.Context, path string) ([]byte, error)
	// ListObjects enumerates objects under the prefix.
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// DeleteObject removes an object; missing objects return ErrObjectNotFound.
	DeleteObject(ctx context.Context, path string) error
}

// Package storage defines the read-only content source that block
// source files are served from, with local-filesystem and S3 backends.
// The catalog itself (block names, file lists) comes from the registry
// manifest; storage only answers "give me the bytes at this key".
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a key does not exist in the backend.
var ErrObjectNotFound = errors.New("object not found")

// Backend is the interface for content source backends.
type Backend interface {
	// GetObject retrieves an object's full content by key.
	GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error)

	// ObjectExists checks if an object exists at the given key.
	ObjectExists(ctx context.Context, key string) (bool, error)

	// Type returns the backend type identifier ("local", "s3").
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}

// ReadAll fetches an object and returns its content as a string.
func ReadAll(ctx context.Context, b Backend, key string) (string, error) {
	rc, _, err := b.GetObject(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

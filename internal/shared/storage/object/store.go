// Package object stores uploaded documents and archived results by key.
package object

import (
	"context"
	"errors"
	"io"
	"strings"
)

// ErrNotFound is returned when a key has no stored object.
var ErrNotFound = errors.New("object not found")

// ObjectStore saves, reads and deletes binary objects by key.
type ObjectStore interface {
	Put(ctx context.Context, storageKey string, contentType string, r io.Reader) (sizeBytes int64, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
}

// Join places key under prefix, tolerating stray slashes on either side.
func Join(prefix, key string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	key = strings.TrimLeft(key, "/")
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	default:
		return prefix + "/" + key
	}
}

// Category is the first path segment of key ("documents", "results"). Cloud backends label
// objects with it so bucket lifecycle rules can expire abandoned uploads.
func Category(key string) string {
	key = strings.TrimLeft(key, "/")
	if i := strings.IndexByte(key, '/'); i > 0 {
		return key[:i]
	}
	return "other"
}

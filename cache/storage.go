// Package cache keeps provider metadata and downloaded font files between
// runs.
package cache

import (
	"context"
	"errors"
	"path"
	"strings"
)

// ErrNotFound is returned by storage when key is absent.
var ErrNotFound = errors.New("cache: key not found")

// Storage is simple key-value blob store.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
}

// isSafeKey rejects keys which could escape storage root when used as file
// names.
func isSafeKey(key string) bool {
	if key == "" || strings.ContainsRune(key, 0) {
		return false
	}
	if strings.HasPrefix(key, "/") || strings.HasPrefix(key, "\\") {
		return false
	}
	for _, part := range strings.FieldsFunc(key, func(r rune) bool { return r == '/' || r == '\\' || r == ':' }) {
		if part == ".." {
			return false
		}
	}
	return path.Clean("/"+strings.ReplaceAll(key, ":", "/")) != "/"
}

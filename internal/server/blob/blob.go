// Package blob stores file contents under opaque storage keys, keeping the
// byte-storage concern separate from metadata persistence.
package blob

import (
	"context"
	"io"
	"strings"
)

// Store is a content-addressed byte store. Keys are slash-separated relative
// paths minted by the caller.
type Store interface {
	// Put streams r into the store under key and reports the number of bytes
	// written. A payload larger than the store's configured cap fails with
	// common.ErrPayloadTooLarge; any other write failure wraps
	// common.ErrStorageWriteFailed.
	Put(ctx context.Context, key string, r io.Reader) (int64, error)

	// Open returns a reader over the stored bytes.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Remove deletes the stored bytes. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// validKey rejects keys that could escape the store's namespace.
func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}

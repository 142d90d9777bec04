package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/filescloud/internal/common"
)

// FilesystemStore keeps blobs as regular files under a root directory.
type FilesystemStore struct {
	root    string
	maxSize int64
}

// NewFilesystemStore constructs a store rooted at dir. maxSize caps individual
// payloads; zero means unlimited.
func NewFilesystemStore(dir string, maxSize int64) (*FilesystemStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob root: %w", err)
	}
	return &FilesystemStore{root: dir, maxSize: maxSize}, nil
}

// Put writes through a temp file in the same directory and renames it into
// place, so a crashed upload never leaves a partial blob under the final key.
func (s *FilesystemStore) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	if !validKey(key) {
		return 0, fmt.Errorf("%w: invalid storage key %q", common.ErrStorageWriteFailed, key)
	}

	dst := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStorageWriteFailed, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStorageWriteFailed, err)
	}
	defer os.Remove(tmp.Name())

	written, err := s.copyCapped(tmp, r)
	if err == nil {
		if serr := tmp.Sync(); serr != nil {
			err = fmt.Errorf("%w: %v", common.ErrStorageWriteFailed, serr)
		}
	}
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("%w: %v", common.ErrStorageWriteFailed, cerr)
	}
	if err != nil {
		return 0, err
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStorageWriteFailed, err)
	}
	return written, nil
}

func (s *FilesystemStore) copyCapped(dst io.Writer, r io.Reader) (int64, error) {
	if s.maxSize <= 0 {
		n, err := io.Copy(dst, r)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", common.ErrStorageWriteFailed, err)
		}
		return n, nil
	}

	// read one byte past the cap to tell "exactly at cap" from "over it"
	n, err := io.Copy(dst, io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStorageWriteFailed, err)
	}
	if n > s.maxSize {
		return 0, common.ErrPayloadTooLarge
	}
	return n, nil
}

// Open returns a reader over the stored file.
func (s *FilesystemStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if !validKey(key) {
		return nil, common.ErrorNotFound
	}
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("opening blob: %w", err)
	}
	return f, nil
}

// Remove deletes the stored file if present.
func (s *FilesystemStore) Remove(ctx context.Context, key string) error {
	if !validKey(key) {
		return nil
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing blob: %w", err)
	}
	return nil
}

// Package storage persists uploaded document bodies on the local filesystem.
// Files are stored under generated names inside a single flat directory;
// client-supplied names never reach the filesystem.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"regelrecht.org/internal/portal"
)

// FSStore is a portal.BlobStore backed by a directory.
type FSStore struct {
	root string
}

var _ portal.BlobStore = (*FSStore)(nil)

// NewFSStore creates the upload directory if needed and returns a store
// rooted there.
func NewFSStore(root string) (*FSStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &FSStore{root: abs}, nil
}

// Save writes the body under name inside the root. It refuses names that
// would escape the root and bodies that exceed limit. The write goes to a
// temporary file first so a failed upload never leaves a partial blob under
// its final name.
func (s *FSStore) Save(ctx context.Context, name string, r io.Reader, limit int64) (string, int64, error) {
	path, err := s.resolve(name)
	if err != nil {
		return "", 0, err
	}

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("storage: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(r, limit+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", 0, fmt.Errorf("storage: write: %w", err)
	}
	if n > limit {
		return "", 0, portal.ErrFileTooLarge
	}
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", 0, fmt.Errorf("storage: finalize: %w", err)
	}
	return path, n, nil
}

// Remove deletes a stored blob. Removing a path that is already gone is not
// an error.
func (s *FSStore) Remove(_ context.Context, path string) error {
	resolved, err := s.resolve(filepath.Base(path))
	if err != nil {
		return err
	}
	if err := os.Remove(resolved); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: remove: %w", err)
	}
	return nil
}

// Open returns a reader for a stored blob, for the download handler.
func (s *FSStore) Open(path string) (io.ReadCloser, error) {
	resolved, err := s.resolve(filepath.Base(path))
	if err != nil {
		return nil, err
	}
	f, err := os.Open(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, portal.ErrNotFound
		}
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	return f, nil
}

// resolve joins name onto the root and rejects anything that would land
// outside it.
func (s *FSStore) resolve(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return "", fmt.Errorf("storage: invalid blob name %q", name)
	}
	path := filepath.Join(s.root, name)
	if filepath.Dir(path) != s.root {
		return "", fmt.Errorf("storage: blob name %q escapes the store", name)
	}
	return path, nil
}

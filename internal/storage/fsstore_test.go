package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"regelrecht.org/internal/portal"
)

func TestFSStoreSaveAndOpen(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	ctx := context.Background()

	path, n, err := s.Save(ctx, "doc-1.pdf", strings.NewReader("hello"), 1024)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n != 5 {
		t.Fatalf("size = %d, want 5", n)
	}

	f, err := s.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	body, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(body) != "hello" {
		t.Fatalf("body = %q", body)
	}
}

func TestFSStoreSizeLimit(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}

	_, _, err = s.Save(context.Background(), "big.pdf", strings.NewReader(strings.Repeat("x", 100)), 10)
	if !errors.Is(err, portal.ErrFileTooLarge) {
		t.Fatalf("oversize save: %v, want ErrFileTooLarge", err)
	}
	// No partial file may remain under the final name.
	if _, err := os.Stat(filepath.Join(dir, "big.pdf")); !os.IsNotExist(err) {
		t.Fatal("oversize upload left a file behind")
	}
}

func TestFSStoreRejectsTraversal(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	for _, name := range []string{"", "..", "../evil", "a/b", `a\b`} {
		if _, _, err := s.Save(context.Background(), name, strings.NewReader("x"), 10); err == nil {
			t.Fatalf("Save(%q) succeeded, want error", name)
		}
	}
}

func TestFSStoreRemoveIdempotent(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	ctx := context.Background()
	path, _, err := s.Save(ctx, "doc.pdf", strings.NewReader("x"), 10)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Remove(ctx, path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove(ctx, path); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if _, err := s.Open(path); !errors.Is(err, portal.ErrNotFound) {
		t.Fatalf("Open after remove: %v, want ErrNotFound", err)
	}
}

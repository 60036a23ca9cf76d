package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	base := t.TempDir()
	s := NewLocalStorage(base)
	ctx := context.Background()

	path, err := s.Save(ctx, "file-1", "products.csv", strings.NewReader("sku,name,price\n"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(base, "file-1") {
		t.Errorf("unexpected storage path: %s", path)
	}

	r, err := s.Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	content, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(content) != "sku,name,price\n" {
		t.Errorf("unexpected content: %q", content)
	}

	if err := s.Delete(ctx, path); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected file removed")
	}
	// The per-file directory goes with it
	if _, err := os.Stat(filepath.Join(base, "file-1")); !os.IsNotExist(err) {
		t.Error("expected file dir removed")
	}

	// Deleting a missing file is not an error
	if err := s.Delete(ctx, path); err != nil {
		t.Errorf("delete of missing file: %v", err)
	}
}

func TestLocalStorageStripsPathFromFilename(t *testing.T) {
	base := t.TempDir()
	s := NewLocalStorage(base)

	path, err := s.Save(context.Background(), "file-2", "../../etc/passwd", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Base(path) != "passwd" || filepath.Dir(path) != filepath.Join(base, "file-2") {
		t.Errorf("filename must be confined to the file dir, got %s", path)
	}
}

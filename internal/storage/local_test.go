package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.bin")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}

func TestLocalStoreUploadAndExists(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	ctx := context.Background()

	src := writeTempFile(t, "column data")
	if err := store.Upload(ctx, src, "modeled/fact_events/part-0.col"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	exists, err := store.Exists(ctx, "modeled/fact_events/part-0.col")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("uploaded object not found")
	}

	exists, err = store.Exists(ctx, "modeled/fact_events/part-1.col")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("missing object reported as existing")
	}
}

func TestLocalStoreListObjects(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	ctx := context.Background()

	src := writeTempFile(t, "x")
	paths := []string{
		"structured/structured_events/part-0.col",
		"structured/structured_items/part-0.col",
		"modeled/dim_users/part-0.col",
	}
	for _, p := range paths {
		if err := store.Upload(ctx, src, p); err != nil {
			t.Fatalf("Upload %s failed: %v", p, err)
		}
	}

	objects, err := store.ListObjects(ctx, "structured")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(objects) != 2 {
		t.Errorf("got %d objects under structured/, want 2: %v", len(objects), objects)
	}

	objects, err = store.ListObjects(ctx, "missing-prefix")
	if err != nil {
		t.Fatalf("ListObjects on missing prefix failed: %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("got %d objects under missing prefix, want 0", len(objects))
	}
}

func TestLocalStoreDeleteIsIdempotent(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	ctx := context.Background()

	src := writeTempFile(t, "x")
	if err := store.Upload(ctx, src, "a/b.col"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if err := store.Delete(ctx, "a/b.col"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "a/b.col"); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}

	exists, _ := store.Exists(ctx, "a/b.col")
	if exists {
		t.Error("deleted object still exists")
	}
}

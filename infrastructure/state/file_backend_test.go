package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileBackendSaveLoad(t *testing.T) {
	dir := t.TempDir()
	fb, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend() error = %v", err)
	}
	ctx := context.Background()

	if err := fb.Save(ctx, "qtable:v1", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, err := fb.Load(ctx, "qtable:v1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Errorf("Load() = %q", data)
	}
}

func TestFileBackendLoadMissingReturnsErrNotFound(t *testing.T) {
	fb, _ := NewFileBackend(t.TempDir())
	if _, err := fb.Load(context.Background(), "missing"); err != ErrNotFound {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestFileBackendSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	fb, _ := NewFileBackend(dir)
	if err := fb.Save(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" || len(e.Name()) > 5 && e.Name()[:5] == ".tmp-" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFileBackendDeleteMissingIsNoop(t *testing.T) {
	fb, _ := NewFileBackend(t.TempDir())
	if err := fb.Delete(context.Background(), "missing"); err != nil {
		t.Errorf("Delete() on missing key should be a no-op, got %v", err)
	}
}

func TestFileBackendListFiltersByPrefix(t *testing.T) {
	fb, _ := NewFileBackend(t.TempDir())
	ctx := context.Background()
	fb.Save(ctx, "qtable:a", []byte("1"))
	fb.Save(ctx, "qtable:b", []byte("2"))
	fb.Save(ctx, "decisionlog:a", []byte("3"))

	keys, err := fb.List(ctx, "qtable")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("List() returned %d keys, want 2: %v", len(keys), keys)
	}
}

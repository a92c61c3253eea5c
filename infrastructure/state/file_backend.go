package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileBackend is a PersistenceBackend that writes each key to its own
// file under rootDir, using a write-to-temp-then-rename discipline so a
// crash mid-write never leaves a key holding a partially written value.
// This is the backend the Q-Learning Updater and Decision Log Sink use
// to persist across restarts (spec.md §4.4, §4.10).
type FileBackend struct {
	mu      sync.Mutex
	rootDir string
}

// NewFileBackend creates a FileBackend rooted at rootDir, creating the
// directory if it does not already exist.
func NewFileBackend(rootDir string) (*FileBackend, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, err
	}
	return &FileBackend{rootDir: rootDir}, nil
}

func (f *FileBackend) path(key string) string {
	return filepath.Join(f.rootDir, encodeFileName(key))
}

// encodeFileName maps a storage key (which may contain characters
// unsafe for filenames, such as "/") onto a single path-safe segment.
func encodeFileName(key string) string {
	return strings.ReplaceAll(strings.ReplaceAll(key, string(filepath.Separator), "__"), ":", "_")
}

// Save atomically writes data for key: it writes to a temp file in the
// same directory, fsyncs it, then renames it over the final path. The
// rename is atomic on every platform Go supports, so a reader never
// observes a partial write and a crash between write and rename leaves
// the previous value (or nothing) intact.
func (f *FileBackend) Save(ctx context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	final := f.path(key)
	tmp, err := os.CreateTemp(f.rootDir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (f *FileBackend) Load(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (f *FileBackend) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (f *FileBackend) List(ctx context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.rootDir)
	if err != nil {
		return nil, err
	}
	encodedPrefix := encodeFileName(prefix)
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".tmp-") {
			continue
		}
		if strings.HasPrefix(name, encodedPrefix) {
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *FileBackend) Close(ctx context.Context) error {
	return nil
}

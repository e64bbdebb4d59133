package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/cogninote/internal/models"
)

// FS implements Provider as one JSON document on the local file system.
type FS struct {
	root string // absolute path to the data directory
	key  string
}

// NewFS creates a new FS provider storing the collection at <root>/<key>.json.
// The directory must already exist.
func NewFS(root, key string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	if err := validKey(key); err != nil {
		return nil, err
	}
	return &FS{root: abs, key: key}, nil
}

// validKey rejects keys that would resolve outside the data directory.
func validKey(key string) error {
	if key == "" {
		return fmt.Errorf("storage: key is required")
	}
	if key != filepath.Base(key) || strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("storage: invalid key: %s", key)
	}
	return nil
}

// Path returns the absolute path of the collection document.
func (f *FS) Path() string {
	return filepath.Join(f.root, f.key+".json")
}

// Load reads and decodes the collection document.
func (f *FS) Load(_ context.Context) ([]models.Note, error) {
	data, err := os.ReadFile(f.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []models.Note{}, nil
		}
		return nil, fmt.Errorf("storage: read %s: %w", f.key, err)
	}
	return decode(data)
}

// Save atomically rewrites the document: tmp file → fsync → rename.
func (f *FS) Save(_ context.Context, notes []models.Note) error {
	data, err := encode(notes)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, ".cogninote-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.Path()); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Close is a no-op for the file backend.
func (f *FS) Close() error { return nil }

package fingerprint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Store persists the dependency fingerprint of the last successful package
// install. The file holds the raw hex digest with no trailing newline.
type Store struct {
	Path string
}

func New(path string) Store {
	return Store{Path: path}
}

// Read returns the persisted fingerprint. ok is false when no file exists.
func (s Store) Read() (value string, ok bool, err error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read fingerprint: %w", err)
	}
	return string(data), true, nil
}

// Write replaces the fingerprint file atomically.
func (s Store) Write(value string) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("prepare fingerprint dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".fingerprint-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp fingerprint: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return fmt.Errorf("write fingerprint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close fingerprint: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		return fmt.Errorf("commit fingerprint: %w", err)
	}
	return nil
}

// Remove deletes the fingerprint file. A missing file is not an error.
func (s Store) Remove() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove fingerprint: %w", err)
	}
	return nil
}

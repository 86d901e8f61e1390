package bootstrap

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// syncProject writes every file of src into dir, touching only files that are
// missing or differ. It reports whether anything was written.
func syncProject(src fs.FS, dir string) (bool, error) {
	changed := false
	err := fs.WalkDir(src, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		target := filepath.Join(dir, filepath.FromSlash(name))
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		want, err := fs.ReadFile(src, name)
		if err != nil {
			return err
		}
		if have, err := os.ReadFile(target); err == nil && bytes.Equal(have, want) {
			return nil
		}
		if err := writeFileAtomic(target, want); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return changed, fmt.Errorf("sync %s: %w", dir, err)
	}
	return changed, nil
}

// projectCurrent reports whether dir already holds every file of src with
// identical content.
func projectCurrent(src fs.FS, dir string) bool {
	current := true
	_ = fs.WalkDir(src, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			current = false
			return fs.SkipAll
		}
		if d.IsDir() {
			return nil
		}
		want, err := fs.ReadFile(src, name)
		if err != nil {
			current = false
			return fs.SkipAll
		}
		have, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
		if err != nil || !bytes.Equal(have, want) {
			current = false
			return fs.SkipAll
		}
		return nil
	})
	return current
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

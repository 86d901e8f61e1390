package bootstrap

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"hostboot/internal/runner"
)

// signDirectory ad-hoc signs every executable and shared library below dir.
// Overridden in tests.
var signDirectory = func(ctx context.Context, r runner.Runner, dir string) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Mode().Perm()&0o111 == 0 && !signable(d.Name()) {
			return nil
		}
		if _, err := r.Run(ctx, "codesign", []string{"--force", "--sign", "-", path}, runner.RunOptions{}); err != nil {
			return failure(ErrSubprocess, "codesign %s: %w", path, err)
		}
		return nil
	})
	if err != nil && Kind(err) == nil {
		return failure(ErrFilesystem, "sign %s: %w", dir, err)
	}
	return err
}

func signable(name string) bool {
	return strings.HasSuffix(name, ".dylib") || strings.HasSuffix(name, ".so")
}

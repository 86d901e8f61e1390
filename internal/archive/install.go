package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"hostboot/internal/platform"
)

// Request describes one archive to unpack into a canonical directory.
type Request struct {
	Format  platform.ArchiveFormat
	Archive string
	// Dest is replaced wholesale once extraction succeeds.
	Dest string
	// TopDir, when set, is the top-level directory the archive must contain.
	TopDir string
}

// Install extracts the archive into a staging directory next to Dest, strips a
// single top-level directory if the archive has one, then moves the result
// into Dest. The staging directory is always removed; the archive is removed
// once the tree is in place.
func Install(ctx context.Context, req Request) error {
	parent := filepath.Dir(req.Dest)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("prepare install dir: %w", err)
	}

	staging, err := os.MkdirTemp(parent, "."+filepath.Base(req.Dest)+"-staging-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	if err := Extract(ctx, req.Format, req.Archive, staging); err != nil {
		return err
	}

	root, err := contentRoot(staging)
	if err != nil {
		return err
	}
	if req.TopDir != "" && (root == staging || filepath.Base(root) != req.TopDir) {
		return fmt.Errorf("archive %s does not contain %s/", filepath.Base(req.Archive), req.TopDir)
	}

	if err := os.RemoveAll(req.Dest); err != nil {
		return fmt.Errorf("replace %s: %w", req.Dest, err)
	}
	if err := os.Rename(root, req.Dest); err != nil {
		return fmt.Errorf("commit %s: %w", req.Dest, err)
	}

	if err := os.Remove(req.Archive); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove archive: %w", err)
	}
	return nil
}

// contentRoot returns the lone top-level directory of an extracted tree, or
// the tree itself when entries sit at the top level.
func contentRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read staging dir: %w", err)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}

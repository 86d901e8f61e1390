package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"hostboot/internal/archive/archivetest"
	"hostboot/internal/platform"
)

func TestInstallFlattensTopLevelDir(t *testing.T) {
	data := archivetest.TarGz(t, archivetest.Files(map[string]string{
		"uv-x86_64-unknown-linux-gnu/uv":  "uv",
		"uv-x86_64-unknown-linux-gnu/uvx": "uvx",
	}))
	root := t.TempDir()
	src := filepath.Join(root, "uv.tar.gz")
	if err := os.WriteFile(src, data, 0o644); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(root, "bin", "manager")

	if err := Install(context.Background(), Request{Format: platform.ArchiveTarGz, Archive: src, Dest: dest}); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if got := readFile(t, filepath.Join(dest, "uv")); got != "uv" {
		t.Fatalf("unexpected uv content %q", got)
	}
	if got := readFile(t, filepath.Join(dest, "uvx")); got != "uvx" {
		t.Fatalf("unexpected uvx content %q", got)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("archive should be deleted after install")
	}
	entries, err := os.ReadDir(filepath.Dir(dest))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("staging dir left behind: %v", entries)
	}
}

func TestInstallFlatArchiveReplacesDest(t *testing.T) {
	data := archivetest.Zip(t, archivetest.Files(map[string]string{
		"uv.exe":  "new",
		"uvx.exe": "new",
	}))
	root := t.TempDir()
	src := filepath.Join(root, "uv.zip")
	if err := os.WriteFile(src, data, 0o644); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(root, "manager")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dest, "stale.exe"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Install(context.Background(), Request{Format: platform.ArchiveZip, Archive: src, Dest: dest}); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if got := readFile(t, filepath.Join(dest, "uv.exe")); got != "new" {
		t.Fatalf("unexpected content %q", got)
	}
	if _, err := os.Stat(filepath.Join(dest, "stale.exe")); !os.IsNotExist(err) {
		t.Fatal("stale file survived install")
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("archive should be removed after install")
	}
}

func TestInstallFailureLeavesDestUntouched(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "broken.zip")
	if err := os.WriteFile(src, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(root, "runtime")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dest, "node.exe"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Install(context.Background(), Request{Format: platform.ArchiveZip, Archive: src, Dest: dest}); err == nil {
		t.Fatal("expected extraction error")
	}
	if got := readFile(t, filepath.Join(dest, "node.exe")); got != "old" {
		t.Fatalf("dest modified on failure: %q", got)
	}
}

func TestInstallRequiresTopDir(t *testing.T) {
	data := archivetest.Zip(t, archivetest.Files(map[string]string{
		"node-v22.17.0-win-arm64/node.exe": "node",
	}))
	root := t.TempDir()
	src := filepath.Join(root, "node.zip")
	if err := os.WriteFile(src, data, 0o644); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(root, "runtime")

	err := Install(context.Background(), Request{Format: platform.ArchiveZip, Archive: src, Dest: dest, TopDir: "node-v22.17.0-win-x64"})
	if err == nil {
		t.Fatal("expected top-level directory mismatch")
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatal("dest should not be created on mismatch")
	}

	if err := Install(context.Background(), Request{Format: platform.ArchiveZip, Archive: src, Dest: dest, TopDir: "node-v22.17.0-win-arm64"}); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if got := readFile(t, filepath.Join(dest, "node.exe")); got != "node" {
		t.Fatalf("unexpected content %q", got)
	}
}

// Package archivetest builds small toolchain-shaped archives for tests.
package archivetest

import (
	"archive/tar"
	"bytes"
	"io"
	"io/fs"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
)

// Entry is one archive member. Names ending in "/" are directories; a
// non-empty Link makes a symlink.
type Entry struct {
	Name string
	Body string
	Mode int64
	Link string
}

// Files is a shorthand for regular 0755 files.
func Files(files map[string]string) []Entry {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, Entry{Name: name, Body: files[name], Mode: 0o755})
	}
	return entries
}

// TarGz returns a gzip-compressed tarball.
func TarGz(t testing.TB, entries []Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)
	writeTar(t, gz, entries)
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}

// TarXz returns an xz-compressed tarball.
func TarXz(t testing.TB, entries []Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatalf("xz writer: %v", err)
	}
	writeTar(t, xw, entries)
	if err := xw.Close(); err != nil {
		t.Fatalf("close xz: %v", err)
	}
	return buf.Bytes()
}

// Zip returns a zip archive.
func Zip(t testing.TB, entries []Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		header := &zip.FileHeader{Name: e.Name, Method: zip.Deflate}
		mode := e.Mode
		if mode == 0 {
			mode = 0o644
		}
		if strings.HasSuffix(e.Name, "/") {
			header.SetMode(fs.ModeDir | 0o755)
		} else {
			header.SetMode(fs.FileMode(mode))
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			t.Fatalf("zip header %s: %v", e.Name, err)
		}
		if _, err := io.WriteString(w, e.Body); err != nil {
			t.Fatalf("zip write %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func writeTar(t testing.TB, w io.Writer, entries []Entry) {
	t.Helper()
	tw := tar.NewWriter(w)
	for _, e := range entries {
		mode := e.Mode
		if mode == 0 {
			mode = 0o644
		}
		header := &tar.Header{Name: e.Name, Mode: mode, Size: int64(len(e.Body)), Typeflag: tar.TypeReg}
		switch {
		case strings.HasSuffix(e.Name, "/"):
			header.Typeflag = tar.TypeDir
			header.Mode = 0o755
			header.Size = 0
		case e.Link != "":
			header.Typeflag = tar.TypeSymlink
			header.Linkname = e.Link
			header.Size = 0
		}
		if err := tw.WriteHeader(header); err != nil {
			t.Fatalf("tar header %s: %v", e.Name, err)
		}
		if header.Typeflag == tar.TypeReg {
			if _, err := io.WriteString(tw, e.Body); err != nil {
				t.Fatalf("tar write %s: %v", e.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
}

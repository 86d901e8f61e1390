package pins

import (
	"embed"
	"encoding/hex"
	"io/fs"
	"sync"

	"lukechampine.com/blake3"
)

// project holds the files materialized into the host and scripts
// directories before their installers run.
//
//go:embed project
var project embed.FS

const lockPath = "project/host/uv.lock"

var (
	fingerprintOnce sync.Once
	fingerprint     string
)

// HostProject returns the Python project (pyproject.toml and uv.lock) that
// packages are exported from.
func HostProject() fs.FS {
	return mustSub("project/host")
}

// ScriptsProject returns the npm project installed into the scripts directory.
func ScriptsProject() fs.FS {
	return mustSub("project/scripts")
}

func mustSub(dir string) fs.FS {
	sub, err := fs.Sub(project, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

// LockFile returns the locked package manifest the binary was built with.
func LockFile() []byte {
	data, err := project.ReadFile(lockPath)
	if err != nil {
		panic(err)
	}
	return data
}

// Fingerprint returns the BLAKE3-256 hex digest of the embedded lock file.
func Fingerprint() string {
	fingerprintOnce.Do(func() {
		fingerprint = Digest(LockFile())
	})
	return fingerprint
}

// Digest returns the BLAKE3-256 hex digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

package platform

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// Target is a Rust-style target triple such as x86_64-unknown-linux-gnu. It
// selects the pinned digest and archive format for downloaded toolchains.
type Target string

// ArchiveFormat identifies how a downloaded toolchain archive is packed.
type ArchiveFormat string

const (
	ArchiveZip   ArchiveFormat = "zip"
	ArchiveTarGz ArchiveFormat = "tar.gz"
	ArchiveTarXz ArchiveFormat = "tar.xz"
)

var archTokens = map[string]string{
	"amd64":   "x86_64",
	"arm64":   "aarch64",
	"386":     "i686",
	"arm":     "armv7",
	"ppc64":   "powerpc64",
	"ppc64le": "powerpc64le",
	"riscv64": "riscv64gc",
	"s390x":   "s390x",
}

// muslLoaderGlob is overridden in tests.
var muslLoaderGlob = "/lib/ld-musl-*"

// Detect computes the target for the running process.
func Detect() (Target, error) {
	return fromGo(runtime.GOOS, runtime.GOARCH, hasMusl())
}

func fromGo(goos, goarch string, musl bool) (Target, error) {
	arch, ok := archTokens[goarch]
	if !ok {
		return "", fmt.Errorf("unsupported architecture %s", goarch)
	}
	switch goos {
	case "darwin":
		if goarch != "amd64" && goarch != "arm64" {
			return "", fmt.Errorf("unsupported architecture %s for darwin", goarch)
		}
		return Target(arch + "-apple-darwin"), nil
	case "windows":
		return Target(arch + "-pc-windows-msvc"), nil
	case "linux":
		libc := "gnu"
		if musl {
			libc = "musl"
		}
		if goarch == "arm" {
			if musl {
				return Target("armv7-unknown-linux-musleabihf"), nil
			}
			return Target("armv7-unknown-linux-gnueabihf"), nil
		}
		return Target(arch + "-unknown-linux-" + libc), nil
	default:
		return "", fmt.Errorf("unsupported operating system %s", goos)
	}
}

func hasMusl() bool {
	matches, err := filepath.Glob(muslLoaderGlob)
	return err == nil && len(matches) > 0
}

// Parse validates an explicit target string, typically from configuration.
func Parse(value string) (Target, error) {
	value = strings.TrimSpace(value)
	parts := strings.Split(value, "-")
	if len(parts) < 3 {
		return "", fmt.Errorf("invalid target %q", value)
	}
	t := Target(value)
	if t.OS() == "" {
		return "", fmt.Errorf("invalid target %q: unknown operating system", value)
	}
	return t, nil
}

func (t Target) String() string {
	return string(t)
}

// OS returns the Go-style operating system name of the target.
func (t Target) OS() string {
	s := string(t)
	switch {
	case strings.Contains(s, "-windows-"):
		return "windows"
	case strings.Contains(s, "-apple-darwin"):
		return "darwin"
	case strings.Contains(s, "-linux-"):
		return "linux"
	default:
		return ""
	}
}

// Arch returns the first component of the triple.
func (t Target) Arch() string {
	s := string(t)
	if idx := strings.IndexByte(s, '-'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func (t Target) IsWindows() bool {
	return t.OS() == "windows"
}

// ExeSuffix returns ".exe" on Windows targets and "" elsewhere.
func (t Target) ExeSuffix() string {
	if t.IsWindows() {
		return ".exe"
	}
	return ""
}

// Executable appends the platform executable suffix to base.
func (t Target) Executable(base string) string {
	return base + t.ExeSuffix()
}

// ArchiveFormat returns the archive format upstream toolchains ship for t.
func (t Target) ArchiveFormat() ArchiveFormat {
	if t.IsWindows() {
		return ArchiveZip
	}
	return ArchiveTarGz
}

// NodeArch maps the target architecture to the token used by Node.js
// distribution file names.
func (t Target) NodeArch() string {
	switch t.Arch() {
	case "x86_64":
		return "x64"
	case "aarch64":
		return "arm64"
	case "i686":
		return "x86"
	default:
		return t.Arch()
	}
}

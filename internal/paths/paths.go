package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hostboot/internal/config"
)

const homeDirName = ".hostboot"

// Dirs is the installation layout. It is built once at startup and treated as
// read-only afterwards.
type Dirs struct {
	Root        string
	ConfigFile  string
	BinDir      string
	Manager     string
	Interpreter string
	Runtime     string
	CacheDir    string
	ScriptsDir  string
	HostDir     string
	LogsDir     string
}

// Resolve picks the data root from the --root flag, then HOSTBOOT_HOME, then
// ~/.hostboot.
func Resolve(rootFlag string) (Dirs, error) {
	root := strings.TrimSpace(rootFlag)
	if root == "" {
		root = strings.TrimSpace(os.Getenv(config.EnvHome))
	}
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Dirs{}, fmt.Errorf("detect user home: %w", err)
		}
		root = filepath.Join(home, homeDirName)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Dirs{}, fmt.Errorf("resolve root: %w", err)
	}
	return New(abs), nil
}

// New lays out the standard directories under root.
func New(root string) Dirs {
	bin := filepath.Join(root, "bin")
	return Dirs{
		Root:        root,
		ConfigFile:  filepath.Join(root, "config.yaml"),
		BinDir:      bin,
		Manager:     filepath.Join(bin, "manager"),
		Interpreter: filepath.Join(bin, "interpreter"),
		Runtime:     filepath.Join(bin, "runtime"),
		CacheDir:    filepath.Join(root, "cache"),
		ScriptsDir:  filepath.Join(root, "scripts"),
		HostDir:     filepath.Join(root, "host"),
		LogsDir:     filepath.Join(root, "log"),
	}
}

// ApplyConfig honours host_dir and scripts_dir. Relative values are taken
// from the root.
func ApplyConfig(d Dirs, cfg config.Config) Dirs {
	if host := strings.TrimSpace(cfg.HostDir); host != "" {
		d.HostDir = resolveRootPath(d.Root, host)
	}
	if scripts := strings.TrimSpace(cfg.ScriptsDir); scripts != "" {
		d.ScriptsDir = resolveRootPath(d.Root, scripts)
	}
	return d
}

func resolveRootPath(root, value string) string {
	if filepath.IsAbs(value) {
		return filepath.Clean(value)
	}
	return filepath.Join(root, value)
}

func (d Dirs) FingerprintFile() string {
	return filepath.Join(d.CacheDir, "uv.lock.fingerprint")
}

func (d Dirs) RequirementsFile() string {
	return filepath.Join(d.CacheDir, "requirements.txt")
}

// DepsDir is the isolated --target directory for interpreter packages.
func (d Dirs) DepsDir() string {
	return filepath.Join(d.CacheDir, "deps")
}

func (d Dirs) LockFile() string {
	return filepath.Join(d.HostDir, "uv.lock")
}

func (d Dirs) NodeModules() string {
	return filepath.Join(d.ScriptsDir, "node_modules")
}

// EnsureBase creates the directories every run needs. Toolchain directories
// are created by their installers.
func (d Dirs) EnsureBase() error {
	for _, dir := range []string{d.Root, d.BinDir, d.CacheDir, d.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// DirExists reports whether a path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

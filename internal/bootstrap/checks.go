package bootstrap

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"hostboot/internal/fingerprint"
	"hostboot/internal/paths"
	"hostboot/internal/pins"
	"hostboot/internal/platform"
	"hostboot/internal/runner"
)

// Checker answers "is this step needed?" for each step. Checks never fail:
// anything unexpected is treated as "needed" and logged.
type Checker struct {
	dirs        paths.Dirs
	target      platform.Target
	pins        pins.Set
	runner      runner.Runner
	store       fingerprint.Store
	fingerprint string
	scripts     fs.FS
	logger      Logger
}

// StepStatus is one row of a read-only status report.
type StepStatus struct {
	Step   string `json:"step"`
	Needed bool   `json:"needed"`
	Skip   bool   `json:"skipped,omitempty"`
	Detail string `json:"detail"`
}

func (c *Checker) managerExe() string {
	return filepath.Join(c.dirs.Manager, c.target.Executable("uv"))
}

func (c *Checker) managerToolExe() string {
	return filepath.Join(c.dirs.Manager, c.target.Executable("uvx"))
}

// interpreterExe is the file whose presence marks the interpreter installed.
func (c *Checker) interpreterExe() string {
	if c.target.IsWindows() {
		return filepath.Join(c.dirs.Interpreter, "python.exe")
	}
	return filepath.Join(c.dirs.Interpreter, "bin", "python")
}

// interpreterForPackages is passed to --python when installing packages.
func (c *Checker) interpreterForPackages() string {
	if c.target.IsWindows() {
		return filepath.Join(c.dirs.Interpreter, "python.exe")
	}
	return filepath.Join(c.dirs.Interpreter, "bin", "python3")
}

func (c *Checker) runtimeExe() string {
	return filepath.Join(c.dirs.Runtime, "node.exe")
}

// ManagerNeeded reports whether uv is missing or not at the pinned version.
func (c *Checker) ManagerNeeded(ctx context.Context) bool {
	needed, detail := c.managerState(ctx)
	c.logger.Printf("check %s: needed=%t (%s)", StepManager, needed, detail)
	return needed
}

func (c *Checker) managerState(ctx context.Context) (bool, string) {
	for _, exe := range []string{c.managerExe(), c.managerToolExe()} {
		if ok, _ := paths.FileExists(exe); !ok {
			return true, exe + " missing"
		}
	}
	version, err := c.managerVersion(ctx)
	if err != nil {
		return true, "version probe failed: " + err.Error()
	}
	if version != c.pins.ManagerVersion {
		return true, "found " + version + ", want " + c.pins.ManagerVersion
	}
	return false, "uv " + version
}

// managerVersion runs "uv -V" and returns the second field of "uv 0.8.12 (...)".
func (c *Checker) managerVersion(ctx context.Context) (string, error) {
	result, err := c.runner.Run(ctx, c.managerExe(), []string{"-V"}, runner.RunOptions{})
	if err != nil {
		return "", err
	}
	fields := strings.Fields(firstLine(string(result.Stdout)))
	if len(fields) < 2 {
		return "", nil
	}
	return fields[1], nil
}

// InterpreterNeeded reports whether the interpreter distribution is absent.
func (c *Checker) InterpreterNeeded() bool {
	ok, _ := paths.FileExists(c.interpreterExe())
	c.logger.Printf("check %s: needed=%t (%s)", StepInterpreter, !ok, c.interpreterExe())
	return !ok
}

// RuntimeNeeded reports whether Node.js is absent. Only Windows targets carry
// a private runtime; elsewhere it is never needed.
func (c *Checker) RuntimeNeeded() bool {
	if !c.target.IsWindows() {
		return false
	}
	ok, _ := paths.FileExists(c.runtimeExe())
	c.logger.Printf("check %s: needed=%t (%s)", StepRuntime, !ok, c.runtimeExe())
	return !ok
}

// PackagesNeeded compares the persisted fingerprint with the embedded one. A
// missing file is replaced by the embedded value (the baseline) and reported
// as needed; callers remove it again if the install fails.
func (c *Checker) PackagesNeeded() (bool, error) {
	value, ok, err := c.store.Read()
	if err != nil {
		return true, err
	}
	if !ok {
		c.logger.Printf("check %s: fingerprint missing, writing baseline", StepPackages)
		if err := c.store.Write(c.fingerprint); err != nil {
			return true, err
		}
		return true, nil
	}
	needed := value != c.fingerprint
	c.logger.Printf("check %s: needed=%t (current %q, expected %q)", StepPackages, needed, value, c.fingerprint)
	return needed, nil
}

// packagesStale is PackagesNeeded without the baseline write.
func (c *Checker) packagesStale() (bool, string) {
	value, ok, err := c.store.Read()
	switch {
	case err != nil:
		return true, err.Error()
	case !ok:
		return true, "fingerprint missing"
	case value != c.fingerprint:
		return true, "fingerprint differs"
	default:
		return false, "fingerprint " + shortDigest(value)
	}
}

// ToolsNeeded reports whether the auxiliary script packages are absent or
// the scripts project on disk differs from the embedded one.
func (c *Checker) ToolsNeeded() bool {
	needed, detail := c.toolsState()
	c.logger.Printf("check %s: needed=%t (%s)", StepTools, needed, detail)
	return needed
}

func (c *Checker) toolsState() (bool, string) {
	if ok, _ := paths.DirExists(c.dirs.NodeModules()); !ok {
		return true, c.dirs.NodeModules() + " missing"
	}
	if !projectCurrent(c.scripts, c.dirs.ScriptsDir) {
		return true, "scripts project changed"
	}
	return false, c.dirs.NodeModules()
}

// Report evaluates every check without changing anything on disk.
func (c *Checker) Report(ctx context.Context) []StepStatus {
	manager, managerDetail := c.managerState(ctx)

	interpreterOK, _ := paths.FileExists(c.interpreterExe())

	runtime := StepStatus{Step: StepRuntime, Skip: true, Detail: "not used on " + c.target.OS()}
	if c.target.IsWindows() {
		ok, _ := paths.FileExists(c.runtimeExe())
		runtime = StepStatus{Step: StepRuntime, Needed: !ok, Detail: c.runtimeExe()}
	}

	packages, packagesDetail := c.packagesStale()
	tools, toolsDetail := c.toolsState()

	return []StepStatus{
		{Step: StepManager, Needed: manager, Detail: managerDetail},
		{Step: StepInterpreter, Needed: !interpreterOK, Detail: c.interpreterExe()},
		runtime,
		{Step: StepPackages, Needed: packages, Detail: packagesDetail},
		{Step: StepTools, Needed: tools, Detail: toolsDetail},
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

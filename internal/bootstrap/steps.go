package bootstrap

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"

	"hostboot/internal/archive"
	"hostboot/internal/paths"
	"hostboot/internal/platform"
	"hostboot/internal/runner"
)

func (o *Orchestrator) installManager(ctx context.Context) error {
	digest, err := o.pins.ManagerDigest(o.target)
	if err != nil {
		return &stepError{kind: ErrUnsupportedTarget, err: err}
	}

	src := o.pins.ManagerArchiveURL(o.target)
	name, format := o.managerArchive(src)
	archivePath := filepath.Join(o.dirs.BinDir, name)

	o.output(StepManager, "downloading uv %s from %s", o.pins.ManagerVersion, src)
	if err := o.artifacts.Fetch(ctx, src, archivePath, o.progressFunc(StepManager)); err != nil {
		return failure(ErrNetwork, "download %s: %w", src, err)
	}

	o.output(StepManager, "verifying %s", filepath.Base(archivePath))
	ok, err := o.artifacts.Verify(archivePath, digest)
	if err != nil {
		_ = os.Remove(archivePath)
		return failure(ErrFilesystem, "verify archive: %w", err)
	}
	if !ok {
		_ = os.Remove(archivePath)
		return failure(ErrIntegrityMismatch, "checksum mismatch for %s", filepath.Base(archivePath))
	}

	o.output(StepManager, "extracting uv to %s", o.dirs.Manager)
	req := archive.Request{
		Format:  format,
		Archive: archivePath,
		Dest:    o.dirs.Manager,
	}
	if err := o.artifacts.Install(ctx, req); err != nil {
		_ = os.Remove(archivePath)
		return failure(ErrExtraction, "extract %s: %w", filepath.Base(archivePath), err)
	}

	for _, exe := range []string{o.checks.managerExe(), o.checks.managerToolExe()} {
		if ok, _ := paths.FileExists(exe); !ok {
			return failure(ErrExtraction, "archive did not contain %s", filepath.Base(exe))
		}
	}

	if o.target.OS() == "darwin" {
		o.output(StepManager, "signing uv, please wait...")
		if err := signDirectory(ctx, o.runner, o.dirs.Manager); err != nil {
			return err
		}
	}

	o.output(StepManager, "uv %s installed", o.pins.ManagerVersion)
	return nil
}

// managerArchive picks the local file name and archive format from the
// download URL, so a mirror may serve a different compression than upstream.
// URLs without a recognised extension use the target's default format.
func (o *Orchestrator) managerArchive(src string) (string, platform.ArchiveFormat) {
	if u, err := url.Parse(src); err == nil {
		base := path.Base(u.Path)
		if format, ok := archive.FormatFromName(base); ok {
			return base, format
		}
	}
	return o.pins.ManagerArchiveName(o.target), o.target.ArchiveFormat()
}

func (o *Orchestrator) installInterpreter(ctx context.Context) error {
	tmp := filepath.Join(o.dirs.BinDir, "py_tmp")
	if err := os.RemoveAll(tmp); err != nil {
		return failure(ErrFilesystem, "clear %s: %w", tmp, err)
	}
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return failure(ErrFilesystem, "create %s: %w", tmp, err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	o.output(StepInterpreter, "installing python %s", o.pins.InterpreterVersion)
	args := []string{"python", "install", o.pins.InterpreterVersion, "-i", tmp}
	if _, err := o.runner.Run(ctx, o.checks.managerExe(), args, runner.RunOptions{
		OnLine:      o.lineFunc(StepInterpreter, "uv", true),
		ErrorPrefix: o.errorPrefix,
	}); err != nil {
		return failure(ErrSubprocess, "uv python install: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(tmp, "cpython-3*"))
	if err != nil {
		return failure(ErrFilesystem, "locate interpreter: %w", err)
	}
	var dirs []string
	for _, m := range matches {
		if ok, _ := paths.DirExists(m); ok {
			dirs = append(dirs, m)
		}
	}
	if len(dirs) == 0 {
		return failure(ErrFilesystem, "no cpython-3* directory in %s", tmp)
	}
	sort.Strings(dirs)
	src := dirs[len(dirs)-1]

	if err := os.RemoveAll(o.dirs.Interpreter); err != nil {
		return failure(ErrFilesystem, "replace %s: %w", o.dirs.Interpreter, err)
	}
	if err := os.Rename(src, o.dirs.Interpreter); err != nil {
		return failure(ErrFilesystem, "move interpreter into place: %w", err)
	}

	if o.target.OS() == "darwin" {
		o.output(StepInterpreter, "signing python, please wait...")
		if err := signDirectory(ctx, o.runner, o.dirs.Interpreter); err != nil {
			return err
		}
	}

	o.output(StepInterpreter, "python %s installed", o.pins.InterpreterVersion)
	return nil
}

// installRuntime downloads the Windows Node.js distribution. Upstream
// publishes no digest for it in the pinned set, so only the transfer itself
// is checked.
func (o *Orchestrator) installRuntime(ctx context.Context) error {
	tmp := filepath.Join(o.dirs.BinDir, "runtime_tmp")
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return failure(ErrFilesystem, "create %s: %w", tmp, err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	src := o.pins.RuntimeArchiveURL(o.target)
	archivePath := filepath.Join(tmp, o.pins.RuntimeDirName(o.target)+".zip")

	o.output(StepRuntime, "downloading nodejs %s from %s", o.pins.RuntimeVersion, src)
	if err := o.artifacts.Fetch(ctx, src, archivePath, o.progressFunc(StepRuntime)); err != nil {
		return failure(ErrNetwork, "download %s: %w", src, err)
	}

	o.output(StepRuntime, "extracting nodejs to %s", o.dirs.Runtime)
	req := archive.Request{
		Format:  o.target.ArchiveFormat(),
		Archive: archivePath,
		Dest:    o.dirs.Runtime,
		TopDir:  o.pins.RuntimeDirName(o.target),
	}
	if err := o.artifacts.Install(ctx, req); err != nil {
		return failure(ErrExtraction, "extract %s: %w", filepath.Base(archivePath), err)
	}

	o.output(StepRuntime, "nodejs %s installed", o.pins.RuntimeVersion)
	return nil
}

func (o *Orchestrator) installPackages(ctx context.Context) error {
	changed, err := syncProject(o.hostProject, o.dirs.HostDir)
	if err != nil {
		return failure(ErrFilesystem, "failed to install dependencies: %w", err)
	}
	if changed {
		o.output(StepPackages, "wrote host project to %s", o.dirs.HostDir)
	}
	lock := o.dirs.LockFile()
	if ok, _ := paths.FileExists(lock); !ok {
		return failure(ErrFilesystem, "failed to install dependencies: %s not found", lock)
	}
	if err := os.MkdirAll(o.dirs.CacheDir, 0o755); err != nil {
		return failure(ErrFilesystem, "failed to install dependencies: %w", err)
	}

	uv := o.checks.managerExe()
	requirements := o.dirs.RequirementsFile()

	o.output(StepPackages, "generating requirements.txt")
	if _, err := o.runner.Run(ctx, uv, []string{"export", "-o", requirements}, runner.RunOptions{
		Dir:         o.dirs.HostDir,
		OnLine:      o.lineFunc(StepPackages, "uv", true),
		ErrorPrefix: o.errorPrefix,
	}); err != nil {
		return failure(ErrSubprocess, "failed to generate requirements.txt: %w", err)
	}

	o.output(StepPackages, "installing host dependencies")
	args := []string{
		"pip", "install",
		"-r", requirements,
		"--target", o.dirs.DepsDir(),
		"--python", o.checks.interpreterForPackages(),
	}
	if _, err := o.runner.Run(ctx, uv, args, runner.RunOptions{
		Dir:         o.dirs.HostDir,
		ClearEnv:    []string{"PYTHONPATH", "PYTHONHOME"},
		OnLine:      o.lineFunc(StepPackages, "uv", true),
		ErrorPrefix: o.errorPrefix,
	}); err != nil {
		return failure(ErrSubprocess, "failed to install host dependencies: %w", err)
	}

	if o.target.OS() == "darwin" {
		o.output(StepPackages, "signing host dependencies, please wait...")
		if err := signDirectory(ctx, o.runner, o.dirs.DepsDir()); err != nil {
			return err
		}
	}

	if err := o.checks.store.Write(o.checks.fingerprint); err != nil {
		return failure(ErrFilesystem, "failed to record dependency fingerprint: %w", err)
	}
	o.output(StepPackages, "host dependencies installed")
	return nil
}

// installTools runs npm install for the helper scripts. Its errors are
// reported to the caller for logging only.
func (o *Orchestrator) installTools(ctx context.Context) error {
	if _, err := syncProject(o.checks.scripts, o.dirs.ScriptsDir); err != nil {
		return err
	}
	npm := "npm"
	if o.target.IsWindows() {
		npm = filepath.Join(o.dirs.Runtime, "npm.cmd")
	}

	o.output(StepTools, "installing tool dependencies")
	if _, err := o.runner.Run(ctx, npm, []string{"install"}, runner.RunOptions{
		Dir:         o.dirs.ScriptsDir,
		OnLine:      o.lineFunc(StepTools, "npm", false),
		ErrorPrefix: o.errorPrefix,
	}); err != nil {
		return fmt.Errorf("npm install: %w", err)
	}
	o.output(StepTools, "tool dependencies installed")
	return nil
}

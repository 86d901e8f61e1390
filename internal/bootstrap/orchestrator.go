package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"

	"hostboot/internal/download"
	"hostboot/internal/fingerprint"
	"hostboot/internal/paths"
	"hostboot/internal/pins"
	"hostboot/internal/platform"
	"hostboot/internal/runner"
)

// Logger is the minimal logging surface the orchestrator needs.
type Logger interface {
	Printf(format string, v ...any)
}

type noopLogger struct{}

func (noopLogger) Printf(string, ...any) {}

// Options configures an Orchestrator. Zero values pick production defaults.
type Options struct {
	Dirs   paths.Dirs
	Target platform.Target
	Pins   pins.Set
	// Fingerprint defaults to the digest of the embedded lock file.
	Fingerprint string
	Runner      runner.Runner
	Artifacts   Artifacts
	Logger      Logger
	DevMode     bool
	ErrorPrefix string
	EventBuffer int
	UserAgent   string

	// HostProject and ScriptsProject are written into Dirs.HostDir and
	// Dirs.ScriptsDir before their installers run. They default to the
	// embedded projects.
	HostProject    fs.FS
	ScriptsProject fs.FS
}

// Orchestrator drives one bootstrap run.
type Orchestrator struct {
	dirs        paths.Dirs
	target      platform.Target
	pins        pins.Set
	runner      runner.Runner
	artifacts   Artifacts
	logger      Logger
	devMode     bool
	errorPrefix string
	hostProject fs.FS
	checks      *Checker
	events      *Events
	started     atomic.Bool
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Dirs.Root == "" {
		return nil, errors.New("bootstrap: installation root is required")
	}
	if opts.Target == "" {
		return nil, errors.New("bootstrap: target is required")
	}
	if opts.Pins.ManagerVersion == "" {
		opts.Pins = pins.Default()
	}
	if opts.Fingerprint == "" {
		opts.Fingerprint = pins.Fingerprint()
	}
	if opts.HostProject == nil {
		opts.HostProject = pins.HostProject()
	}
	if opts.ScriptsProject == nil {
		opts.ScriptsProject = pins.ScriptsProject()
	}
	if opts.Runner == nil {
		opts.Runner = runner.CmdRunner{}
	}
	if opts.Artifacts == nil {
		opts.Artifacts = NetArtifacts{Fetcher: &download.Fetcher{Client: download.NewClient(), UserAgent: opts.UserAgent}}
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.ErrorPrefix == "" {
		opts.ErrorPrefix = runner.DefaultErrorPrefix
	}

	o := &Orchestrator{
		dirs:        opts.Dirs,
		target:      opts.Target,
		pins:        opts.Pins,
		runner:      opts.Runner,
		artifacts:   opts.Artifacts,
		logger:      opts.Logger,
		devMode:     opts.DevMode,
		errorPrefix: opts.ErrorPrefix,
		hostProject: opts.HostProject,
		events:      newEvents(opts.EventBuffer),
	}
	o.checks = &Checker{
		dirs:        opts.Dirs,
		target:      opts.Target,
		pins:        opts.Pins,
		runner:      opts.Runner,
		store:       fingerprint.New(opts.Dirs.FingerprintFile()),
		fingerprint: opts.Fingerprint,
		scripts:     opts.ScriptsProject,
		logger:      opts.Logger,
	}
	return o, nil
}

// Events returns the stream to attach to before calling Run.
func (o *Orchestrator) Events() *Events {
	return o.events
}

// Checks exposes the step preconditions for read-only reporting.
func (o *Orchestrator) Checks() *Checker {
	return o.checks
}

// Run executes the pipeline once. The toolchain branches run concurrently and
// are both joined before packages are considered. The returned error is the
// same one reported in the terminal Error event.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.started.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}

	if o.devMode {
		o.logger.Printf("development mode: skipping bootstrap")
		o.events.finish(Event{Kind: KindFinished})
		return nil
	}

	o.logger.Printf("bootstrap start: target=%s root=%s", o.target, o.dirs.Root)
	if err := o.dirs.EnsureBase(); err != nil {
		return o.fail(failure(ErrFilesystem, "prepare directories: %w", err))
	}

	var (
		wg         sync.WaitGroup
		managerErr error
		runtimeErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		managerErr = o.managerBranch(ctx)
	}()
	if o.target.IsWindows() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runtimeErr = o.runtimeBranch(ctx)
		}()
	}
	wg.Wait()

	if managerErr != nil {
		if runtimeErr != nil {
			o.logger.Printf("runtime branch also failed: %v", runtimeErr)
		}
		return o.fail(managerErr)
	}
	if runtimeErr != nil {
		return o.fail(runtimeErr)
	}

	needed, err := o.checks.PackagesNeeded()
	if err != nil {
		return o.fail(failure(ErrFilesystem, "failed to install dependencies: %w", err))
	}
	if needed {
		if err := o.installPackages(ctx); err != nil {
			if rmErr := o.checks.store.Remove(); rmErr != nil {
				o.logger.Printf("remove fingerprint after failed install: %v", rmErr)
			}
			return o.fail(err)
		}
	}

	if o.checks.ToolsNeeded() {
		if err := o.installTools(ctx); err != nil {
			o.logger.Printf("auxiliary tools install failed (ignored): %v", err)
		}
	}

	o.logger.Printf("bootstrap finished")
	o.events.finish(Event{Kind: KindFinished})
	return nil
}

func (o *Orchestrator) managerBranch(ctx context.Context) error {
	if o.checks.ManagerNeeded(ctx) {
		if err := o.installManager(ctx); err != nil {
			return fmt.Errorf("failed to install uv: %w", err)
		}
	}
	if o.checks.InterpreterNeeded() {
		if err := o.installInterpreter(ctx); err != nil {
			return fmt.Errorf("failed to install python: %w", err)
		}
	}
	return nil
}

func (o *Orchestrator) runtimeBranch(ctx context.Context) error {
	if !o.checks.RuntimeNeeded() {
		return nil
	}
	if err := o.installRuntime(ctx); err != nil {
		return fmt.Errorf("failed to install nodejs: %w", err)
	}
	return nil
}

func (o *Orchestrator) fail(err error) error {
	o.logger.Printf("bootstrap failed: %v", err)
	o.events.finish(Event{Kind: KindError, Text: err.Error()})
	return err
}

func (o *Orchestrator) output(step, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	o.logger.Printf("[%s] %s", step, text)
	o.events.emit(Event{Kind: KindOutput, Step: step, Text: text})
}

func (o *Orchestrator) progressFunc(step string) download.ProgressFunc {
	return func(p download.Progress) error {
		o.events.emit(Event{Kind: KindProgress, Step: step, Progress: &Progress{
			Downloaded:  p.Downloaded,
			Total:       p.Total,
			Percentage:  p.Percentage,
			SpeedBPS:    p.SpeedBPS,
			ElapsedSecs: p.ElapsedSecs,
		}})
		return nil
	}
}

// lineFunc relays subprocess output. With surfaceErrors, error-marked lines
// become Error events; they do not by themselves end the stream.
func (o *Orchestrator) lineFunc(step, tag string, surfaceErrors bool) func(runner.Line) {
	return func(l runner.Line) {
		if l.Stream == runner.StreamStderr {
			o.logger.Printf("[%s-stderr] %s", tag, l.Text)
		} else {
			o.logger.Printf("[%s] %s", tag, l.Text)
		}
		kind := KindOutput
		if l.IsError && surfaceErrors {
			kind = KindError
		}
		o.events.emit(Event{Kind: kind, Step: step, Text: l.Text})
	}
}

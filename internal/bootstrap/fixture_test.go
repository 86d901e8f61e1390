package bootstrap

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"hostboot/internal/archive/archivetest"
	"hostboot/internal/paths"
	"hostboot/internal/pins"
	"hostboot/internal/platform"
	"hostboot/internal/runner"
)

const testFingerprint = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

type call struct {
	command string
	args    []string
	opts    runner.RunOptions
}

func (c call) String() string {
	return filepath.Base(c.command) + " " + strings.Join(c.args, " ")
}

// fakeRunner imitates uv, npm and codesign closely enough for the pipeline.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []call
	version string
	// fail maps a subcommand ("export", "pip", "python", "npm") to the error
	// line it prints.
	fail map[string]string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{version: pins.ManagerVersion, fail: map[string]string{}}
}

func (f *fakeRunner) Run(ctx context.Context, command string, args []string, opts runner.RunOptions) (runner.RunResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{command: command, args: append([]string(nil), args...), opts: opts})
	version := f.version
	f.mu.Unlock()

	base := strings.TrimSuffix(strings.TrimSuffix(filepath.Base(command), ".exe"), ".cmd")
	key := base
	if base == "uv" && len(args) > 0 {
		key = args[0]
	}

	if base == "uv" {
		if _, err := os.Stat(command); err != nil {
			return runner.RunResult{}, fmt.Errorf("%w %s: %w", runner.ErrSpawn, command, err)
		}
	}

	f.mu.Lock()
	failLine := f.fail[key]
	f.mu.Unlock()
	if failLine != "" {
		if opts.OnLine != nil {
			opts.OnLine(runner.Line{Stream: runner.StreamStdout, Text: "working"})
			opts.OnLine(runner.Line{Stream: runner.StreamStderr, Text: failLine, IsError: true})
		}
		return runner.RunResult{}, fmt.Errorf("%w: %s", runner.ErrErrorOutput, failLine)
	}

	switch key {
	case "-V":
		return runner.RunResult{Stdout: []byte("uv " + version + " (f0bfd9d 2025-08-18)\n")}, nil
	case "python":
		dir := filepath.Join(args[4], "cpython-3.12.10-test")
		if err := os.MkdirAll(filepath.Join(dir, "bin"), 0o755); err != nil {
			return runner.RunResult{}, err
		}
		for _, name := range []string{"bin/python", "bin/python3", "python.exe"} {
			if err := os.WriteFile(filepath.Join(dir, filepath.FromSlash(name)), []byte("py"), 0o755); err != nil {
				return runner.RunResult{}, err
			}
		}
	case "export":
		if err := os.WriteFile(args[2], []byte("mcp==1.12.0\n"), 0o644); err != nil {
			return runner.RunResult{}, err
		}
	case "pip":
		if err := os.MkdirAll(filepath.Join(args[5], "mcp"), 0o755); err != nil {
			return runner.RunResult{}, err
		}
	case "npm":
		if err := os.MkdirAll(filepath.Join(opts.Dir, "node_modules"), 0o755); err != nil {
			return runner.RunResult{}, err
		}
	}
	if opts.OnLine != nil {
		opts.OnLine(runner.Line{Stream: runner.StreamStdout, Text: key + " done"})
	}
	return runner.RunResult{}, nil
}

func (f *fakeRunner) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

// find returns the calls whose first argument (or base command) is key.
func (f *fakeRunner) find(key string) []call {
	var out []call
	for _, c := range f.Calls() {
		base := strings.TrimSuffix(strings.TrimSuffix(filepath.Base(c.command), ".exe"), ".cmd")
		if base == key || (len(c.args) > 0 && c.args[0] == key) {
			out = append(out, c)
		}
	}
	return out
}

type fixture struct {
	t              *testing.T
	target         platform.Target
	dirs           paths.Dirs
	pins           pins.Set
	runner         *fakeRunner
	srv            *httptest.Server
	hits           map[string]*atomic.Int32
	status         map[string]int
	managerArchive []byte
	runtimeArchive []byte
}

func newFixture(t *testing.T, target platform.Target) *fixture {
	t.Helper()
	f := &fixture{
		t:      t,
		target: target,
		dirs:   paths.New(t.TempDir()),
		runner: newFakeRunner(),
		hits:   map[string]*atomic.Int32{"manager": {}, "runtime": {}},
		status: map[string]int{},
	}

	if target.IsWindows() {
		f.managerArchive = archivetest.Zip(t, archivetest.Files(map[string]string{
			"uv.exe":  "uv",
			"uvx.exe": "uvx",
			"uvw.exe": "uvw",
		}))
	} else {
		top := "uv-" + target.String()
		f.managerArchive = archivetest.TarGz(t, archivetest.Files(map[string]string{
			top + "/uv":  "uv",
			top + "/uvx": "uvx",
		}))
	}
	top := fmt.Sprintf("node-v%s-win-%s", pins.RuntimeVersion, target.NodeArch())
	f.runtimeArchive = archivetest.Zip(t, archivetest.Files(map[string]string{
		top + "/node.exe": "node",
		top + "/npm.cmd":  "npm",
	}))

	mux := http.NewServeMux()
	mux.HandleFunc("/uv/", func(w http.ResponseWriter, r *http.Request) {
		f.hits["manager"].Add(1)
		if code := f.status["manager"]; code != 0 {
			http.Error(w, "unavailable", code)
			return
		}
		_, _ = w.Write(f.managerArchive)
	})
	mux.HandleFunc("/node/", func(w http.ResponseWriter, r *http.Request) {
		f.hits["runtime"].Add(1)
		if code := f.status["runtime"]; code != 0 {
			http.Error(w, "unavailable", code)
			return
		}
		_, _ = w.Write(f.runtimeArchive)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)

	f.pins = pins.Default()
	f.pins.ManagerURL = f.srv.URL + "/uv/{version}/uv-{target}.{ext}"
	f.pins.RuntimeURL = f.srv.URL + "/node/v{version}/node-v{version}-win-{arch}.zip"
	f.setManagerArchive(f.managerArchive)
	return f
}

// setManagerArchive replaces the served uv archive and pins its digest.
func (f *fixture) setManagerArchive(data []byte) {
	f.managerArchive = data
	sum := sha256.Sum256(data)
	f.pins.ManagerDigests = map[platform.Target]string{f.target: hex.EncodeToString(sum[:])}
}

func (f *fixture) options() Options {
	return Options{
		Dirs:        f.dirs,
		Target:      f.target,
		Pins:        f.pins,
		Fingerprint: testFingerprint,
		Runner:      f.runner,
		EventBuffer: 16,
		UserAgent:   "hostboot-test",
	}
}

func (f *fixture) orchestrator(mutate ...func(*Options)) *Orchestrator {
	f.t.Helper()
	opts := f.options()
	for _, m := range mutate {
		m(&opts)
	}
	o, err := New(opts)
	if err != nil {
		f.t.Fatalf("New: %v", err)
	}
	return o
}

// run attaches, runs the pipeline and returns every event received.
func run(t *testing.T, o *Orchestrator) ([]Event, error) {
	t.Helper()
	sub, err := o.Events().Attach()
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- o.Run(context.Background()) }()

	var events []Event
	for ev := range sub.C() {
		events = append(events, ev)
	}
	return events, <-errCh
}

func mustExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
}

func mustNotExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be absent (err=%v)", path, err)
	}
}

func readFingerprint(t *testing.T, d paths.Dirs) string {
	t.Helper()
	data, err := os.ReadFile(d.FingerprintFile())
	if err != nil {
		t.Fatalf("read fingerprint: %v", err)
	}
	return string(data)
}

func countKind(events []Event, kind EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

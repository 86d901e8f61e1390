package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hostboot/internal/bootstrap"
	"hostboot/internal/config"
	"hostboot/internal/pins"
)

// withFlags isolates the package-level flag variables for one test.
func withFlags(t *testing.T, root string, jsonOut bool) {
	t.Helper()
	prevRoot, prevJSON := rootDir, outputJSON
	prevDev, prevNoProgress := runDev, runNoProgress
	t.Cleanup(func() {
		rootDir, outputJSON = prevRoot, prevJSON
		runDev, runNoProgress = prevDev, prevNoProgress
	})
	rootDir, outputJSON = root, jsonOut
	t.Setenv(config.EnvTarget, "x86_64-unknown-linux-gnu")
	t.Setenv(config.EnvDev, "")
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestStatusCommandTable(t *testing.T) {
	root := t.TempDir()
	withFlags(t, root, false)

	out, _, err := execute(t, "status", "--root", root)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"Target: x86_64-unknown-linux-gnu", "STEP", "manager", "needed", "skipped"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output:\n%s", want, out)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "cache")); !os.IsNotExist(err) {
		t.Fatal("status must not create directories")
	}
}

func TestStatusCommandJSON(t *testing.T) {
	root := t.TempDir()
	withFlags(t, root, true)

	out, _, err := execute(t, "status", "--root", root, "--json")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var payload struct {
		Target string                 `json:"target"`
		Steps  []bootstrap.StepStatus `json:"steps"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(payload.Steps) != len(bootstrap.Steps) {
		t.Fatalf("expected %d steps, got %d", len(bootstrap.Steps), len(payload.Steps))
	}
	for _, s := range payload.Steps {
		if s.Step == bootstrap.StepRuntime && !s.Skip {
			t.Error("runtime should be skipped on linux")
		}
		if s.Step == bootstrap.StepManager && !s.Needed {
			t.Error("manager should be needed on an empty root")
		}
	}
}

func TestPathsCommandJSON(t *testing.T) {
	root := t.TempDir()
	withFlags(t, root, true)

	out, _, err := execute(t, "paths", "--root", root, "--json")
	if err != nil {
		t.Fatalf("paths: %v", err)
	}
	var entries []pathEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := make(map[string]string, len(entries))
	for _, e := range entries {
		got[e.Name] = e.Path
	}
	if got["fingerprint"] != filepath.Join(root, "cache", "uv.lock.fingerprint") {
		t.Errorf("unexpected fingerprint path %q", got["fingerprint"])
	}
	if _, ok := got["runtime"]; ok {
		t.Error("runtime path should be hidden on non-windows targets")
	}
}

func TestPathsHonorsConfigDirs(t *testing.T) {
	root := t.TempDir()
	withFlags(t, root, false)
	if err := os.WriteFile(filepath.Join(root, "config.yaml"), []byte("host_dir: app\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := execute(t, "paths", "--root", root)
	if err != nil {
		t.Fatalf("paths: %v", err)
	}
	if !strings.Contains(out, filepath.Join(root, "app", "uv.lock")) {
		t.Fatalf("host_dir not applied:\n%s", out)
	}
}

func TestFingerprintCommand(t *testing.T) {
	root := t.TempDir()
	withFlags(t, root, false)

	out, _, err := execute(t, "fingerprint", "--root", root)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if !strings.Contains(out, pins.Fingerprint()) || !strings.Contains(out, "(none)") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	if err := os.MkdirAll(filepath.Join(root, "cache"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "cache", "uv.lock.fingerprint"), []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, _, err = execute(t, "fingerprint", "--root", root)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if !strings.Contains(out, "persisted: stale") || !strings.Contains(out, "out of date") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestRunDevModeJSON(t *testing.T) {
	root := t.TempDir()
	withFlags(t, root, true)

	out, _, err := execute(t, "run", "--root", root, "--dev", "--json")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var events []bootstrap.Event
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var ev bootstrap.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("decode %q: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}
	if len(events) != 1 || events[0].Kind != bootstrap.KindFinished {
		t.Fatalf("expected a single finished event, got %+v", events)
	}
	if _, err := os.Stat(filepath.Join(root, "bin")); !os.IsNotExist(err) {
		t.Fatal("dev mode must not create the install tree")
	}
}

func TestRunDevModePlain(t *testing.T) {
	root := t.TempDir()
	withFlags(t, root, false)
	t.Setenv(config.EnvDev, "true")

	out, _, err := execute(t, "run", "--root", root, "--no-progress")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "bootstrap complete") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestInvalidConfigIsRejected(t *testing.T) {
	root := t.TempDir()
	withFlags(t, root, false)
	cfg := "event_buffer: -1\nmirrors:\n  manager_url: https://mirror.example/uv.tar.gz\n"
	if err := os.WriteFile(filepath.Join(root, "config.yaml"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := execute(t, "status", "--root", root)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "event_buffer") || !strings.Contains(err.Error(), "{version}") {
		t.Fatalf("both problems should be reported, got %v", err)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	root := t.TempDir()
	withFlags(t, root, false)

	if _, _, err := execute(t, "config", "init", "--root", root); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, _, err := execute(t, "config", "init", "--root", root); err == nil {
		t.Fatal("second init should refuse to overwrite")
	}

	out, _, err := execute(t, "config", "show", "--root", root)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "error_prefix:") || !strings.Contains(out, "user_agent: hostboot/1.0") {
		t.Fatalf("unexpected config output:\n%s", out)
	}
}

package tui

import (
	"bytes"
	"strings"
	"testing"

	"hostboot/internal/bootstrap"
)

func TestPlainReporterLines(t *testing.T) {
	var buf bytes.Buffer
	rep := NewPlainReporter(&buf, false)

	rep.Handle(bootstrap.Event{Kind: bootstrap.KindOutput, Step: bootstrap.StepManager, Text: "downloading uv 0.8.12"})
	rep.Handle(bootstrap.Event{Kind: bootstrap.KindError, Step: bootstrap.StepPackages, Text: "error: no solution"})
	rep.Handle(bootstrap.Event{Kind: bootstrap.KindFinished})

	out := buf.String()
	for _, want := range []string{
		"[manager] downloading uv 0.8.12",
		"[packages] error: error: no solution",
		"bootstrap complete",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}

func TestPlainReporterSummarisesProgressWithoutBars(t *testing.T) {
	var buf bytes.Buffer
	rep := NewPlainReporter(&buf, false)

	for _, pct := range []float64{0, 5, 10, 30, 60, 80, 100} {
		rep.Handle(bootstrap.Event{Kind: bootstrap.KindProgress, Step: bootstrap.StepManager, Progress: &bootstrap.Progress{
			Downloaded: uint64(pct * 10),
			Total:      1000,
			Percentage: pct,
		}})
	}

	if got := strings.Count(buf.String(), "[manager] downloading"); got != 5 {
		t.Fatalf("expected one line per quarter (5), got %d:\n%s", got, buf.String())
	}
}

func TestPlainReporterBars(t *testing.T) {
	var buf bytes.Buffer
	rep := NewPlainReporter(&buf, true)

	rep.Handle(bootstrap.Event{Kind: bootstrap.KindProgress, Step: bootstrap.StepRuntime, Progress: &bootstrap.Progress{Downloaded: 10, Total: 100, Percentage: 10}})
	if len(rep.open) != 1 {
		t.Fatal("expected an open bar")
	}
	rep.Handle(bootstrap.Event{Kind: bootstrap.KindOutput, Step: bootstrap.StepRuntime, Text: "extracting"})
	if len(rep.open) != 0 {
		t.Fatal("output should close the step's bar")
	}
	if !strings.Contains(buf.String(), "[runtime] extracting") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

package tui

import (
	"bytes"
	"os"
	"testing"
)

func TestDetectMode(t *testing.T) {
	prev := isTerminal
	defer func() { isTerminal = prev }()

	var buf bytes.Buffer
	if got := DetectMode(&buf, false, true); got != ModeJSON {
		t.Errorf("json flag should win, got %v", got)
	}
	if got := DetectMode(&buf, false, false); got != ModePlain {
		t.Errorf("non-file writer should be plain, got %v", got)
	}

	isTerminal = func(int) bool { return true }
	t.Setenv("TERM", "xterm-256color")
	if got := DetectMode(os.Stdout, false, false); got != ModeTUI {
		t.Errorf("terminal should use TUI, got %v", got)
	}
	if got := DetectMode(os.Stdout, true, false); got != ModePlain {
		t.Errorf("no-progress should force plain, got %v", got)
	}

	isTerminal = func(int) bool { return false }
	if got := DetectMode(os.Stdout, false, false); got != ModePlain {
		t.Errorf("non-terminal file should be plain, got %v", got)
	}
}

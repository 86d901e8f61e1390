package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultErrorPrefix marks a line as an error report from the installer.
const DefaultErrorPrefix = "error:"

const waitDelay = 2 * time.Second

var (
	// ErrSpawn is returned when the process could not be started.
	ErrSpawn = errors.New("spawn process")
	// ErrErrorOutput is returned when the process printed an error-marked line.
	ErrErrorOutput = errors.New("process reported an error")
)

const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

// Line is a single line of subprocess output.
type Line struct {
	Stream  string
	Text    string
	IsError bool
}

type RunOptions struct {
	Dir string
	Env []string
	// ClearEnv names variables that are set to the empty string in the child.
	ClearEnv []string
	// OnLine switches the runner into streaming mode. It is called from the
	// goroutine that invoked Run.
	OnLine      func(Line)
	ErrorPrefix string
}

type RunResult struct {
	Stdout []byte
	Stderr []byte
}

type Runner interface {
	Run(ctx context.Context, command string, args []string, opts RunOptions) (RunResult, error)
}

// CmdRunner runs real processes.
//
// In buffered mode (no OnLine) a non-zero exit is returned as the
// *exec.ExitError. In streaming mode the exit status is ignored: only an
// error-marked line fails the run.
type CmdRunner struct{}

func (CmdRunner) Run(ctx context.Context, command string, args []string, opts RunOptions) (RunResult, error) {
	if opts.OnLine == nil {
		return runBuffered(ctx, command, args, opts)
	}
	return runStreaming(ctx, command, args, opts)
}

var _ Runner = CmdRunner{}

func buildEnv(opts RunOptions) []string {
	if len(opts.Env) == 0 && len(opts.ClearEnv) == 0 {
		return nil
	}
	env := append(os.Environ(), opts.Env...)
	for _, name := range opts.ClearEnv {
		env = append(env, name+"=")
	}
	return env
}

func runBuffered(ctx context.Context, command string, args []string, opts RunOptions) (RunResult, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = opts.Dir
	cmd.Env = buildEnv(opts)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	result := RunResult{Stdout: stdoutBuf.Bytes(), Stderr: stderrBuf.Bytes()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return result, err
		}
		return result, fmt.Errorf("%w %s: %w", ErrSpawn, command, err)
	}
	return result, nil
}

func runStreaming(parent context.Context, command string, args []string, opts RunOptions) (RunResult, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = opts.Dir
	cmd.Env = buildEnv(opts)
	cmd.WaitDelay = waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return RunResult{}, fmt.Errorf("%w %s: %w", ErrSpawn, command, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return RunResult{}, fmt.Errorf("%w %s: %w", ErrSpawn, command, err)
	}
	if err := cmd.Start(); err != nil {
		return RunResult{}, fmt.Errorf("%w %s: %w", ErrSpawn, command, err)
	}

	prefix := opts.ErrorPrefix
	if prefix == "" {
		prefix = DefaultErrorPrefix
	}

	lines := make(chan Line)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go scanLines(&wg, StreamStdout, stdout, lines, stop)
	go scanLines(&wg, StreamStderr, stderr, lines, stop)
	go func() {
		wg.Wait()
		close(lines)
	}()

	var (
		result   RunResult
		errLines []string
	)
	for line := range lines {
		line.IsError = strings.HasPrefix(line.Text, prefix)
		record(&result, line)
		opts.OnLine(line)
		if line.IsError {
			errLines = append(errLines, line.Text)
			break
		}
	}

	if len(errLines) == 0 {
		_ = cmd.Wait()
		if err := parent.Err(); err != nil {
			return result, err
		}
		return result, nil
	}

	// Short-circuit: stop the process and collect any error lines that were
	// already in flight on the other stream.
	close(stop)
	cancel()
	waited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(waited)
	}()
	for line := range lines {
		if strings.HasPrefix(line.Text, prefix) {
			errLines = append(errLines, line.Text)
		}
	}
	<-waited

	return result, fmt.Errorf("%w: %s", ErrErrorOutput, strings.Join(errLines, "\n"))
}

// maxLineBytes caps a single forwarded line. Longer lines are truncated and
// the remainder discarded; the pipe keeps being drained either way.
const maxLineBytes = 1 << 20

func scanLines(wg *sync.WaitGroup, stream string, r io.Reader, out chan<- Line, stop <-chan struct{}) {
	defer wg.Done()
	// Whatever is left must still be read so the child never blocks on a
	// full pipe.
	defer func() { _, _ = io.Copy(io.Discard, r) }()

	br := bufio.NewReaderSize(r, 64*1024)
	for {
		text, err := readLine(br)
		if text != "" || err == nil {
			select {
			case out <- Line{Stream: stream, Text: strings.TrimRight(text, "\r")}:
			case <-stop:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// readLine returns the next line without its terminator, truncated to
// maxLineBytes.
func readLine(br *bufio.Reader) (string, error) {
	var buf []byte
	for {
		chunk, isPrefix, err := br.ReadLine()
		if room := maxLineBytes - len(buf); room > 0 {
			if len(chunk) > room {
				chunk = chunk[:room]
			}
			buf = append(buf, chunk...)
		}
		if err != nil {
			return string(buf), err
		}
		if !isPrefix {
			return string(buf), nil
		}
	}
}

func record(result *RunResult, line Line) {
	text := append([]byte(line.Text), '\n')
	if line.Stream == StreamStderr {
		result.Stderr = append(result.Stderr, text...)
		return
	}
	result.Stdout = append(result.Stdout, text...)
}

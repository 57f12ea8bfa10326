package executor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// CommandSpec describes one external tool invocation.
type CommandSpec struct {
	Path string
	Args []string
	Dir  string
	Env  []string
}

// Result is the outcome of a finished invocation. A non-zero ExitCode is
// reported here, not as an error; errors are reserved for processes that
// could not be started or were killed before exiting on their own.
type Result struct {
	ExitCode   int
	Stdout     string
	StderrTail string
	Started    time.Time
	Stopped    time.Time
	Duration   time.Duration
}

type Runner interface {
	Run(ctx context.Context, jobID string, spec CommandSpec, progress io.Writer) (*Result, error)
}

type RunnerOption func(*execRunner)

// WithMaxStdout caps how much of the child's stdout is retained.
func WithMaxStdout(n int) RunnerOption {
	return func(r *execRunner) { r.maxStdout = n }
}

// WithStderrTailLines controls how many trailing stderr lines are kept
// for diagnostics on failure.
func WithStderrTailLines(n int) RunnerOption {
	return func(r *execRunner) { r.tailLines = n }
}

func NewExecRunner(opts ...RunnerOption) Runner {
	r := &execRunner{
		maxStdout: 1 << 20,
		tailLines: 40,
		waitDelay: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type execRunner struct {
	maxStdout int
	tailLines int
	waitDelay time.Duration
}

// Run starts the command in its own process group and waits for it to exit.
// When ctx expires or is cancelled the entire group is killed, so helper
// processes spawned by the tool cannot outlive the job.
func (r *execRunner) Run(ctx context.Context, jobID string, spec CommandSpec, progress io.Writer) (*Result, error) {
	if spec.Path == "" {
		return nil, fmt.Errorf("command path must not be empty")
	}

	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = r.waitDelay

	stdout := &cappedBuffer{max: r.maxStdout}
	cmd.Stdout = stdout

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	result := &Result{Started: time.Now().UTC()}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", spec.Path, err)
	}

	tail := newTailBuffer(r.tailLines)
	r.scanStderr(stderr, tail, progress)

	waitErr := cmd.Wait()
	result.Stopped = time.Now().UTC()
	result.Duration = result.Stopped.Sub(result.Started)
	result.Stdout = stdout.String()
	result.StderrTail = tail.String()

	if waitErr != nil {
		if ctxErr := context.Cause(ctx); ctxErr != nil {
			slog.Debug("command interrupted", "job_id", jobID, "path", spec.Path, "cause", ctxErr)
			return result, ctxErr
		}
		exitErr, ok := waitErr.(*exec.ExitError)
		if !ok {
			return result, fmt.Errorf("waiting on %s: %w", spec.Path, waitErr)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	slog.Debug("command finished",
		"job_id", jobID,
		"path", spec.Path,
		"exit_code", result.ExitCode,
		"duration", result.Duration.String(),
	)
	return result, nil
}

// scanStderr forwards stderr lines to the progress writer as they arrive
// and keeps the trailing lines for failure diagnostics.
func (r *execRunner) scanStderr(stderr io.Reader, tail *tailBuffer, progress io.Writer) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	for scanner.Scan() {
		line := scanner.Text()
		tail.Add(line)
		if progress != nil {
			_, _ = progress.Write([]byte(line))
		}
	}
}

type cappedBuffer struct {
	max int
	buf strings.Builder
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.max > 0 && b.buf.Len() < b.max {
		room := b.max - b.buf.Len()
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string { return b.buf.String() }

type tailBuffer struct {
	lines []string
	next  int
	full  bool
}

func newTailBuffer(n int) *tailBuffer {
	if n <= 0 {
		n = 1
	}
	return &tailBuffer{lines: make([]string, n)}
}

func (t *tailBuffer) Add(line string) {
	t.lines[t.next] = line
	t.next = (t.next + 1) % len(t.lines)
	if t.next == 0 {
		t.full = true
	}
}

func (t *tailBuffer) String() string {
	var out []string
	if t.full {
		out = append(out, t.lines[t.next:]...)
	}
	out = append(out, t.lines[:t.next]...)
	return strings.Join(out, "\n")
}

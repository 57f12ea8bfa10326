package executor

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lineCollector struct {
	lines []string
}

func (c *lineCollector) Write(p []byte) (int, error) {
	c.lines = append(c.lines, string(p))
	return len(p), nil
}

func TestRunCapturesOutput(t *testing.T) {
	r := NewExecRunner()
	progress := &lineCollector{}

	res, err := r.Run(context.Background(), "job-1", CommandSpec{
		Path: "sh",
		Args: []string{"-c", "echo hello; echo step-one >&2; echo step-two >&2"},
	}, progress)

	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Stdout, "hello")
	assert.Contains(t, res.StderrTail, "step-one")
	assert.Contains(t, res.StderrTail, "step-two")
	assert.Equal(t, []string{"step-one", "step-two"}, progress.lines)
}

func TestRunNonZeroExitIsNotAnError(t *testing.T) {
	r := NewExecRunner()

	res, err := r.Run(context.Background(), "job-2", CommandSpec{
		Path: "sh",
		Args: []string{"-c", "echo boom >&2; exit 3"},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, res.StderrTail, "boom")
}

func TestRunMissingBinary(t *testing.T) {
	r := NewExecRunner()

	_, err := r.Run(context.Background(), "job-3", CommandSpec{
		Path: "/nonexistent/binary",
	}, nil)

	require.Error(t, err)
}

func TestRunTimeoutKillsProcessGroup(t *testing.T) {
	r := NewExecRunner()
	pidFile := filepath.Join(t.TempDir(), "child.pid")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	// The background sleep is a grandchild; killing only the shell would
	// orphan it.
	start := time.Now()
	_, err := r.Run(ctx, "job-4", CommandSpec{
		Path: "sh",
		Args: []string{"-c", "sleep 30 & echo $! > " + pidFile + "; wait"},
	}, nil)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)

	data, readErr := os.ReadFile(pidFile)
	require.NoError(t, readErr)
	pid := strings.TrimSpace(string(data))
	require.NotEmpty(t, pid)

	p, convErr := strconv.Atoi(pid)
	require.NoError(t, convErr)
	assert.Eventually(t, func() bool {
		return syscall.Kill(p, syscall.Signal(0)) == syscall.ESRCH
	}, 5*time.Second, 50*time.Millisecond, "grandchild process should be dead")
}

func TestRunCancelled(t *testing.T) {
	r := NewExecRunner()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := r.Run(ctx, "job-5", CommandSpec{
		Path: "sh",
		Args: []string{"-c", "sleep 30"},
	}, nil)

	require.ErrorIs(t, err, context.Canceled)
}

func TestTailBufferKeepsTrailingLines(t *testing.T) {
	tail := newTailBuffer(3)
	for _, line := range []string{"a", "b", "c", "d", "e"} {
		tail.Add(line)
	}
	assert.Equal(t, "c\nd\ne", tail.String())
}

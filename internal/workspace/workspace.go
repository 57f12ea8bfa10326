// Package workspace manages private per-job scratch directories used to
// stage tool input and collect output before it is moved to result storage.
package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
)

type Manager struct {
	baseDir string
}

func NewManager(baseDir string) *Manager {
	return &Manager{baseDir: baseDir}
}

// Workspace is a scratch directory owned by exactly one job. OutDir is
// where the external tool is told to write its output files.
type Workspace struct {
	Path     string
	OutDir   string
	released atomic.Bool
}

// Acquire creates an isolated directory for the given job. It fails if the
// job already has one; workspaces are never shared or reused.
func (m *Manager) Acquire(jobID string) (*Workspace, error) {
	path := filepath.Join(m.baseDir, "jobs", jobID)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("workspace for job %s already exists", jobID)
	}
	outDir := filepath.Join(path, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	return &Workspace{Path: path, OutDir: outDir}, nil
}

// Stage copies the input file into the workspace and returns the staged path.
func (w *Workspace) Stage(src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("opening input: %w", err)
	}
	defer in.Close()

	dst := filepath.Join(w.Path, filepath.Base(src))
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("staging input: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", fmt.Errorf("staging input: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("staging input: %w", err)
	}
	return dst, nil
}

// Release deletes the workspace tree. Safe to call more than once; only the
// first call does the removal.
func (w *Workspace) Release() error {
	if w.released.Swap(true) {
		return nil
	}
	return os.RemoveAll(w.Path)
}

package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireStageRelease(t *testing.T) {
	m := NewManager(t.TempDir())

	ws, err := m.Acquire("job-1")
	require.NoError(t, err)
	assert.DirExists(t, ws.Path)
	assert.DirExists(t, ws.OutDir)

	src := filepath.Join(t.TempDir(), "input.fasta")
	require.NoError(t, os.WriteFile(src, []byte(">p1\nMKV\n"), 0o644))

	staged, err := ws.Stage(src)
	require.NoError(t, err)
	data, err := os.ReadFile(staged)
	require.NoError(t, err)
	assert.Equal(t, ">p1\nMKV\n", string(data))
	assert.Equal(t, ws.Path, filepath.Dir(staged))

	require.NoError(t, ws.Release())
	assert.NoDirExists(t, ws.Path)
}

func TestReleaseIsIdempotent(t *testing.T) {
	m := NewManager(t.TempDir())
	ws, err := m.Acquire("job-2")
	require.NoError(t, err)

	require.NoError(t, ws.Release())
	require.NoError(t, ws.Release())
}

func TestAcquireTwiceFails(t *testing.T) {
	m := NewManager(t.TempDir())
	_, err := m.Acquire("job-3")
	require.NoError(t, err)

	_, err = m.Acquire("job-3")
	require.Error(t, err)
}

func TestStageMissingInput(t *testing.T) {
	m := NewManager(t.TempDir())
	ws, err := m.Acquire("job-4")
	require.NoError(t, err)
	defer ws.Release()

	_, err = ws.Stage(filepath.Join(t.TempDir(), "nope.fasta"))
	require.Error(t, err)
}

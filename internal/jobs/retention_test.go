package jobs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepPrunesOnlyExpiredTerminalJobs(t *testing.T) {
	s := NewMemoryStore()
	resultDir := t.TempDir()
	now := time.Now().UTC()
	old := now.Add(-48 * time.Hour)

	expired := newJob("expired", StateCompleted, old)
	expired.FinishedAt = &old
	expired.ResultPath = filepath.Join(resultDir, "expired")
	require.NoError(t, os.MkdirAll(expired.ResultPath, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(expired.ResultPath, "result.tsv"), []byte("x"), 0o644))
	require.NoError(t, s.Create(expired))

	fresh := newJob("fresh", StateCompleted, now)
	fresh.FinishedAt = &now
	require.NoError(t, s.Create(fresh))

	running := newJob("running", StateRunning, old)
	require.NoError(t, s.Create(running))

	sw, err := NewSweeper(s, 24*time.Hour, time.Hour)
	require.NoError(t, err)
	defer sw.Stop()

	removed := sw.Sweep()
	assert.Equal(t, 1, removed)

	_, err = s.Get("expired")
	require.ErrorIs(t, err, ErrJobNotFound)
	assert.NoDirExists(t, expired.ResultPath, "expired result artifacts are deleted")

	_, err = s.Get("fresh")
	require.NoError(t, err)
	_, err = s.Get("running")
	require.NoError(t, err, "non-terminal jobs are never pruned regardless of age")
}

func TestSweeperRejectsZeroRetention(t *testing.T) {
	_, err := NewSweeper(NewMemoryStore(), 0, time.Hour)
	require.Error(t, err)
}

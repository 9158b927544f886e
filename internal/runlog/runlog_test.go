package runlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-stepper-anon/agent-stepper/internal/domain"
)

func exportBytes(t *testing.T, run *domain.Run) []byte {
	t.Helper()
	data, err := json.Marshal(run)
	require.NoError(t, err)
	return data
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	require.NoError(t, err)
	defer l.Close()

	run := domain.NewRun("Run #1 of demo", "demo", "v1", domain.Now())
	data := exportBytes(t, run)
	require.NoError(t, l.Save(run, data))

	// the file holds the exact export byte sequence
	onDisk, err := os.ReadFile(filepath.Join(dir, run.UUID.String()+".run"))
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)

	loaded, err := l.Load(run.UUID)
	require.NoError(t, err)
	assert.Equal(t, data, loaded)
}

func TestLoadAllNewestFirst(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	require.NoError(t, err)
	defer l.Close()

	older := domain.NewRun("a", "demo", "v1", domain.Timestamp(domain.Now().Time().Add(-1e9)))
	newer := domain.NewRun("b", "demo", "v1", domain.Now())
	require.NoError(t, l.Save(older, exportBytes(t, older)))
	require.NoError(t, l.Save(newer, exportBytes(t, newer)))

	runs, err := l.LoadAll()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.UUID, runs[0].UUID)
	assert.Equal(t, older.UUID, runs[1].UUID)
}

func TestReconcileRebuildsCatalog(t *testing.T) {
	dir := t.TempDir()
	run := domain.NewRun("orphan", "demo", "v1", domain.Now())
	require.NoError(t, os.WriteFile(filepath.Join(dir, run.UUID.String()+".run"), exportBytes(t, run), 0o644))

	// a run file with no catalog row must be picked up on open
	l, err := Open(dir)
	require.NoError(t, err)
	defer l.Close()

	runs, err := l.LoadAll()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.UUID, runs[0].UUID)
}

func TestReconcileSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, uuid.New().String()+".run"), []byte("not json"), 0o644))

	l, err := Open(dir)
	require.NoError(t, err)
	defer l.Close()

	runs, err := l.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestLoadUnknownRun(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Load(uuid.New())
	assert.Error(t, err)
}

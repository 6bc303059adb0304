package job

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shorts-pipeline/types"
)

func TestFileStore_SaveLoadList(t *testing.T) {
	s := NewFileStore(t.TempDir())
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	newer := types.JobRecord{ID: "b", SourcePath: "/in/b.mp4", DetectedAt: t0.Add(time.Minute), Status: types.StatusDetected}
	older := types.JobRecord{ID: "a", SourcePath: "/in/a.mp4", DetectedAt: t0, Status: types.StatusCompleted}
	require.NoError(t, s.Save(newer))
	require.NoError(t, s.Save(older))

	got, err := s.Load("b")
	require.NoError(t, err)
	assert.Equal(t, "/in/b.mp4", got.SourcePath)

	all, err := s.List()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)

	entries, err := os.ReadDir(s.Dir("a"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, MetadataFile, entries[0].Name())
}

func TestFileStore_LoadMissing(t *testing.T) {
	_, err := NewFileStore(t.TempDir()).Load("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_ListSkipsCorruptAndForeignDirs(t *testing.T) {
	root := t.TempDir()
	s := NewFileStore(root)
	require.NoError(t, s.Save(types.JobRecord{ID: "ok", Status: types.StatusDetected}))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bad"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad", MetadataFile), []byte("{"), 0o644))

	recs, err := s.List()
	assert.Error(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "ok", recs[0].ID)
}

func TestFileStore_ListMissingRoot(t *testing.T) {
	recs, err := NewFileStore(filepath.Join(t.TempDir(), "none")).List()
	assert.NoError(t, err)
	assert.Empty(t, recs)
}

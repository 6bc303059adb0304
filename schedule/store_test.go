package schedule

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shorts-pipeline/config"
	"shorts-pipeline/types"
)

func TestFileStore_PutReplacesSameKey(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)
	rec := types.UploadRecord{Platform: "youtube", Account: "a", VideoID: "v1", Status: types.UploadPending, SubmittedAt: noon}
	require.NoError(t, store.Put(ctx, rec))

	rec.Status, rec.RemoteID, rec.Attempts = types.UploadCompleted, "yt123", 1
	require.NoError(t, store.Put(ctx, rec))

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "yt123", all[0].RemoteID)

	got, ok, err := store.Get(ctx, rec.Key())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.UploadCompleted, got.Status)

	_, ok, err = store.Get(ctx, types.UploadKey{Platform: "youtube", Account: "a", VideoID: "nope"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStore_CompletedSinceOrdered(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)
	seed(t, store, "youtube", "a", noon, noon.Add(-2*time.Hour), noon.Add(-48*time.Hour))

	recs, err := store.Completed(ctx, "youtube", "a", noon.Add(-3*time.Hour))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.True(t, recs[0].SubmittedAt.Before(recs[1].SubmittedAt))
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	recs, err := newFileStore(t).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestFileStore_CorruptFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err := NewFileStore(path).Completed(context.Background(), "youtube", "a", noon)
	assert.Error(t, err)
}

func TestStaticConfig_Limits(t *testing.T) {
	src := NewStaticConfig(config.Default().Platforms)

	ig, err := src.Limits("instagram")
	require.NoError(t, err)
	assert.Equal(t, 3, ig.DailyLimit)
	assert.Equal(t, 7200*time.Second, ig.MinInterval)
	assert.Equal(t, time.UTC, ig.Location)

	unknown, err := src.Limits("vimeo")
	require.NoError(t, err)
	assert.Equal(t, DefaultLimits, unknown)
}

func TestFileConfigSource_HotReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	write := func(limit int) {
		body := "platforms:\n  youtube:\n    daily_limit: " + strconv.Itoa(limit) + "\n    utc_offset: \"-03:00\"\n"
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	src := NewFileConfigSource(path)

	write(2)
	l, err := src.Limits("youtube")
	require.NoError(t, err)
	assert.Equal(t, 2, l.DailyLimit)
	assert.Equal(t, 3600*time.Second, l.MinInterval)
	_, off := time.Date(2026, 1, 1, 0, 0, 0, 0, l.Location).Zone()
	assert.Equal(t, -3*3600, off)

	write(7)
	l, err = src.Limits("youtube")
	require.NoError(t, err)
	assert.Equal(t, 7, l.DailyLimit)
}

func TestRedisRecordCodec(t *testing.T) {
	rec := types.UploadRecord{
		Platform: "tiktok", Account: "acc", VideoID: "job_1", Status: types.UploadFailed,
		SubmittedAt: noon, Attempts: 2, OutputPath: "/out/tiktok.mp4", Error: "timeout",
	}
	fields := map[string]string{}
	for k, v := range encodeRecord(rec) {
		switch x := v.(type) {
		case string:
			fields[k] = x
		case int:
			fields[k] = strconv.Itoa(x)
		}
	}
	got, err := decodeRecord(fields)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	s := NewRedisStore(nil, "")
	assert.Equal(t, "uploads:rec:tiktok:acc:job_1", s.recordKey(rec.Key()))
	assert.Equal(t, "uploads:done:tiktok:acc", s.doneKey("tiktok", "acc"))
}

func TestRedisStore_PutMovesKeyOutOfCompleted(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(t)
	rec := types.UploadRecord{Platform: "youtube", Account: "a", VideoID: "v1", Status: types.UploadCompleted, SubmittedAt: noon, Attempts: 1}
	require.NoError(t, store.Put(ctx, rec))

	done, err := store.Completed(ctx, "youtube", "a", noon.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, rec, done[0])

	rec.Status, rec.Attempts, rec.Error = types.UploadFailed, 2, "revoked"
	require.NoError(t, store.Put(ctx, rec))

	done, err = store.Completed(ctx, "youtube", "a", noon.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, done)

	got, ok, err := store.Get(ctx, rec.Key())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.UploadFailed, got.Status)
	assert.Equal(t, "revoked", got.Error)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "the record survives a status change")
}

func TestRedisStore_CompletedSinceBoundaryAndOrder(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(t)
	since := noon.Add(-3 * time.Hour)
	// seeded newest first; Completed must return oldest first
	seed(t, store, "youtube", "a", noon, noon.Add(-time.Hour), since, since.Add(-time.Millisecond))
	seed(t, store, "youtube", "b", noon)

	recs, err := store.Completed(ctx, "youtube", "a", since)
	require.NoError(t, err)
	require.Len(t, recs, 3, "a record exactly at since is included")
	assert.Equal(t, since, recs[0].SubmittedAt)
	assert.Equal(t, noon.Add(-time.Hour), recs[1].SubmittedAt)
	assert.Equal(t, noon, recs[2].SubmittedAt)
	for _, r := range recs {
		assert.Equal(t, "a", r.Account)
	}

	none, err := store.Completed(ctx, "tiktok", "a", since)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, ok, err := store.Get(ctx, types.UploadKey{Platform: "youtube", Account: "a", VideoID: "missing"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_ListSkipsVanishedHashes(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(t)
	seed(t, store, "youtube", "a", noon, noon.Add(-time.Hour))
	require.NoError(t, store.cli.Del(ctx, store.recordKey(types.UploadKey{Platform: "youtube", Account: "a", VideoID: "va"})).Err())

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "vb", all[0].VideoID)
}

func TestFileStore_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "upload_status.json"))
	seed(t, store, "youtube", "a", noon, noon.Add(-time.Hour))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "upload_status.json", entries[0].Name())
}

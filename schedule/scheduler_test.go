package schedule

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shorts-pipeline/types"
)

type staticLimits map[string]Limits

func (s staticLimits) Limits(platform string) (Limits, error) {
	if l, ok := s[platform]; ok {
		return l, nil
	}
	return DefaultLimits, nil
}

type brokenStore struct{ UploadStore }

func (brokenStore) Completed(context.Context, string, string, time.Time) ([]types.UploadRecord, error) {
	return nil, errors.New("status file unreadable")
}

type brokenLimits struct{}

func (brokenLimits) Limits(string) (Limits, error) { return Limits{}, errors.New("bad yaml") }

var noon = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, store UploadStore, platform, account string, at ...time.Time) {
	t.Helper()
	for i, ts := range at {
		require.NoError(t, store.Put(context.Background(), types.UploadRecord{
			Platform: platform, Account: account, VideoID: "v" + string(rune('a'+i)),
			Status: types.UploadCompleted, SubmittedAt: ts, Attempts: 1,
		}))
	}
}

func newFileStore(t *testing.T) *FileStore {
	return NewFileStore(filepath.Join(t.TempDir(), "upload_status.json"))
}

func newRedisStore(t *testing.T) *RedisStore {
	srv := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { cli.Close() })
	return NewRedisStore(cli, "test")
}

// uploadStores lists every UploadStore backend the scheduler runs against
var uploadStores = []struct {
	name string
	open func(t *testing.T) UploadStore
}{
	{"file", func(t *testing.T) UploadStore { return newFileStore(t) }},
	{"redis", func(t *testing.T) UploadStore { return newRedisStore(t) }},
}

func TestCanUpload_DailyQuota(t *testing.T) {
	for _, backend := range uploadStores {
		t.Run(backend.name, func(t *testing.T) {
			testDailyQuota(t, backend.open)
		})
	}
}

func testDailyQuota(t *testing.T, open func(t *testing.T) UploadStore) {
	limits := staticLimits{"youtube": {DailyLimit: 3, MinInterval: 0, Location: time.UTC}}

	t.Run("three today blocks", func(t *testing.T) {
		store := open(t)
		seed(t, store, "youtube", "userA", noon.Add(-3*time.Hour), noon.Add(-2*time.Hour), noon.Add(-time.Hour))
		d := NewScheduler(store, limits, nil).CanUpload(context.Background(), "youtube", "userA", noon)
		assert.False(t, d.Allowed)
		assert.Equal(t, ReasonDailyLimit, d.Reason)
		assert.Equal(t, 3, d.UsedToday)
	})

	t.Run("two today allows", func(t *testing.T) {
		store := open(t)
		seed(t, store, "youtube", "userA", noon.Add(-2*time.Hour), noon.Add(-time.Hour))
		d := NewScheduler(store, limits, nil).CanUpload(context.Background(), "youtube", "userA", noon)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2, d.UsedToday)
		assert.Nil(t, d.Err)
	})

	t.Run("yesterday and other accounts do not count", func(t *testing.T) {
		store := open(t)
		seed(t, store, "youtube", "userA", noon.Add(-24*time.Hour), noon.Add(-25*time.Hour), noon.Add(-26*time.Hour))
		seed(t, store, "youtube", "userB", noon.Add(-time.Hour), noon.Add(-2*time.Hour), noon.Add(-3*time.Hour))
		seed(t, store, "tiktok", "userA", noon.Add(-time.Hour), noon.Add(-2*time.Hour), noon.Add(-3*time.Hour))
		d := NewScheduler(store, limits, nil).CanUpload(context.Background(), "youtube", "userA", noon)
		assert.True(t, d.Allowed)
		assert.Zero(t, d.UsedToday)
	})

	t.Run("pending and failed do not count", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()
		for i, st := range []types.UploadStatus{types.UploadPending, types.UploadFailed, types.UploadFailed} {
			require.NoError(t, store.Put(ctx, types.UploadRecord{
				Platform: "youtube", Account: "userA", VideoID: string(rune('x' + i)),
				Status: st, SubmittedAt: noon.Add(-time.Hour),
			}))
		}
		d := NewScheduler(store, limits, nil).CanUpload(ctx, "youtube", "userA", noon)
		assert.True(t, d.Allowed)
	})

	t.Run("zero limit never allows", func(t *testing.T) {
		zero := staticLimits{"youtube": {DailyLimit: 0, Location: time.UTC}}
		d := NewScheduler(open(t), zero, nil).CanUpload(context.Background(), "youtube", "userA", noon)
		assert.False(t, d.Allowed)
	})
}

func TestCanUpload_UTCOffsetShiftsTheDay(t *testing.T) {
	// 02:00 UTC is still the previous day at -03:00
	now := time.Date(2026, 5, 10, 2, 0, 0, 0, time.UTC)
	yesterdayLocal := time.Date(2026, 5, 9, 22, 0, 0, 0, time.UTC) // 19:00 local on the 9th
	store := newFileStore(t)
	seed(t, store, "instagram", "acc", yesterdayLocal)

	brt := time.FixedZone("-03:00", -3*3600)
	limits := staticLimits{"instagram": {DailyLimit: 1, Location: brt}}
	d := NewScheduler(store, limits, nil).CanUpload(context.Background(), "instagram", "acc", now)
	assert.False(t, d.Allowed, "same local day at -03:00")

	utcLimits := staticLimits{"instagram": {DailyLimit: 1, Location: time.UTC}}
	d = NewScheduler(store, utcLimits, nil).CanUpload(context.Background(), "instagram", "acc", now)
	assert.True(t, d.Allowed, "different UTC day")
}

func TestCanUpload_MinInterval(t *testing.T) {
	limits := staticLimits{"youtube": {DailyLimit: 100, MinInterval: 3600 * time.Second, Location: time.UTC}}

	tests := []struct {
		name    string
		ago     time.Duration
		allowed bool
	}{
		{"1800s ago blocks", 1800 * time.Second, false},
		{"3600s ago allows", 3600 * time.Second, true},
		{"3601s ago allows", 3601 * time.Second, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFileStore(t)
			seed(t, store, "youtube", "userA", noon.Add(-tt.ago))
			d := NewScheduler(store, limits, nil).CanUpload(context.Background(), "youtube", "userA", noon)
			assert.Equal(t, tt.allowed, d.Allowed)
			if !tt.allowed {
				assert.Equal(t, ReasonInterval, d.Reason)
				assert.Equal(t, 1800*time.Second, d.RetryAfter)
			}
		})
	}
}

func TestCanUpload_IntervalAcrossMidnight(t *testing.T) {
	now := time.Date(2026, 5, 10, 0, 10, 0, 0, time.UTC)
	store := newFileStore(t)
	seed(t, store, "youtube", "userA", now.Add(-20*time.Minute))

	limits := staticLimits{"youtube": {DailyLimit: 5, MinInterval: time.Hour, Location: time.UTC}}
	d := NewScheduler(store, limits, nil).CanUpload(context.Background(), "youtube", "userA", now)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonInterval, d.Reason)
	assert.Zero(t, d.UsedToday)
}

func TestCanUpload_ReadFailureAllows(t *testing.T) {
	d := NewScheduler(brokenStore{}, staticLimits{}, nil).CanUpload(context.Background(), "youtube", "userA", noon)
	assert.True(t, d.Allowed)
	require.NotNil(t, d.Err)
	assert.ErrorContains(t, d.Err, "status file unreadable")

	d = NewScheduler(newFileStore(t), brokenLimits{}, nil).CanUpload(context.Background(), "youtube", "userA", noon)
	assert.True(t, d.Allowed)
	var rerr *ReadError
	assert.ErrorAs(t, error(d.Err), &rerr)
}

func TestCanUpload_DoesNotMutate(t *testing.T) {
	store := newFileStore(t)
	seed(t, store, "youtube", "userA", noon.Add(-time.Hour))
	before, err := store.List(context.Background())
	require.NoError(t, err)

	NewScheduler(store, staticLimits{}, nil).CanUpload(context.Background(), "youtube", "userA", noon)

	after, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

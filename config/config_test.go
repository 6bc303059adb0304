package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_EmptyPathGivesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "input", cfg.Paths.Input)
	assert.Equal(t, time.Second, cfg.Intake.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.Intake.StabilityTimeout)
	assert.Equal(t, []string{"youtube", "instagram", "tiktok"}, cfg.Intake.Platforms)
	assert.Equal(t, 150.0, cfg.Subtitles.WordsPerMinute)
	assert.Equal(t, "*/10 * * * *", cfg.Schedule.Cron)

	ig := cfg.Platforms["instagram"]
	assert.Equal(t, 90.0, ig.MaxDurationSec)
	require.NotNil(t, ig.DailyLimit)
	assert.Equal(t, 3, *ig.DailyLimit)
	assert.Equal(t, 7200, *ig.MinIntervalSeconds)
}

func TestLoad_PartialPlatformMerged(t *testing.T) {
	path := writeConfig(t, `
intake:
  poll_interval: 2s
  platforms: [youtube, shorts_clone]
platforms:
  youtube:
    daily_limit: 0
    utc_offset: "-03:00"
    accounts: [main, backup]
  shorts_clone:
    cta_text: "Follow for more"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Intake.PollInterval)

	yt := cfg.Platforms["youtube"]
	require.NotNil(t, yt.DailyLimit)
	assert.Equal(t, 0, *yt.DailyLimit, "explicit zero is kept")
	assert.Equal(t, 3600, *yt.MinIntervalSeconds)
	assert.Equal(t, 1080, yt.Width)
	assert.Equal(t, "Confira meu eBook! Link na descrição", yt.CTAText)
	assert.Equal(t, []string{"main", "backup"}, yt.Accounts)

	clone := cfg.Platforms["shorts_clone"]
	assert.Equal(t, "Follow for more", clone.CTAText)
	assert.Equal(t, 1920, clone.Height)
	assert.Equal(t, 5, *clone.DailyLimit)
	assert.Equal(t, "+00:00", clone.UTCOffset)

	_, ok := cfg.Platforms["tiktok"]
	assert.True(t, ok, "built-in platforms stay available")
}

func TestLoad_PollIntervalFloor(t *testing.T) {
	cfg, err := Load(writeConfig(t, "intake:\n  poll_interval: 100ms\n"))
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.Intake.PollInterval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://cache:6379/2")
	t.Setenv("LOG_LEVEL", "debug")
	cfg, err := Load(writeConfig(t, "log:\n  level: warn\n"))
	require.NoError(t, err)
	assert.Equal(t, "redis://cache:6379/2", cfg.Redis.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad offset", "platforms:\n  youtube:\n    utc_offset: \"3h\"\n", "platforms.youtube.utc_offset"},
		{"negative limit", "platforms:\n  tiktok:\n    daily_limit: -1\n", "platforms.tiktok.daily_limit"},
		{"unknown intake platform", "intake:\n  platforms: [myspace]\n", `unknown platform "myspace"`},
		{"extension without dot", "intake:\n  extensions: [mp4]\n", "must start with a dot"},
		{"not yaml", "paths: [", "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseUTCOffset(t *testing.T) {
	loc, err := ParseUTCOffset("-03:00")
	require.NoError(t, err)
	_, off := time.Date(2026, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, -3*3600, off)

	loc, err = ParseUTCOffset("+05:30")
	require.NoError(t, err)
	_, off = time.Date(2026, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 5*3600+30*60, off)

	for _, s := range []string{"", "Z", "+00:00"} {
		loc, err = ParseUTCOffset(s)
		require.NoError(t, err)
		assert.Equal(t, time.UTC, loc, s)
	}

	_, err = ParseUTCOffset("UTC-3")
	assert.Error(t, err)
}

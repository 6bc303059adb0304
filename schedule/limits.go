package schedule

import (
	"fmt"
	"time"

	"shorts-pipeline/config"
)

// Limits gate uploads for one platform
type Limits struct {
	DailyLimit  int
	MinInterval time.Duration
	Location    *time.Location // calendar used for the daily quota
}

// Defaults when a platform has no configuration at all
var DefaultLimits = Limits{DailyLimit: 5, MinInterval: time.Hour, Location: time.UTC}

// ConfigSource yields the current limits for a platform
type ConfigSource interface {
	Limits(platform string) (Limits, error)
}

// StaticConfig is a fixed snapshot of the platforms section
type StaticConfig struct {
	platforms map[string]config.PlatformConfig
}

var _ ConfigSource = (*StaticConfig)(nil)

func NewStaticConfig(platforms map[string]config.PlatformConfig) *StaticConfig {
	return &StaticConfig{platforms: platforms}
}

func (s *StaticConfig) Limits(platform string) (Limits, error) {
	p, ok := s.platforms[platform]
	if !ok {
		return DefaultLimits, nil
	}
	return limitsFrom(p)
}

// FileConfigSource re-reads the YAML config before every decision
type FileConfigSource struct {
	path string
}

var _ ConfigSource = (*FileConfigSource)(nil)

func NewFileConfigSource(path string) *FileConfigSource {
	return &FileConfigSource{path: path}
}

func (f *FileConfigSource) Limits(platform string) (Limits, error) {
	cfg, err := config.Load(f.path)
	if err != nil {
		return Limits{}, err
	}
	return NewStaticConfig(cfg.Platforms).Limits(platform)
}

func limitsFrom(p config.PlatformConfig) (Limits, error) {
	l := DefaultLimits
	if p.DailyLimit != nil {
		l.DailyLimit = *p.DailyLimit
	}
	if p.MinIntervalSeconds != nil {
		l.MinInterval = time.Duration(*p.MinIntervalSeconds) * time.Second
	}
	loc, err := config.ParseUTCOffset(p.UTCOffset)
	if err != nil {
		return Limits{}, fmt.Errorf("utc_offset: %w", err)
	}
	l.Location = loc
	return l, nil
}

package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"shorts-pipeline/config"
)

// New creates a zerolog logger configured from config.
// Levels: "trace" | "debug" | "info" | "warn" | "error"; formats: "json" | "console".
func New(cfg config.LogConfig) *zerolog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter is New with an explicit sink
func NewWithWriter(cfg config.LogConfig, w io.Writer) *zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var base zerolog.Logger
	if strings.ToLower(cfg.Format) == "console" {
		out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		base = zerolog.New(out).Level(level).With().Timestamp().Logger()
	} else {
		base = zerolog.New(w).Level(level).With().Timestamp().Logger()
	}
	return &base
}

// Component derives a scoped logger, e.g. Component(l, "intake")
func Component(base *zerolog.Logger, name string) *zerolog.Logger {
	l := base.With().Str("component", name).Logger()
	return &l
}

// Nop is a disabled logger for tests and library defaults
func Nop() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// TraceDuration logs start and end with elapsed duration at DEBUG level.
// Usage: defer logging.TraceDuration(logger, "render.youtube")()
func TraceDuration(logger *zerolog.Logger, name string) func() {
	start := time.Now()
	logger.Debug().Str("step", name).Msg("start")
	return func() {
		logger.Debug().Str("step", name).Dur("duration", time.Since(start)).Msg("finish")
	}
}

package upload

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"shorts-pipeline/logging"
)

// Runner is one publication pass
type Runner interface {
	RunOnce(ctx context.Context, now time.Time) (Summary, error)
}

// Cron triggers upload passes on a cron schedule. Passes never overlap.
type Cron struct {
	c   *cron.Cron
	log *zerolog.Logger
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct{ l *zerolog.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.l.Debug().Fields(kv).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Error().Err(err).Fields(kv).Msg("cron: " + msg)
}

func NewCron(ctx context.Context, spec string, r Runner, logger *zerolog.Logger) (*Cron, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	cl := cronLogger{l: logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(spec, func() {
		if _, err := r.RunOnce(ctx, time.Now().UTC()); err != nil {
			logger.Error().Err(err).Msg("upload pass failed")
		}
	}); err != nil {
		return nil, fmt.Errorf("failed to add cron job: %w", err)
	}
	return &Cron{c: c, log: logger}, nil
}

// Run starts the schedule and blocks until ctx is done and the running pass returns
func (c *Cron) Run(ctx context.Context) {
	c.c.Start()
	c.log.Info().Int("entries", len(c.c.Entries())).Msg("upload cron started")
	<-ctx.Done()
	<-c.c.Stop().Done()
	c.log.Info().Msg("upload cron stopped")
}

// Package schedule decides whether an account may upload to a platform now,
// using only the recorded upload history.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"shorts-pipeline/logging"
	"shorts-pipeline/metrics"
)

// Reasons reported in a Decision
const (
	ReasonAllowed    = "allowed"
	ReasonDailyLimit = "daily_limit"
	ReasonInterval   = "interval"
)

// ReadError means the history or the limits could not be read; the decision degraded to allow
type ReadError struct {
	Platform string
	Account  string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("upload history %s/%s: %v", e.Platform, e.Account, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

type Decision struct {
	Allowed    bool
	Reason     string
	UsedToday  int
	DailyLimit int
	// RetryAfter is how long until the interval gate opens (zero when it is open)
	RetryAfter time.Duration
	Err        *ReadError
}

// Scheduler evaluates quota and interval gates. It never mutates the store.
type Scheduler struct {
	store UploadStore
	cfg   ConfigSource
	log   *zerolog.Logger
}

func NewScheduler(store UploadStore, cfg ConfigSource, logger *zerolog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Scheduler{store: store, cfg: cfg, log: logger}
}

func (s *Scheduler) degrade(platform, account string, err error) Decision {
	rerr := &ReadError{Platform: platform, Account: account, Err: err}
	s.log.Warn().Err(err).Str("platform", platform).Str("account", account).Msg("upload check failed, allowing")
	metrics.IncUploadStoreError()
	metrics.IncUploadDecision(platform, ReasonAllowed)
	return Decision{Allowed: true, Reason: ReasonAllowed, Err: rerr}
}

// CanUpload allows when fewer than DailyLimit completed uploads fall on now's
// calendar date (in the platform's offset) and the latest completed upload is
// at least MinInterval old.
func (s *Scheduler) CanUpload(ctx context.Context, platform, account string, now time.Time) Decision {
	limits, err := s.cfg.Limits(platform)
	if err != nil {
		return s.degrade(platform, account, err)
	}
	loc := limits.Location
	if loc == nil {
		loc = time.UTC
	}

	local := now.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	since := dayStart
	if windowStart := now.Add(-limits.MinInterval); windowStart.Before(since) {
		since = windowStart
	}

	recs, err := s.store.Completed(ctx, platform, account, since)
	if err != nil {
		return s.degrade(platform, account, err)
	}

	d := Decision{Allowed: true, Reason: ReasonAllowed, DailyLimit: limits.DailyLimit}
	y, m, day := local.Date()
	var last time.Time
	for _, r := range recs {
		ry, rm, rd := r.SubmittedAt.In(loc).Date()
		if ry == y && rm == m && rd == day {
			d.UsedToday++
		}
		if r.SubmittedAt.After(last) {
			last = r.SubmittedAt
		}
	}

	switch {
	case d.UsedToday >= limits.DailyLimit:
		d.Allowed, d.Reason = false, ReasonDailyLimit
	case !last.IsZero() && now.Sub(last) < limits.MinInterval:
		d.Allowed, d.Reason = false, ReasonInterval
		d.RetryAfter = limits.MinInterval - now.Sub(last)
	}

	metrics.IncUploadDecision(platform, d.Reason)
	s.log.Debug().Str("platform", platform).Str("account", account).
		Bool("allowed", d.Allowed).Str("reason", d.Reason).
		Int("used_today", d.UsedToday).Int("daily_limit", d.DailyLimit).
		Msg("upload check")
	return d
}

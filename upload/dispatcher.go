// Package upload publishes rendered videos, one (platform, account, job) key
// at a time, within the limits the scheduler allows.
package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"shorts-pipeline/config"
	"shorts-pipeline/logging"
	"shorts-pipeline/metrics"
	"shorts-pipeline/schedule"
	"shorts-pipeline/types"
)

// DefaultAccount is used for platforms configured without accounts
const DefaultAccount = "default"

// JobLister yields job records oldest first
type JobLister interface {
	List() ([]types.JobRecord, error)
}

// Gate answers whether an upload may happen now
type Gate interface {
	CanUpload(ctx context.Context, platform, account string, now time.Time) schedule.Decision
}

// Summary counts what one pass did
type Summary struct {
	Published int
	Failed    int
	Deferred  int // scheduler said not now
	Skipped   int // already completed, out of attempts, or no publisher
}

type Dispatcher struct {
	cfg        *config.Config
	jobs       JobLister
	store      schedule.UploadStore
	gate       Gate
	publishers map[string]Publisher
	log        *zerolog.Logger
}

func NewDispatcher(cfg *config.Config, jobs JobLister, store schedule.UploadStore, gate Gate, publishers map[string]Publisher, logger *zerolog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Dispatcher{cfg: cfg, jobs: jobs, store: store, gate: gate, publishers: publishers, log: logger}
}

func (d *Dispatcher) accounts(platform string) []string {
	if p, ok := d.cfg.Platforms[platform]; ok && len(p.Accounts) > 0 {
		return p.Accounts
	}
	return []string{DefaultAccount}
}

// RunOnce walks completed jobs oldest first and publishes every rendered
// platform output each configured account has not published yet. Store
// write failures abort the pass; publisher failures are recorded and the
// pass moves on.
func (d *Dispatcher) RunOnce(ctx context.Context, now time.Time) (Summary, error) {
	var sum Summary
	recs, err := d.jobs.List()
	if err != nil && len(recs) == 0 {
		return sum, fmt.Errorf("list jobs: %w", err)
	}
	if err != nil {
		d.log.Warn().Err(err).Msg("some job records unreadable")
	}

	for _, rec := range recs {
		if rec.Status != types.StatusCompleted {
			continue
		}
		for _, platform := range rec.Platforms {
			res := rec.PerPlatformResults[platform]
			if res.Status != types.PlatformDone || res.OutputPath == "" {
				continue
			}
			pub, ok := d.publishers[platform]
			if !ok {
				sum.Skipped++
				d.log.Debug().Str("platform", platform).Msg("no publisher configured")
				continue
			}
			for _, account := range d.accounts(platform) {
				if err := ctx.Err(); err != nil {
					return sum, err
				}
				if err := d.publishOne(ctx, now, rec, platform, account, res.OutputPath, pub, &sum); err != nil {
					return sum, err
				}
			}
		}
	}
	d.log.Info().Int("published", sum.Published).Int("failed", sum.Failed).
		Int("deferred", sum.Deferred).Int("skipped", sum.Skipped).Msg("upload pass done")
	return sum, nil
}

func (d *Dispatcher) publishOne(ctx context.Context, now time.Time, rec types.JobRecord, platform, account, output string, pub Publisher, sum *Summary) error {
	key := types.UploadKey{Platform: platform, Account: account, VideoID: rec.ID}
	prev, found, err := d.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read upload %s/%s/%s: %w", platform, account, rec.ID, err)
	}
	if found && prev.Status == types.UploadCompleted {
		sum.Skipped++
		return nil
	}
	if found && prev.Status == types.UploadFailed && prev.Attempts >= d.cfg.Upload.MaxAttempts {
		sum.Skipped++
		return nil
	}

	decision := d.gate.CanUpload(ctx, platform, account, now)
	if !decision.Allowed {
		sum.Deferred++
		d.log.Info().Str("platform", platform).Str("account", account).Str("job", rec.ID).
			Str("reason", decision.Reason).Dur("retry_after", decision.RetryAfter).Msg("upload deferred")
		return nil
	}

	up := types.UploadRecord{
		Platform:    platform,
		Account:     account,
		VideoID:     rec.ID,
		Status:      types.UploadPending,
		SubmittedAt: now,
		Attempts:    prev.Attempts,
		OutputPath:  output,
	}
	if err := d.store.Put(ctx, up); err != nil {
		return fmt.Errorf("record pending upload: %w", err)
	}

	meta := BuildMetadata(rec, platform, d.cfg.Platforms[platform].CTAText, d.cfg.Upload)
	remoteID, pubErr := pub.Publish(ctx, Submission{
		JobID: rec.ID, Platform: platform, Account: account, VideoPath: output, Metadata: meta,
	})
	if pubErr != nil {
		up.Status = types.UploadFailed
		up.Attempts++
		up.Error = pubErr.Error()
		sum.Failed++
		d.log.Error().Err(pubErr).Str("platform", platform).Str("account", account).Str("job", rec.ID).
			Int("attempts", up.Attempts).Msg("upload failed")
	} else {
		up.Status = types.UploadCompleted
		up.Attempts++
		up.RemoteID = remoteID
		sum.Published++
		d.log.Info().Str("platform", platform).Str("account", account).Str("job", rec.ID).
			Str("remote_id", remoteID).Msg("upload completed")
	}
	metrics.IncUploadResult(platform, string(up.Status))

	if err := d.store.Put(ctx, up); err != nil {
		return fmt.Errorf("record upload result: %w", err)
	}
	if d.cfg.Paths.Logs != "" {
		if _, err := LogUpload(d.cfg.Paths.Logs, up, meta); err != nil {
			d.log.Warn().Err(err).Msg("upload log not written")
		}
	}
	if pubErr != nil && errors.Is(pubErr, context.Canceled) {
		return pubErr
	}
	return nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"shorts-pipeline/intake"
	"shorts-pipeline/job"
	"shorts-pipeline/logging"
	"shorts-pipeline/media"
	"shorts-pipeline/metrics"
	"shorts-pipeline/pipeline"
	"shorts-pipeline/server"
	"shorts-pipeline/types"
	"shorts-pipeline/upload"
)

var (
	watchUploads bool
	watchServe   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the input folder and process new videos",
	Long: `Watch paths.input for raw videos. Each stable, valid file becomes a job that is
rendered for every configured platform, one job at a time.

Jobs left in processing by a previous run are marked failed; detected jobs
(including retried ones) are processed before the watcher starts. With --serve,
jobs retried through POST /jobs/{id}/retry are queued right away.

Examples:
  shorts-pipeline watch
  shorts-pipeline watch --uploads --serve`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchUploads, "uploads", false, "also run upload passes on schedule.cron")
	watchCmd.Flags().BoolVar(&watchServe, "serve", false, "also serve the operator HTTP API on server.addr")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, dir := range []string{cfg.Paths.Input, cfg.Paths.Output, cfg.Paths.Logs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	metrics.MustRegister()

	m := newMachine()
	proc, err := newProcessor(m)
	if err != nil {
		return err
	}

	records, err := recoverJobs(ctx, m, proc)
	if err != nil {
		return err
	}

	q := intake.NewQueue(cfg.Intake, media.NewFFprobe(cfg.Render), m, logging.Component(logger, "intake"))
	q.Seed(records)
	admissions, err := q.Watch(ctx, cfg.Paths.Input)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	if watchUploads || watchServe {
		store, closeStore, err := newUploadStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		sched := newScheduler(store)

		if watchUploads {
			c, err := upload.NewCron(ctx, cfg.Schedule.Cron, newDispatcher(m, store, sched), logging.Component(logger, "upload"))
			if err != nil {
				return err
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.Run(ctx)
			}()
		}
		if watchServe {
			srv := server.NewServer(cfg.Server.Addr, m, sched, logging.Component(logger, "server")).WithRequeuer(q)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := srv.Run(ctx); err != nil {
					logger.Error().Err(err).Msg("http server stopped")
				}
			}()
		}
	}

	logger.Info().Str("input", cfg.Paths.Input).Strs("platforms", cfg.Intake.Platforms).Msg("watching")
	err = intake.Consume(ctx, admissions, proc.Handle, logging.Component(logger, "pipeline"))
	wg.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info().Msg("shutdown complete")
		return nil
	}
	return err
}

// recoverJobs fails jobs interrupted mid-processing, runs detected ones and
// returns every record so intake can skip their sources
func recoverJobs(ctx context.Context, m *job.Machine, proc *pipeline.Processor) ([]types.JobRecord, error) {
	records, err := m.Store().List()
	if err != nil && len(records) == 0 {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("some job records unreadable")
	}
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		switch rec.Status {
		case types.StatusProcessing:
			if _, err := m.Fail(rec, errors.New("interrupted: process exited while processing")); err != nil {
				return nil, err
			}
			logger.Warn().Str("job", rec.ID).Msg("interrupted job marked failed")
		case types.StatusDetected:
			if err := proc.Process(context.WithoutCancel(ctx), rec); err != nil {
				logger.Error().Err(err).Str("job", rec.ID).Msg("job failed")
			}
		}
	}
	return records, nil
}

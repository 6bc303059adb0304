package cli

import (
	"context"
	"os"

	"shorts-pipeline/job"
	"shorts-pipeline/media"
	"shorts-pipeline/pipeline"
	"shorts-pipeline/render"
	"shorts-pipeline/schedule"
	"shorts-pipeline/subtitles"
	"shorts-pipeline/upload"
)

func newMachine() *job.Machine {
	return job.NewMachine(job.NewFileStore(cfg.Paths.Output), logger)
}

func newSynchronizer() (*subtitles.Synchronizer, error) {
	aligners, err := subtitles.NewAligners(cfg.Subtitles, "", logger)
	if err != nil {
		return nil, err
	}
	return subtitles.NewSynchronizer(aligners, logger), nil
}

func newProcessor(m *job.Machine) (*pipeline.Processor, error) {
	syncer, err := newSynchronizer()
	if err != nil {
		return nil, err
	}
	return pipeline.NewProcessor(cfg, m, pipeline.Deps{
		Prober:       media.NewFFprobe(cfg.Render),
		Audio:        media.NewFFmpeg(cfg.Render),
		Synchronizer: syncer,
		Renderer:     render.NewFFmpegRenderer(cfg, logger),
	}, logger), nil
}

// newUploadStore picks redis when redis.url is set, else the JSON file.
// The returned close func is never nil.
func newUploadStore(ctx context.Context) (schedule.UploadStore, func(), error) {
	if cfg.Redis.URL == "" {
		return schedule.NewFileStore(cfg.Paths.UploadStatus), func() {}, nil
	}
	cli, err := schedule.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Str("prefix", cfg.Redis.Prefix).Msg("upload records in redis")
	return schedule.NewRedisStore(cli, cfg.Redis.Prefix), func() { _ = cli.Close() }, nil
}

// newScheduler re-reads limits from the config file on every decision when
// schedule.hot_reload is set
func newScheduler(store schedule.UploadStore) *schedule.Scheduler {
	var limits schedule.ConfigSource = schedule.NewStaticConfig(cfg.Platforms)
	if cfg.Schedule.HotReload {
		if _, err := os.Stat(configPath); err == nil {
			limits = schedule.NewFileConfigSource(configPath)
		}
	}
	return schedule.NewScheduler(store, limits, logger)
}

func newDispatcher(m *job.Machine, store schedule.UploadStore, sched *schedule.Scheduler) *upload.Dispatcher {
	return upload.NewDispatcher(cfg, m.Store(), store, sched, upload.Publishers(cfg, logger), logger)
}

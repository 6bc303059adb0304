// Package pipeline runs one admitted job through its stages: probe the
// source, time the narration, then render every pending platform.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"shorts-pipeline/config"
	"shorts-pipeline/intake"
	"shorts-pipeline/job"
	"shorts-pipeline/logging"
	"shorts-pipeline/media"
	"shorts-pipeline/metrics"
	"shorts-pipeline/render"
	"shorts-pipeline/subtitles"
	"shorts-pipeline/types"
)

const (
	StageProbe     = "probe"
	StageAudio     = "audio"
	StageSubtitles = "subtitles"
	StageRender    = "render"
)

// StageError is a failure inside one stage, scoped to a platform when it has one
type StageError struct {
	Stage    string
	Platform string
	Err      error
}

func (e *StageError) Error() string {
	if e.Platform != "" {
		return fmt.Sprintf("%s %s: %v", e.Stage, e.Platform, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Deps are the external collaborators a Processor drives
type Deps struct {
	Prober       media.Prober
	Audio        media.AudioExtractor
	Synchronizer *subtitles.Synchronizer
	Renderer     render.Renderer
}

type Processor struct {
	cfg     *config.Config
	machine *job.Machine
	plans   render.Plans
	deps    Deps
	log     *zerolog.Logger
}

func NewProcessor(cfg *config.Config, machine *job.Machine, deps Deps, logger *zerolog.Logger) *Processor {
	if logger == nil {
		logger = logging.Nop()
	}
	if deps.Synchronizer == nil {
		deps.Synchronizer = subtitles.NewSynchronizer(nil, logger)
	}
	return &Processor{
		cfg:     cfg,
		machine: machine,
		plans:   render.NewPlans(cfg.Platforms),
		deps:    deps,
		log:     logger,
	}
}

// Handle matches intake.Handler. Stage failures are recorded in the job and
// returned; a persistence failure aborts the attempt immediately.
func (p *Processor) Handle(ctx context.Context, a intake.Admission) error {
	rec, err := p.machine.Store().Load(a.JobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", a.JobID, err)
	}
	return p.Process(ctx, rec)
}

// Process claims a detected job and drives it to a terminal state
func (p *Processor) Process(ctx context.Context, rec types.JobRecord) error {
	log := p.log.With().Str("job", rec.ID).Logger()
	defer logging.TraceDuration(&log, "pipeline.process")()

	rec, err := p.machine.Claim(rec)
	if err != nil {
		return err
	}
	log.Info().Int("attempt", rec.Attempts).Strs("platforms", job.PendingPlatforms(rec)).Msg("processing")

	info, err := p.deps.Prober.Probe(ctx, rec.SourcePath)
	if err != nil {
		return p.fail(rec, &StageError{Stage: StageProbe, Err: err})
	}
	if rec, err = p.machine.RecordSource(rec, *info); err != nil {
		return err
	}

	subtitlePath, err := p.captions(ctx, rec, *info, &log)
	if err != nil {
		// renders go ahead without captions
		log.Warn().Err(err).Msg("no subtitles for this job")
	}
	if subtitlePath != "" {
		if rec, err = p.machine.RecordSubtitles(rec, subtitlePath); err != nil {
			return err
		}
	}

	burn := ""
	if p.cfg.Subtitles.BurnIntoVideo {
		burn = subtitlePath
	}
	var failed []error
	for _, platform := range job.PendingPlatforms(rec) {
		res := p.render(ctx, rec, *info, platform, burn, &log)
		if res.Status == types.PlatformFailed {
			failed = append(failed, &StageError{Stage: StageRender, Platform: platform, Err: errors.New(res.Error)})
		}
		if rec, err = p.machine.MarkPlatform(rec, platform, res); err != nil {
			return err
		}
	}

	if rec, err = p.machine.Finish(rec); err != nil {
		return err
	}
	metrics.IncJobFinished(string(rec.Status))
	if rec.Status == types.StatusFailed {
		log.Error().Str("error", rec.Error).Msg("job failed")
		return errors.Join(failed...)
	}
	log.Info().Msg("job completed")
	return nil
}

func (p *Processor) fail(rec types.JobRecord, cause *StageError) error {
	if _, err := p.machine.Fail(rec, cause); err != nil {
		return errors.Join(cause, err)
	}
	metrics.IncJobFinished(string(types.StatusFailed))
	return cause
}

// captions times the narration and writes every configured format into the
// job directory. It returns the file to burn in: SRT when exported, else the
// first format written.
func (p *Processor) captions(ctx context.Context, rec types.JobRecord, info types.SourceInfo, log *zerolog.Logger) (string, error) {
	dir := p.machine.Store().Dir(rec.ID)

	in := subtitles.Input{
		Text:          rec.NarrationText,
		AudioDuration: info.Duration,
		WPM:           p.cfg.Subtitles.WordsPerMinute,
	}
	if info.HasAudio {
		wav := filepath.Join(dir, "audio.wav")
		if err := p.deps.Audio.ExtractAudio(ctx, rec.SourcePath, wav); err != nil {
			log.Warn().Err(&StageError{Stage: StageAudio, Err: err}).Msg("audio extraction failed, timing from text")
		} else {
			in.AudioPath = wav
		}
	}

	res, err := p.deps.Synchronizer.Sync(ctx, in)
	if err != nil {
		return "", &StageError{Stage: StageSubtitles, Err: err}
	}
	metrics.IncSubtitleSource(string(res.Source))

	opts := subtitles.ExportOptions{
		Style:           subtitles.LookupStyle(p.cfg.Subtitles.Style),
		MaxCharsPerLine: p.cfg.Subtitles.MaxCharsPerLine,
	}
	if info.Width > 0 && info.Height > 0 {
		opts.Width, opts.Height = info.Width, info.Height
	}
	var chosen string
	for _, name := range p.cfg.Subtitles.Formats {
		format, err := subtitles.ParseFormat(name)
		if err != nil {
			return chosen, &StageError{Stage: StageSubtitles, Err: err}
		}
		path := filepath.Join(dir, "captions."+string(format))
		if err := subtitles.Export(path, format, res.Segments, opts); err != nil {
			return chosen, &StageError{Stage: StageSubtitles, Err: err}
		}
		if chosen == "" || format == subtitles.FormatSRT {
			chosen = path
		}
	}
	log.Info().Str("source", string(res.Source)).Int("segments", len(res.Segments)).Msg("subtitles ready")
	return chosen, nil
}

func (p *Processor) render(ctx context.Context, rec types.JobRecord, info types.SourceInfo, platform, subtitlePath string, log *zerolog.Logger) types.PlatformResult {
	plan, err := p.plans.Get(platform)
	if err != nil {
		return types.PlatformResult{Status: types.PlatformFailed, Error: err.Error()}
	}

	start := time.Now()
	out, err := p.deps.Renderer.Render(ctx, render.Request{
		Source:         rec.SourcePath,
		SourceDuration: info.Duration,
		OutputDir:      p.machine.Store().Dir(rec.ID),
		SubtitlePath:   subtitlePath,
		Plan:           plan,
	})
	metrics.ObserveRender(platform, err == nil, time.Since(start))
	if err != nil {
		log.Error().Err(err).Str("platform", platform).Msg("render failed")
		return types.PlatformResult{Status: types.PlatformFailed, Error: err.Error()}
	}
	return types.PlatformResult{Status: types.PlatformDone, OutputPath: out}
}

// Package job owns the lifecycle of one raw video: detection, per-platform
// rendering and the terminal outcome. Every transition is persisted before
// the new snapshot is handed back.
package job

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"shorts-pipeline/logging"
	"shorts-pipeline/types"
)

var ErrInvalidTransition = errors.New("invalid job transition")

// PersistenceError means the record could not be written; the caller keeps the previous snapshot
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist job %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

var transitions = map[types.JobStatus][]types.JobStatus{
	types.StatusDetected:   {types.StatusProcessing},
	types.StatusProcessing: {types.StatusCompleted, types.StatusFailed},
	types.StatusFailed:     {types.StatusDetected}, // explicit retry only
}

// CanTransition reports whether from → to is an edge of the lifecycle graph
func CanTransition(from, to types.JobStatus) bool {
	return slices.Contains(transitions[from], to)
}

func invalid(rec types.JobRecord, to types.JobStatus) error {
	return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, rec.ID, rec.Status, to)
}

// Machine applies transitions and persists them through a Store
type Machine struct {
	store Store
	now   func() time.Time
	log   *zerolog.Logger
}

func NewMachine(store Store, logger *zerolog.Logger) *Machine {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Machine{store: store, now: func() time.Time { return time.Now().UTC() }, log: logger}
}

// WithClock replaces the time source
func (m *Machine) WithClock(now func() time.Time) *Machine {
	m.now = now
	return m
}

func (m *Machine) Store() Store { return m.store }

func (m *Machine) commit(prev, next types.JobRecord) (types.JobRecord, error) {
	next.UpdatedAt = m.now()
	if err := m.store.Save(next); err != nil {
		m.log.Error().Err(err).Str("job", next.ID).Str("status", string(next.Status)).Msg("job record not persisted")
		return prev, &PersistenceError{Path: m.store.Dir(next.ID), Err: err}
	}
	return next, nil
}

// Create registers a newly admitted source as a detected job
func (m *Machine) Create(sourcePath string, platforms []string, narration string) (types.JobRecord, error) {
	now := m.now()
	rec := types.JobRecord{
		ID:                 NewID(sourcePath, now),
		SourcePath:         sourcePath,
		DetectedAt:         now,
		Status:             types.StatusDetected,
		Platforms:          append([]string(nil), platforms...),
		PerPlatformResults: make(map[string]types.PlatformResult, len(platforms)),
		NarrationText:      narration,
	}
	for _, p := range platforms {
		rec.PerPlatformResults[p] = types.PlatformResult{Status: types.PlatformPending}
	}
	next, err := m.commit(types.JobRecord{}, rec)
	if err != nil {
		return types.JobRecord{}, err
	}
	m.log.Info().Str("job", next.ID).Str("source", sourcePath).Strs("platforms", platforms).Msg("job detected")
	return next, nil
}

// Claim moves a detected job into processing
func (m *Machine) Claim(rec types.JobRecord) (types.JobRecord, error) {
	if !CanTransition(rec.Status, types.StatusProcessing) {
		return rec, invalid(rec, types.StatusProcessing)
	}
	next := rec.Clone()
	now := m.now()
	next.Status = types.StatusProcessing
	next.StartedAt = &now
	next.Attempts++
	next.Error = ""
	return m.commit(rec, next)
}

func requireProcessing(rec types.JobRecord, what string) error {
	if rec.Status != types.StatusProcessing {
		return fmt.Errorf("%w: %s: %s while %s", ErrInvalidTransition, rec.ID, what, rec.Status)
	}
	return nil
}

// RecordSource stores what the prober learned about the raw video
func (m *Machine) RecordSource(rec types.JobRecord, info types.SourceInfo) (types.JobRecord, error) {
	if err := requireProcessing(rec, "record source"); err != nil {
		return rec, err
	}
	next := rec.Clone()
	next.SourceInfo = &info
	return m.commit(rec, next)
}

// RecordSubtitles marks the caption file as generated
func (m *Machine) RecordSubtitles(rec types.JobRecord, path string) (types.JobRecord, error) {
	if err := requireProcessing(rec, "record subtitles"); err != nil {
		return rec, err
	}
	next := rec.Clone()
	next.SubtitlesGenerated = path != ""
	next.SubtitlePath = path
	return m.commit(rec, next)
}

// MarkPlatform settles one pending platform as done or failed
func (m *Machine) MarkPlatform(rec types.JobRecord, platform string, res types.PlatformResult) (types.JobRecord, error) {
	if err := requireProcessing(rec, "mark "+platform); err != nil {
		return rec, err
	}
	cur, ok := rec.PerPlatformResults[platform]
	if !ok {
		return rec, fmt.Errorf("%w: %s: unknown platform %q", ErrInvalidTransition, rec.ID, platform)
	}
	if cur.Status != types.PlatformPending {
		return rec, fmt.Errorf("%w: %s: platform %s already %s", ErrInvalidTransition, rec.ID, platform, cur.Status)
	}
	if res.Status != types.PlatformDone && res.Status != types.PlatformFailed {
		return rec, fmt.Errorf("%w: %s: platform %s -> %s", ErrInvalidTransition, rec.ID, platform, res.Status)
	}

	next := rec.Clone()
	now := m.now()
	res.CompletedAt = &now
	next.PerPlatformResults[platform] = res
	return m.commit(rec, next)
}

// Finish closes a processing job: completed only when every platform is done
func (m *Machine) Finish(rec types.JobRecord) (types.JobRecord, error) {
	if err := requireProcessing(rec, "finish"); err != nil {
		return rec, err
	}
	var failed, unfinished []string
	for _, p := range rec.Platforms {
		switch rec.PerPlatformResults[p].Status {
		case types.PlatformDone:
		case types.PlatformFailed:
			failed = append(failed, p)
		default:
			unfinished = append(unfinished, p)
		}
	}

	next := rec.Clone()
	if len(failed) == 0 && len(unfinished) == 0 {
		next.Status = types.StatusCompleted
		next.Error = ""
	} else {
		next.Status = types.StatusFailed
		var parts []string
		if len(failed) > 0 {
			parts = append(parts, "failed platforms: "+strings.Join(failed, ", "))
		}
		if len(unfinished) > 0 {
			parts = append(parts, "unfinished platforms: "+strings.Join(unfinished, ", "))
		}
		next.Error = strings.Join(parts, "; ")
	}
	return m.commit(rec, next)
}

// Fail aborts a processing job with a job-level error
func (m *Machine) Fail(rec types.JobRecord, cause error) (types.JobRecord, error) {
	if !CanTransition(rec.Status, types.StatusFailed) {
		return rec, invalid(rec, types.StatusFailed)
	}
	next := rec.Clone()
	next.Status = types.StatusFailed
	if cause != nil {
		next.Error = cause.Error()
	}
	return m.commit(rec, next)
}

// Retry returns a failed job to detected. Done platforms keep their output;
// failed or unfinished ones are reset to pending.
func (m *Machine) Retry(rec types.JobRecord) (types.JobRecord, error) {
	if !CanTransition(rec.Status, types.StatusDetected) {
		return rec, invalid(rec, types.StatusDetected)
	}
	next := rec.Clone()
	next.Status = types.StatusDetected
	next.Error = ""
	for p, res := range next.PerPlatformResults {
		if res.Status != types.PlatformDone {
			next.PerPlatformResults[p] = types.PlatformResult{Status: types.PlatformPending}
		}
	}
	return m.commit(rec, next)
}

// PendingPlatforms lists platforms still to render, in configured order
func PendingPlatforms(rec types.JobRecord) []string {
	var out []string
	for _, p := range rec.Platforms {
		if rec.PerPlatformResults[p].Status == types.PlatformPending {
			out = append(out, p)
		}
	}
	return out
}

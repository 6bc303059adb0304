package subtitles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"shorts-pipeline/config"
	"shorts-pipeline/logging"
	"shorts-pipeline/types"
)

// Aligner turns narration audio into timed segments (speech-to-text with timestamps)
type Aligner interface {
	Name() string
	Align(ctx context.Context, audioPath string) ([]types.CaptionSegment, error)
}

var ErrNoAlignment = errors.New("no aligner produced segments")

// Chain tries aligners in rank order; the first non-empty result wins
type Chain struct {
	aligners []Aligner
	log      *zerolog.Logger
}

var _ Aligner = (*Chain)(nil)

func NewChain(logger *zerolog.Logger, aligners ...Aligner) *Chain {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Chain{aligners: aligners, log: logger}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.aligners))
	for i, a := range c.aligners {
		names[i] = a.Name()
	}
	return strings.Join(names, ",")
}

func (c *Chain) Align(ctx context.Context, audioPath string) ([]types.CaptionSegment, error) {
	var errs []error
	for _, a := range c.aligners {
		segs, err := a.Align(ctx, audioPath)
		if err != nil {
			c.log.Warn().Err(err).Str("aligner", a.Name()).Msg("aligner failed, trying next")
			errs = append(errs, fmt.Errorf("%s: %w", a.Name(), err))
			continue
		}
		if len(segs) == 0 {
			c.log.Warn().Str("aligner", a.Name()).Msg("aligner returned no segments")
			continue
		}
		return segs, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	errs = append([]error{ErrNoAlignment}, errs...)
	return nil, errors.Join(errs...)
}

// WhisperCLI runs the openai-whisper command line and reads its JSON output
type WhisperCLI struct {
	Binary   string
	Model    string
	Language string
	WorkDir  string
}

var _ Aligner = (*WhisperCLI)(nil)

func NewWhisperCLI(cfg config.SubtitlesConfig, workDir string) *WhisperCLI {
	return &WhisperCLI{Binary: "whisper", Model: cfg.WhisperModel, Language: cfg.Language, WorkDir: workDir}
}

func (w *WhisperCLI) Name() string { return "whisper" }

type whisperOutput struct {
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Align runs: whisper audio.wav --model tiny --output_format json --output_dir dir
func (w *WhisperCLI) Align(ctx context.Context, audioPath string) ([]types.CaptionSegment, error) {
	outDir := w.WorkDir
	if outDir == "" {
		outDir = filepath.Dir(audioPath)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	args := []string{
		audioPath,
		"--model", w.Model,
		"--output_format", "json",
		"--output_dir", outDir,
		"--word_timestamps", "True",
		"--verbose", "False",
	}
	if w.Language != "" {
		args = append(args, "--language", w.Language)
	}

	cmd := exec.CommandContext(ctx, w.Binary, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("whisper failed: %w: %s", err, tail(out, 400))
	}

	// whisper saves as <audioFilename>.json
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	return readWhisperJSON(filepath.Join(outDir, base+".json"))
}

func readWhisperJSON(path string) ([]types.CaptionSegment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}
	segs := make([]types.CaptionSegment, 0, len(out.Segments))
	for _, s := range out.Segments {
		segs = append(segs, types.CaptionSegment{Text: strings.TrimSpace(s.Text), Start: s.Start, End: s.End})
	}
	return segs, nil
}

// NewAligners builds the ranked chain named by cfg.Engines
func NewAligners(cfg config.SubtitlesConfig, workDir string, logger *zerolog.Logger) (*Chain, error) {
	var aligners []Aligner
	for _, name := range cfg.Engines {
		switch strings.ToLower(name) {
		case "whisper":
			aligners = append(aligners, NewWhisperCLI(cfg, workDir))
		case "none", "":
		default:
			return nil, fmt.Errorf("unknown subtitle engine %q", name)
		}
	}
	return NewChain(logger, aligners...), nil
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		s = "..." + s[len(s)-n:]
	}
	return s
}

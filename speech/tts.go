// Package speech turns narration text into audio through external TTS engines.
package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"shorts-pipeline/logging"
)

// Synthesizer writes spoken text to outPath
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text, outPath string) error
}

var ErrNoEngine = errors.New("no TTS engine found: set TTS_COMMAND or install edge-tts (pip install edge-tts)")

// Command runs a user-supplied TTS program that accepts:
//
//	--text "..." --output path/to/file.mp3
//
// A path ending in .py is run through python3.
type Command struct {
	Cmd string
}

var _ Synthesizer = (*Command)(nil)

func (c *Command) Name() string { return filepath.Base(c.Cmd) }

func (c *Command) command(ctx context.Context, text, outPath string) *exec.Cmd {
	cmd := strings.TrimSpace(c.Cmd)
	if strings.HasSuffix(cmd, ".py") {
		return exec.CommandContext(ctx, "python3", cmd, "--text", text, "--output", outPath)
	}
	return exec.CommandContext(ctx, cmd, "--text", text, "--output", outPath)
}

func (c *Command) Synthesize(ctx context.Context, text, outPath string) error {
	if out, err := c.command(ctx, text, outPath).CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", c.Name(), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// EdgeTTS uses the free Microsoft voices through the edge-tts CLI
type EdgeTTS struct {
	Voice string
}

var _ Synthesizer = (*EdgeTTS)(nil)

func (e *EdgeTTS) Name() string { return "edge-tts" }

func (e *EdgeTTS) Synthesize(ctx context.Context, text, outPath string) error {
	voice := e.Voice
	if voice == "" {
		voice = "pt-BR-AntonioNeural"
	}
	out, err := exec.CommandContext(ctx, "edge-tts",
		"--voice", voice,
		"--text", text,
		"--write-media", outPath,
	).CombinedOutput()
	if err != nil {
		return fmt.Errorf("edge-tts: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Chain tries engines in rank order, retrying each a few times
type Chain struct {
	engines  []Synthesizer
	attempts int
	backoff  time.Duration
	log      *zerolog.Logger
}

var _ Synthesizer = (*Chain)(nil)

func NewChain(logger *zerolog.Logger, engines ...Synthesizer) *Chain {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Chain{engines: engines, attempts: 3, backoff: 2 * time.Second, log: logger}
}

// WithRetry overrides the per-engine attempt count and base backoff
func (c *Chain) WithRetry(attempts int, backoff time.Duration) *Chain {
	if attempts < 1 {
		attempts = 1
	}
	c.attempts, c.backoff = attempts, backoff
	return c
}

func (c *Chain) Name() string {
	names := make([]string, len(c.engines))
	for i, e := range c.engines {
		names[i] = e.Name()
	}
	return strings.Join(names, ",")
}

func (c *Chain) Synthesize(ctx context.Context, text, outPath string) error {
	if len(c.engines) == 0 {
		return ErrNoEngine
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create audio dir: %w", err)
	}

	var errs []error
	for _, e := range c.engines {
		err := c.try(ctx, e, text, outPath)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn().Err(err).Str("engine", e.Name()).Msg("TTS engine failed, trying next")
		errs = append(errs, err)
	}
	return fmt.Errorf("all TTS engines failed: %w", errors.Join(errs...))
}

func (c *Chain) try(ctx context.Context, e Synthesizer, text, outPath string) error {
	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err = e.Synthesize(ctx, text, outPath); err == nil {
			return nil
		}
		if attempt == c.attempts {
			break
		}
		c.log.Warn().Err(err).Str("engine", e.Name()).Int("attempt", attempt).Msg("TTS attempt failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}
	return err
}

// FromEnv ranks TTS_COMMAND first, then edge-tts when it is on PATH
func FromEnv(voice string, logger *zerolog.Logger) (*Chain, error) {
	var engines []Synthesizer
	if cmd := strings.TrimSpace(os.Getenv("TTS_COMMAND")); cmd != "" {
		engines = append(engines, &Command{Cmd: cmd})
	}
	if _, err := exec.LookPath("edge-tts"); err == nil {
		engines = append(engines, &EdgeTTS{Voice: voice})
	}
	if len(engines) == 0 {
		return nil, ErrNoEngine
	}
	return NewChain(logger, engines...), nil
}

// Package media wraps the ffprobe and ffmpeg command line tools.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"shorts-pipeline/config"
	"shorts-pipeline/types"
)

// Prober inspects video files
type Prober interface {
	// Valid returns nil when the file decodes as media
	Valid(ctx context.Context, path string) error
	Probe(ctx context.Context, path string) (*types.SourceInfo, error)
	Duration(ctx context.Context, path string) (float64, error)
}

var ErrNoVideoStream = errors.New("no video stream")

// FFprobe implements Prober with the ffprobe binary
type FFprobe struct {
	Binary string
}

var _ Prober = (*FFprobe)(nil)

func NewFFprobe(cfg config.RenderConfig) *FFprobe {
	bin := cfg.FFprobe
	if bin == "" {
		bin = "ffprobe"
	}
	return &FFprobe{Binary: bin}
}

func (p *FFprobe) Valid(ctx context.Context, path string) error {
	out, err := exec.CommandContext(ctx, p.Binary, "-v", "error", path).CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (p *FFprobe) Probe(ctx context.Context, path string) (*types.SourceInfo, error) {
	out, err := exec.CommandContext(ctx, p.Binary,
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-of", "json",
		path,
	).Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseProbe(out)
}

// Duration uses ffprobe to get accurate duration in seconds
func (p *FFprobe) Duration(ctx context.Context, path string) (float64, error) {
	out, err := exec.CommandContext(ctx, p.Binary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration %s: %w", path, err)
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return dur, nil
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbe(data []byte) (*types.SourceInfo, error) {
	var po probeOutput
	if err := json.Unmarshal(data, &po); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &types.SourceInfo{}
	haveVideo := false
	for _, s := range po.Streams {
		switch s.CodecType {
		case "video":
			if haveVideo {
				continue
			}
			haveVideo = true
			info.Width, info.Height, info.VideoCodec = s.Width, s.Height, s.CodecName
			if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
				info.Duration = d
			}
		case "audio":
			if !info.HasAudio {
				info.HasAudio = true
				info.AudioCodec = s.CodecName
			}
		}
	}
	if !haveVideo {
		return nil, ErrNoVideoStream
	}
	// container duration is authoritative when present
	if d, err := strconv.ParseFloat(po.Format.Duration, 64); err == nil && d > 0 {
		info.Duration = d
	}
	return info, nil
}

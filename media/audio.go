package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"shorts-pipeline/config"
)

// AudioExtractor pulls the narration track out of a video
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoPath, outPath string) error
}

// FFmpeg implements AudioExtractor with the ffmpeg binary
type FFmpeg struct {
	Binary string
}

var _ AudioExtractor = (*FFmpeg)(nil)

func NewFFmpeg(cfg config.RenderConfig) *FFmpeg {
	bin := cfg.FFmpeg
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpeg{Binary: bin}
}

// ExtractAudioArgs returns the ffmpeg arguments for a 16 kHz mono PCM WAV, the input speech recognizers expect
func ExtractAudioArgs(videoPath, outPath string) []string {
	return ffmpeg.Input(videoPath).
		Output(outPath, ffmpeg.KwArgs{
			"vn":     "",
			"acodec": "pcm_s16le",
			"ar":     16000,
			"ac":     1,
		}).
		OverWriteOutput().
		GetArgs()
}

func (f *FFmpeg) ExtractAudio(ctx context.Context, videoPath, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	out, err := exec.CommandContext(ctx, f.Binary, ExtractAudioArgs(videoPath, outPath)...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w: %s", err, lastLine(out))
	}
	return nil
}

// lastLine keeps ffmpeg's final diagnostic, which names the actual failure
func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

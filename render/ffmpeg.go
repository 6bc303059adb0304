package render

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"shorts-pipeline/config"
	"shorts-pipeline/logging"
	"shorts-pipeline/subtitles"
)

// Request is one platform variant of one job
type Request struct {
	Source         string
	SourceDuration float64
	OutputDir      string
	SubtitlePath   string // optional, burned in when set
	Plan           Plan
}

// Renderer produces the platform video and returns its path
type Renderer interface {
	Render(ctx context.Context, req Request) (string, error)
}

// Encoding are the encoder knobs shared by all platforms
type Encoding struct {
	Preset string
	CRF    int
	FPS    int
	Font   string
	Style  subtitles.Style
}

// Args is everything BuildArgs needs
type Args struct {
	Source       string
	Output       string
	SubtitlePath string
	Start, End   float64
	Plan         Plan
	Encoding     Encoding
}

// BuildArgs returns the ffmpeg argument list: trim, scale+pad to the platform
// canvas, optional subtitle burn-in, CTA drawtext, H.264/AAC.
func BuildArgs(a Args) []string {
	w, h := a.Plan.Width, a.Plan.Height
	filters := []string{
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", w, h),
		fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2", w, h),
		"setsar=1",
	}
	if a.SubtitlePath != "" {
		filters = append(filters, burnIn(a.SubtitlePath, a.Encoding.Style))
	}
	if a.Plan.CTA.Text != "" {
		filters = append(filters, drawtext(a.Plan.CTA, a.Encoding.Font, h))
	}

	args := []string{"-y"}
	if a.Start > 0 {
		args = append(args, "-ss", formatSeconds(a.Start))
	}
	args = append(args, "-i", a.Source)
	if a.End > a.Start {
		args = append(args, "-t", formatSeconds(a.End-a.Start))
	}
	args = append(args, "-vf", strings.Join(filters, ","))
	args = append(args, encodeArgs(a.Encoding)...)
	return append(args, a.Output)
}

// encodeArgs is the H.264/AAC output section shared by every render
func encodeArgs(enc Encoding) []string {
	return []string{
		"-c:v", "libx264",
		"-preset", enc.Preset,
		"-crf", strconv.Itoa(enc.CRF),
		"-r", strconv.Itoa(enc.FPS),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
	}
}

func burnIn(path string, style subtitles.Style) string {
	return fmt.Sprintf("subtitles=%s:force_style='%s'", escapeSubtitlePath(path), style.ForceStyle())
}

func drawtext(cta CTA, font string, height int) string {
	fontSize := height / 30
	if fontSize < 16 {
		fontSize = 16
	}
	color := cta.Color
	if color == "" {
		color = "white"
	}
	opts := []string{
		"text='" + escapeDrawtext(cta.Text) + "'",
		"fontcolor=" + color,
		"fontsize=" + strconv.Itoa(fontSize),
		"x=" + ctaX(cta.PositionX),
		fmt.Sprintf("y=h*%.2f-text_h/2", cta.PositionY),
	}
	if font != "" {
		opts = append(opts, "font='"+font+"'")
	}
	if cta.Background != "" {
		opts = append(opts, "box=1", "boxcolor="+cta.Background, "boxborderw=20")
	}
	return "drawtext=" + strings.Join(opts, ":")
}

func ctaX(pos string) string {
	switch strings.ToLower(pos) {
	case "", "center":
		return "(w-text_w)/2"
	case "left":
		return "40"
	case "right":
		return "w-text_w-40"
	}
	if f, err := strconv.ParseFloat(pos, 64); err == nil {
		return fmt.Sprintf("w*%.2f", f)
	}
	return "(w-text_w)/2"
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func escapeSubtitlePath(path string) string {
	// FFmpeg subtitle filter needs escaped colons and backslashes
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.ReplaceAll(path, ":", "\\:")
	path = strings.ReplaceAll(path, "'", "\\'")
	return path
}

func escapeDrawtext(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		"'", "’",
		":", "\\:",
		"%", "\\%",
		",", "\\,",
	)
	return r.Replace(s)
}

// FFmpegRenderer runs ffmpeg for each platform variant
type FFmpegRenderer struct {
	binary string
	enc    Encoding
	log    *zerolog.Logger
}

var _ Renderer = (*FFmpegRenderer)(nil)

func NewFFmpegRenderer(cfg *config.Config, logger *zerolog.Logger) *FFmpegRenderer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &FFmpegRenderer{binary: cfg.Render.FFmpeg, enc: encodingFrom(cfg), log: logger}
}

func encodingFrom(cfg *config.Config) Encoding {
	return Encoding{
		Preset: cfg.Render.Preset,
		CRF:    cfg.Render.CRF,
		FPS:    cfg.Render.FPS,
		Font:   cfg.Render.Font,
		Style:  subtitles.LookupStyle(cfg.Subtitles.Style),
	}
}

// Render writes <OutputDir>/<platform>.mp4, via a partial file renamed on success
func (r *FFmpegRenderer) Render(ctx context.Context, req Request) (string, error) {
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	out := filepath.Join(req.OutputDir, req.Plan.Platform+".mp4")
	part := filepath.Join(req.OutputDir, req.Plan.Platform+".part.mp4")

	start, end, truncated := req.Plan.Window(req.SourceDuration)
	if truncated {
		r.log.Info().Str("platform", req.Plan.Platform).
			Float64("source", req.SourceDuration).Float64("max", req.Plan.MaxDuration).
			Msg("source longer than platform limit, truncating")
	}

	args := BuildArgs(Args{
		Source:       req.Source,
		Output:       part,
		SubtitlePath: req.SubtitlePath,
		Start:        start,
		End:          end,
		Plan:         req.Plan,
		Encoding:     r.enc,
	})

	defer logging.TraceDuration(r.log, "render."+req.Plan.Platform)()
	if err := runToPart(ctx, r.binary, args, part, out); err != nil {
		return "", fmt.Errorf("ffmpeg %s: %w", req.Plan.Platform, err)
	}
	r.log.Info().Str("platform", req.Plan.Platform).Str("output", out).Msg("rendered")
	return out, nil
}

// runToPart runs ffmpeg writing part and renames it to out on success
func runToPart(ctx context.Context, binary string, args []string, part, out string) error {
	cmd := exec.CommandContext(ctx, binary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		os.Remove(part)
		return fmt.Errorf("%w: %s", err, lastLines(output, 3))
	}
	if err := os.Rename(part, out); err != nil {
		os.Remove(part)
		return fmt.Errorf("finalize %s: %w", out, err)
	}
	return nil
}

func lastLines(b []byte, n int) string {
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"shorts-pipeline/config"
	"shorts-pipeline/logging"
)

// BackgroundKind selects what sits behind a narration-only video
type BackgroundKind string

const (
	BackgroundColor    BackgroundKind = "color"
	BackgroundGradient BackgroundKind = "gradient"
	BackgroundImage    BackgroundKind = "image"
	BackgroundVideo    BackgroundKind = "video"
)

var ErrBadBackground = errors.New("invalid background")

// Background is the visual layer under narration audio
type Background struct {
	Kind      BackgroundKind
	Colors    []string // ffmpeg colours: one for color, two for gradient
	Direction string   // gradient only: horizontal, vertical or diagonal
	Path      string   // image or video file
}

// BackgroundColors are the named colour presets
var BackgroundColors = map[string]string{
	"dark_blue":   "#1a237e",
	"blue":        "#2196f3",
	"light_blue":  "#bbdefb",
	"dark_green":  "#1b5e20",
	"green":       "#4caf50",
	"light_green": "#c8e6c9",
	"dark_red":    "#b71c1c",
	"red":         "#f44336",
	"light_red":   "#ffcdd2",
	"yellow":      "#ffeb3b",
	"orange":      "#ff9800",
	"purple":      "#9c27b0",
	"pink":        "#e91e63",
	"dark_gray":   "#212121",
	"gray":        "#9e9e9e",
	"light_gray":  "#f5f5f5",
	"black":       "#000000",
	"white":       "#ffffff",
}

// BackgroundGradients are the named two-stop gradient presets
var BackgroundGradients = map[string][2]string{
	"blue_purple":          {"#2196f3", "#9c27b0"},
	"green_blue":           {"#4caf50", "#2196f3"},
	"red_orange":           {"#f44336", "#ff9800"},
	"yellow_green":         {"#ffeb3b", "#4caf50"},
	"purple_pink":          {"#9c27b0", "#e91e63"},
	"black_blue":           {"#000000", "#2196f3"},
	"white_gray":           {"#ffffff", "#9e9e9e"},
	"dark_blue_light_blue": {"#1a237e", "#bbdefb"},
}

// BackgroundPresets lists preset names for help text, sorted
func BackgroundPresets() (colors, gradients []string) {
	for n := range BackgroundColors {
		colors = append(colors, n)
	}
	for n := range BackgroundGradients {
		gradients = append(gradients, n)
	}
	sort.Strings(colors)
	sort.Strings(gradients)
	return colors, gradients
}

var (
	hexColor   = regexp.MustCompile(`^#?[0-9a-fA-F]{6}$`)
	namedColor = regexp.MustCompile(`^[a-zA-Z]+$`)
)

// parseColor accepts a preset, #rrggbb or an ffmpeg colour name and returns
// the ffmpeg spelling
func parseColor(s string) (string, error) {
	s = strings.TrimSpace(s)
	if hex, ok := BackgroundColors[strings.ToLower(s)]; ok {
		s = hex
	}
	switch {
	case hexColor.MatchString(s):
		return "0x" + strings.ToLower(strings.TrimPrefix(s, "#")), nil
	case namedColor.MatchString(s):
		return strings.ToLower(s), nil
	}
	return "", fmt.Errorf("%w: colour %q", ErrBadBackground, s)
}

// ParseBackground reads kind:value, e.g. color:dark_blue,
// gradient:#000000,#2196f3,diagonal or video:/assets/loop.mp4
func ParseBackground(spec string) (Background, error) {
	kind, value, ok := strings.Cut(strings.TrimSpace(spec), ":")
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return Background{}, fmt.Errorf("%w: %q, want kind:value", ErrBadBackground, spec)
	}

	switch k := BackgroundKind(strings.ToLower(kind)); k {
	case BackgroundColor:
		c, err := parseColor(value)
		if err != nil {
			return Background{}, err
		}
		return Background{Kind: k, Colors: []string{c}}, nil
	case BackgroundGradient:
		return parseGradient(value)
	case BackgroundImage, BackgroundVideo:
		return Background{Kind: k, Path: value}, nil
	}
	return Background{}, fmt.Errorf("%w: unknown kind %q", ErrBadBackground, kind)
}

func parseGradient(value string) (Background, error) {
	bg := Background{Kind: BackgroundGradient, Direction: "vertical"}
	stops := strings.Split(value, ",")
	if preset, ok := BackgroundGradients[strings.ToLower(value)]; ok {
		stops = preset[:]
	}
	switch len(stops) {
	case 3:
		bg.Direction = strings.ToLower(strings.TrimSpace(stops[2]))
		if bg.Direction != "horizontal" && bg.Direction != "vertical" && bg.Direction != "diagonal" {
			return Background{}, fmt.Errorf("%w: gradient direction %q", ErrBadBackground, stops[2])
		}
	case 2:
	default:
		return Background{}, fmt.Errorf("%w: gradient %q, want a preset or c0,c1[,direction]", ErrBadBackground, value)
	}
	for _, stop := range stops[:2] {
		c, err := parseColor(stop)
		if err != nil {
			return Background{}, err
		}
		bg.Colors = append(bg.Colors, c)
	}
	return bg, nil
}

// input returns the ffmpeg input arguments for the background and the
// filters that fit it to a w×h canvas
func (b Background) input(w, h, fps int) (args, filters []string) {
	size := fmt.Sprintf("%dx%d", w, h)
	cover := []string{
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase", w, h),
		fmt.Sprintf("crop=%d:%d", w, h),
	}
	switch b.Kind {
	case BackgroundGradient:
		x1, y1 := 0, h
		switch b.Direction {
		case "horizontal":
			x1, y1 = w, 0
		case "diagonal":
			x1, y1 = w, h
		}
		src := fmt.Sprintf("gradients=s=%s:r=%d:c0=%s:c1=%s:x0=0:y0=0:x1=%d:y1=%d:speed=0.00001",
			size, fps, b.Colors[0], b.Colors[1], x1, y1)
		return []string{"-f", "lavfi", "-i", src}, nil
	case BackgroundImage:
		return []string{"-loop", "1", "-framerate", strconv.Itoa(fps), "-i", b.Path}, cover
	case BackgroundVideo:
		return []string{"-stream_loop", "-1", "-i", b.Path}, cover
	}
	color := "black"
	if len(b.Colors) > 0 {
		color = b.Colors[0]
	}
	return []string{"-f", "lavfi", "-i", fmt.Sprintf("color=c=%s:s=%s:r=%d", color, size, fps)}, nil
}

// ComposeArgs is everything BuildComposeArgs needs
type ComposeArgs struct {
	Background   Background
	Audio        string
	SubtitlePath string // optional, burned in when set
	Output       string
	Duration     float64 // 0 ends with the audio
	Width        int
	Height       int
	Encoding     Encoding
}

// BuildComposeArgs returns the ffmpeg argument list that lays narration
// audio over a background on a width×height canvas. The container is forced
// to MP4 so Output may carry any extension.
func BuildComposeArgs(a ComposeArgs) []string {
	w, h := a.Width, a.Height
	if w <= 0 || h <= 0 {
		w, h = 1080, 1920
	}
	if a.Encoding.FPS <= 0 {
		a.Encoding.FPS = 30
	}

	in, filters := a.Background.input(w, h, a.Encoding.FPS)
	filters = append(filters, "setsar=1")
	if a.SubtitlePath != "" {
		filters = append(filters, burnIn(a.SubtitlePath, a.Encoding.Style))
	}

	args := append([]string{"-y"}, in...)
	args = append(args, "-i", a.Audio, "-map", "0:v:0", "-map", "1:a:0", "-vf", strings.Join(filters, ","))
	if a.Duration > 0 {
		args = append(args, "-t", formatSeconds(a.Duration))
	} else {
		args = append(args, "-shortest")
	}
	args = append(args, encodeArgs(a.Encoding)...)
	return append(args, "-f", "mp4", a.Output)
}

// ComposeRequest is one narration-only video
type ComposeRequest struct {
	Background   Background
	Audio        string
	SubtitlePath string
	Output       string
	Duration     float64
	Width        int
	Height       int
}

// Composer builds videos from narration audio and a background
type Composer struct {
	binary string
	enc    Encoding
	log    *zerolog.Logger
}

func NewComposer(cfg *config.Config, logger *zerolog.Logger) *Composer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Composer{binary: cfg.Render.FFmpeg, enc: encodingFrom(cfg), log: logger}
}

// Compose writes req.Output through <output>.part, whose extension the
// intake watcher ignores. A missing image or video falls back to black.
func (c *Composer) Compose(ctx context.Context, req ComposeRequest) error {
	bg := req.Background
	if bg.Kind == BackgroundImage || bg.Kind == BackgroundVideo {
		if _, err := os.Stat(bg.Path); err != nil {
			c.log.Warn().Err(err).Str("background", bg.Path).Msg("background missing, using black")
			bg = Background{Kind: BackgroundColor, Colors: []string{"black"}}
		}
	}
	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	part := req.Output + ".part"
	args := BuildComposeArgs(ComposeArgs{
		Background:   bg,
		Audio:        req.Audio,
		SubtitlePath: req.SubtitlePath,
		Output:       part,
		Duration:     req.Duration,
		Width:        req.Width,
		Height:       req.Height,
		Encoding:     c.enc,
	})

	defer logging.TraceDuration(c.log, "render.compose")()
	if err := runToPart(ctx, c.binary, args, part, req.Output); err != nil {
		return fmt.Errorf("ffmpeg compose: %w", err)
	}
	c.log.Info().Str("background", string(bg.Kind)).Str("output", req.Output).Msg("composed")
	return nil
}

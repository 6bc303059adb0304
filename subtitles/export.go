package subtitles

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"shorts-pipeline/fileutil"
	"shorts-pipeline/types"
)

// Format is a subtitle interchange format
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
	FormatASS Format = "ass"
)

var ErrUnknownFormat = errors.New("unknown subtitle format")

// ParseFormat accepts "srt", "vtt", "ass" (any case, optional dot)
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")); f {
	case FormatSRT, FormatVTT, FormatASS:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// splitClock breaks seconds into h/m/s/fraction, rounding to the nearest 1/unit
func splitClock(seconds float64, unit int64) (h, m, s, frac int64) {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(math.Round(seconds * float64(unit)))
	frac = total % unit
	secs := total / unit
	return secs / 3600, (secs % 3600) / 60, secs % 60, frac
}

// FormatSRTTime renders HH:MM:SS,mmm
func FormatSRTTime(seconds float64) string {
	h, m, s, ms := splitClock(seconds, 1000)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// FormatVTTTime renders HH:MM:SS.mmm
func FormatVTTTime(seconds float64) string {
	h, m, s, ms := splitClock(seconds, 1000)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// FormatASSTime renders H:MM:SS.cc
func FormatASSTime(seconds float64) string {
	h, m, s, cs := splitClock(seconds, 100)
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

// cueText trims every line and drops blank ones; a blank line ends an SRT or
// VTT cue
func cueText(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// WrapText breaks text into lines of at most maxChars runes on word
// boundaries. A single word longer than maxChars keeps its own line.
func WrapText(text string, maxChars int) string {
	words := strings.Fields(text)
	if maxChars <= 0 || len(words) == 0 {
		return cueText(text)
	}
	var (
		lines []string
		cur   string
	)
	for _, w := range words {
		switch {
		case cur == "":
			cur = w
		case utf8.RuneCountInString(cur)+1+utf8.RuneCountInString(w) <= maxChars:
			cur += " " + w
		default:
			lines = append(lines, cur)
			cur = w
		}
	}
	return strings.Join(append(lines, cur), "\n")
}

// Wrap returns a copy of segs with every text wrapped to maxChars per line
func Wrap(segs []types.CaptionSegment, maxChars int) []types.CaptionSegment {
	out := make([]types.CaptionSegment, len(segs))
	for i, s := range segs {
		s.Text = WrapText(s.Text, maxChars)
		out[i] = s
	}
	return out
}

// WriteSRT serializes segments as numbered SRT cues
func WriteSRT(w io.Writer, segs []types.CaptionSegment) error {
	bw := bufio.NewWriter(w)
	n := 0
	for _, seg := range segs {
		text := cueText(seg.Text)
		if text == "" {
			continue
		}
		n++
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n", n, FormatSRTTime(seg.Start), FormatSRTTime(seg.End), text)
	}
	return bw.Flush()
}

// WriteVTT serializes segments as WebVTT
func WriteVTT(w io.Writer, segs []types.CaptionSegment) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("WEBVTT\n\n")
	n := 0
	for _, seg := range segs {
		text := cueText(seg.Text)
		if text == "" {
			continue
		}
		n++
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n", n, FormatVTTTime(seg.Start), FormatVTTTime(seg.End), text)
	}
	return bw.Flush()
}

// WriteASS serializes segments as an ASS script for a width×height canvas
func WriteASS(w io.Writer, segs []types.CaptionSegment, style Style, width, height int) error {
	if width <= 0 || height <= 0 {
		width, height = 1080, 1920
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "[Script Info]\nScriptType: v4.00+\nPlayResX: %d\nPlayResY: %d\n\n", width, height)
	bw.WriteString("[V4+ Styles]\n")
	bw.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	bw.WriteString(style.assLine() + "\n\n")
	bw.WriteString("[Events]\n")
	bw.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, seg := range segs {
		text := strings.ReplaceAll(cueText(seg.Text), "\n", `\N`)
		fmt.Fprintf(bw, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n", FormatASSTime(seg.Start), FormatASSTime(seg.End), text)
	}
	return bw.Flush()
}

// ParseSRT reads cues back into segments. Malformed cues are an error.
func ParseSRT(r io.Reader) ([]types.CaptionSegment, error) {
	var (
		segs  []types.CaptionSegment
		block []string
		line  int
	)
	flush := func() error {
		defer func() { block = block[:0] }()
		if len(block) == 0 {
			return nil
		}
		// index line is optional in practice
		if _, err := strconv.Atoi(strings.TrimSpace(block[0])); err == nil {
			block = block[1:]
		}
		if len(block) < 1 {
			return fmt.Errorf("line %d: cue without timing", line)
		}
		start, end, err := parseSRTTiming(block[0])
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		segs = append(segs, types.CaptionSegment{
			Text:  strings.Join(block[1:], "\n"),
			Start: start,
			End:   end,
		})
		return nil
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if line == 1 {
			text = strings.TrimPrefix(text, "\ufeff")
		}
		if strings.TrimSpace(text) == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		block = append(block, text)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return segs, nil
}

func parseSRTTiming(s string) (float64, float64, error) {
	parts := strings.Split(s, "-->")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("bad timing line %q", s)
	}
	start, err := parseSRTTime(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	// cue settings may follow the end time
	endField := strings.Fields(strings.TrimSpace(parts[1]))
	if len(endField) == 0 {
		return 0, 0, fmt.Errorf("bad timing line %q", s)
	}
	end, err := parseSRTTime(endField[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseSRTTime(s string) (float64, error) {
	var h, m, sec, ms int
	s = strings.Replace(s, ".", ",", 1)
	if _, err := fmt.Sscanf(s, "%d:%d:%d,%d", &h, &m, &sec, &ms); err != nil {
		return 0, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return float64(h*3600+m*60+sec) + float64(ms)/1000, nil
}

// ValidateSRT checks that the SRT file parses and holds at least one cue
func ValidateSRT(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	segs, err := ParseSRT(f)
	if err != nil {
		return fmt.Errorf("SRT file malformed: %w", err)
	}
	if len(segs) == 0 {
		return fmt.Errorf("SRT file appears empty: %s", path)
	}
	return nil
}

// ExportOptions controls line wrapping for every format; style and canvas
// size apply to ASS only
type ExportOptions struct {
	Style           Style
	Width           int
	Height          int
	MaxCharsPerLine int
}

// Export writes segments to path in the given format, creating parent dirs.
// The file is replaced atomically.
func Export(path string, format Format, segs []types.CaptionSegment, opts ExportOptions) error {
	if opts.MaxCharsPerLine > 0 {
		segs = Wrap(segs, opts.MaxCharsPerLine)
	}

	var (
		buf bytes.Buffer
		err error
	)
	switch format {
	case FormatSRT:
		err = WriteSRT(&buf, segs)
	case FormatVTT:
		err = WriteVTT(&buf, segs)
	case FormatASS:
		if opts.Style.Font == "" {
			opts.Style = LookupStyle("standard")
		}
		err = WriteASS(&buf, segs, opts.Style, opts.Width, opts.Height)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err == nil {
		err = fileutil.WriteAtomic(path, buf.Bytes())
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", format, err)
	}
	return nil
}

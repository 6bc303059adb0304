package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"shorts-pipeline/media"
	"shorts-pipeline/subtitles"
	"shorts-pipeline/types"
)

var (
	subsFormats []string
	subsOut     string
	subsText    string
	subsWPM     float64
	subsStyle   string
	subsWidth   int
	subsHeight  int
)

var subtitlesCmd = &cobra.Command{
	Use:   "subtitles <text-or-audio-file>",
	Short: "Generate timed subtitles from a narration script or an audio file",
	Long: `Generate SRT/VTT/ASS subtitles.

A .txt input is timed by the word estimator. Any other input is treated as
audio: it is aligned with the configured speech recognizer, falling back to the
estimator when --text is given, and to a single placeholder caption otherwise.

Examples:
  shorts-pipeline subtitles script.txt
  shorts-pipeline subtitles narration.mp3 --text script.txt --format srt,ass`,
	Args: cobra.ExactArgs(1),
	RunE: runSubtitles,
}

func init() {
	subtitlesCmd.Flags().StringSliceVarP(&subsFormats, "format", "f", nil, "output formats (srt, vtt, ass); default subtitles.formats")
	subtitlesCmd.Flags().StringVarP(&subsOut, "out", "o", "", "output path without extension (default: next to the input)")
	subtitlesCmd.Flags().StringVar(&subsText, "text", "", "narration script to time audio against")
	subtitlesCmd.Flags().Float64Var(&subsWPM, "wpm", 0, "speaking rate in words per minute (default subtitles.words_per_minute)")
	subtitlesCmd.Flags().StringVar(&subsStyle, "style", "", "ASS style preset (default subtitles.style)")
	subtitlesCmd.Flags().IntVar(&subsWidth, "width", 1080, "ASS canvas width")
	subtitlesCmd.Flags().IntVar(&subsHeight, "height", 1920, "ASS canvas height")
	rootCmd.AddCommand(subtitlesCmd)
}

func runSubtitles(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	input := args[0]

	in := subtitles.Input{WPM: cfg.Subtitles.WordsPerMinute}
	if subsWPM > 0 {
		in.WPM = subsWPM
	}
	if strings.EqualFold(filepath.Ext(input), ".txt") {
		text, err := os.ReadFile(input)
		if err != nil {
			return err
		}
		in.Text = string(text)
	} else {
		if subsText != "" {
			text, err := os.ReadFile(subsText)
			if err != nil {
				return err
			}
			in.Text = string(text)
		}
		in.AudioPath = input
		d, err := media.NewFFprobe(cfg.Render).Duration(ctx, input)
		if err != nil {
			logger.Warn().Err(err).Msg("audio duration unknown")
		}
		in.AudioDuration = d
	}

	syncer, err := newSynchronizer()
	if err != nil {
		return err
	}
	if in.AudioPath == "" {
		syncer = subtitles.NewSynchronizer(nil, logger)
	}
	res, err := syncer.Sync(ctx, in)
	if err != nil {
		return err
	}

	base := subsOut
	if base == "" {
		base = strings.TrimSuffix(input, filepath.Ext(input))
	}
	files := captionFiles{base: base, formats: subsFormats, style: subsStyle, width: subsWidth, height: subsHeight}
	paths, err := files.write(res.Segments)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%d segments, %s timing)\n", p, len(res.Segments), res.Source)
	}
	return nil
}

// captionFiles describes where and how to write a set of subtitle files;
// zero fields take the subtitles config defaults
type captionFiles struct {
	base    string // path without extension
	formats []string
	style   string
	width   int
	height  int
}

// write creates one file per format and returns their paths
func (c captionFiles) write(segs []types.CaptionSegment) ([]string, error) {
	if len(c.formats) == 0 {
		c.formats = cfg.Subtitles.Formats
	}
	if c.style == "" {
		c.style = cfg.Subtitles.Style
	}
	opts := subtitles.ExportOptions{
		Style:           subtitles.LookupStyle(c.style),
		Width:           c.width,
		Height:          c.height,
		MaxCharsPerLine: cfg.Subtitles.MaxCharsPerLine,
	}

	var paths []string
	for _, name := range c.formats {
		format, err := subtitles.ParseFormat(name)
		if err != nil {
			return paths, err
		}
		path := c.base + "." + string(format)
		if err := subtitles.Export(path, format, segs, opts); err != nil {
			return paths, fmt.Errorf("export %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

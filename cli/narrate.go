package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"shorts-pipeline/logging"
	"shorts-pipeline/media"
	"shorts-pipeline/render"
	"shorts-pipeline/speech"
	"shorts-pipeline/subtitles"
)

var (
	narrateVoice      string
	narrateAudio      string
	narrateFormats    []string
	narrateStyle      string
	narrateRender     bool
	narrateBackground string
	narratePlatform   string
	narrateBurn       bool
	narrateOut        string
)

var narrateCmd = &cobra.Command{
	Use:   "narrate <script.txt>",
	Short: "Synthesize a narration and its subtitles from a script",
	Long: `Synthesize speech for a script with the ranked TTS engines (TTS_COMMAND, then
edge-tts), then time subtitles against the resulting audio.

With --render the narration is laid over a background and the video is
written to paths.input with the script as its .txt sidecar, so a running
watch turns it into a job. Backgrounds: color:<name|#rrggbb>,
gradient:<preset|c0,c1[,horizontal|vertical|diagonal]>, image:<path>,
video:<path>.

Examples:
  shorts-pipeline narrate story.txt
  shorts-pipeline narrate story.txt --voice en-US-GuyNeural --format srt,vtt
  shorts-pipeline narrate story.txt --render --background gradient:blue_purple`,
	Args: cobra.ExactArgs(1),
	RunE: runNarrate,
}

func init() {
	narrateCmd.Flags().StringVar(&narrateVoice, "voice", "", "edge-tts voice (default speech.voice)")
	narrateCmd.Flags().StringVar(&narrateAudio, "audio", "", "audio output path (default <script>.mp3)")
	narrateCmd.Flags().StringSliceVarP(&narrateFormats, "format", "f", nil, "subtitle formats (srt, vtt, ass); default subtitles.formats")
	narrateCmd.Flags().StringVar(&narrateStyle, "style", "", "ASS style preset (default subtitles.style)")
	narrateCmd.Flags().BoolVar(&narrateRender, "render", false, "compose a video from the narration and a background")
	narrateCmd.Flags().StringVar(&narrateBackground, "background", "", "background for --render (default render.background)")
	narrateCmd.Flags().StringVar(&narratePlatform, "platform", "", "platform whose canvas size --render uses (default first intake platform)")
	narrateCmd.Flags().BoolVar(&narrateBurn, "burn", false, "burn the subtitles into the --render video")
	narrateCmd.Flags().StringVar(&narrateOut, "out", "", "directory for the --render video (default paths.input)")
	rootCmd.AddCommand(narrateCmd)
}

func runNarrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	script := args[0]
	data, err := os.ReadFile(script)
	if err != nil {
		return err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return fmt.Errorf("%s is empty", script)
	}

	var bg render.Background
	if narrateRender {
		spec := cfg.Render.Background
		if narrateBackground != "" {
			spec = narrateBackground
		}
		if bg, err = render.ParseBackground(spec); err != nil {
			return err
		}
	}

	voice := cfg.Speech.Voice
	if narrateVoice != "" {
		voice = narrateVoice
	}
	tts, err := speech.FromEnv(voice, logger)
	if err != nil {
		return err
	}

	audio := narrateAudio
	if audio == "" {
		audio = strings.TrimSuffix(script, filepath.Ext(script)) + ".mp3"
	}
	if err := tts.Synthesize(ctx, text, audio); err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}

	duration, err := media.NewFFprobe(cfg.Render).Duration(ctx, audio)
	if err != nil {
		logger.Warn().Err(err).Msg("audio duration unknown")
	}

	syncer, err := newSynchronizer()
	if err != nil {
		return err
	}
	res, err := syncer.Sync(ctx, subtitles.Input{
		AudioPath:     audio,
		Text:          text,
		AudioDuration: duration,
		WPM:           cfg.Subtitles.WordsPerMinute,
	})
	if err != nil {
		return err
	}

	files := captionFiles{
		base:    strings.TrimSuffix(audio, filepath.Ext(audio)),
		formats: narrateFormats,
		style:   narrateStyle,
		width:   1080,
		height:  1920,
	}
	paths, err := files.write(res.Segments)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "audio: %s (%.1fs, %s)\n", audio, duration, tts.Name())
	for _, p := range paths {
		fmt.Fprintf(out, "subtitles: %s (%d segments, %s timing)\n", p, len(res.Segments), res.Source)
	}
	if !narrateRender {
		return nil
	}

	var burn string
	if narrateBurn {
		burn = preferSRT(paths)
	}
	video, err := composeNarration(cmd, bg, script, text, audio, burn, duration)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "video: %s\n", video)
	return nil
}

// composeNarration renders audio over the configured background into the
// intake folder, writing the script next to it first so the job gets its
// narration text
func composeNarration(cmd *cobra.Command, bg render.Background, script, text, audio, subtitlePath string, duration float64) (string, error) {
	platform := narratePlatform
	if platform == "" {
		platform = cfg.Intake.Platforms[0]
	}
	plan, err := render.NewPlans(cfg.Platforms).Get(platform)
	if err != nil {
		return "", err
	}

	dir := cfg.Paths.Input
	if narrateOut != "" {
		dir = narrateOut
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	stem := strings.TrimSuffix(filepath.Base(script), filepath.Ext(script))
	sidecar := filepath.Join(dir, stem+".txt")
	if !samePath(sidecar, script) {
		if err := os.WriteFile(sidecar, []byte(text+"\n"), 0o644); err != nil {
			return "", fmt.Errorf("write sidecar: %w", err)
		}
	}

	video := filepath.Join(dir, stem+".mp4")
	err = render.NewComposer(cfg, logging.Component(logger, "render")).Compose(cmd.Context(), render.ComposeRequest{
		Background:   bg,
		Audio:        audio,
		SubtitlePath: subtitlePath,
		Output:       video,
		Duration:     duration,
		Width:        plan.Width,
		Height:       plan.Height,
	})
	return video, err
}

func preferSRT(paths []string) string {
	for _, p := range paths {
		if strings.EqualFold(filepath.Ext(p), ".srt") {
			return p
		}
	}
	if len(paths) > 0 {
		return paths[0]
	}
	return ""
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

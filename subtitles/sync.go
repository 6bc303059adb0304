package subtitles

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"shorts-pipeline/logging"
	"shorts-pipeline/timing"
	"shorts-pipeline/types"
)

// SentencePause is the silence inserted after every estimated sentence
const SentencePause = 0.3

// PlaceholderText captions audio that has neither alignment nor narration
const PlaceholderText = "[no narration available]"

var ErrNoTimingSource = errors.New("no audio alignment, narration text or audio duration")

// Source names the timing source that produced a result
type Source string

const (
	SourceAligner     Source = "aligner"
	SourceText        Source = "text"
	SourcePlaceholder Source = "placeholder"
)

// Input is everything the synchronizer may use. Any field may be empty.
type Input struct {
	AudioPath     string
	Text          string
	AudioDuration float64
	WPM           float64
}

type Result struct {
	Segments []types.CaptionSegment
	Source   Source
}

// Synchronizer picks the best available timing source for a narration
type Synchronizer struct {
	aligner Aligner
	log     *zerolog.Logger
}

// NewSynchronizer accepts a nil aligner, in which case only text and placeholder timing are used
func NewSynchronizer(aligner Aligner, logger *zerolog.Logger) *Synchronizer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Synchronizer{aligner: aligner, log: logger}
}

// Sync is a pure function of its input and the aligner's answer, so it is safe to re-run
func (s *Synchronizer) Sync(ctx context.Context, in Input) (Result, error) {
	if in.AudioPath != "" && s.aligner != nil {
		segs, err := s.aligner.Align(ctx, in.AudioPath)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			s.log.Warn().Err(err).Str("audio", in.AudioPath).Msg("alignment unavailable, falling back to text estimate")
		default:
			if segs = Normalize(segs); len(segs) > 0 {
				return Result{Segments: segs, Source: SourceAligner}, nil
			}
		}
	}

	if strings.TrimSpace(in.Text) != "" {
		if segs := Normalize(FromText(in.Text, in.WPM)); len(segs) > 0 {
			return Result{Segments: segs, Source: SourceText}, nil
		}
	}

	if in.AudioDuration > 0 {
		s.log.Warn().Float64("duration", in.AudioDuration).Msg("no narration, using placeholder caption")
		return Result{
			Segments: []types.CaptionSegment{{Text: PlaceholderText, Start: 0, End: in.AudioDuration}},
			Source:   SourcePlaceholder,
		}, nil
	}
	return Result{}, ErrNoTimingSource
}

var sentenceBreak = regexp.MustCompile(`[.!?]\s+`)

// SplitSentences splits after terminal punctuation followed by whitespace
func SplitSentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceBreak.FindAllStringIndex(text, -1) {
		out = appendSentence(out, text[last:loc[0]+1])
		last = loc[1]
	}
	return appendSentence(out, text[last:])
}

// appendSentence collapses whitespace runs so line and paragraph breaks in the
// narration never reach cue text
func appendSentence(out []string, s string) []string {
	if s = strings.Join(strings.Fields(s), " "); s != "" {
		out = append(out, s)
	}
	return out
}

// FromText estimates one segment per sentence. A segment ends when its words
// are spoken; the next one starts after SentencePause.
func FromText(text string, wpm float64) []types.CaptionSegment {
	sentences := SplitSentences(text)
	segs := make([]types.CaptionSegment, 0, len(sentences))
	clock := 0.0
	for _, sentence := range sentences {
		d := timing.Sentence(sentence, wpm)
		segs = append(segs, types.CaptionSegment{Text: sentence, Start: clock, End: clock + d})
		clock += d + SentencePause
	}
	return segs
}

// Normalize sorts by start, drops empty or non-positive spans and clips overlaps
func Normalize(in []types.CaptionSegment) []types.CaptionSegment {
	segs := make([]types.CaptionSegment, 0, len(in))
	for _, s := range in {
		s.Text = strings.TrimSpace(s.Text)
		if s.Start < 0 {
			s.Start = 0
		}
		if s.Text == "" || s.End <= s.Start {
			continue
		}
		segs = append(segs, s)
	}
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })

	out := segs[:0]
	for _, s := range segs {
		if n := len(out); n > 0 && out[n-1].End > s.Start {
			out[n-1].End = s.Start
			if out[n-1].End <= out[n-1].Start {
				out = out[:n-1]
			}
		}
		out = append(out, s)
	}
	return out
}

package subtitles

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shorts-pipeline/types"
)

func TestFormatTimes(t *testing.T) {
	tests := []struct {
		in       float64
		srt, vtt string
		ass      string
	}{
		{0, "00:00:00,000", "00:00:00.000", "0:00:00.00"},
		{0.0006, "00:00:00,001", "00:00:00.001", "0:00:00.00"},
		{59.9999, "00:01:00,000", "00:01:00.000", "0:01:00.00"},
		{3661.25, "01:01:01,250", "01:01:01.250", "1:01:01.25"},
		{-1, "00:00:00,000", "00:00:00.000", "0:00:00.00"},
	}
	for _, tt := range tests {
		t.Run(tt.srt, func(t *testing.T) {
			assert.Equal(t, tt.srt, FormatSRTTime(tt.in))
			assert.Equal(t, tt.vtt, FormatVTTTime(tt.in))
			assert.Equal(t, tt.ass, FormatASSTime(tt.in))
		})
	}
}

func TestWriteSRT(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSRT(&buf, []types.CaptionSegment{
		{Text: "Hello world.", Start: 0, End: 1.44},
		{Text: "This is a test.", Start: 1.74, End: 4.14},
	}))
	want := "1\n00:00:00,000 --> 00:00:01,440\nHello world.\n\n" +
		"2\n00:00:01,740 --> 00:00:04,140\nThis is a test.\n\n"
	assert.Equal(t, want, buf.String())
}

func TestSRTRoundTrip(t *testing.T) {
	segs := []types.CaptionSegment{
		{Text: "one", Start: 0, End: 1.25},
		{Text: "two\nlines", Start: 1.55, End: 3.001},
		{Text: "three", Start: 3661.5, End: 3662},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteSRT(&buf, segs))

	got, err := ParseSRT(&buf)
	require.NoError(t, err)
	require.Len(t, got, len(segs))
	for i := range segs {
		assert.Equal(t, segs[i].Text, got[i].Text)
		assert.InDelta(t, segs[i].Start, got[i].Start, 0.0005)
		assert.InDelta(t, segs[i].End, got[i].End, 0.0005)
	}
}

func TestSRTRoundTrip_ParagraphBreakInNarration(t *testing.T) {
	segs := FromText("My title\n\nThis is the story. It ends here.", 150)
	require.Len(t, segs, 2)
	assert.Equal(t, "My title This is the story.", segs[0].Text)

	var buf bytes.Buffer
	require.NoError(t, WriteSRT(&buf, segs))
	got, err := ParseSRT(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "It ends here.", got[1].Text)

	path := filepath.Join(t.TempDir(), "captions.srt")
	require.NoError(t, Export(path, FormatSRT, segs, ExportOptions{MaxCharsPerLine: 42}))
	require.NoError(t, ValidateSRT(path))
}

func TestWriteSRTAndVTT_DropBlankLinesInCue(t *testing.T) {
	segs := []types.CaptionSegment{
		{Text: "first\n\n  second  ", Start: 0, End: 1},
		{Text: " \n ", Start: 1, End: 2},
		{Text: "third", Start: 2, End: 3},
	}

	var srt bytes.Buffer
	require.NoError(t, WriteSRT(&srt, segs))
	assert.Equal(t, "1\n00:00:00,000 --> 00:00:01,000\nfirst\nsecond\n\n"+
		"2\n00:00:02,000 --> 00:00:03,000\nthird\n\n", srt.String())
	got, err := ParseSRT(&srt)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	var vtt bytes.Buffer
	require.NoError(t, WriteVTT(&vtt, segs))
	assert.Contains(t, vtt.String(), "\nfirst\nsecond\n\n2\n")
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"fits", "short line", 42, "short line"},
		{"breaks on words", "the quick brown fox jumps", 10, "the quick\nbrown fox\njumps"},
		{"long word alone", "a supercalifragilistic b", 5, "a\nsupercalifragilistic\nb"},
		{"runes not bytes", "ação ação", 9, "ação ação"},
		{"disabled", "keep\n\nlines", 0, "keep\nlines"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WrapText(tt.in, tt.max))
		})
	}
}

func TestExport_WrapsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captions.srt")
	segs := []types.CaptionSegment{{Text: "one two three four", Start: 0, End: 2}}
	require.NoError(t, Export(path, FormatSRT, segs, ExportOptions{MaxCharsPerLine: 9}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "one two\nthree\nfour\n")
	assert.Equal(t, "one two three four", segs[0].Text, "input is not mutated")
}

func TestParseSRT_CRLFAndBOM(t *testing.T) {
	in := "\ufeff1\r\n00:00:01,000 --> 00:00:02,500\r\nhi\r\n\r\n"
	got, err := ParseSRT(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []types.CaptionSegment{{Text: "hi", Start: 1, End: 2.5}}, got)
}

func TestParseSRT_Malformed(t *testing.T) {
	_, err := ParseSRT(strings.NewReader("1\nnot a timing\ntext\n"))
	assert.Error(t, err)
}

func TestWriteVTTAndASS(t *testing.T) {
	segs := []types.CaptionSegment{{Text: "a\nb", Start: 1, End: 2}}

	var vtt bytes.Buffer
	require.NoError(t, WriteVTT(&vtt, segs))
	assert.True(t, strings.HasPrefix(vtt.String(), "WEBVTT\n\n"))
	assert.Contains(t, vtt.String(), "00:00:01.000 --> 00:00:02.000")

	var ass bytes.Buffer
	require.NoError(t, WriteASS(&ass, segs, LookupStyle("bold"), 1080, 1920))
	out := ass.String()
	assert.Contains(t, out, "PlayResX: 1080\nPlayResY: 1920")
	assert.Contains(t, out, "Dialogue: 0,0:00:01.00,0:00:02.00,Default,,0,0,0,,a\\Nb")
	assert.Contains(t, out, "Style: Default,Arial,40,")
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	segs := []types.CaptionSegment{{Text: "hello", Start: 0, End: 1}}

	for _, f := range []Format{FormatSRT, FormatVTT, FormatASS} {
		path := filepath.Join(dir, "sub", "captions."+string(f))
		require.NoError(t, Export(path, f, segs, ExportOptions{}))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "hello")
	}
	require.NoError(t, ValidateSRT(filepath.Join(dir, "sub", "captions.srt")))

	err := Export(filepath.Join(dir, "x.txt"), Format("txt"), segs, ExportOptions{})
	assert.ErrorIs(t, err, ErrUnknownFormat)
	_, statErr := os.Stat(filepath.Join(dir, "x.txt.tmp"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(".SRT")
	require.NoError(t, err)
	assert.Equal(t, FormatSRT, f)
	_, err = ParseFormat("sub")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestLookupStyle(t *testing.T) {
	assert.Equal(t, "standard", LookupStyle("nope").Name)
	assert.Len(t, StyleNames(), 6)
	assert.Contains(t, LookupStyle("modern").ForceStyle(), "BorderStyle=3")
}

package subtitles

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shorts-pipeline/config"
	"shorts-pipeline/types"
)

func TestChain_FirstNonEmptyWins(t *testing.T) {
	failing := &fakeAligner{name: "bad", err: errors.New("no model")}
	empty := &fakeAligner{name: "empty"}
	good := &fakeAligner{name: "good", segs: []types.CaptionSegment{{Text: "x", Start: 0, End: 1}}}
	never := &fakeAligner{name: "never"}

	c := NewChain(nil, failing, empty, good, never)
	segs, err := c.Align(context.Background(), "a.wav")
	require.NoError(t, err)
	assert.Len(t, segs, 1)
	assert.Equal(t, 0, never.calls)
	assert.Equal(t, "bad,empty,good,never", c.Name())
}

func TestChain_AllFail(t *testing.T) {
	c := NewChain(nil, &fakeAligner{name: "bad", err: errors.New("no model")})
	_, err := c.Align(context.Background(), "a.wav")
	assert.ErrorIs(t, err, ErrNoAlignment)
}

func TestReadWhisperJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audio.json")
	body := `{"text":" Hi there. Bye.","segments":[{"id":0,"start":0.0,"end":1.2,"text":" Hi there."},{"id":1,"start":1.2,"end":2.0,"text":" Bye."}],"language":"en"}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	segs, err := readWhisperJSON(path)
	require.NoError(t, err)
	assert.Equal(t, []types.CaptionSegment{
		{Text: "Hi there.", Start: 0, End: 1.2},
		{Text: "Bye.", Start: 1.2, End: 2},
	}, segs)
}

func TestNewAligners(t *testing.T) {
	c, err := NewAligners(config.SubtitlesConfig{Engines: []string{"whisper"}, WhisperModel: "tiny"}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "whisper", c.Name())

	_, err = NewAligners(config.SubtitlesConfig{Engines: []string{"vosk"}}, "", nil)
	assert.Error(t, err)
}

package media

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shorts-pipeline/types"
)

func TestParseProbe(t *testing.T) {
	body := `{
  "streams": [
    {"index":0,"codec_name":"h264","codec_type":"video","width":1920,"height":1080,"duration":"89.9"},
    {"index":1,"codec_name":"aac","codec_type":"audio","duration":"90.0"}
  ],
  "format": {"filename":"raw.mp4","duration":"90.016000"}
}`
	info, err := parseProbe([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, &types.SourceInfo{
		Duration: 90.016, Width: 1920, Height: 1080,
		VideoCodec: "h264", AudioCodec: "aac", HasAudio: true,
	}, info)
}

func TestParseProbe_NoAudioUsesStreamDuration(t *testing.T) {
	info, err := parseProbe([]byte(`{"streams":[{"codec_type":"video","codec_name":"vp9","width":720,"height":1280,"duration":"12.5"}],"format":{}}`))
	require.NoError(t, err)
	assert.False(t, info.HasAudio)
	assert.Equal(t, 12.5, info.Duration)
}

func TestParseProbe_Errors(t *testing.T) {
	_, err := parseProbe([]byte(`{"streams":[{"codec_type":"audio"}]}`))
	assert.ErrorIs(t, err, ErrNoVideoStream)

	_, err = parseProbe([]byte(`not json`))
	assert.Error(t, err)
}

func TestExtractAudioArgs(t *testing.T) {
	args := ExtractAudioArgs("in.mp4", "out.wav")
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-i in.mp4")
	assert.Contains(t, joined, "-acodec pcm_s16le")
	assert.Contains(t, joined, "-ar 16000")
	assert.Contains(t, joined, "-ac 1")
	assert.Contains(t, args, "-vn")
	assert.Contains(t, args, "-y")
	assert.Contains(t, args, "out.wav")
}

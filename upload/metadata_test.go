package upload

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shorts-pipeline/config"
	"shorts-pipeline/types"
)

func TestBuildMetadata(t *testing.T) {
	cfg := config.Default().Upload
	rec := types.JobRecord{
		SourcePath:    "/in/receita_bolo.mp4",
		NarrationText: "Bolo de cenoura perfeito. O bolo fica fofo e a cobertura brilha. Receita fácil de bolo!",
	}

	meta := BuildMetadata(rec, "youtube", "Confira meu eBook! Link na descrição", cfg)
	assert.Equal(t, "Bolo de cenoura perfeito.", meta.Title)
	assert.True(t, strings.HasPrefix(meta.Description, rec.NarrationText))
	assert.Contains(t, meta.Description, "Confira meu eBook! Link na descrição")
	assert.Contains(t, meta.Description, "#shorts")
	require.NotEmpty(t, meta.Tags)
	assert.Equal(t, "shorts", meta.Tags[0])
	assert.Equal(t, "bolo", meta.Tags[1], "most frequent word first")
	assert.Equal(t, cfg.CategoryID, meta.CategoryID)
	assert.Equal(t, "private", meta.Visibility)

	ig := BuildMetadata(rec, "instagram", "Link na bio", cfg)
	assert.NotContains(t, ig.Tags, "shorts")
	assert.NotContains(t, ig.Description, "#shorts")

	assert.Equal(t, meta, BuildMetadata(rec, "youtube", "Confira meu eBook! Link na descrição", cfg))
}

func TestBuildMetadata_TitleFallbackAndTruncation(t *testing.T) {
	cfg := config.Default().Upload
	meta := BuildMetadata(types.JobRecord{SourcePath: "/in/my_first-video.mov"}, "tiktok", "", cfg)
	assert.Equal(t, "my first video", meta.Title)

	cfg.TitleMaxChars = 10
	meta = BuildMetadata(types.JobRecord{NarrationText: "Ação incrível acontecendo agora."}, "tiktok", "", cfg)
	assert.Equal(t, "Ação in...", meta.Title)
}

func TestCommandPublisherArgs(t *testing.T) {
	c := &CommandPublisher{Cmd: "/usr/local/bin/post-tiktok"}
	args := c.args(Submission{
		Platform: "tiktok", Account: "acc", VideoPath: "/out/t.mp4",
		Metadata: types.VideoMetadata{Title: "T", Description: "D", Tags: []string{"a", "b"}},
	})
	assert.Equal(t, []string{
		"--platform", "tiktok", "--account", "acc", "--file", "/out/t.mp4",
		"--title", "T", "--description", "D", "--tags", "a,b",
	}, args)
}

func TestLogUpload(t *testing.T) {
	dir := t.TempDir()
	path, err := LogUpload(dir, types.UploadRecord{
		Platform: "youtube", Account: "main", VideoID: "job1",
		Status: types.UploadCompleted, SubmittedAt: now, RemoteID: "abc",
	}, types.VideoMetadata{Title: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "upload_youtube_job1_20260601_150000.json"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"remote_id": "abc"`)
}

func TestCredentialPerAccount(t *testing.T) {
	t.Setenv("YOUTUBE_REFRESH_TOKEN", "shared")
	t.Setenv("YOUTUBE_REFRESH_TOKEN_BRAND_2", "brand")
	assert.Equal(t, "brand", credential("YOUTUBE_REFRESH_TOKEN", "brand-2"))
	assert.Equal(t, "shared", credential("YOUTUBE_REFRESH_TOKEN", "other"))
}

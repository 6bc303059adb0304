package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"shorts-pipeline/config"
	"shorts-pipeline/logging"
	"shorts-pipeline/types"
)

var ErrMissingCredentials = errors.New("YOUTUBE_CLIENT_ID, YOUTUBE_CLIENT_SECRET, or YOUTUBE_REFRESH_TOKEN not set")

// YouTube publishes through the YouTube Data API v3
type YouTube struct {
	cfg config.UploadConfig
	log *zerolog.Logger
}

var _ Publisher = (*YouTube)(nil)

func NewYouTube(cfg config.UploadConfig, logger *zerolog.Logger) *YouTube {
	if logger == nil {
		logger = logging.Nop()
	}
	return &YouTube{cfg: cfg, log: logger}
}

// Publish uploads the video with snippet and status, returning the video id
func (y *YouTube) Publish(ctx context.Context, s Submission) (string, error) {
	client, err := oauthClient(ctx, s.Account)
	if err != nil {
		return "", fmt.Errorf("youtube auth: %w", err)
	}
	svc, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return "", fmt.Errorf("youtube service: %w", err)
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:                s.Metadata.Title,
			Description:          s.Metadata.Description,
			Tags:                 s.Metadata.Tags,
			CategoryId:           s.Metadata.CategoryID,
			DefaultLanguage:      y.cfg.DefaultLanguage,
			DefaultAudioLanguage: y.cfg.DefaultLanguage,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           s.Metadata.Visibility,
			SelfDeclaredMadeForKids: y.cfg.MadeForKids,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}

	f, err := os.Open(s.VideoPath)
	if err != nil {
		return "", fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()
	if fi, err := f.Stat(); err == nil {
		y.log.Info().Str("account", s.Account).Str("title", s.Metadata.Title).
			Float64("mb", float64(fi.Size())/1024/1024).Msg("uploading to youtube")
	}

	call := svc.Videos.Insert([]string{"snippet", "status"}, video).
		NotifySubscribers(y.cfg.NotifySubscribers).
		Media(f).
		Context(ctx)
	uploaded, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("youtube upload: %w", err)
	}
	y.log.Info().Str("video_id", uploaded.Id).Str("url", "https://www.youtube.com/watch?v="+uploaded.Id).Msg("uploaded")
	return uploaded.Id, nil
}

// credential reads NAME_<ACCOUNT> first, then NAME
func credential(name, account string) string {
	if account != "" {
		suffix := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", "@", "_").Replace(account))
		if v := os.Getenv(name + "_" + suffix); v != "" {
			return v
		}
	}
	return os.Getenv(name)
}

// oauthClient creates an OAuth2 HTTP client from env credentials
func oauthClient(ctx context.Context, account string) (*http.Client, error) {
	clientID := credential("YOUTUBE_CLIENT_ID", account)
	clientSecret := credential("YOUTUBE_CLIENT_SECRET", account)
	refreshToken := credential("YOUTUBE_REFRESH_TOKEN", account)
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, ErrMissingCredentials
	}

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope, youtube.YoutubeScope},
	}
	token := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}
	return conf.Client(ctx, token), nil
}

// LogUpload saves one upload result under dir as upload_<platform>_<timestamp>.json
func LogUpload(dir string, rec types.UploadRecord, meta types.VideoMetadata) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	entry := map[string]interface{}{
		"platform":     rec.Platform,
		"account":      rec.Account,
		"job_id":       rec.VideoID,
		"remote_id":    rec.RemoteID,
		"status":       rec.Status,
		"title":        meta.Title,
		"submitted_at": rec.SubmittedAt.UTC().Format(time.RFC3339),
		"video_file":   rec.OutputPath,
		"error":        rec.Error,
	}
	path := filepath.Join(dir, fmt.Sprintf("upload_%s_%s_%s.json", rec.Platform, rec.VideoID, rec.SubmittedAt.UTC().Format("20060102_150405")))
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, data, 0o644)
}

// Publishers wires the configured platforms: the YouTube API for youtube,
// external commands for anything listed under upload.commands
func Publishers(cfg *config.Config, logger *zerolog.Logger) map[string]Publisher {
	pubs := map[string]Publisher{"youtube": NewYouTube(cfg.Upload, logger)}
	for platform, cmd := range cfg.Upload.Commands {
		if strings.TrimSpace(cmd) != "" {
			pubs[platform] = &CommandPublisher{Cmd: cmd}
		}
	}
	return pubs
}

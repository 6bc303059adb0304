package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Paths     PathsConfig               `yaml:"paths"`
	Intake    IntakeConfig              `yaml:"intake"`
	Platforms map[string]PlatformConfig `yaml:"platforms"`
	Subtitles SubtitlesConfig           `yaml:"subtitles"`
	Speech    SpeechConfig              `yaml:"speech"`
	Render    RenderConfig              `yaml:"render"`
	Schedule  ScheduleConfig            `yaml:"schedule"`
	Upload    UploadConfig              `yaml:"upload"`
	Redis     RedisConfig               `yaml:"redis"`
	Log       LogConfig                 `yaml:"log"`
	Server    ServerConfig              `yaml:"server"`
}

type PathsConfig struct {
	Input        string `yaml:"input"`
	Output       string `yaml:"output"`
	UploadStatus string `yaml:"upload_status"`
	Logs         string `yaml:"logs"`
}

type IntakeConfig struct {
	Extensions       []string      `yaml:"extensions"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	StabilityTimeout time.Duration `yaml:"stability_timeout"`
	QueueSize        int           `yaml:"queue_size"`
	Platforms        []string      `yaml:"platforms"`
}

// PlatformConfig carries both render and quota parameters for one platform.
// Pointer fields distinguish "unset" from an explicit zero.
type PlatformConfig struct {
	Width              int      `yaml:"width"`
	Height             int      `yaml:"height"`
	MaxDurationSec     float64  `yaml:"max_duration_sec"`
	CTAText            string   `yaml:"cta_text"`
	CTAPositionX       string   `yaml:"cta_position_x"`
	CTAPositionY       float64  `yaml:"cta_position_y"`
	CTAColor           string   `yaml:"cta_color"`
	CTABackground      string   `yaml:"cta_background"`
	DailyLimit         *int     `yaml:"daily_limit"`
	MinIntervalSeconds *int     `yaml:"min_interval_seconds"`
	UTCOffset          string   `yaml:"utc_offset"`
	Accounts           []string `yaml:"accounts"`
}

type SubtitlesConfig struct {
	Engines         []string `yaml:"engines"`
	WhisperModel    string   `yaml:"whisper_model"`
	Language        string   `yaml:"language"`
	WordsPerMinute  float64  `yaml:"words_per_minute"`
	Formats         []string `yaml:"formats"`
	Style           string   `yaml:"style"`
	BurnIntoVideo   bool     `yaml:"burn_into_video"`
	MaxCharsPerLine int      `yaml:"max_chars_per_line"`
}

type SpeechConfig struct {
	Voice string `yaml:"voice"` // edge-tts voice
}

type RenderConfig struct {
	FFmpeg  string `yaml:"ffmpeg"`
	FFprobe string `yaml:"ffprobe"`
	Preset  string `yaml:"preset"`
	CRF     int    `yaml:"crf"`
	FPS     int    `yaml:"fps"`
	Font    string `yaml:"font"`

	// Background for videos composed from narration: color:<c>,
	// gradient:<preset|c0,c1[,direction]>, image:<path> or video:<path>
	Background string `yaml:"background"`
}

type ScheduleConfig struct {
	Cron      string `yaml:"cron"`
	HotReload bool   `yaml:"hot_reload"`
}

type UploadConfig struct {
	Visibility        string            `yaml:"visibility"`
	CategoryID        string            `yaml:"category_id"`
	DefaultLanguage   string            `yaml:"default_language"`
	MadeForKids       bool              `yaml:"made_for_kids"`
	NotifySubscribers bool              `yaml:"notify_subscribers"`
	TitleMaxChars     int               `yaml:"title_max_chars"`
	MaxAttempts       int               `yaml:"max_attempts"`
	Commands          map[string]string `yaml:"commands"` // platform → external publisher command
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // trace|debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

func intPtr(v int) *int { return &v }

// DefaultPlatforms is the built-in youtube/instagram/tiktok table
func DefaultPlatforms() map[string]PlatformConfig {
	return map[string]PlatformConfig{
		"youtube": {
			Width: 1080, Height: 1920, MaxDurationSec: 60,
			CTAText:      "Confira meu eBook! Link na descrição",
			CTAPositionX: "center", CTAPositionY: 0.85,
			CTAColor: "white", CTABackground: "black@0.5",
			DailyLimit: intPtr(5), MinIntervalSeconds: intPtr(3600),
			UTCOffset: "+00:00",
		},
		"instagram": {
			Width: 1080, Height: 1920, MaxDurationSec: 90,
			CTAText:      "Confira meu eBook! Link na bio",
			CTAPositionX: "center", CTAPositionY: 0.85,
			CTAColor: "white", CTABackground: "black@0.5",
			DailyLimit: intPtr(3), MinIntervalSeconds: intPtr(7200),
			UTCOffset: "+00:00",
		},
		"tiktok": {
			Width: 1080, Height: 1920, MaxDurationSec: 60,
			CTAText:      "Link do eBook na bio! 📚",
			CTAPositionX: "center", CTAPositionY: 0.85,
			CTAColor: "white", CTABackground: "black@0.5",
			DailyLimit: intPtr(5), MinIntervalSeconds: intPtr(3600),
			UTCOffset: "+00:00",
		},
	}
}

// Default returns a complete configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads .env (if present) and a YAML config file. An empty path yields defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	applyDefaults(cfg)
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Paths.Input == "" {
		cfg.Paths.Input = "input"
	}
	if cfg.Paths.Output == "" {
		cfg.Paths.Output = "output"
	}
	if cfg.Paths.UploadStatus == "" {
		cfg.Paths.UploadStatus = "upload_status.json"
	}
	if cfg.Paths.Logs == "" {
		cfg.Paths.Logs = "logs"
	}

	if len(cfg.Intake.Extensions) == 0 {
		cfg.Intake.Extensions = []string{".mp4", ".mov", ".avi", ".wmv", ".mkv"}
	}
	if cfg.Intake.PollInterval < time.Second {
		cfg.Intake.PollInterval = time.Second
	}
	if cfg.Intake.StabilityTimeout <= 0 {
		cfg.Intake.StabilityTimeout = 10 * time.Minute
	}
	if cfg.Intake.QueueSize <= 0 {
		cfg.Intake.QueueSize = 16
	}
	if len(cfg.Intake.Platforms) == 0 {
		cfg.Intake.Platforms = []string{"youtube", "instagram", "tiktok"}
	}

	defaults := DefaultPlatforms()
	if cfg.Platforms == nil {
		cfg.Platforms = make(map[string]PlatformConfig)
	}
	for name, def := range defaults {
		if _, ok := cfg.Platforms[name]; !ok {
			cfg.Platforms[name] = def
		}
	}
	for name, p := range cfg.Platforms {
		cfg.Platforms[name] = mergePlatform(p, defaults[name])
	}

	if len(cfg.Subtitles.Engines) == 0 {
		cfg.Subtitles.Engines = []string{"whisper"}
	}
	if cfg.Subtitles.WhisperModel == "" {
		cfg.Subtitles.WhisperModel = "tiny"
	}
	if cfg.Subtitles.WordsPerMinute <= 0 {
		cfg.Subtitles.WordsPerMinute = 150
	}
	if len(cfg.Subtitles.Formats) == 0 {
		cfg.Subtitles.Formats = []string{"srt"}
	}
	if cfg.Subtitles.Style == "" {
		cfg.Subtitles.Style = "standard"
	}
	if cfg.Subtitles.MaxCharsPerLine <= 0 {
		cfg.Subtitles.MaxCharsPerLine = 42
	}

	if cfg.Speech.Voice == "" {
		cfg.Speech.Voice = "pt-BR-AntonioNeural"
	}

	if cfg.Render.FFmpeg == "" {
		cfg.Render.FFmpeg = "ffmpeg"
	}
	if cfg.Render.FFprobe == "" {
		cfg.Render.FFprobe = "ffprobe"
	}
	if cfg.Render.Preset == "" {
		cfg.Render.Preset = "medium"
	}
	if cfg.Render.CRF <= 0 {
		cfg.Render.CRF = 22
	}
	if cfg.Render.FPS <= 0 {
		cfg.Render.FPS = 30
	}
	if cfg.Render.Font == "" {
		cfg.Render.Font = "Arial"
	}
	if cfg.Render.Background == "" {
		cfg.Render.Background = "color:black"
	}

	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = "*/10 * * * *"
	}

	if cfg.Upload.Visibility == "" {
		cfg.Upload.Visibility = "private"
	}
	if cfg.Upload.CategoryID == "" {
		cfg.Upload.CategoryID = "22"
	}
	if cfg.Upload.DefaultLanguage == "" {
		cfg.Upload.DefaultLanguage = "pt-BR"
	}
	if cfg.Upload.TitleMaxChars <= 0 {
		cfg.Upload.TitleMaxChars = 100
	}
	if cfg.Upload.MaxAttempts <= 0 {
		cfg.Upload.MaxAttempts = 3
	}

	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "uploads"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":9090"
	}
}

// mergePlatform fills unset fields of p from def
func mergePlatform(p, def PlatformConfig) PlatformConfig {
	if p.Width <= 0 {
		p.Width = def.Width
	}
	if p.Height <= 0 {
		p.Height = def.Height
	}
	if p.MaxDurationSec <= 0 {
		p.MaxDurationSec = def.MaxDurationSec
	}
	if p.CTAText == "" {
		p.CTAText = def.CTAText
	}
	if p.CTAPositionX == "" {
		p.CTAPositionX = def.CTAPositionX
	}
	if p.CTAPositionY <= 0 {
		p.CTAPositionY = def.CTAPositionY
	}
	if p.CTAColor == "" {
		p.CTAColor = def.CTAColor
	}
	if p.CTABackground == "" {
		p.CTABackground = def.CTABackground
	}
	if p.DailyLimit == nil {
		p.DailyLimit = def.DailyLimit
	}
	if p.MinIntervalSeconds == nil {
		p.MinIntervalSeconds = def.MinIntervalSeconds
	}
	if p.UTCOffset == "" {
		p.UTCOffset = def.UTCOffset
	}
	// unknown platforms fall back to the youtube shape
	if p.Width <= 0 || p.Height <= 0 {
		p.Width, p.Height = 1080, 1920
	}
	if p.MaxDurationSec <= 0 {
		p.MaxDurationSec = 60
	}
	if p.DailyLimit == nil {
		p.DailyLimit = intPtr(5)
	}
	if p.MinIntervalSeconds == nil {
		p.MinIntervalSeconds = intPtr(3600)
	}
	if p.UTCOffset == "" {
		p.UTCOffset = "+00:00"
	}
	return p
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate rejects configurations the pipeline cannot run with
func (c *Config) Validate() error {
	var errs []error
	for _, name := range c.Intake.Platforms {
		if _, ok := c.Platforms[name]; !ok {
			errs = append(errs, fmt.Errorf("intake.platforms: unknown platform %q", name))
		}
	}
	for name, p := range c.Platforms {
		if p.DailyLimit != nil && *p.DailyLimit < 0 {
			errs = append(errs, fmt.Errorf("platforms.%s.daily_limit must be >= 0", name))
		}
		if p.MinIntervalSeconds != nil && *p.MinIntervalSeconds < 0 {
			errs = append(errs, fmt.Errorf("platforms.%s.min_interval_seconds must be >= 0", name))
		}
		if _, err := ParseUTCOffset(p.UTCOffset); err != nil {
			errs = append(errs, fmt.Errorf("platforms.%s.utc_offset: %w", name, err))
		}
	}
	for _, ext := range c.Intake.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("intake.extensions: %q must start with a dot", ext))
		}
	}
	return errors.Join(errs...)
}

// ParseUTCOffset parses "+HH:MM" / "-HH:MM" into a fixed zone
func ParseUTCOffset(s string) (*time.Location, error) {
	if s == "" || s == "Z" {
		return time.UTC, nil
	}
	t, err := time.Parse("-07:00", s)
	if err != nil {
		return nil, fmt.Errorf("invalid offset %q: want +HH:MM", s)
	}
	_, off := t.Zone()
	if off == 0 {
		return time.UTC, nil
	}
	return time.FixedZone(s, off), nil
}

package config

import (
	"fmt"
	"time"

	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/reelcast/reelcast/pkg/logger"
)

type Config struct {
	Server     ServerConfig    `yaml:"server"`
	Database   DatabaseConfig  `yaml:"database"`
	Logger     logger.Config   `yaml:"logger"`
	Schedule   ScheduleConfig  `yaml:"schedule"`
	News       NewsConfig      `yaml:"news"`
	LLM        LLMConfig       `yaml:"llm"`
	Media      MediaConfig     `yaml:"media"`
	Assets     AssetsConfig    `yaml:"assets"`
	Publishers PublisherConfig `yaml:"publishers"`
	Retry      RetryConfig     `yaml:"retry"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
	Mode string `yaml:"mode"`
	// TOTPSecret protects the manual run trigger; empty disables auth.
	TOTPSecret string `yaml:"totp_secret"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
}

type ScheduleConfig struct {
	// PostTimes are wall-clock firing times ("15:04") in Timezone.
	PostTimes      []string `yaml:"post_times"`
	Timezone       string   `yaml:"timezone"`
	DebounceWindow string   `yaml:"debounce_window"`
	// BulletinSize > 1 switches runs to bulletin mode with that many items.
	BulletinSize int `yaml:"bulletin_size"`

	// Parsed from DebounceWindow during LoadConfig.
	Debounce time.Duration `yaml:"-"`
}

type NewsConfig struct {
	NewsAPIKey  string   `yaml:"newsapi_key"`
	GNewsAPIKey string   `yaml:"gnews_key"`
	RSSFeeds    []string `yaml:"rss_feeds"`
	FetchLimit  int      `yaml:"fetch_limit"`
	MaxAgeHours int      `yaml:"max_age_hours"`
	Query       string   `yaml:"query"`
}

type LLMConfig struct {
	// BaseURL selects any OpenAI-compatible host (Groq, Together, OpenRouter).
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Timeout     string  `yaml:"timeout"`

	RequestTimeout time.Duration `yaml:"-"`
}

type MediaConfig struct {
	FFmpegPath     string  `yaml:"ffmpeg_path"`
	FFprobePath    string  `yaml:"ffprobe_path"`
	OutputDir      string  `yaml:"output_dir"`
	TargetDuration float64 `yaml:"target_duration"`
	Width          int     `yaml:"width"`
	Height         int     `yaml:"height"`
	FPS            int     `yaml:"fps"`
}

type AssetsConfig struct {
	BackgroundsDir string `yaml:"backgrounds_dir"`
	AudioDir       string `yaml:"audio_dir"`
	RecentRingSize int    `yaml:"recent_ring_size"`
}

type PublisherConfig struct {
	YouTube   YouTubeConfig   `yaml:"youtube"`
	Instagram InstagramConfig `yaml:"instagram"`
	Facebook  FacebookConfig  `yaml:"facebook"`
}

type YouTubeConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
}

type InstagramConfig struct {
	Enabled           bool   `yaml:"enabled"`
	AccessToken       string `yaml:"access_token"`
	BusinessAccountID string `yaml:"business_account_id"`
}

type FacebookConfig struct {
	Enabled     bool   `yaml:"enabled"`
	AccessToken string `yaml:"access_token"`
	PageID      string `yaml:"page_id"`
}

type RetryConfig struct {
	MaxAttempts    int    `yaml:"max_attempts"`
	InitialBackoff string `yaml:"initial_backoff"`
	MaxBackoff     string `yaml:"max_backoff"`
	// FinalizeAttempts caps the store-write retry during Finalizing; losing a
	// rendered post's record is worse than a delayed write, so it is higher.
	FinalizeAttempts int `yaml:"finalize_attempts"`

	Initial time.Duration `yaml:"-"`
	Max     time.Duration `yaml:"-"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}

	// Set default values
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5380
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}
	if len(cfg.Schedule.PostTimes) == 0 {
		cfg.Schedule.PostTimes = []string{"09:00", "14:00", "20:00"}
	}
	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = "UTC"
	}
	if cfg.Schedule.DebounceWindow == "" {
		cfg.Schedule.DebounceWindow = "30m"
	}
	if cfg.News.FetchLimit == 0 {
		cfg.News.FetchLimit = 20
	}
	if cfg.News.MaxAgeHours == 0 {
		cfg.News.MaxAgeHours = 12
	}
	if cfg.News.Query == "" {
		cfg.News.Query = "trending"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama-3.1-8b-instant"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2000
	}
	if cfg.LLM.Timeout == "" {
		cfg.LLM.Timeout = "90s"
	}
	if cfg.Media.FFmpegPath == "" {
		cfg.Media.FFmpegPath = "ffmpeg"
	}
	if cfg.Media.FFprobePath == "" {
		cfg.Media.FFprobePath = "ffprobe"
	}
	if cfg.Media.OutputDir == "" {
		cfg.Media.OutputDir = "data/generated_media"
	}
	if cfg.Media.TargetDuration == 0 {
		cfg.Media.TargetDuration = 20
	}
	if cfg.Media.Width == 0 {
		cfg.Media.Width = 1080
	}
	if cfg.Media.Height == 0 {
		cfg.Media.Height = 1920
	}
	if cfg.Media.FPS == 0 {
		cfg.Media.FPS = 30
	}
	if cfg.Assets.BackgroundsDir == "" {
		cfg.Assets.BackgroundsDir = "assets/backgrounds"
	}
	if cfg.Assets.AudioDir == "" {
		cfg.Assets.AudioDir = "assets/audio"
	}
	if cfg.Assets.RecentRingSize == 0 {
		cfg.Assets.RecentRingSize = 3
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialBackoff == "" {
		cfg.Retry.InitialBackoff = "2s"
	}
	if cfg.Retry.MaxBackoff == "" {
		cfg.Retry.MaxBackoff = "1m"
	}
	if cfg.Retry.FinalizeAttempts == 0 {
		cfg.Retry.FinalizeAttempts = 10
	}

	if err := cfg.parseAndValidate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) parseAndValidate() error {
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("invalid schedule timezone %q: %w", c.Schedule.Timezone, err)
	}
	for _, t := range c.Schedule.PostTimes {
		if _, err := time.Parse("15:04", t); err != nil {
			return fmt.Errorf("invalid post time %q: %w", t, err)
		}
	}

	var err error
	if c.Schedule.Debounce, err = time.ParseDuration(c.Schedule.DebounceWindow); err != nil {
		return fmt.Errorf("invalid debounce window: %w", err)
	}
	if c.LLM.RequestTimeout, err = time.ParseDuration(c.LLM.Timeout); err != nil {
		return fmt.Errorf("invalid llm timeout: %w", err)
	}
	if c.Retry.Initial, err = time.ParseDuration(c.Retry.InitialBackoff); err != nil {
		return fmt.Errorf("invalid initial backoff: %w", err)
	}
	if c.Retry.Max, err = time.ParseDuration(c.Retry.MaxBackoff); err != nil {
		return fmt.Errorf("invalid max backoff: %w", err)
	}

	return nil
}

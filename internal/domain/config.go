package domain

import (
	"path/filepath"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Cobalt      CobaltConfig      `mapstructure:"cobalt"`
	Tikwm       TikwmConfig       `mapstructure:"tikwm"`
	Fallback    FallbackConfig    `mapstructure:"fallback"`
	Binaries    BinariesConfig    `mapstructure:"binaries"`
	Cookies     CookiesConfig     `mapstructure:"cookies"`
	Timeouts    TimeoutsConfig    `mapstructure:"timeouts"`
	Transcriber TranscriberConfig `mapstructure:"transcriber"`
	Janitor     JanitorConfig     `mapstructure:"janitor"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"` // CORS; "*" allows any origin
}

// StorageConfig contains filesystem locations
type StorageConfig struct {
	BaseDir      string `mapstructure:"base_dir"`
	DatabasePath string `mapstructure:"database_path"`
}

// TempDir returns the directory holding per-attempt workspaces
func (s StorageConfig) TempDir() string {
	return filepath.Join(s.BaseDir, "tmp")
}

// CookiesDir returns the directory holding cookie jars
func (s StorageConfig) CookiesDir() string {
	return filepath.Join(s.BaseDir, "cookies")
}

// LogsDir returns the directory holding log files
func (s StorageConfig) LogsDir() string {
	return filepath.Join(s.BaseDir, "logs")
}

// CobaltConfig configures the cloud extraction API
type CobaltConfig struct {
	Enabled         bool          `mapstructure:"enabled"` // primary provider toggle
	APIURL          string        `mapstructure:"api_url"`
	APIKey          string        `mapstructure:"api_key"`
	Timeout         time.Duration `mapstructure:"timeout"`
	DefaultQuality  string        `mapstructure:"default_quality"`
	VideoCodec      string        `mapstructure:"video_codec"`
	AudioBitrate    string        `mapstructure:"audio_bitrate"`
	DisableMetadata bool          `mapstructure:"disable_metadata"`
}

// TikwmConfig configures the TikTok fast path
type TikwmConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	APIURL            string        `mapstructure:"api_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// FallbackConfig controls whether retryable failures advance the chain
type FallbackConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// BinariesConfig contains external tool locations. Empty values fall through
// to the next resolution step.
type BinariesConfig struct {
	YTDLP            string `mapstructure:"ytdlp"`
	YTDLPImpersonate string `mapstructure:"ytdlp_impersonate"`
	GalleryDL        string `mapstructure:"gallery_dl"`
	FFmpeg           string `mapstructure:"ffmpeg"`
	Aria2c           string `mapstructure:"aria2c"`
	LocalBinDir      string `mapstructure:"local_bin_dir"`
	BundledDir       string `mapstructure:"bundled_dir"`
}

// CookieRule maps a domain to candidate cookie jar paths
type CookieRule struct {
	Domain string   `mapstructure:"domain"`
	Paths  []string `mapstructure:"paths"`
}

// CookiesConfig lists per-domain cookie jars and generic fallbacks
type CookiesConfig struct {
	Domains   []CookieRule `mapstructure:"domains"`
	Fallbacks []string     `mapstructure:"fallbacks"`
}

// TimeoutsConfig holds per-operation time budgets
type TimeoutsConfig struct {
	DirectDownload time.Duration `mapstructure:"direct_download"`
	CLIDownload    time.Duration `mapstructure:"cli_download"`
	CLIMerge       time.Duration `mapstructure:"cli_merge"`
	Gallery        time.Duration `mapstructure:"gallery"`
	URLQuery       time.Duration `mapstructure:"url_query"`
	FormatList     time.Duration `mapstructure:"format_list"`
	Transcode      time.Duration `mapstructure:"transcode"`
}

// TranscriberConfig configures the OpenAI transcription backend
type TranscriberConfig struct {
	APIKey        string `mapstructure:"api_key"`
	BaseURL       string `mapstructure:"base_url"`
	AudioModel    string `mapstructure:"audio_model"`
	VisionModel   string `mapstructure:"vision_model"`
	Prompt        string `mapstructure:"prompt"`
	Workers       int    `mapstructure:"workers"`
	MaxImageBytes int64  `mapstructure:"max_image_bytes"`
}

// JanitorConfig configures the stale workspace sweeper
type JanitorConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "localhost",
			Port:           8080,
			AllowedOrigins: []string{"*"},
		},
		Storage: StorageConfig{
			BaseDir:      "$HOME/.mediabridge",
			DatabasePath: "$HOME/.mediabridge/history.db",
		},
		Cobalt: CobaltConfig{
			Enabled:        true,
			APIURL:         "https://api.cobalt.tools",
			Timeout:        60 * time.Second,
			DefaultQuality: "max",
			VideoCodec:     "h264",
			AudioBitrate:   "128",
		},
		Tikwm: TikwmConfig{
			Enabled:           true,
			APIURL:            "https://www.tikwm.com/api/",
			Timeout:           8 * time.Second,
			RequestsPerSecond: 1,
		},
		Fallback: FallbackConfig{
			Enabled: true,
		},
		Binaries: BinariesConfig{
			YTDLPImpersonate: "./bin/yt-dlp_impersonate",
			LocalBinDir:      "./bin",
			BundledDir:       "./.venv/bin",
		},
		Cookies: CookiesConfig{
			Domains: []CookieRule{
				{Domain: "tiktok.com", Paths: []string{
					"$HOME/.mediabridge/cookies/www.tiktok.com_cookies.txt",
					"./www.tiktok.com_cookies.txt",
				}},
				{Domain: "instagram.com", Paths: []string{
					"$HOME/.mediabridge/cookies/www.instagram.com_cookies.txt",
					"./www.instagram.com_cookies.txt",
				}},
				{Domain: "youtube.com", Paths: []string{
					"$HOME/.mediabridge/cookies/www.youtube.com_cookies.txt",
				}},
				// short links share the youtube.com jar
				{Domain: "youtu.be", Paths: []string{
					"$HOME/.mediabridge/cookies/www.youtube.com_cookies.txt",
				}},
				{Domain: "x.com", Paths: []string{
					"$HOME/.mediabridge/cookies/x.com_cookies.txt",
				}},
			},
			Fallbacks: []string{
				"$HOME/.mediabridge/cookies/cookies.txt",
				"./cookies.txt",
			},
		},
		Timeouts: TimeoutsConfig{
			DirectDownload: 30 * time.Second,
			CLIDownload:    300 * time.Second,
			CLIMerge:       900 * time.Second,
			Gallery:        300 * time.Second,
			URLQuery:       180 * time.Second,
			FormatList:     30 * time.Second,
			Transcode:      240 * time.Second,
		},
		Transcriber: TranscriberConfig{
			AudioModel:    "whisper-1",
			VisionModel:   "gpt-4o-mini",
			Workers:       5,
			MaxImageBytes: 25 * 1024 * 1024,
		},
		Janitor: JanitorConfig{
			Enabled:  true,
			Interval: 10 * time.Minute,
			MaxAge:   time.Hour,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}

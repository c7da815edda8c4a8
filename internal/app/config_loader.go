package app

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/yourusername/mediabridge-go/internal/domain"
)

// envKeys are the config keys that can be set through MEDIABRIDGE_* variables
var envKeys = []string{
	"server.host", "server.port", "server.allowed_origins",
	"storage.base_dir", "storage.database_path",
	"cobalt.enabled", "cobalt.api_url", "cobalt.api_key", "cobalt.timeout",
	"cobalt.default_quality", "cobalt.video_codec", "cobalt.audio_bitrate",
	"tikwm.enabled", "tikwm.api_url", "tikwm.timeout", "tikwm.requests_per_second",
	"fallback.enabled",
	"binaries.ytdlp", "binaries.ytdlp_impersonate", "binaries.gallery_dl",
	"binaries.ffmpeg", "binaries.aria2c", "binaries.local_bin_dir", "binaries.bundled_dir",
	"transcriber.api_key", "transcriber.base_url", "transcriber.audio_model",
	"transcriber.vision_model", "transcriber.workers",
	"janitor.enabled", "janitor.interval", "janitor.max_age",
	"logging.level", "logging.format", "logging.output_path",
}

// legacyEnv maps config keys to the variable names older deployments use
var legacyEnv = map[string]string{
	"cobalt.api_url":           "COBALT_API_URL",
	"cobalt.api_key":           "COBALT_API_KEY",
	"cobalt.timeout":           "COBALT_TIMEOUT",
	"cobalt.enabled":           "COBALT_PRIMARY",
	"fallback.enabled":         "ENABLE_YTDLP_FALLBACK",
	"binaries.ytdlp":           "YT_DLP_PATH",
	"binaries.gallery_dl":      "GALLERY_DL_PATH",
	"binaries.ffmpeg":          "FFMPEG_PATH",
	"transcriber.api_key":      "OPENAI_API_KEY",
	"transcriber.audio_model":  "OPENAI_AUDIO_MODEL",
	"transcriber.vision_model": "OPENAI_VISION_MODEL",
}

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.mediabridge")
		v.AddConfigPath("/etc/mediabridge")
	}

	v.SetEnvPrefix("MEDIABRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults
	}

	if err := v.Unmarshal(config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		secondsToDurationHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// bindEnv registers every env-settable key; legacy names are consulted after
// the prefixed one.
func bindEnv(v *viper.Viper) error {
	for _, key := range envKeys {
		names := []string{key, "MEDIABRIDGE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
		if legacy, ok := legacyEnv[key]; ok {
			names = append(names, legacy)
		}
		if err := v.BindEnv(names...); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	return nil
}

// secondsToDurationHook accepts bare numbers as seconds ("60" or 60)
func secondsToDurationHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch from.Kind() {
	case reflect.String:
		s := strings.TrimSpace(data.(string))
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
	case reflect.Int, reflect.Int64, reflect.Int32:
		return time.Duration(reflect.ValueOf(data).Int()) * time.Second, nil
	case reflect.Float64, reflect.Float32:
		return time.Duration(reflect.ValueOf(data).Float() * float64(time.Second)), nil
	}
	return data, nil
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Storage.BaseDir = expandPath(config.Storage.BaseDir)
	config.Storage.DatabasePath = expandPath(config.Storage.DatabasePath)

	b := &config.Binaries
	for _, p := range []*string{&b.YTDLP, &b.YTDLPImpersonate, &b.GalleryDL, &b.FFmpeg, &b.Aria2c, &b.LocalBinDir, &b.BundledDir} {
		*p = expandPath(*p)
	}

	for i := range config.Cookies.Domains {
		for j, p := range config.Cookies.Domains[i].Paths {
			config.Cookies.Domains[i].Paths[j] = expandPath(p)
		}
	}
	for i, p := range config.Cookies.Fallbacks {
		config.Cookies.Fallbacks[i] = expandPath(p)
	}

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.Contains(path, "$HOME") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}
	path = os.ExpandEnv(path)

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return path
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Storage.BaseDir == "" {
		return fmt.Errorf("storage base directory not configured")
	}

	if config.Storage.DatabasePath == "" {
		return fmt.Errorf("history database path not configured")
	}

	if config.Cobalt.Enabled && config.Cobalt.APIURL == "" {
		return fmt.Errorf("cobalt is enabled but api_url is empty")
	}

	if config.Tikwm.Enabled && config.Tikwm.RequestsPerSecond <= 0 {
		return fmt.Errorf("tikwm requests_per_second must be positive")
	}

	if config.Transcriber.Workers < 1 {
		return fmt.Errorf("transcriber workers must be at least 1")
	}

	for name, d := range map[string]time.Duration{
		"direct_download": config.Timeouts.DirectDownload,
		"cli_download":    config.Timeouts.CLIDownload,
		"cli_merge":       config.Timeouts.CLIMerge,
		"gallery":         config.Timeouts.Gallery,
		"url_query":       config.Timeouts.URLQuery,
	} {
		if d <= 0 {
			return fmt.Errorf("timeout %s must be positive", name)
		}
	}

	if config.Janitor.Enabled && config.Janitor.Interval <= 0 {
		return fmt.Errorf("janitor interval must be positive")
	}

	// a sweep must never reach the work dir of a merge that is still running
	if config.Janitor.Enabled && config.Janitor.MaxAge <= config.Timeouts.CLIMerge {
		return fmt.Errorf("janitor max_age (%s) must exceed timeouts.cli_merge (%s)",
			config.Janitor.MaxAge, config.Timeouts.CLIMerge)
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("server", config.Server)
	v.Set("storage", config.Storage)
	v.Set("cobalt", config.Cobalt)
	v.Set("tikwm", config.Tikwm)
	v.Set("fallback", config.Fallback)
	v.Set("binaries", config.Binaries)
	v.Set("cookies", config.Cookies)
	v.Set("timeouts", config.Timeouts)
	v.Set("transcriber", config.Transcriber)
	v.Set("janitor", config.Janitor)
	v.Set("logging", config.Logging)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

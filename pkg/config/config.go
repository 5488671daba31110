package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable read by LoadFromEnv
const EnvPrefix = "ROLESYNC_"

// Config holds all configuration options for a sync run
type Config struct {
	// Upstream endpoints
	Mirror MirrorConfig `yaml:"mirror" json:"mirror"`
	Hakush HakushConfig `yaml:"hakush" json:"hakush"`

	// Local file layout
	Paths PathsConfig `yaml:"paths" json:"paths"`

	// Download behaviour
	Download DownloadConfig `yaml:"download" json:"download"`
	Retry    RetryConfig    `yaml:"retry" json:"retry"`

	// Scheduled mode
	Watch WatchConfig `yaml:"watch" json:"watch"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// MirrorConfig describes the GitHub-hosted static asset mirror (primary source)
type MirrorConfig struct {
	Repository   string `yaml:"repository" json:"repository"`
	Branch       string `yaml:"branch" json:"branch"`
	ResourcePath string `yaml:"resource_path" json:"resource_path"`
	RawBaseURL   string `yaml:"raw_base_url" json:"raw_base_url"`
	APIBaseURL   string `yaml:"api_base_url" json:"api_base_url"`
	Token        string `yaml:"token,omitempty" json:"-"`
}

// HakushConfig describes the character data API and the fallback image source
type HakushConfig struct {
	BaseURL      string        `yaml:"base_url" json:"base_url"`
	Locales      []string      `yaml:"locales" json:"locales"`
	DetailLocale string        `yaml:"detail_locale" json:"detail_locale"`
	ImageField   string        `yaml:"image_field" json:"image_field"`
	RequestDelay time.Duration `yaml:"request_delay" json:"request_delay"`
}

// PathsConfig holds the locations of every file the sync reads or writes
type PathsConfig struct {
	StateFile    string `yaml:"state_file" json:"state_file"`
	MetadataFile string `yaml:"metadata_file" json:"metadata_file"`
	ImageDir     string `yaml:"image_dir" json:"image_dir"`
	ManifestFile string `yaml:"manifest_file" json:"manifest_file"`
	// ImageURLPrefix is prepended to image filenames in the output manifest
	ImageURLPrefix string `yaml:"image_url_prefix" json:"image_url_prefix"`
}

// DownloadConfig holds per-call timeouts and pacing
type DownloadConfig struct {
	ListingTimeout   time.Duration `yaml:"listing_timeout" json:"listing_timeout"`
	ImageTimeout     time.Duration `yaml:"image_timeout" json:"image_timeout"`
	UserAgent        string        `yaml:"user_agent" json:"user_agent"`
	PrimaryPause     time.Duration `yaml:"primary_pause" json:"primary_pause"`
	PrimaryPauseMin  int           `yaml:"primary_pause_min" json:"primary_pause_min"`
	FallbackPause    time.Duration `yaml:"fallback_pause" json:"fallback_pause"`
	FallbackPauseMin int           `yaml:"fallback_pause_min" json:"fallback_pause_min"`
}

// RetryConfig controls the fallback image retry loop
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay" json:"base_delay"`
	Multiplier float64       `yaml:"multiplier" json:"multiplier"`
}

// WatchConfig holds the cron schedule used by `rolesync watch`
type WatchConfig struct {
	Schedule string `yaml:"schedule" json:"schedule"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns the constants the sync has always used
func DefaultConfig() *Config {
	return &Config{
		Mirror: MirrorConfig{
			Repository:   "MoonShadow1976/WutheringWaves_OverSea_StaticAssets",
			Branch:       "main",
			ResourcePath: "data/resource/role_pile",
			RawBaseURL:   "https://raw.githubusercontent.com",
			APIBaseURL:   "https://api.github.com",
		},
		Hakush: HakushConfig{
			BaseURL:      "https://api.hakush.in/ww",
			Locales:      []string{"en", "zh-Hans", "ja", "ko"},
			DetailLocale: "en",
			ImageField:   "background",
			RequestDelay: 300 * time.Millisecond,
		},
		Paths: PathsConfig{
			StateFile:      ".github/asset_sync_state.json",
			MetadataFile:   "src/id2role.json",
			ImageDir:       "src/role",
			ManifestFile:   "src/role.json",
			ImageURLPrefix: "src/role/",
		},
		Download: DownloadConfig{
			ListingTimeout:   30 * time.Second,
			ImageTimeout:     60 * time.Second,
			UserAgent:        "rolesync/1.0",
			PrimaryPause:     100 * time.Millisecond,
			PrimaryPauseMin:  10,
			FallbackPause:    500 * time.Millisecond,
			FallbackPauseMin: 5,
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  time.Second,
			Multiplier: 2.0,
		},
		Watch: WatchConfig{
			Schedule: "@every 1h",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ManifestURL returns the raw URL of the mirror's role_pile.json listing
func (m MirrorConfig) ManifestURL() string {
	return fmt.Sprintf("%s/%s/%s/%s.json",
		strings.TrimRight(m.RawBaseURL, "/"), m.Repository, m.Branch, strings.Trim(m.ResourcePath, "/"))
}

// ContentsURL returns the GitHub contents API URL of the image directory
func (m MirrorConfig) ContentsURL() string {
	return fmt.Sprintf("%s/repos/%s/contents/%s",
		strings.TrimRight(m.APIBaseURL, "/"), m.Repository, strings.Trim(m.ResourcePath, "/"))
}

// LoadFromEnv overrides fields from ROLESYNC_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv(EnvPrefix + "REPOSITORY"); v != "" {
		c.Mirror.Repository = v
	}
	if v := os.Getenv(EnvPrefix + "BRANCH"); v != "" {
		c.Mirror.Branch = v
	}
	if v := os.Getenv(EnvPrefix + "HAKUSH_URL"); v != "" {
		c.Hakush.BaseURL = v
	}
	if v := os.Getenv(EnvPrefix + "LOCALES"); v != "" {
		c.Hakush.Locales = splitList(v)
	}
	if v := os.Getenv(EnvPrefix + "STATE_FILE"); v != "" {
		c.Paths.StateFile = v
	}
	if v := os.Getenv(EnvPrefix + "IMAGE_DIR"); v != "" {
		c.Paths.ImageDir = v
	}
	if v := os.Getenv(EnvPrefix + "MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_RETRIES: %w", EnvPrefix, err))
		} else {
			c.Retry.MaxRetries = n
		}
	}
	if v := os.Getenv(EnvPrefix + "IMAGE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sIMAGE_TIMEOUT: %w", EnvPrefix, err))
		} else {
			c.Download.ImageTimeout = d
		}
	}
	if v := os.Getenv(EnvPrefix + "SCHEDULE"); v != "" {
		c.Watch.Schedule = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file. An empty path searches
// the default locations and is not an error when nothing is found.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".rolesync.yaml",
		".rolesync.yml",
		filepath.Join(home, ".config", "rolesync", "config.yaml"),
		filepath.Join(home, ".config", "rolesync", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	var errs []error

	if c.Mirror.Repository == "" || !strings.Contains(c.Mirror.Repository, "/") {
		errs = append(errs, errors.New("mirror repository must be in owner/name form"))
	}
	if c.Mirror.Branch == "" {
		errs = append(errs, errors.New("mirror branch is required"))
	}
	for name, raw := range map[string]string{
		"mirror raw_base_url": c.Mirror.RawBaseURL,
		"mirror api_base_url": c.Mirror.APIBaseURL,
		"hakush base_url":     c.Hakush.BaseURL,
	} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s is not an absolute URL: %q", name, raw))
		}
	}

	if len(c.Hakush.Locales) == 0 {
		errs = append(errs, errors.New("at least one locale is required"))
	}
	if c.Hakush.ImageField == "" {
		errs = append(errs, errors.New("hakush image_field is required"))
	}
	if c.Hakush.RequestDelay < 0 {
		errs = append(errs, errors.New("hakush request_delay cannot be negative"))
	}

	if c.Paths.StateFile == "" || c.Paths.MetadataFile == "" || c.Paths.ImageDir == "" || c.Paths.ManifestFile == "" {
		errs = append(errs, errors.New("state, metadata, image and manifest paths are required"))
	}

	if c.Download.ListingTimeout <= 0 {
		errs = append(errs, errors.New("listing timeout must be positive"))
	}
	if c.Download.ImageTimeout <= 0 {
		errs = append(errs, errors.New("image timeout must be positive"))
	}

	if c.Retry.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Retry.BaseDelay < 0 {
		errs = append(errs, errors.New("retry base delay cannot be negative"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeCommandLineFlags applies values collected from cobra flags
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["repository"].(string); ok && v != "" {
		c.Mirror.Repository = v
	}
	if v, ok := flags["branch"].(string); ok && v != "" {
		c.Mirror.Branch = v
	}
	if v, ok := flags["state-file"].(string); ok && v != "" {
		c.Paths.StateFile = v
	}
	if v, ok := flags["image-dir"].(string); ok && v != "" {
		c.Paths.ImageDir = v
	}
	if v, ok := flags["metadata-file"].(string); ok && v != "" {
		c.Paths.MetadataFile = v
	}
	if v, ok := flags["manifest-file"].(string); ok && v != "" {
		c.Paths.ManifestFile = v
	}
	if v, ok := flags["max-retries"].(int); ok && v >= 0 {
		c.Retry.MaxRetries = v
	}
	if v, ok := flags["schedule"].(string); ok && v != "" {
		c.Watch.Schedule = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load builds the configuration from every source.
// Precedence: flags > environment > .env > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".rolesync.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

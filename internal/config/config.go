// Package config provides configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Platform identifiers. A native install owns a database file on disk; a
// web host keeps the store in memory.
const (
	PlatformNative = "native"
	PlatformWeb    = "web"
)

// Config holds all configuration for the application.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Config struct {
	App       AppConfig
	Store     StoreConfig
	Files     FilesConfig
	Remote    RemoteConfig
	Mode      ModeConfig
	Lifecycle LifecycleConfig
	Push      PushConfig
	Media     MediaConfig
	Server    ServerConfig
	Logging   LoggingConfig
}

// AppConfig describes the running installation.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type AppConfig struct {
	Name           string
	Version        string
	Platform       string
	NetworkCapable bool
	DataDir        string
}

// StoreConfig contains local database configuration.
type StoreConfig struct {
	Path        string
	BusyTimeout time.Duration
}

// FilesConfig contains the app-private file area configuration.
type FilesConfig struct {
	Root string
}

// RemoteConfig contains the remote API client configuration.
type RemoteConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// ModeConfig controls the online/offline decision at start.
type ModeConfig struct {
	ForceOfflineOnStart bool
}

// LifecycleConfig controls start-up seeding and foreground/background handling.
type LifecycleConfig struct {
	CloseOnBackground bool
	DefaultProfile    DefaultProfileConfig
}

// DefaultProfileConfig is the profile seeded on first run.
type DefaultProfileConfig struct {
	Name        string
	ChannelName string
	ChannelLink string
}

// PushConfig contains the per-profile push budget.
type PushConfig struct {
	DailyLimit       int
	ThresholdPercent int
}

// MediaConfig contains the external media tool settings.
type MediaConfig struct {
	FFmpegPath     string
	FFprobePath    string
	ThumbnailWidth int
}

// ServerConfig contains local HTTP API configuration.
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	APIKeys         []string
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string
	File  string
}

// IsNative reports whether the configured platform is a native install.
func (c AppConfig) IsNative() bool {
	return c.Platform == PlatformNative
}

// Load loads configuration from .env, file and environment variables.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that have no sensible fallback.
func (c *Config) Validate() error {
	switch c.App.Platform {
	case PlatformNative, PlatformWeb:
	default:
		return fmt.Errorf("invalid app.platform %q (must be %q or %q)", c.App.Platform, PlatformNative, PlatformWeb)
	}
	if c.App.Version == "" {
		return errors.New("app.version is required")
	}
	if c.Push.DailyLimit < 0 {
		return fmt.Errorf("push.dailylimit must not be negative, got %d", c.Push.DailyLimit)
	}
	return nil
}

// resolvePaths anchors relative store and file paths under the data directory.
func (c *Config) resolvePaths() {
	if c.Store.Path != "" && !filepath.IsAbs(c.Store.Path) {
		c.Store.Path = filepath.Join(c.App.DataDir, c.Store.Path)
	}
	if c.Files.Root != "" && !filepath.IsAbs(c.Files.Root) {
		c.Files.Root = filepath.Join(c.App.DataDir, c.Files.Root)
	}
}

func setDefaults() {
	// App
	viper.SetDefault("app.name", "upload-scheduler")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.platform", PlatformNative)
	viper.SetDefault("app.networkcapable", true)
	viper.SetDefault("app.datadir", "./data")

	// Store
	viper.SetDefault("store.path", "scheduler.db")
	viper.SetDefault("store.busytimeout", 5*time.Second)

	// Files
	viper.SetDefault("files.root", "files")

	// Remote
	viper.SetDefault("remote.baseurl", "http://localhost:8080/api")
	viper.SetDefault("remote.apikey", "")
	viper.SetDefault("remote.timeout", 15*time.Second)

	// Mode
	viper.SetDefault("mode.forceofflineonstart", true)

	// Lifecycle
	viper.SetDefault("lifecycle.closeonbackground", false)
	viper.SetDefault("lifecycle.defaultprofile.name", "Default")
	viper.SetDefault("lifecycle.defaultprofile.channelname", "")
	viper.SetDefault("lifecycle.defaultprofile.channellink", "")

	// Push
	viper.SetDefault("push.dailylimit", 10)
	viper.SetDefault("push.thresholdpercent", 100)

	// Media
	viper.SetDefault("media.ffmpegpath", "ffmpeg")
	viper.SetDefault("media.ffprobepath", "ffprobe")
	viper.SetDefault("media.thumbnailwidth", 320)

	// Server
	viper.SetDefault("server.port", 8787)
	viper.SetDefault("server.shutdowntimeout", 10*time.Second)
	viper.SetDefault("server.apikeys", []string{})

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "")
}

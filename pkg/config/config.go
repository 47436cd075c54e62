package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration. It is built once at
// startup and passed by reference into each component constructor.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"`
}

// StorageConfig describes the directory tree the service is allowed to
// read and write within.
type StorageConfig struct {
	Root        string `mapstructure:"root"`
	MaxUploadMB int64  `mapstructure:"max_upload_mb"`
}

// AuthConfig holds the static admin identity and the session cookie key.
// Turnstile fields are optional; when the secret is empty the bot
// challenge is skipped entirely.
type AuthConfig struct {
	Username         string `mapstructure:"username"`
	Password         string `mapstructure:"password"`
	SessionSecret    string `mapstructure:"session_secret"`
	TurnstileSecret  string `mapstructure:"turnstile_secret"`
	TurnstileSiteKey string `mapstructure:"turnstile_site_key"`
	TurnstileURL     string `mapstructure:"turnstile_url"`
}

// UploadConfig contains the upload rate limit settings
type UploadConfig struct {
	RateLimit  int           `mapstructure:"rate_limit"`
	RateWindow time.Duration `mapstructure:"rate_window"`
}

// TelemetryConfig contains telemetry configuration
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// MaxUploadBytes returns the configured upload ceiling in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.Storage.MaxUploadMB << 20
}

// Load loads the configuration from viper
func Load() (*Config, error) {
	cfg := &Config{}

	setDefaults()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if err := postProcess(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)

	viper.SetDefault("storage.root", "data")
	viper.SetDefault("storage.max_upload_mb", 100)

	viper.SetDefault("auth.turnstile_url", "https://challenges.cloudflare.com/turnstile/v0/siteverify")

	viper.SetDefault("upload.rate_limit", 50)
	viper.SetDefault("upload.rate_window", time.Hour)

	viper.SetDefault("telemetry.enabled", false)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.json", false)

	// Environment variable mappings
	viper.BindEnv("storage.root", "STORAGE_ROOT")
	viper.BindEnv("auth.username", "ADMIN_USERNAME")
	viper.BindEnv("auth.password", "ADMIN_PASSWORD")
	viper.BindEnv("auth.session_secret", "SESSION_SECRET")
	viper.BindEnv("auth.turnstile_secret", "TURNSTILE_SECRET")
	viper.BindEnv("auth.turnstile_site_key", "TURNSTILE_SITE_KEY")
	viper.BindEnv("telemetry.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func postProcess(cfg *Config) error {
	// Ensure the storage root is absolute
	if !filepath.IsAbs(cfg.Storage.Root) {
		abs, err := filepath.Abs(cfg.Storage.Root)
		if err != nil {
			return err
		}
		cfg.Storage.Root = abs
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}

	return nil
}

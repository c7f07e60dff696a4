// Package config loads client configuration from environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all cloudbrowser client configuration.
type Config struct {
	// Server
	ServerURL string
	Timeout   time.Duration
	Token     string

	// Local state (preferences database, token file, download cache)
	DataDir      string
	CacheMaxSize int64

	// Logging
	LogLevel  string
	LogFormat string
	LogOutput string

	// Metrics (empty = disabled)
	MetricsAddr string

	// Uploads
	SimulateProgress bool
	BatchConcurrency int
	ShareExpireHours int
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ServerURL:        envOr("CLOUDBROWSER_SERVER", "http://localhost:8080/api"),
		Timeout:          envDuration("CLOUDBROWSER_TIMEOUT", 30*time.Second),
		Token:            envOr("CLOUDBROWSER_TOKEN", ""),
		DataDir:          envOr("CLOUDBROWSER_DATA_DIR", DefaultDataDir()),
		CacheMaxSize:     envInt64("CLOUDBROWSER_CACHE_MAX", 512*1024*1024), // 512MB default
		LogLevel:         envOr("LOG_LEVEL", "warn"),
		LogFormat:        envOr("LOG_FORMAT", "console"),
		LogOutput:        envOr("LOG_OUTPUT", "stderr"),
		MetricsAddr:      envOr("METRICS_ADDR", ""),
		SimulateProgress: envBool("CLOUDBROWSER_SIMULATE_PROGRESS", false),
		BatchConcurrency: envInt("CLOUDBROWSER_BATCH_CONCURRENCY", 4),
		ShareExpireHours: envInt("CLOUDBROWSER_SHARE_HOURS", 24),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and normalizes the server URL.
func (c *Config) Validate() error {
	c.ServerURL = strings.TrimSuffix(strings.TrimSpace(c.ServerURL), "/")
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid server URL %q", c.ServerURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = 1
	}
	if c.ShareExpireHours <= 0 {
		return fmt.Errorf("share expiry must be positive, got %d hours", c.ShareExpireHours)
	}
	return nil
}

// PrefsPath returns the path of the preferences database.
func (c *Config) PrefsPath() string {
	return filepath.Join(c.DataDir, "prefs.db")
}

// TokenPath returns the path of the saved token file.
func (c *Config) TokenPath() string {
	return filepath.Join(c.DataDir, "token.json")
}

// LogPath resolves LogOutput. "file" means a log file in the data
// directory, so an interactive session keeps its terminal clean.
func (c *Config) LogPath() string {
	if c.LogOutput == "file" {
		return filepath.Join(c.DataDir, "cloudbrowser.log")
	}
	return c.LogOutput
}

// CacheDir returns the download cache directory.
func (c *Config) CacheDir() string {
	return filepath.Join(c.DataDir, "cache")
}

// DefaultDataDir returns the per-user directory for local client state.
func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "cloudbrowser")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "cloudbrowser")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

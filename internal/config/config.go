// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// APIBaseURL is the HTTP base URL of the oracle backend. The companion
	// socket URL is derived from it, see SocketURL.
	APIBaseURL string
	DBPath     string
	LogLevel   string
	LogPath    string

	Heartbeat HeartbeatConfig
	Reconnect ReconnectConfig
}

// HeartbeatConfig controls the companion keepalive ping.
type HeartbeatConfig struct {
	Interval time.Duration
}

// ReconnectConfig controls the reconnect backoff schedule.
type ReconnectConfig struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxRetries int
}

// companionSocketPath is the fixed path of the companion channel on the
// backend.
const companionSocketPath = "/ws/companion"

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		APIBaseURL: getEnv("SELENE_API_URL", "http://localhost:8900"),
		DBPath:     getEnv("SELENE_DB_PATH", defaultDBPath()),
		LogLevel:   getEnv("SELENE_LOG_LEVEL", "info"),
		LogPath:    getEnv("SELENE_LOG_PATH", ""),
		Heartbeat: HeartbeatConfig{
			Interval: getEnvDuration("SELENE_HEARTBEAT_INTERVAL", 30*time.Second),
		},
		Reconnect: ReconnectConfig{
			BaseDelay:  getEnvDuration("SELENE_RECONNECT_BASE_DELAY", time.Second),
			MaxDelay:   getEnvDuration("SELENE_RECONNECT_MAX_DELAY", 30*time.Second),
			MaxRetries: getEnvInt("SELENE_RECONNECT_MAX_RETRIES", 5),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("SELENE_API_URL cannot be empty")
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return fmt.Errorf("SELENE_API_URL is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("SELENE_API_URL must use http or https, got %q", u.Scheme)
	}
	if c.DBPath == "" {
		return fmt.Errorf("SELENE_DB_PATH cannot be empty")
	}
	if c.Heartbeat.Interval <= 0 {
		return fmt.Errorf("SELENE_HEARTBEAT_INTERVAL must be > 0")
	}
	if c.Reconnect.BaseDelay <= 0 {
		return fmt.Errorf("SELENE_RECONNECT_BASE_DELAY must be > 0")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		return fmt.Errorf("SELENE_RECONNECT_MAX_DELAY must be >= base delay")
	}
	if c.Reconnect.MaxRetries <= 0 {
		return fmt.Errorf("SELENE_RECONNECT_MAX_RETRIES must be > 0")
	}
	return nil
}

// SocketURL derives the companion WebSocket URL from the HTTP base URL by
// swapping the scheme (http -> ws, https -> wss) and appending the fixed
// companion path.
func (c *Config) SocketURL() string {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return "ws://localhost:8900" + companionSocketPath
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + companionSocketPath
	return u.String()
}

// ProbeURL is the HTTP endpoint of the capability probe.
func (c *Config) ProbeURL() string {
	return strings.TrimRight(c.APIBaseURL, "/") + "/auth/api-key/status"
}

// SlogLevel maps the configured log level string to a slog level.
// Unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func defaultDBPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "./data/selene.db"
	}
	return configDir + "/selene/selene.db"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

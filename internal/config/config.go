// Package config handles configuration management for aidev.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	Realtime  RealtimeConfig  `mapstructure:"realtime" yaml:"realtime"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
	Editor    EditorConfig    `mapstructure:"editor" yaml:"editor"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// APIConfig holds HTTP backend configuration.
type APIConfig struct {
	BaseURL        string  `mapstructure:"base_url" yaml:"base_url"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`     // 0 disables the limiter
	RateLimitBurst int     `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"` // Bucket size when the limiter is on
}

// Timeout returns the per-request timeout.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Reconnect policies for the realtime connection.
const (
	ReconnectNone    = "none"
	ReconnectBackoff = "backoff"
)

// RealtimeConfig holds WebSocket configuration.
type RealtimeConfig struct {
	URL                        string `mapstructure:"url" yaml:"url"`
	Reconnect                  string `mapstructure:"reconnect" yaml:"reconnect"` // none | backoff
	ReconnectMaxElapsedSeconds int    `mapstructure:"reconnect_max_elapsed_seconds" yaml:"reconnect_max_elapsed_seconds"`
}

// ReconnectMaxElapsed returns the upper bound on a reconnect attempt series.
func (c RealtimeConfig) ReconnectMaxElapsed() time.Duration {
	return time.Duration(c.ReconnectMaxElapsedSeconds) * time.Second
}

// Session storage backends.
const (
	SessionBackendFile   = "file"
	SessionBackendSQLite = "sqlite"
	SessionBackendMemory = "memory"
)

// SessionConfig holds session persistence configuration.
type SessionConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // file | sqlite | memory
	Path    string `mapstructure:"path" yaml:"path"`       // Empty means the backend's default under ~/.aidev
}

// EditorConfig holds code editor view configuration.
type EditorConfig struct {
	DebounceMS int    `mapstructure:"debounce_ms" yaml:"debounce_ms"`
	Language   string `mapstructure:"language" yaml:"language"`
}

// Debounce returns the suggestion debounce window.
func (c EditorConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"` // Optional rotated log file
}

// TelemetryConfig holds OpenTelemetry export configuration.
type TelemetryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
}

// Load loads configuration from files and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default search paths
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.aidev")
		v.AddConfigPath("/etc/aidev")
	}

	// Environment variable prefix
	v.SetEnvPrefix("AIDEV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional - not an error if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := postProcess(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a configuration populated with default values only.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	_ = postProcess(&cfg)
	return &cfg
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.base_url", DefaultAPIBaseURL)
	v.SetDefault("api.timeout_seconds", 60)
	v.SetDefault("api.rate_limit_rps", 0)
	v.SetDefault("api.rate_limit_burst", 5)

	// Realtime defaults
	v.SetDefault("realtime.url", DefaultRealtimeURL)
	v.SetDefault("realtime.reconnect", ReconnectNone)
	v.SetDefault("realtime.reconnect_max_elapsed_seconds", 120)

	// Session defaults
	v.SetDefault("session.backend", SessionBackendFile)
	v.SetDefault("session.path", "")

	// Editor defaults
	v.SetDefault("editor.debounce_ms", DefaultEditorDebounceMS)
	v.SetDefault("editor.language", DefaultEditorLanguage)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.dir", "")
}

// postProcess applies post-processing to configuration.
func postProcess(cfg *Config) error {
	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.API.BaseURL), "/")
	cfg.Realtime.URL = strings.TrimSpace(cfg.Realtime.URL)
	cfg.Realtime.Reconnect = strings.ToLower(strings.TrimSpace(cfg.Realtime.Reconnect))
	cfg.Session.Backend = strings.ToLower(strings.TrimSpace(cfg.Session.Backend))

	if cfg.Session.Path == "" && cfg.Session.Backend != SessionBackendMemory {
		cfg.Session.Path = DefaultSessionPath(cfg.Session.Backend)
	}
	if cfg.Telemetry.Dir == "" {
		cfg.Telemetry.Dir = defaultDataPath("telemetry")
	}

	if cfg.Logging.File != "" {
		absPath, err := filepath.Abs(expandHome(cfg.Logging.File))
		if err != nil {
			return fmt.Errorf("failed to resolve logging.file: %w", err)
		}
		cfg.Logging.File = absPath
	}
	cfg.Session.Path = expandHome(cfg.Session.Path)
	cfg.Telemetry.Dir = expandHome(cfg.Telemetry.Dir)

	return nil
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// GetConfigDir returns the user config directory for aidev.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".aidev"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

// WriteFile writes cfg as YAML to path. An existing file is left untouched
// unless overwrite is set.
func WriteFile(path string, cfg *Config, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}

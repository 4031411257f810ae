package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// Validate validates the configuration.
func Validate(cfg *Config) error {
	if err := validateAPI(&cfg.API); err != nil {
		return err
	}

	if err := validateRealtime(&cfg.Realtime); err != nil {
		return err
	}

	if err := validateSession(&cfg.Session); err != nil {
		return err
	}

	if err := validateEditor(&cfg.Editor); err != nil {
		return err
	}

	if err := validateLogging(&cfg.Logging); err != nil {
		return err
	}

	return nil
}

func validateAPI(cfg *APIConfig) error {
	if cfg.BaseURL == "" {
		return fmt.Errorf("api.base_url cannot be empty")
	}
	if err := validateURL(cfg.BaseURL, "api.base_url", []string{"http", "https"}); err != nil {
		return err
	}
	if cfg.TimeoutSeconds < 1 {
		return fmt.Errorf("api.timeout_seconds must be at least 1")
	}
	if cfg.TimeoutSeconds > 600 {
		return fmt.Errorf("api.timeout_seconds cannot exceed 600")
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("api.rate_limit_rps cannot be negative")
	}
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst < 1 {
		return fmt.Errorf("api.rate_limit_burst must be at least 1 when rate limiting is enabled")
	}
	return nil
}

func validateRealtime(cfg *RealtimeConfig) error {
	if cfg.URL == "" {
		return fmt.Errorf("realtime.url cannot be empty")
	}
	if err := validateURL(cfg.URL, "realtime.url", []string{"ws", "wss"}); err != nil {
		return err
	}
	switch cfg.Reconnect {
	case ReconnectNone, ReconnectBackoff:
	default:
		return fmt.Errorf("realtime.reconnect must be %q or %q, got %q", ReconnectNone, ReconnectBackoff, cfg.Reconnect)
	}
	if cfg.ReconnectMaxElapsedSeconds < 0 {
		return fmt.Errorf("realtime.reconnect_max_elapsed_seconds cannot be negative")
	}
	return nil
}

func validateSession(cfg *SessionConfig) error {
	switch cfg.Backend {
	case SessionBackendFile, SessionBackendSQLite:
		if cfg.Path == "" {
			return fmt.Errorf("session.path cannot be empty for the %s backend", cfg.Backend)
		}
	case SessionBackendMemory:
	default:
		return fmt.Errorf("session.backend must be one of file, sqlite, memory, got %q", cfg.Backend)
	}
	return nil
}

func validateEditor(cfg *EditorConfig) error {
	if cfg.DebounceMS < 0 {
		return fmt.Errorf("editor.debounce_ms cannot be negative")
	}
	if cfg.DebounceMS > 10000 {
		return fmt.Errorf("editor.debounce_ms cannot exceed 10000ms")
	}
	if strings.TrimSpace(cfg.Language) == "" {
		return fmt.Errorf("editor.language cannot be empty")
	}
	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.Level)); err != nil {
		return fmt.Errorf("logging.level is invalid: %s", cfg.Level)
	}
	switch cfg.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", cfg.Format)
	}
	return nil
}

// validateURL validates that a URL is well-formed and uses an allowed scheme.
func validateURL(rawURL, fieldName string, allowedSchemes []string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", fieldName, err)
	}

	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", fieldName)
	}

	schemeValid := false
	for _, scheme := range allowedSchemes {
		if strings.EqualFold(parsed.Scheme, scheme) {
			schemeValid = true
			break
		}
	}
	if !schemeValid {
		return fmt.Errorf("%s must use one of these schemes: %s", fieldName, strings.Join(allowedSchemes, ", "))
	}

	return nil
}

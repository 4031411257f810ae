package config

import (
	"strings"
	"testing"
)

func TestValidateAPI(t *testing.T) {
	tests := []struct {
		name    string
		cfg     APIConfig
		wantErr string
	}{
		{
			name:    "valid config",
			cfg:     APIConfig{BaseURL: "http://localhost:8000", TimeoutSeconds: 60},
			wantErr: "",
		},
		{
			name:    "empty base url",
			cfg:     APIConfig{TimeoutSeconds: 60},
			wantErr: "base_url cannot be empty",
		},
		{
			name:    "websocket scheme",
			cfg:     APIConfig{BaseURL: "ws://localhost:8000", TimeoutSeconds: 60},
			wantErr: "must use one of these schemes",
		},
		{
			name:    "timeout too low",
			cfg:     APIConfig{BaseURL: "http://localhost:8000", TimeoutSeconds: 0},
			wantErr: "timeout_seconds must be at least 1",
		},
		{
			name:    "negative rate",
			cfg:     APIConfig{BaseURL: "http://localhost:8000", TimeoutSeconds: 60, RateLimitRPS: -1},
			wantErr: "rate_limit_rps cannot be negative",
		},
		{
			name:    "rate without burst",
			cfg:     APIConfig{BaseURL: "http://localhost:8000", TimeoutSeconds: 60, RateLimitRPS: 1},
			wantErr: "rate_limit_burst must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertValidation(t, validateAPI(&tt.cfg), tt.wantErr)
		})
	}
}

func TestValidateRealtime(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RealtimeConfig
		wantErr string
	}{
		{
			name:    "valid config",
			cfg:     RealtimeConfig{URL: "ws://localhost:8000/ws", Reconnect: ReconnectNone},
			wantErr: "",
		},
		{
			name:    "backoff",
			cfg:     RealtimeConfig{URL: "wss://example.com/ws", Reconnect: ReconnectBackoff, ReconnectMaxElapsedSeconds: 10},
			wantErr: "",
		},
		{
			name:    "http scheme",
			cfg:     RealtimeConfig{URL: "http://localhost:8000/ws", Reconnect: ReconnectNone},
			wantErr: "must use one of these schemes",
		},
		{
			name:    "unknown reconnect policy",
			cfg:     RealtimeConfig{URL: "ws://localhost:8000/ws", Reconnect: "always"},
			wantErr: "realtime.reconnect must be",
		},
		{
			name:    "missing host",
			cfg:     RealtimeConfig{URL: "ws://", Reconnect: ReconnectNone},
			wantErr: "must include a host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertValidation(t, validateRealtime(&tt.cfg), tt.wantErr)
		})
	}
}

func TestValidateSession(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SessionConfig
		wantErr string
	}{
		{"file backend", SessionConfig{Backend: SessionBackendFile, Path: "/tmp/s.json"}, ""},
		{"sqlite backend", SessionConfig{Backend: SessionBackendSQLite, Path: "/tmp/s.db"}, ""},
		{"memory without path", SessionConfig{Backend: SessionBackendMemory}, ""},
		{"file without path", SessionConfig{Backend: SessionBackendFile}, "session.path cannot be empty"},
		{"unknown backend", SessionConfig{Backend: "redis", Path: "x"}, "session.backend must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertValidation(t, validateSession(&tt.cfg), tt.wantErr)
		})
	}
}

func TestValidateEditor(t *testing.T) {
	tests := []struct {
		name    string
		cfg     EditorConfig
		wantErr string
	}{
		{"valid", EditorConfig{DebounceMS: 1000, Language: "python"}, ""},
		{"zero debounce", EditorConfig{DebounceMS: 0, Language: "python"}, ""},
		{"negative debounce", EditorConfig{DebounceMS: -1, Language: "python"}, "cannot be negative"},
		{"huge debounce", EditorConfig{DebounceMS: 20000, Language: "python"}, "cannot exceed 10000ms"},
		{"empty language", EditorConfig{DebounceMS: 1000, Language: " "}, "editor.language cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertValidation(t, validateEditor(&tt.cfg), tt.wantErr)
		})
	}
}

func TestValidateLogging(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LoggingConfig
		wantErr string
	}{
		{"console info", LoggingConfig{Level: "info", Format: "console"}, ""},
		{"json debug", LoggingConfig{Level: "DEBUG", Format: "json"}, ""},
		{"bad level", LoggingConfig{Level: "loud", Format: "console"}, "logging.level is invalid"},
		{"bad format", LoggingConfig{Level: "info", Format: "xml"}, "logging.format must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertValidation(t, validateLogging(&tt.cfg), tt.wantErr)
		})
	}
}

func TestValidate_FullConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := Validate(Default()); err != nil {
		t.Errorf("Validate(Default()) error = %v, want nil", err)
	}
}

func assertValidation(t *testing.T, err error, wantErr string) {
	t.Helper()
	if wantErr == "" {
		if err != nil {
			t.Errorf("error = %v, want nil", err)
		}
		return
	}
	if err == nil {
		t.Errorf("error = nil, want error containing %q", wantErr)
	} else if !strings.Contains(err.Error(), wantErr) {
		t.Errorf("error = %v, want error containing %q", err, wantErr)
	}
}

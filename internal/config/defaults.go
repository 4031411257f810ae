package config

import (
	"os"
	"path/filepath"
)

// Default endpoint and editor values.
const (
	DefaultAPIBaseURL       = "http://localhost:8000"
	DefaultRealtimeURL      = "ws://localhost:8000/ws"
	DefaultEditorDebounceMS = 1000
	DefaultEditorLanguage   = "python"
)

// SupportedLanguages lists the editor languages the backend understands.
var SupportedLanguages = []string{
	"python",
	"javascript",
	"typescript",
	"go",
	"java",
	"c",
	"cpp",
	"csharp",
	"rust",
	"ruby",
	"php",
}

// DefaultSessionPath returns the default location for the given session
// backend under the config directory.
func DefaultSessionPath(backend string) string {
	if backend == SessionBackendSQLite {
		return defaultDataPath("session.db")
	}
	return defaultDataPath("session.json")
}

// DefaultConfigPath returns where `config init` writes config.yaml.
func DefaultConfigPath() string {
	return defaultDataPath("config.yaml")
}

func defaultDataPath(name string) string {
	configDir, err := GetConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".aidev", name)
	}
	return filepath.Join(configDir, name)
}

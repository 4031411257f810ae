// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/brianly1003/aidev/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Setup configures the global logger from cfg and returns a cleanup func
// that closes the rotated log file, if any.
//
// Console output goes to stderr so that command output on stdout stays
// clean for piping.
func Setup(cfg config.LoggingConfig, verbose bool) (func(), error) {
	return setup(cfg, verbose, os.Stderr)
}

func setup(cfg config.LoggingConfig, verbose bool, console io.Writer) (func(), error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = console
	if cfg.Format == "console" || verbose {
		out = zerolog.ConsoleWriter{Out: console, TimeFormat: "15:04:05"}
	}

	cleanup := func() {}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // 10 MB
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		// The file always receives JSON regardless of the console format.
		out = zerolog.MultiLevelWriter(out, rotated)
		cleanup = func() { _ = rotated.Close() }
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return cleanup, nil
}

// Package logging owns the process-wide slog setup: a structured JSON
// default logger plus per-service file loggers with rotation.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tkoskin/headsup/internal/conf"
	"gopkg.in/natefinch/lumberjack.v2"
)

var defaultLogger *slog.Logger

// Init installs the structured JSON logger as the slog default. Call
// once, before anything logs.
func Init() {
	defaultLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(defaultLogger)
}

// ForService returns the default logger tagged with a service
// attribute, or nil before Init has run.
func ForService(serviceName string) *slog.Logger {
	if defaultLogger == nil {
		return nil
	}
	return defaultLogger.With("service", serviceName)
}

// Rotation fallbacks when the config carries no usable values.
const (
	fallbackMaxSizeMB  = 100
	fallbackMaxBackups = 3
	fallbackMaxAgeDays = 28
)

// NewFileLogger returns a JSON logger writing to filePath through a
// rotating writer, with every record tagged by serviceName. Rotation
// limits come from the main log configuration. The level may be a
// plain slog.Level or a *slog.LevelVar. The returned func closes the
// underlying writer.
func NewFileLogger(filePath, serviceName string, level slog.Leveler) (*slog.Logger, func() error, error) {
	// lumberjack doesn't create directories
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
	}

	logConf := conf.Setting().Main.Log

	writer := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    fallbackMaxSizeMB,
		MaxBackups: fallbackMaxBackups,
		MaxAge:     fallbackMaxAgeDays,
	}
	if sizeMB := int(logConf.MaxSize / (1024 * 1024)); sizeMB > 0 {
		writer.MaxSize = sizeMB
	}

	switch logConf.Rotation {
	case conf.RotationDaily:
		writer.MaxAge = 1
		writer.MaxBackups = 30
	case conf.RotationWeekly:
		writer.MaxAge = 7
		writer.MaxBackups = 4
	case conf.RotationSize:
		// size-based rotation keeps the fallbacks
	default:
		slog.Warn("unknown log rotation type in config, using size-based defaults",
			"configured_type", logConf.Rotation)
	}

	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler).With("service", serviceName)

	return logger, writer.Close, nil
}

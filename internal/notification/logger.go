package notification

import (
	"log/slog"
	"sync"

	"github.com/tkoskin/headsup/internal/logging"
)

var (
	fileLogger *slog.Logger
	loggerOnce sync.Once
)

// getFileLogger returns the package's file logger, creating it on
// first use. With debug set the file records at debug level. Falls
// back to the default logger when the log file cannot be opened.
func getFileLogger(debug bool) *slog.Logger {
	loggerOnce.Do(func() {
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		logger, _, err := logging.NewFileLogger("logs/notifications.log", "notifications", level)
		if err != nil || logger == nil {
			fileLogger = slog.Default().With("service", "notifications")
			return
		}
		fileLogger = logger
	})
	return fileLogger
}

// Package telemetry provides opt-in error reporting through Sentry.
// Nothing leaves the process unless telemetry is explicitly enabled in
// the configuration, and every outgoing event is scrubbed first so
// delivery URLs, tokens, and alert content never reach the wire.
package telemetry

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/getsentry/sentry-go"

	"github.com/tkoskin/headsup/internal/conf"
	"github.com/tkoskin/headsup/internal/logging"
)

var (
	initMu      sync.Mutex
	initialized bool
	systemID    string
)

// getLogger returns the telemetry service logger, falling back to the
// default logger when logging is not initialized yet.
func getLogger() *slog.Logger {
	logger := logging.ForService("telemetry")
	if logger == nil {
		logger = slog.Default().With("service", "telemetry")
	}
	return logger
}

// Init configures the Sentry SDK from settings. Telemetry is strictly
// opt-in: with Sentry disabled this is a no-op and no SDK state is
// created. Errors here use plain wrapping because the enhanced error
// pipeline feeds back into this package.
func Init(settings *conf.Settings) error {
	if settings == nil || !settings.Sentry.Enabled {
		getLogger().Info("error telemetry disabled (opt-in)")
		return nil
	}
	if settings.Sentry.DSN == "" {
		return fmt.Errorf("telemetry enabled without a DSN")
	}

	initMu.Lock()
	defer initMu.Unlock()
	if initialized {
		return nil
	}

	id := ensureSystemID()
	environment := settings.Sentry.Environment
	if environment == "" {
		environment = "production"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:        settings.Sentry.DSN,
		SampleRate: 1.0,
		Debug:      false,

		// The hostname identifies the installation; never send it.
		AttachStacktrace: false,
		ServerName:       "",

		Environment: environment,
		Release:     fmt.Sprintf("headsup@%s", settings.Version),
		BeforeSend:  scrubEvent,
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	configureScope(settings, id)
	initialized = true
	systemID = id

	getLogger().Info("error telemetry initialized",
		"system_id", id,
		"environment", environment,
		"version", settings.Version,
	)
	return nil
}

// SystemID returns the anonymous install identifier, or the empty
// string before Init has run.
func SystemID() string {
	initMu.Lock()
	defer initMu.Unlock()
	return systemID
}

// configureScope attaches the anonymous install identity and coarse
// platform facts to every event.
func configureScope(settings *conf.Settings, id string) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("system_id", id)
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)

		scope.SetContext("application", map[string]any{
			"name":      "HeadsUp",
			"version":   settings.Version,
			"system_id": id,
		})
		scope.SetContext("platform", map[string]any{
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
			"num_cpu":    runtime.NumCPU(),
			"go_version": runtime.Version(),
		})
	})
}

// scrubEvent is the BeforeSend hook. It drops identifying data the SDK
// collects on its own and scrubs every message field.
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Message = ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = ScrubMessage(event.Exception[i].Value)
	}

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}
	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}
	delete(event.Tags, "server_name")
	delete(event.Tags, "hostname")

	return event
}

// enabled reports whether capture paths should run at all.
func enabled() bool {
	settings := conf.GetSettings()
	return settings != nil && settings.Sentry.Enabled
}

// CaptureError reports an error with component context. The raw error
// text never leaves the process unscrubbed.
func CaptureError(err error, component string) {
	if !enabled() {
		return
	}

	// Title from the scrubbed text so truncation can never expose a
	// URL fragment through the exception type or fingerprint.
	scrubbed := ScrubMessage(err.Error())
	title := errorTitle(scrubbed, component)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetFingerprint([]string{title, component})

		event := sentry.NewEvent()
		event.Level = sentry.LevelError
		event.Message = scrubbed
		event.Exception = []sentry.Exception{{
			Type:  title,
			Value: scrubbed,
		}}
		sentry.CaptureEvent(event)
	})
}

// CaptureMessage reports a free-form message at the given level.
func CaptureMessage(message string, level sentry.Level, component string) {
	if !enabled() {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetLevel(level)
		sentry.CaptureMessage(ScrubMessage(message))
	})
}

// Flush blocks until buffered events are sent or the timeout expires.
func Flush(timeout time.Duration) {
	if !enabled() {
		return
	}
	sentry.Flush(timeout)
}

// errorTitle derives a stable, human-readable title used for event
// grouping in place of the raw Go error type.
func errorTitle(message, component string) string {
	title := classifyError(message)
	if component != "" && component != "unknown" {
		return titleCase(component) + ": " + title
	}
	return title
}

// classifyError maps well-known failure text to a short title and
// truncates everything else.
func classifyError(message string) string {
	switch {
	case strings.Contains(message, "context deadline exceeded"):
		return "Timeout"
	case strings.Contains(message, "connection refused"):
		return "Connection Refused"
	case strings.Contains(message, "no such host"):
		return "DNS Lookup Failed"
	case strings.Contains(message, "database is locked"):
		return "Database Locked"
	case strings.Contains(message, "nil pointer dereference"):
		return "Nil Pointer Dereference"
	case strings.Contains(message, "index out of range"):
		return "Index Out of Range"
	case strings.Contains(message, "send on closed channel"):
		return "Send on Closed Channel"
	default:
		if len(message) > 60 {
			return message[:60] + "..."
		}
		return message
	}
}

// titleCase renders component names readable: "alertcenter" becomes
// "Alertcenter", "api" stays upper-cased.
func titleCase(component string) string {
	component = strings.ReplaceAll(component, "_", " ")
	words := strings.Fields(component)
	for i, word := range words {
		switch strings.ToLower(word) {
		case "api", "http", "db", "sse":
			words[i] = strings.ToUpper(word)
		default:
			runes := []rune(word)
			runes[0] = unicode.ToUpper(runes[0])
			words[i] = string(runes)
		}
	}
	return strings.Join(words, " ")
}

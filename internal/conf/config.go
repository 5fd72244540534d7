// Package conf loads and validates the application configuration.
package conf

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tkoskin/headsup/internal/errors"
)

// NotificationSettings controls the coordination engine.
type NotificationSettings struct {
	Debug             bool          // true to enable engine debug logging
	LeadTime          time.Duration // how far before expiry the reminder fires
	FireHour          int           // local hour of day scheduled alerts are normalized to
	Timezone          string        // IANA timezone name, empty for system local
	DedupWindow       time.Duration // suppression window for identical add requests
	ReconcileSchedule string        // cron spec for periodic reconciliation
	MaxBanners        int           // upper bound on published banners, 0 for unlimited
	Log               LogConfig     // engine log file
}

// StoreSettings selects and configures the scheduled-alert store backend.
type StoreSettings struct {
	Backend string // memory, sqlite, mysql

	SQLite struct {
		Path string // path to sqlite database
	}

	MySQL struct {
		Username string
		Password string
		Database string
		Host     string
		Port     string
	}

	DeliveredRetention time.Duration // how long fired alerts stay on the delivered list

	Authorization struct {
		Mode string // granted, denied, prompt-grant, prompt-deny
	}
}

// DeliveryTarget configures a single push destination for fired alerts.
type DeliveryTarget struct {
	Name    string   // identifier used in logs and metrics
	Type    string   // shoutrrr, webhook
	Enabled bool     // true to enable this target
	URLs    []string // service URLs (shoutrrr) or endpoint URLs (webhook)
	Token   string   // optional bearer token for webhook targets
}

// DeliverySettings configures the fan-out of fired alerts.
type DeliverySettings struct {
	Enabled   bool
	RateLimit float64       // deliveries per second across all targets
	Burst     int           // rate limiter burst size
	Timeout   time.Duration // per-target delivery timeout
	Targets   []DeliveryTarget
}

// SentrySettings configures optional error telemetry.
type SentrySettings struct {
	Enabled     bool   // opt-in, disabled by default
	DSN         string // sentry project DSN
	Environment string // e.g. production, development
	Debug       bool
}

type Settings struct {
	Debug bool // global debug switch

	// Stamped at build time, never read from the config file.
	Version   string `yaml:"-"`
	BuildDate string `yaml:"-"`

	Main struct {
		Name string    // name of this node, used to identify the source of alerts
		Log  LogConfig // logging configuration
	}

	Notification NotificationSettings
	Store        StoreSettings
	Delivery     DeliverySettings

	WebServer struct {
		Debug   bool   // request-level debug logging
		Enabled bool   // serve the HTTP API
		Port    string // listen port
	}

	Sentry SentrySettings
}

// LogConfig describes one rotated log file.
type LogConfig struct {
	Enabled     bool
	Path        string       // log file location
	Rotation    RotationType // rotation policy
	MaxSize     int64        // size threshold in bytes for RotationSize
	RotationDay string       // weekday name for RotationWeekly
}

// RotationType selects a log rotation policy.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

const osWindows = "windows"

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file into a fresh Settings, validates it and
// installs it as the package singleton.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper seeds the defaults from defaults.go and reads config.yaml from
// the platform search paths, writing a starter file when none exists.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the default configuration to the primary config
// path so users have a file to edit on first run.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	defaults := &Settings{}
	if err := viper.Unmarshal(defaults); err != nil {
		return fmt.Errorf("error unmarshaling default config: %w", err)
	}

	data, err := yaml.Marshal(defaults)
	if err != nil {
		return fmt.Errorf("error marshaling default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Wrote default config to", configPath)
	return viper.ReadInConfig()
}

// GetSettings returns the installed settings, nil before the first Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the installed settings, loading them on first use.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SetSettings replaces the settings instance. Intended for tests.
func SetSettings(settings *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = settings
}

// GetDefaultConfigPaths returns the configuration search paths for the
// current platform. If a config.yaml already exists in one of them, only
// that path is returned.
func GetDefaultConfigPaths() ([]string, error) {
	var configPaths []string

	exePath, err := os.Executable()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-executable-path").
			Build()
	}
	exeDir := filepath.Dir(exePath)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	switch runtime.GOOS {
	case osWindows:
		configPaths = []string{
			exeDir,
			filepath.Join(homeDir, "AppData", "Roaming", "headsup"),
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", "headsup"),
			"/etc/headsup",
		}
	}

	// An existing config.yaml pins the search to its directory.
	for _, path := range configPaths {
		configFile := filepath.Join(path, "config.yaml")
		if _, err := os.Stat(configFile); err == nil {
			return []string{path}, nil
		}
	}

	return configPaths, nil
}

// TimeLocation resolves the configured timezone, falling back to the
// system's local zone when unset.
func (n *NotificationSettings) TimeLocation() (*time.Location, error) {
	if n.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(n.Timezone)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("timezone", n.Timezone).
			Build()
	}
	return loc, nil
}

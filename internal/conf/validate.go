// conf/validate.go

package conf

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateNotificationSettings(&settings.Notification); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateStoreSettings(&settings.Store); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateDeliverySettings(&settings.Delivery); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateWebServerSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSentrySettings(&settings.Sentry); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateNotificationSettings validates the coordination engine settings
func validateNotificationSettings(settings *NotificationSettings) error {
	var errs []string

	if settings.LeadTime <= 0 {
		errs = append(errs, "notification lead time must be positive")
	}

	if settings.FireHour < 0 || settings.FireHour > 23 {
		errs = append(errs, "notification fire hour must be between 0 and 23")
	}

	if settings.Timezone != "" {
		if _, err := time.LoadLocation(settings.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("notification timezone %q is not a valid IANA zone", settings.Timezone))
		}
	}

	if settings.DedupWindow < 0 {
		errs = append(errs, "notification dedup window must not be negative")
	}

	if settings.ReconcileSchedule != "" {
		if _, err := cron.ParseStandard(settings.ReconcileSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("notification reconcile schedule %q is not a valid cron spec: %v", settings.ReconcileSchedule, err))
		}
	}

	if settings.MaxBanners < 0 {
		errs = append(errs, "notification max banners must not be negative")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// validateStoreSettings validates the alert store settings
func validateStoreSettings(settings *StoreSettings) error {
	var errs []string

	switch settings.Backend {
	case "memory":
	case "sqlite":
		if settings.SQLite.Path == "" {
			errs = append(errs, "sqlite store requires a database path")
		}
	case "mysql":
		if settings.MySQL.Host == "" || settings.MySQL.Database == "" {
			errs = append(errs, "mysql store requires host and database")
		}
		if _, err := strconv.Atoi(settings.MySQL.Port); err != nil {
			errs = append(errs, fmt.Sprintf("mysql port %q must be numeric", settings.MySQL.Port))
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown store backend %q, must be memory, sqlite or mysql", settings.Backend))
	}

	if settings.DeliveredRetention < 0 {
		errs = append(errs, "delivered retention must not be negative")
	}

	switch settings.Authorization.Mode {
	case "granted", "denied", "prompt-grant", "prompt-deny":
	default:
		errs = append(errs, fmt.Sprintf("unknown authorization mode %q", settings.Authorization.Mode))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// validateDeliverySettings validates the delivery fan-out settings
func validateDeliverySettings(settings *DeliverySettings) error {
	var errs []string

	if !settings.Enabled {
		return nil
	}

	if settings.RateLimit <= 0 {
		errs = append(errs, "delivery rate limit must be positive")
	}
	if settings.Burst < 1 {
		errs = append(errs, "delivery burst must be at least 1")
	}
	if settings.Timeout <= 0 {
		errs = append(errs, "delivery timeout must be positive")
	}

	for i := range settings.Targets {
		target := &settings.Targets[i]
		if !target.Enabled {
			continue
		}
		switch target.Type {
		case "shoutrrr", "webhook":
		default:
			errs = append(errs, fmt.Sprintf("delivery target %q has unknown type %q", target.Name, target.Type))
		}
		if len(target.URLs) == 0 {
			errs = append(errs, fmt.Sprintf("delivery target %q has no URLs", target.Name))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// validateWebServerSettings validates the web server settings
func validateWebServerSettings(settings *Settings) error {
	if !settings.WebServer.Enabled {
		return nil
	}

	port, err := strconv.Atoi(settings.WebServer.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid web server port %q", settings.WebServer.Port)
	}
	return nil
}

// validateSentrySettings validates the telemetry settings
func validateSentrySettings(settings *SentrySettings) error {
	if settings.Enabled && settings.DSN == "" {
		return errors.New("sentry is enabled but no DSN is configured")
	}
	return nil
}

// Package notification coordinates scheduled system alerts and in-app
// banners produced by pluggable providers. A manager owns the provider
// registry, reconciles desired state against the platform alert store
// and publishes the current banner list to subscribers.
package notification

import (
	"context"
	"time"
)

// Severity classifies how a banner should be rendered by clients.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Alert is a request for a system-level notification scheduled against
// the platform alert store. Key identifies the requesting provider and
// is reused on every update so the store replaces entries instead of
// stacking them.
type Alert struct {
	Key    string    `json:"key"`
	Body   string    `json:"body"`
	Sound  bool      `json:"sound"`
	FireAt time.Time `json:"fire_at"`
}

// Banner is an in-app notification rendered inside client UIs. Banners
// carry no schedule; they describe what should be visible right now.
type Banner struct {
	Key      string   `json:"key"`
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
}

// AuthorizationStatus mirrors the alert store's user permission state.
type AuthorizationStatus int

const (
	AuthorizationNotDetermined AuthorizationStatus = iota
	AuthorizationDenied
	AuthorizationAuthorized
	AuthorizationProvisional
	AuthorizationEphemeral
)

// String returns the status as a stable lowercase label.
func (s AuthorizationStatus) String() string {
	switch s {
	case AuthorizationNotDetermined:
		return "not_determined"
	case AuthorizationDenied:
		return "denied"
	case AuthorizationAuthorized:
		return "authorized"
	case AuthorizationProvisional:
		return "provisional"
	case AuthorizationEphemeral:
		return "ephemeral"
	default:
		return "unknown"
	}
}

// AuthorizationOptions selects the capabilities requested from the user
// when permission has not been determined yet.
type AuthorizationOptions struct {
	Alert       bool `json:"alert"`
	Sound       bool `json:"sound"`
	Provisional bool `json:"provisional"`
}

// DefaultAuthorizationOptions requests everything the manager needs to
// schedule audible alerts.
var DefaultAuthorizationOptions = AuthorizationOptions{
	Alert:       true,
	Sound:       true,
	Provisional: true,
}

// AlertCenter abstracts the platform alert store. Implementations must
// be safe for concurrent use; the manager issues all writes from a
// single worker goroutine but readers may query from anywhere.
type AlertCenter interface {
	// AuthorizationStatus reports the current user permission state.
	AuthorizationStatus(ctx context.Context) AuthorizationStatus

	// RequestAuthorization prompts the user for permission and reports
	// whether it was granted.
	RequestAuthorization(ctx context.Context, opts AuthorizationOptions) (bool, error)

	// Add schedules an alert, replacing any pending entry with the same key.
	Add(ctx context.Context, alert Alert) error

	// RemovePending removes scheduled alerts that have not fired yet.
	// Unknown keys are ignored.
	RemovePending(ctx context.Context, keys ...string) error

	// RemoveDelivered removes alerts that already fired from history.
	// Unknown keys are ignored.
	RemoveDelivered(ctx context.Context, keys ...string) error

	// PendingAlerts returns the alerts currently scheduled.
	PendingAlerts(ctx context.Context) ([]Alert, error)
}

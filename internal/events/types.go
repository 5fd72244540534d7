// Package events provides an asynchronous event bus decoupling the account
// subsystem and error reporting from the notification engine and telemetry,
// preventing blocking operations on the publishing side.
package events

import (
	"time"
)

// Event is the minimal contract for anything carried by the bus.
type Event interface {
	// GetTimestamp reports when the event occurred.
	GetTimestamp() time.Time
}

// AccountEventKind identifies the account lifecycle transition an event
// describes.
type AccountEventKind string

const (
	// AccountExpiryUpdated is emitted when a fresh expiry instant is known.
	AccountExpiryUpdated AccountEventKind = "expiry-updated"
	// AccountLoggedIn is emitted on login; it carries the session expiry.
	AccountLoggedIn AccountEventKind = "logged-in"
	// AccountLoggedOut is emitted on logout; it carries no expiry.
	AccountLoggedOut AccountEventKind = "logged-out"
)

// AccountEvent describes an account lifecycle transition. ExpiryUpdated and
// LoggedIn both carry an expiry and are handled identically downstream;
// LoggedOut carries none.
type AccountEvent struct {
	Kind      AccountEventKind
	Expiry    time.Time // valid only when HasExpiry is true
	HasExpiry bool
	Timestamp time.Time
}

// GetTimestamp returns when the event occurred.
func (e AccountEvent) GetTimestamp() time.Time {
	return e.Timestamp
}

// ErrorEvent is the view of a structured error the bus carries to telemetry
// consumers. It mirrors the errors package's type without importing it,
// which keeps the import graph acyclic.
type ErrorEvent interface {
	Event

	// GetComponent names the subsystem that built the error.
	GetComponent() string

	// GetCategory groups errors for aggregation.
	GetCategory() string

	// GetContext exposes the structured context attached at build time.
	GetContext() map[string]any

	// GetError returns the wrapped error.
	GetError() error

	// GetMessage returns the error text.
	GetMessage() string

	// IsReported tells consumers a sink already took this error.
	IsReported() bool

	// MarkReported records that a sink took this error.
	MarkReported()
}

// EventConsumer receives events from bus workers.
type EventConsumer interface {
	// Name identifies the consumer in logs and registration checks.
	Name() string

	// ProcessEvent handles one event.
	ProcessEvent(event Event) error
}

// AccountEventConsumer is an EventConsumer that handles account events
// through a typed entry point. The bus prefers ProcessAccountEvent over
// ProcessEvent for account events.
type AccountEventConsumer interface {
	EventConsumer

	// ProcessAccountEvent handles one account lifecycle event.
	ProcessAccountEvent(event AccountEvent) error
}

// EventBusStats is a snapshot of the bus counters.
type EventBusStats struct {
	EventsReceived  uint64
	EventsProcessed uint64
	EventsDropped   uint64
	ConsumerErrors  uint64
	FastPathHits    uint64 // publishes short-circuited with no consumers registered
}

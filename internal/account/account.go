// Package account tracks the current session and publishes account
// lifecycle events to the event bus. It stands in for the account
// subsystem proper: the notification engine never calls into it
// directly and consumes only the event stream plus the current-expiry
// query exposed here.
package account

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tkoskin/headsup/internal/errors"
	"github.com/tkoskin/headsup/internal/events"
	"github.com/tkoskin/headsup/internal/logging"
)

// TrackerConfig configures the session tracker.
type TrackerConfig struct {
	// Bus receives account lifecycle events. Required.
	Bus *events.EventBus

	// Debug enables verbose logging.
	Debug bool
}

// Tracker holds the current session state and announces transitions on
// the bus. Events go out on the blocking publish path: consumers rely
// on seeing every transition in order, so account events must not drop.
type Tracker struct {
	mu        sync.Mutex
	token     string
	active    bool
	expiry    time.Time
	hasExpiry bool

	bus    *events.EventBus
	logger *slog.Logger
	debug  bool
}

// NewTracker creates a session tracker publishing to the given bus.
func NewTracker(config *TrackerConfig) (*Tracker, error) {
	if config == nil || config.Bus == nil {
		return nil, errors.Newf("account tracker requires an event bus").
			Component("account").
			Category(errors.CategoryValidation).
			Build()
	}

	return &Tracker{
		bus:    config.Bus,
		logger: logging.ForService("account"),
		debug:  config.Debug,
	}, nil
}

// Login starts a session with the given token and expiry and announces it.
func (t *Tracker) Login(ctx context.Context, token string, expiry time.Time) error {
	t.mu.Lock()
	t.token = token
	t.active = true
	t.expiry = expiry
	t.hasExpiry = true
	t.mu.Unlock()

	t.logger.Info("session started", "expiry", expiry)
	return t.publish(ctx, events.AccountEvent{
		Kind:      events.AccountLoggedIn,
		Expiry:    expiry,
		HasExpiry: true,
		Timestamp: time.Now(),
	})
}

// SetExpiry records a fresh expiry instant and announces it. The value
// is passed through verbatim; whether it sits in the past or the
// future is for consumers to judge.
func (t *Tracker) SetExpiry(ctx context.Context, expiry time.Time) error {
	t.mu.Lock()
	t.expiry = expiry
	t.hasExpiry = true
	t.mu.Unlock()

	if t.debug {
		t.logger.Debug("expiry updated", "expiry", expiry)
	}
	return t.publish(ctx, events.AccountEvent{
		Kind:      events.AccountExpiryUpdated,
		Expiry:    expiry,
		HasExpiry: true,
		Timestamp: time.Now(),
	})
}

// Logout ends the session and announces it. The logout event carries
// no expiry.
func (t *Tracker) Logout(ctx context.Context) error {
	t.mu.Lock()
	t.token = ""
	t.active = false
	t.expiry = time.Time{}
	t.hasExpiry = false
	t.mu.Unlock()

	t.logger.Info("session ended")
	return t.publish(ctx, events.AccountEvent{
		Kind:      events.AccountLoggedOut,
		Timestamp: time.Now(),
	})
}

// Expiry returns the tracked session expiry, if one is known.
func (t *Tracker) Expiry() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expiry, t.hasExpiry
}

// Active reports whether a session is currently tracked.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Token returns the current session token, or the empty string when no
// session is active.
func (t *Tracker) Token() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token
}

func (t *Tracker) publish(ctx context.Context, event events.AccountEvent) error {
	if err := t.bus.Publish(ctx, event); err != nil {
		return errors.New(err).
			Component("account").
			Category(errors.CategoryBroadcast).
			Context("kind", string(event.Kind)).
			Build()
	}
	return nil
}

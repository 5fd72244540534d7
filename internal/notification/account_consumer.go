package notification

import (
	"log/slog"

	"github.com/tkoskin/headsup/internal/events"
)

// AccountConsumer bridges account events from the event bus to the
// account expiry provider. It runs on the bus worker goroutine; the
// provider's invalidation callback takes over from there.
type AccountConsumer struct {
	provider *AccountExpiryProvider
	logger   *slog.Logger
}

// NewAccountConsumer creates a consumer feeding the given provider.
func NewAccountConsumer(provider *AccountExpiryProvider) *AccountConsumer {
	return &AccountConsumer{
		provider: provider,
		logger:   getFileLogger(false).With("consumer", "account"),
	}
}

// Name implements events.EventConsumer.
func (c *AccountConsumer) Name() string {
	return "notification-account"
}

// ProcessEvent implements events.EventConsumer. Only typed account
// events are routed here, everything else is ignored.
func (c *AccountConsumer) ProcessEvent(event events.Event) error {
	return nil
}

// ProcessAccountEvent implements events.AccountEventConsumer. Expiry
// updates and logins both carry a fresh expiry and are handled the same
// way; logout drops the tracked expiry.
func (c *AccountConsumer) ProcessAccountEvent(event events.AccountEvent) error {
	switch event.Kind {
	case events.AccountExpiryUpdated, events.AccountLoggedIn:
		if !event.HasExpiry {
			c.logger.Warn("account event missing expiry, ignoring",
				"kind", event.Kind)
			return nil
		}
		c.provider.HandleExpiryUpdated(event.Expiry)
	case events.AccountLoggedOut:
		c.provider.HandleLogout()
	default:
		c.logger.Debug("unhandled account event kind", "kind", event.Kind)
	}
	return nil
}

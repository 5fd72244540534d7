package notification

import (
	"log/slog"
	"sync"
	"time"
)

// AccountExpiryKey identifies every alert and banner produced by the
// account expiry provider.
const AccountExpiryKey = "account-expiry"

// DefaultExpiryLead is how far ahead of account expiry the reminder
// fires and the in-app warning window opens.
const DefaultExpiryLead = 72 * time.Hour

const (
	accountExpiryAlertBody   = "Your account expires soon. Renew it to avoid service interruption."
	accountExpiryBannerTitle = "Account expires soon"
)

// AccountExpiryConfig carries the tunables for NewAccountExpiryProvider.
// Zero values select the defaults.
type AccountExpiryConfig struct {
	Lead     time.Duration  // warning lead time, default DefaultExpiryLead
	FireHour int            // local hour alerts are aligned to, default DefaultFireHour
	Location *time.Location // calendar used for alignment, default time.Local
	Now      func() time.Time
}

// AccountExpiryProvider reminds the user before their account expires.
// It schedules one system alert ahead of the expiry instant and shows
// an in-app warning banner once the expiry is near. Account state
// arrives through the handler methods and triggers invalidation of this
// provider only.
type AccountExpiryProvider struct {
	mu         sync.Mutex
	expiry     time.Time
	hasExpiry  bool
	invalidate func()

	lead     time.Duration
	fireHour int
	loc      *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

// NewAccountExpiryProvider creates the provider. A nil config selects
// all defaults.
func NewAccountExpiryProvider(config *AccountExpiryConfig) *AccountExpiryProvider {
	if config == nil {
		config = &AccountExpiryConfig{}
	}
	p := &AccountExpiryProvider{
		lead:     config.Lead,
		fireHour: config.FireHour,
		loc:      config.Location,
		now:      config.Now,
		logger:   getFileLogger(false).With("provider", AccountExpiryKey),
	}
	if p.lead <= 0 {
		p.lead = DefaultExpiryLead
	}
	if p.fireHour < 1 || p.fireHour > 23 {
		p.fireHour = DefaultFireHour
	}
	if p.loc == nil {
		p.loc = time.Local
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Key implements Provider.
func (p *AccountExpiryProvider) Key() string { return AccountExpiryKey }

// BindInvalidation implements InvalidationBinder. The callback is kept
// for the provider's lifetime and invoked after every account state
// change.
func (p *AccountExpiryProvider) BindInvalidation(invalidate func()) {
	p.mu.Lock()
	p.invalidate = invalidate
	p.mu.Unlock()
}

// HandleExpiryUpdated records a fresh expiry instant.
func (p *AccountExpiryProvider) HandleExpiryUpdated(expiry time.Time) {
	p.setExpiry(expiry, true)
}

// HandleLogin records the expiry delivered with a new session. Login is
// handled exactly like an expiry update.
func (p *AccountExpiryProvider) HandleLogin(expiry time.Time) {
	p.setExpiry(expiry, true)
}

// HandleLogout drops the tracked expiry so both the alert and the
// banner clear on the next pass.
func (p *AccountExpiryProvider) HandleLogout() {
	p.setExpiry(time.Time{}, false)
}

// setExpiry stores the incoming value verbatim, including instants
// already inside the warning window, then fires invalidation outside
// the provider lock.
func (p *AccountExpiryProvider) setExpiry(expiry time.Time, hasExpiry bool) {
	p.mu.Lock()
	p.expiry = expiry
	p.hasExpiry = hasExpiry
	invalidate := p.invalidate
	p.mu.Unlock()

	p.logger.Debug("account expiry state changed",
		"has_expiry", hasExpiry,
		"expiry", expiry)

	if invalidate != nil {
		invalidate()
	}
}

// Expiry returns the currently tracked expiry instant, if any.
func (p *AccountExpiryProvider) Expiry() (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.expiry, p.hasExpiry
}

// AlertRequest implements AlertProvider. A reminder is scheduled only
// while the warning threshold is still ahead of the clock; once inside
// the window the banner takes over.
func (p *AccountExpiryProvider) AlertRequest() *Alert {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.hasExpiry {
		return nil
	}
	fireAt, ok := TriggerAt(p.expiry, p.lead, p.now(), p.loc, p.fireHour)
	if !ok {
		return nil
	}
	return &Alert{
		Key:    AccountExpiryKey,
		Body:   accountExpiryAlertBody,
		Sound:  true,
		FireAt: fireAt,
	}
}

// ClearPending implements AlertProvider. Scheduled reminders are only
// removed when no account is tracked; while one is, a newer request
// under the same key replaces the old entry instead.
func (p *AccountExpiryProvider) ClearPending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.hasExpiry
}

// ClearDelivered implements AlertProvider.
func (p *AccountExpiryProvider) ClearDelivered() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.hasExpiry
}

// Banner implements BannerProvider. The warning shows from the moment
// the expiry is exactly lead away until the expiry instant itself, both
// ends inclusive.
func (p *AccountExpiryProvider) Banner() *Banner {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.hasExpiry {
		return nil
	}
	now := p.now()
	windowOpen := p.expiry.Add(-p.lead)
	if now.Before(windowOpen) || now.After(p.expiry) {
		return nil
	}
	return &Banner{
		Key:      AccountExpiryKey,
		Severity: SeverityWarning,
		Title:    accountExpiryBannerTitle,
		Body:     FormatRemaining(p.expiry.Sub(now)) + " remaining",
	}
}

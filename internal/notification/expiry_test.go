package notification

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExpiryProvider(now time.Time) *AccountExpiryProvider {
	return NewAccountExpiryProvider(&AccountExpiryConfig{
		Location: time.UTC,
		Now:      clockAt(now),
	})
}

func TestAccountExpiryNoAccount(t *testing.T) {
	t.Parallel()

	p := newExpiryProvider(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))

	assert.Nil(t, p.AlertRequest())
	assert.Nil(t, p.Banner())
	assert.True(t, p.ClearPending())
	assert.True(t, p.ClearDelivered())
}

func TestAccountExpiryFarFromExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	p := newExpiryProvider(now)
	p.HandleExpiryUpdated(time.Date(2026, 6, 10, 15, 0, 0, 0, time.UTC))

	req := p.AlertRequest()
	require.NotNil(t, req)
	assert.Equal(t, AccountExpiryKey, req.Key)
	assert.True(t, req.Sound)
	assert.NotEmpty(t, req.Body)
	// Reminder lands at the fire hour three days ahead of expiry.
	assert.True(t, req.FireAt.Equal(time.Date(2026, 6, 7, 9, 0, 0, 0, time.UTC)),
		"got %v", req.FireAt)

	// Tracked account means nothing to clear.
	assert.False(t, p.ClearPending())
	assert.False(t, p.ClearDelivered())

	// Too early for the warning banner.
	assert.Nil(t, p.Banner())
}

func TestAccountExpiryBoundaryAtWindowOpen(t *testing.T) {
	t.Parallel()

	expiry := time.Date(2026, 6, 10, 15, 0, 0, 0, time.UTC)
	now := expiry.Add(-72 * time.Hour)
	p := newExpiryProvider(now)
	p.HandleExpiryUpdated(expiry)

	// The reminder threshold is no longer ahead of the clock, so the
	// system path yields nothing while the banner shows.
	assert.Nil(t, p.AlertRequest())

	banner := p.Banner()
	require.NotNil(t, banner)
	assert.Equal(t, AccountExpiryKey, banner.Key)
	assert.Equal(t, SeverityWarning, banner.Severity)
	assert.Equal(t, "Account expires soon", banner.Title)
	assert.Equal(t, "3 days remaining", banner.Body)
}

func TestAccountExpiryInsideWindow(t *testing.T) {
	t.Parallel()

	expiry := time.Date(2026, 6, 10, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		now      time.Time
		wantBody string
	}{
		{"two days left", expiry.Add(-49 * time.Hour), "2 days remaining"},
		{"hours left", expiry.Add(-5 * time.Hour), "5 hours remaining"},
		{"minutes left", expiry.Add(-30 * time.Minute), "30 minutes remaining"},
		{"at expiry instant", expiry, "less than a minute remaining"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := newExpiryProvider(tt.now)
			p.HandleExpiryUpdated(expiry)

			assert.Nil(t, p.AlertRequest())
			banner := p.Banner()
			require.NotNil(t, banner)
			assert.Equal(t, tt.wantBody, banner.Body)
		})
	}
}

func TestAccountExpiryAfterExpiry(t *testing.T) {
	t.Parallel()

	expiry := time.Date(2026, 6, 10, 15, 0, 0, 0, time.UTC)
	p := newExpiryProvider(expiry.Add(time.Second))
	p.HandleExpiryUpdated(expiry)

	assert.Nil(t, p.AlertRequest())
	assert.Nil(t, p.Banner())
	// The account is still tracked, so nothing clears.
	assert.False(t, p.ClearPending())
	assert.False(t, p.ClearDelivered())
}

func TestAccountExpiryLogoutClearsEverything(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	p := newExpiryProvider(now)
	p.HandleExpiryUpdated(now.Add(100 * time.Hour))
	require.NotNil(t, p.AlertRequest())

	p.HandleLogout()

	assert.Nil(t, p.AlertRequest())
	assert.Nil(t, p.Banner())
	assert.True(t, p.ClearPending())
	assert.True(t, p.ClearDelivered())

	_, ok := p.Expiry()
	assert.False(t, ok)
}

func TestAccountExpiryLoginMatchesUpdate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(100 * time.Hour)

	updated := newExpiryProvider(now)
	updated.HandleExpiryUpdated(expiry)

	loggedIn := newExpiryProvider(now)
	loggedIn.HandleLogin(expiry)

	assert.Equal(t, updated.AlertRequest(), loggedIn.AlertRequest())
	assert.Equal(t, updated.Banner(), loggedIn.Banner())
	assert.Equal(t, updated.ClearPending(), loggedIn.ClearPending())
}

func TestAccountExpiryAcceptsNearExpiry(t *testing.T) {
	t.Parallel()

	// An expiry already inside the warning window is stored verbatim
	// and surfaces the banner immediately.
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(time.Hour)
	p := newExpiryProvider(now)
	p.HandleExpiryUpdated(expiry)

	got, ok := p.Expiry()
	require.True(t, ok)
	assert.True(t, got.Equal(expiry), "expiry stored as %v, want %v", got, expiry)

	assert.Nil(t, p.AlertRequest())
	banner := p.Banner()
	require.NotNil(t, banner)
	assert.Equal(t, "1 hour remaining", banner.Body)
}

func TestAccountExpiryInvalidationFiresPerChange(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	p := newExpiryProvider(now)

	var calls atomic.Int32
	p.BindInvalidation(func() {
		calls.Add(1)
		// Re-entering a query method here proves the callback runs
		// outside the provider lock.
		p.Banner()
	})

	p.HandleExpiryUpdated(now.Add(100 * time.Hour))
	p.HandleLogin(now.Add(200 * time.Hour))
	p.HandleLogout()

	assert.Equal(t, int32(3), calls.Load())
}

package notification

// Provider produces notification content under a single stable key. The
// key doubles as the identity of every alert and banner the provider
// emits, which lets the manager replace and clear store entries
// precisely.
type Provider interface {
	// Key returns the provider's stable identity. It must not change
	// for the lifetime of the registration.
	Key() string
}

// AlertProvider is implemented by providers that schedule system-level
// alerts. The three methods describe the provider's current desired
// state and are queried together during a pass.
type AlertProvider interface {
	Provider

	// AlertRequest returns the alert that should currently be
	// scheduled, or nil when none applies.
	AlertRequest() *Alert

	// ClearPending reports whether scheduled alerts under the
	// provider's key that have not fired yet should be removed.
	ClearPending() bool

	// ClearDelivered reports whether alerts under the provider's key
	// that already fired should be removed from history.
	ClearDelivered() bool
}

// BannerProvider is implemented by providers that surface in-app
// banners.
type BannerProvider interface {
	Provider

	// Banner returns the banner that should currently be shown, or nil
	// when none applies.
	Banner() *Banner
}

// InvalidationBinder is implemented by providers whose state changes
// outside scheduled passes. During registration the manager hands the
// provider a callback bound to its key; the provider invokes it
// whenever its content should be recomputed. The callback is safe to
// call from any goroutine and must not be invoked while the provider
// holds locks its query methods also take.
type InvalidationBinder interface {
	BindInvalidation(invalidate func())
}

package notification

import (
	"context"
	"slices"
	"sync"
	"time"
)

// mockCenter is an in-memory AlertCenter recording every call in order
// so tests can assert write ordering across the store worker.
type mockCenter struct {
	mu            sync.Mutex
	status        AuthorizationStatus
	requestResult bool
	requestErr    error
	requestCalls  int
	addErr        map[string]error
	added         []Alert
	pending       map[string]Alert
	pendingCalls  int
	ops           []string
}

func newMockCenter(status AuthorizationStatus) *mockCenter {
	return &mockCenter{
		status:  status,
		addErr:  make(map[string]error),
		pending: make(map[string]Alert),
	}
}

func (c *mockCenter) AuthorizationStatus(_ context.Context) AuthorizationStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *mockCenter) RequestAuthorization(_ context.Context, _ AuthorizationOptions) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestCalls++
	if c.requestErr != nil {
		return false, c.requestErr
	}
	if c.requestResult {
		c.status = AuthorizationAuthorized
	} else {
		c.status = AuthorizationDenied
	}
	return c.requestResult, nil
}

func (c *mockCenter) Add(_ context.Context, alert Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.addErr[alert.Key]; err != nil {
		c.ops = append(c.ops, "add_failed:"+alert.Key)
		return err
	}
	c.added = append(c.added, alert)
	c.pending[alert.Key] = alert
	c.ops = append(c.ops, "add:"+alert.Key)
	return nil
}

func (c *mockCenter) RemovePending(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.pending, key)
	}
	c.ops = append(c.ops, "remove_pending")
	return nil
}

func (c *mockCenter) RemoveDelivered(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops = append(c.ops, "remove_delivered")
	return nil
}

func (c *mockCenter) PendingAlerts(_ context.Context) ([]Alert, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingCalls++
	out := make([]Alert, 0, len(c.pending))
	for _, alert := range c.pending {
		out = append(out, alert)
	}
	return out, nil
}

func (c *mockCenter) opLog() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.ops)
}

func (c *mockCenter) addedAlerts() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.added)
}

func (c *mockCenter) authRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestCalls
}

func (c *mockCenter) pendingQueries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingCalls
}

func (c *mockCenter) failAdds(key string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addErr[key] = err
}

// fakeAlertProvider implements Provider and AlertProvider with settable
// state, plus InvalidationBinder so tests can drive invalidation.
type fakeAlertProvider struct {
	mu             sync.Mutex
	key            string
	alert          *Alert
	clearPending   bool
	clearDelivered bool
	invalidate     func()
}

func newFakeAlertProvider(key string) *fakeAlertProvider {
	return &fakeAlertProvider{key: key}
}

func (f *fakeAlertProvider) Key() string { return f.key }

func (f *fakeAlertProvider) AlertRequest() *Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.alert == nil {
		return nil
	}
	alert := *f.alert
	return &alert
}

func (f *fakeAlertProvider) ClearPending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clearPending
}

func (f *fakeAlertProvider) ClearDelivered() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clearDelivered
}

func (f *fakeAlertProvider) BindInvalidation(invalidate func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidate = invalidate
}

func (f *fakeAlertProvider) set(alert *Alert, clearPending, clearDelivered bool) {
	f.mu.Lock()
	f.alert = alert
	f.clearPending = clearPending
	f.clearDelivered = clearDelivered
	f.mu.Unlock()
}

func (f *fakeAlertProvider) fire() {
	f.mu.Lock()
	invalidate := f.invalidate
	f.mu.Unlock()
	if invalidate != nil {
		invalidate()
	}
}

// fakeBannerProvider implements Provider and BannerProvider only.
type fakeBannerProvider struct {
	mu         sync.Mutex
	key        string
	banner     *Banner
	invalidate func()
}

func newFakeBannerProvider(key string, banner *Banner) *fakeBannerProvider {
	return &fakeBannerProvider{key: key, banner: banner}
}

func (f *fakeBannerProvider) Key() string { return f.key }

func (f *fakeBannerProvider) Banner() *Banner {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.banner == nil {
		return nil
	}
	banner := *f.banner
	return &banner
}

func (f *fakeBannerProvider) BindInvalidation(invalidate func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidate = invalidate
}

func (f *fakeBannerProvider) setBanner(banner *Banner) {
	f.mu.Lock()
	f.banner = banner
	f.mu.Unlock()
}

func (f *fakeBannerProvider) fire() {
	f.mu.Lock()
	invalidate := f.invalidate
	f.mu.Unlock()
	if invalidate != nil {
		invalidate()
	}
}

// newTestManager builds a manager with fast timeouts against the given
// center and registers cleanup.
func newTestManager(t testingT, center AlertCenter, dedupWindow time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(&ManagerConfig{
		Center:       center,
		DedupWindow:  dedupWindow,
		StoreTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(m.Stop)
	return m
}

// testingT is the subset of *testing.T newTestManager needs.
type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
	Cleanup(func())
}

func clockAt(instant time.Time) func() time.Time {
	return func() time.Time { return instant }
}

package notification

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkoskin/headsup/internal/errors"
)

const (
	waitTimeout = 2 * time.Second
	waitTick    = 5 * time.Millisecond
)

func recvList(t *testing.T, ch <-chan []Banner) []Banner {
	t.Helper()
	select {
	case list := <-ch:
		return list
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for banner list")
		return nil
	}
}

func TestManagerRegisterValidation(t *testing.T) {
	t.Parallel()

	center := newMockCenter(AuthorizationAuthorized)
	m := newTestManager(t, center, 0)

	err := m.Register(nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	err = m.Register(newFakeAlertProvider(""))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	require.NoError(t, m.Register(newFakeAlertProvider("a")))
	err = m.Register(newFakeAlertProvider("a"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConflict))
}

func TestManagerReconcileClearsBeforeAdds(t *testing.T) {
	t.Parallel()

	center := newMockCenter(AuthorizationAuthorized)
	m := newTestManager(t, center, 0)

	// First provider wants clears and a fresh alert, second only adds.
	// All clears must land before any add, across providers.
	first := newFakeAlertProvider("first")
	first.set(&Alert{Key: "first", Body: "f", FireAt: time.Now().Add(time.Hour)}, true, true)
	second := newFakeAlertProvider("second")
	second.set(&Alert{Key: "second", Body: "s", FireAt: time.Now().Add(time.Hour)}, false, false)

	require.NoError(t, m.Register(first))
	require.NoError(t, m.Register(second))

	m.Reconcile()

	require.Eventually(t, func() bool {
		return len(center.opLog()) == 4
	}, waitTimeout, waitTick)

	assert.Equal(t, []string{
		"remove_pending",
		"remove_delivered",
		"add:first",
		"add:second",
	}, center.opLog())
}

func TestManagerReconcileIdempotent(t *testing.T) {
	t.Parallel()

	center := newMockCenter(AuthorizationAuthorized)
	m := newTestManager(t, center, time.Minute)

	provider := newFakeAlertProvider("steady")
	provider.set(&Alert{Key: "steady", Body: "b", FireAt: time.Date(2026, 6, 7, 9, 0, 0, 0, time.UTC)}, false, false)
	require.NoError(t, m.Register(provider))

	m.Reconcile()
	require.Eventually(t, func() bool {
		return len(center.addedAlerts()) == 1
	}, waitTimeout, waitTick)
	firstBanners := m.Banners()

	// Identical state again: the duplicate is confirmed against the
	// pending list and suppressed.
	m.Reconcile()
	require.Eventually(t, func() bool {
		return center.pendingQueries() >= 1
	}, waitTimeout, waitTick)

	assert.Len(t, center.addedAlerts(), 1)
	assert.Equal(t, firstBanners, m.Banners())
}

func TestManagerAuthorizationPromptOnce(t *testing.T) {
	t.Parallel()

	center := newMockCenter(AuthorizationNotDetermined)
	center.requestResult = true
	m := newTestManager(t, center, 0)

	provider := newFakeAlertProvider("a")
	provider.set(&Alert{Key: "a", Body: "one", FireAt: time.Now().Add(time.Hour)}, false, false)
	require.NoError(t, m.Register(provider))

	m.Reconcile()
	require.Eventually(t, func() bool {
		return len(center.addedAlerts()) == 1
	}, waitTimeout, waitTick)
	assert.Equal(t, 1, center.authRequests())

	// Status is now authorized, the next pass schedules without a
	// second prompt.
	provider.set(&Alert{Key: "a", Body: "two", FireAt: time.Now().Add(2 * time.Hour)}, false, false)
	m.Reconcile()
	require.Eventually(t, func() bool {
		return len(center.addedAlerts()) == 2
	}, waitTimeout, waitTick)
	assert.Equal(t, 1, center.authRequests())
}

func TestManagerPromptDeniedSkipsAdds(t *testing.T) {
	t.Parallel()

	center := newMockCenter(AuthorizationNotDetermined)
	center.requestResult = false
	m := newTestManager(t, center, 0)

	provider := newFakeAlertProvider("a")
	provider.set(&Alert{Key: "a", Body: "b", FireAt: time.Now().Add(time.Hour)}, false, false)
	require.NoError(t, m.Register(provider))

	m.Reconcile()
	require.Eventually(t, func() bool {
		return center.authRequests() == 1
	}, waitTimeout, waitTick)
	assert.Empty(t, center.addedAlerts())

	// Denial is a steady state: later passes neither prompt nor add.
	m.Reconcile()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, center.authRequests())
	assert.Empty(t, center.addedAlerts())
}

func TestManagerDeniedStillClears(t *testing.T) {
	t.Parallel()

	center := newMockCenter(AuthorizationDenied)
	m := newTestManager(t, center, 0)

	provider := newFakeAlertProvider("a")
	provider.set(&Alert{Key: "a", Body: "b", FireAt: time.Now().Add(time.Hour)}, true, true)
	require.NoError(t, m.Register(provider))

	m.Reconcile()
	m.Reconcile()

	// Clears are not gated on permission. Two full passes leave exactly
	// two clear pairs and no adds or prompts in between.
	require.Eventually(t, func() bool {
		return len(center.opLog()) == 4
	}, waitTimeout, waitTick)
	assert.Equal(t, []string{
		"remove_pending",
		"remove_delivered",
		"remove_pending",
		"remove_delivered",
	}, center.opLog())
	assert.Zero(t, center.authRequests())
}

func TestManagerEphemeralSkipsAdds(t *testing.T) {
	t.Parallel()

	center := newMockCenter(AuthorizationEphemeral)
	m := newTestManager(t, center, 0)

	provider := newFakeAlertProvider("a")
	provider.set(&Alert{Key: "a", Body: "b", FireAt: time.Now().Add(time.Hour)}, true, false)
	require.NoError(t, m.Register(provider))

	m.Reconcile()
	require.Eventually(t, func() bool {
		return slices.Contains(center.opLog(), "remove_pending")
	}, waitTimeout, waitTick)

	assert.Empty(t, center.addedAlerts())
	assert.Zero(t, center.authRequests())
}

func TestManagerAddFailureContinuesBatch(t *testing.T) {
	t.Parallel()

	center := newMockCenter(AuthorizationAuthorized)
	center.failAdds("broken", errors.NewStd("store rejected"))
	m := newTestManager(t, center, 0)

	broken := newFakeAlertProvider("broken")
	broken.set(&Alert{Key: "broken", Body: "x", FireAt: time.Now().Add(time.Hour)}, false, false)
	healthy := newFakeAlertProvider("healthy")
	healthy.set(&Alert{Key: "healthy", Body: "y", FireAt: time.Now().Add(time.Hour)}, false, false)

	require.NoError(t, m.Register(broken))
	require.NoError(t, m.Register(healthy))

	m.Reconcile()

	require.Eventually(t, func() bool {
		return len(center.addedAlerts()) == 1
	}, waitTimeout, waitTick)
	assert.Equal(t, "healthy", center.addedAlerts()[0].Key)
	assert.Equal(t, []string{"add_failed:broken", "add:healthy"}, center.opLog())
}

func TestManagerInvalidatePatchesOnlyChangedKey(t *testing.T) {
	t.Parallel()

	center := newMockCenter(AuthorizationAuthorized)
	m := newTestManager(t, center, 0)

	left := newFakeBannerProvider("left", &Banner{Key: "left", Severity: SeveritySuccess, Title: "L", Body: "l1"})
	right := newFakeBannerProvider("right", &Banner{Key: "right", Severity: SeverityWarning, Title: "R", Body: "r1"})
	require.NoError(t, m.Register(left))
	require.NoError(t, m.Register(right))

	ch, _ := m.Subscribe()
	m.Reconcile()

	first := recvList(t, ch)
	require.Len(t, first, 2)

	right.setBanner(&Banner{Key: "right", Severity: SeverityError, Title: "R", Body: "r2"})
	right.fire()

	second := recvList(t, ch)
	require.Len(t, second, 2)

	// The untouched provider's entry carries over by value.
	assert.Equal(t, first[0], second[0])
	assert.Equal(t, "r2", second[1].Body)
	assert.Equal(t, SeverityError, second[1].Severity)
}

func TestManagerInvalidateDropsClearedBanner(t *testing.T) {
	t.Parallel()

	center := newMockCenter(AuthorizationAuthorized)
	m := newTestManager(t, center, 0)

	left := newFakeBannerProvider("left", &Banner{Key: "left", Severity: SeveritySuccess, Title: "L", Body: "l1"})
	right := newFakeBannerProvider("right", &Banner{Key: "right", Severity: SeverityWarning, Title: "R", Body: "r1"})
	require.NoError(t, m.Register(left))
	require.NoError(t, m.Register(right))

	ch, _ := m.Subscribe()
	m.Reconcile()
	require.Len(t, recvList(t, ch), 2)

	right.setBanner(nil)
	right.fire()

	got := recvList(t, ch)
	require.Len(t, got, 1)
	assert.Equal(t, "left", got[0].Key)
}

func TestManagerInvalidateScopedToOneProvider(t *testing.T) {
	t.Parallel()

	center := newMockCenter(AuthorizationAuthorized)
	m := newTestManager(t, center, 0)

	stable := newFakeAlertProvider("stable")
	stable.set(&Alert{Key: "stable", Body: "s", FireAt: time.Now().Add(time.Hour)}, false, false)
	volatile := newFakeAlertProvider("volatile")
	volatile.set(&Alert{Key: "volatile", Body: "v1", FireAt: time.Now().Add(time.Hour)}, false, false)
	require.NoError(t, m.Register(stable))
	require.NoError(t, m.Register(volatile))

	m.Reconcile()
	require.Eventually(t, func() bool {
		return len(center.addedAlerts()) == 2
	}, waitTimeout, waitTick)

	volatile.set(&Alert{Key: "volatile", Body: "v2", FireAt: time.Now().Add(2 * time.Hour)}, false, false)
	volatile.fire()

	require.Eventually(t, func() bool {
		return len(center.addedAlerts()) == 3
	}, waitTimeout, waitTick)

	added := center.addedAlerts()
	assert.Equal(t, "volatile", added[2].Key)
	// The stable provider was written exactly once.
	assert.Equal(t, 1, countOps(center.opLog(), "add:stable"))
}

func TestManagerInvalidateUnknownKeyIgnored(t *testing.T) {
	t.Parallel()

	center := newMockCenter(AuthorizationAuthorized)
	m := newTestManager(t, center, 0)

	provider := newFakeBannerProvider("known", &Banner{Key: "known", Severity: SeveritySuccess, Title: "K", Body: "k"})
	require.NoError(t, m.Register(provider))
	m.Reconcile()
	before := m.Banners()

	m.Invalidate("unknown")

	assert.Equal(t, before, m.Banners())
	assert.Empty(t, center.opLog())
}

func TestManagerSubscribeAndUnsubscribe(t *testing.T) {
	t.Parallel()

	center := newMockCenter(AuthorizationAuthorized)
	m := newTestManager(t, center, 0)

	provider := newFakeBannerProvider("p", &Banner{Key: "p", Severity: SeveritySuccess, Title: "T", Body: "b"})
	require.NoError(t, m.Register(provider))

	ch, ctx := m.Subscribe()
	m.Reconcile()
	require.Len(t, recvList(t, ch), 1)

	m.Unsubscribe(ch)
	require.Error(t, ctx.Err())

	// Publishes after removal no longer reach the channel.
	m.Reconcile()
	assert.Empty(t, ch)
}

func TestManagerBannersSnapshotIsolated(t *testing.T) {
	t.Parallel()

	center := newMockCenter(AuthorizationAuthorized)
	m := newTestManager(t, center, 0)

	provider := newFakeBannerProvider("p", &Banner{Key: "p", Severity: SeveritySuccess, Title: "T", Body: "b"})
	require.NoError(t, m.Register(provider))
	m.Reconcile()

	snapshot := m.Banners()
	require.Len(t, snapshot, 1)
	snapshot[0].Body = "mutated"

	assert.Equal(t, "b", m.Banners()[0].Body)
}

func TestManagerMaxBannersCap(t *testing.T) {
	t.Parallel()

	center := newMockCenter(AuthorizationAuthorized)
	m, err := NewManager(&ManagerConfig{
		Center:     center,
		MaxBanners: 1,
	})
	require.NoError(t, err)
	t.Cleanup(m.Stop)

	first := newFakeBannerProvider("first", &Banner{Key: "first", Severity: SeveritySuccess, Title: "1", Body: "a"})
	second := newFakeBannerProvider("second", &Banner{Key: "second", Severity: SeveritySuccess, Title: "2", Body: "b"})
	require.NoError(t, m.Register(first))
	require.NoError(t, m.Register(second))

	m.Reconcile()

	got := m.Banners()
	require.Len(t, got, 1)
	// Registration order decides who stays under the cap.
	assert.Equal(t, "first", got[0].Key)
}

func countOps(ops []string, op string) int {
	count := 0
	for _, o := range ops {
		if o == op {
			count++
		}
	}
	return count
}

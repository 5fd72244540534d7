package alertcenter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkoskin/headsup/internal/conf"
	"github.com/tkoskin/headsup/internal/errors"
	"github.com/tkoskin/headsup/internal/notification"
)

// newTestDispatcher builds a dispatcher around fake targets, bypassing
// config-driven target construction.
func newTestDispatcher(t *testing.T, targets ...Target) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(&conf.DeliverySettings{
		Enabled:   true,
		RateLimit: 1000,
		Burst:     100,
		Timeout:   time.Second,
	}, "test-node", nil)
	require.NoError(t, err)
	d.targets = targets
	t.Cleanup(d.Stop)
	return d
}

func TestDispatcherFansOutToAllTargets(t *testing.T) {
	t.Parallel()

	first := &fakeTarget{name: "first"}
	second := &fakeTarget{name: "second"}
	dispatcher := newTestDispatcher(t, first, second)

	alert := notification.Alert{Key: "renewal", Body: "renew soon", FireAt: time.Now()}
	dispatcher.Dispatch(alert)

	require.Eventually(t, func() bool {
		return len(first.delivered()) == 1 && len(second.delivered()) == 1
	}, waitTimeout, waitTick)
	assert.Equal(t, alert, first.delivered()[0])
	assert.Equal(t, alert, second.delivered()[0])
}

func TestDispatcherTargetFailureIsolated(t *testing.T) {
	t.Parallel()

	broken := &fakeTarget{name: "broken", err: errors.NewStd("endpoint unreachable")}
	healthy := &fakeTarget{name: "healthy"}
	dispatcher := newTestDispatcher(t, broken, healthy)

	dispatcher.Dispatch(notification.Alert{Key: "renewal", FireAt: time.Now()})

	require.Eventually(t, func() bool {
		return len(healthy.delivered()) == 1
	}, waitTimeout, waitTick, "healthy target must deliver despite the broken one")
	assert.Empty(t, broken.delivered())
}

func TestDispatcherStopPreventsNewWork(t *testing.T) {
	t.Parallel()

	target := &fakeTarget{name: "only"}
	dispatcher := newTestDispatcher(t, target)

	dispatcher.Stop()
	dispatcher.Dispatch(notification.Alert{Key: "renewal", FireAt: time.Now()})

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, target.delivered())
}

func TestNewDispatcherBuildsConfiguredTargets(t *testing.T) {
	t.Parallel()

	settings := &conf.DeliverySettings{
		Enabled:   true,
		RateLimit: 1,
		Burst:     5,
		Timeout:   time.Second,
		Targets: []conf.DeliveryTarget{
			{Name: "hooks", Type: "webhook", Enabled: true, URLs: []string{"https://example.com/hook"}},
			{Name: "paused", Type: "webhook", Enabled: false, URLs: []string{"https://example.com/paused"}},
			{Name: "mystery", Type: "carrier-pigeon", Enabled: true, URLs: []string{"https://example.com"}},
			{Name: "broken", Type: "webhook", Enabled: true, URLs: nil},
		},
	}

	dispatcher, err := NewDispatcher(settings, "test-node", nil)
	require.NoError(t, err)
	t.Cleanup(dispatcher.Stop)

	// Disabled, unknown-type and invalid targets are skipped.
	assert.Equal(t, 1, dispatcher.TargetCount())
}

func TestBuildTargetUnknownType(t *testing.T) {
	t.Parallel()

	_, err := buildTarget(&conf.DeliveryTarget{Name: "odd", Type: "smoke-signal"}, "test-node", time.Second)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkoskin/headsup/internal/conf"
	"github.com/tkoskin/headsup/internal/errors"
	"github.com/tkoskin/headsup/internal/events"
)

func TestIntegrationDisabledSkips(t *testing.T) {
	ResetIntegrationForTesting()
	t.Cleanup(ResetIntegrationForTesting)

	disabled := &conf.Settings{}
	disabled.Main.Log = conf.LogConfig{Rotation: conf.RotationSize}
	conf.SetSettings(disabled)

	require.NoError(t, InitializeEventBusIntegration())
	assert.Nil(t, GetWorkerStats())
}

// TestIntegrationReportsBuiltErrors drives the full pipeline: an
// enhanced error built anywhere in the process reaches the telemetry
// worker through the event bus.
func TestIntegrationReportsBuiltErrors(t *testing.T) {
	ResetIntegrationForTesting()
	events.ResetForTesting()
	t.Cleanup(func() {
		errors.SetEventPublisher(nil)
		ResetIntegrationForTesting()
		events.ResetForTesting()

		reset := &conf.Settings{}
		reset.Main.Log = conf.LogConfig{Rotation: conf.RotationSize}
		conf.SetSettings(reset)
	})

	settings := &conf.Settings{}
	settings.Main.Log = conf.LogConfig{Rotation: conf.RotationSize}
	settings.Sentry.Enabled = true
	conf.SetSettings(settings)

	_, err := events.Initialize(events.DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, InitializeEventBusIntegration())
	require.NotNil(t, GetWorkerStats())

	// Second call is idempotent.
	require.NoError(t, InitializeEventBusIntegration())

	built := errors.Newf("journal write failed").
		Component("alertcenter").
		Category(errors.CategoryDatabase).
		Build()

	require.Eventually(t, built.IsReported,
		2*time.Second, 5*time.Millisecond, "built error should reach the telemetry worker")

	stats := GetWorkerStats()
	require.NotNil(t, stats)
	assert.GreaterOrEqual(t, stats.EventsProcessed, uint64(1))
}

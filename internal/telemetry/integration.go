package telemetry

import (
	"fmt"
	"sync"

	"github.com/tkoskin/headsup/internal/conf"
	"github.com/tkoskin/headsup/internal/errors"
	"github.com/tkoskin/headsup/internal/events"
)

var (
	integrationMu sync.Mutex

	// worker is the registered bus consumer, nil until integration runs.
	worker *Worker
)

// InitializeEventBusIntegration connects the error pipeline to
// telemetry: built errors start flowing to the event bus, and the
// telemetry worker consumes them from there. Call after Init and after
// the event bus is up; with telemetry disabled this is a no-op.
func InitializeEventBusIntegration() error {
	integrationMu.Lock()
	defer integrationMu.Unlock()

	if worker != nil {
		return nil
	}

	settings := conf.GetSettings()
	if settings == nil || !settings.Sentry.Enabled {
		getLogger().Info("error telemetry disabled, skipping event bus integration")
		return nil
	}
	if !events.IsInitialized() {
		getLogger().Warn("event bus not initialized, skipping telemetry integration")
		return nil
	}

	bus := events.GetEventBus()
	if bus == nil {
		return fmt.Errorf("event bus is nil")
	}

	errors.SetEventPublisher(events.NewEventPublisherAdapter(bus))

	w, err := NewWorker(true, DefaultWorkerConfig())
	if err != nil {
		return fmt.Errorf("failed to create telemetry worker: %w", err)
	}
	if err := bus.RegisterConsumer(w); err != nil {
		return fmt.Errorf("failed to register telemetry worker: %w", err)
	}

	worker = w
	getLogger().Info("telemetry worker registered with event bus")
	return nil
}

// ResetIntegrationForTesting clears the registered worker. Tests only.
func ResetIntegrationForTesting() {
	integrationMu.Lock()
	defer integrationMu.Unlock()
	worker = nil
}

// GetWorkerStats returns telemetry worker counters, or nil when the
// integration is not active.
func GetWorkerStats() *WorkerStats {
	integrationMu.Lock()
	defer integrationMu.Unlock()

	if worker == nil {
		return nil
	}
	stats := worker.Stats()
	return &stats
}

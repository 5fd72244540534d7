package errors

import "sync/atomic"

// EventPublisher hands built errors to an event bus. The indirection exists
// because this package sits below events in the import graph and cannot name
// its types; the bus side type-asserts back to its own event interface.
type EventPublisher interface {
	TryPublish(event any) bool
}

var eventSink atomic.Pointer[EventPublisher]

// SetEventPublisher installs the bus-backed publisher. Passing nil
// disconnects it. Either way the reporting fast path is recomputed.
func SetEventPublisher(p EventPublisher) {
	if p == nil {
		eventSink.Store(nil)
	} else {
		eventSink.Store(&p)
	}
	errorHooksMu.Lock()
	defer errorHooksMu.Unlock()
	updateActiveReporting()
}

// reportToTelemetry forwards a built error to the active reporting sinks.
// Hooks run synchronously on the building goroutine; the event publisher
// hands off to bus workers.
func reportToTelemetry(ee *EnhancedError) {
	if !hasActiveReporting.Load() {
		return
	}

	notifyHooks(ee)

	if sink := eventSink.Load(); sink != nil && *sink != nil {
		(*sink).TryPublish(ee)
	}
}

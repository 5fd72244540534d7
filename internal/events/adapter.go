package events

// EventPublisherAdapter satisfies the errors package's publisher interface
// on top of an EventBus. The errors package talks through an any-typed
// interface to stay below this package in the import graph, so the adapter
// recovers the ErrorEvent type before it enters the bus.
type EventPublisherAdapter struct {
	bus *EventBus
}

// NewEventPublisherAdapter wraps the given bus for the errors package.
func NewEventPublisherAdapter(bus *EventBus) *EventPublisherAdapter {
	return &EventPublisherAdapter{bus: bus}
}

// TryPublish drops the event unless it is an ErrorEvent and the wrapped bus
// has at least one registered consumer.
func (a *EventPublisherAdapter) TryPublish(event any) bool {
	if a.bus == nil || a.bus.consumerCount.Load() == 0 {
		return false
	}

	ee, ok := event.(ErrorEvent)
	if !ok {
		return false
	}

	return a.bus.TryPublish(ee)
}

// InitializeErrorsIntegration wires the global bus into the errors package.
// The caller type-asserts the adapter onto its own publisher interface,
// which keeps this package free of an errors import. No-op when the bus
// has not been initialized.
func InitializeErrorsIntegration(setPublisher func(any)) error {
	bus := GetEventBus()
	if bus == nil {
		return nil
	}

	setPublisher(NewEventPublisherAdapter(bus))

	return nil
}

package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tkoskin/headsup/internal/logging"
)

// Config holds event bus configuration.
type Config struct {
	BufferSize int
	Workers    int
	Enabled    bool
}

// DefaultConfig returns the default event bus configuration.
// A single worker keeps account events strictly ordered; a login processed
// after a later logout would resurrect cancelled notification state.
func DefaultConfig() *Config {
	return &Config{
		BufferSize: 1024,
		Workers:    1,
		Enabled:    true,
	}
}

// busCounters tracks bus activity. Read through GetStats.
type busCounters struct {
	received     atomic.Uint64
	processed    atomic.Uint64
	dropped      atomic.Uint64
	consumerErrs atomic.Uint64
	fastPathHits atomic.Uint64
}

// EventBus carries events from publishers to consumers on worker
// goroutines. TryPublish never blocks and may drop; Publish blocks and
// is for traffic that must not be lost.
type EventBus struct {
	eventChan chan Event
	workers   int

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	initialized atomic.Bool
	running     atomic.Bool

	mu            sync.Mutex
	consumers     []EventConsumer
	consumerCount atomic.Int32

	counters busCounters
	logger   *slog.Logger
}

var (
	globalEventBus *EventBus
	globalMutex    sync.Mutex
)

// Initialize creates the global bus, or returns the existing one. A
// nil config uses DefaultConfig; a disabled config yields a nil bus,
// which publishers treat as "drop everything".
func Initialize(config *Config) (*EventBus, error) {
	globalMutex.Lock()
	defer globalMutex.Unlock()

	if globalEventBus != nil {
		return globalEventBus, nil
	}
	if config == nil {
		config = DefaultConfig()
	}
	if !config.Enabled {
		return nil, nil
	}

	workers := config.Workers
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &EventBus{
		eventChan: make(chan Event, config.BufferSize),
		workers:   workers,
		ctx:       ctx,
		cancel:    cancel,
		logger:    getLogger(),
	}
	b.initialized.Store(true)
	globalEventBus = b

	b.logger.Info("event bus initialized",
		"buffer_size", config.BufferSize,
		"workers", workers,
	)
	return b, nil
}

func getLogger() *slog.Logger {
	if logger := logging.ForService("events"); logger != nil {
		return logger
	}
	return slog.Default().With("service", "events")
}

// GetEventBus returns the global bus, nil when never initialized.
func GetEventBus() *EventBus {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	return globalEventBus
}

// IsInitialized reports whether the global bus exists.
func IsInitialized() bool {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	return globalEventBus != nil && globalEventBus.initialized.Load()
}

// ResetForTesting shuts down and clears the global instance. Tests only.
func ResetForTesting() {
	globalMutex.Lock()
	b := globalEventBus
	globalEventBus = nil
	globalMutex.Unlock()

	if b != nil {
		_ = b.Shutdown(time.Second)
	}
}

// RegisterConsumer adds a consumer. Names must be unique; the first
// registration starts the workers.
func (b *EventBus) RegisterConsumer(consumer EventConsumer) error {
	if b == nil {
		return fmt.Errorf("event bus not initialized")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.consumers {
		if existing.Name() == consumer.Name() {
			return fmt.Errorf("consumer %s already registered", consumer.Name())
		}
	}
	b.consumers = append(b.consumers, consumer)
	b.consumerCount.Store(int32(len(b.consumers)))

	b.logger.Info("registered event consumer", "consumer", consumer.Name())

	if len(b.consumers) == 1 && !b.running.Load() {
		b.startWorkers()
	}
	return nil
}

// TryPublish offers an event without blocking and reports whether the
// bus accepted it. Intended for droppable traffic such as error events.
func (b *EventBus) TryPublish(event Event) bool {
	if b == nil || !b.initialized.Load() || !b.running.Load() {
		return false
	}
	if b.consumerCount.Load() == 0 {
		b.counters.fastPathHits.Add(1)
		return false
	}

	select {
	case b.eventChan <- event:
		b.counters.received.Add(1)
		return true
	default:
		b.counters.dropped.Add(1)
		b.logger.Debug("event dropped due to full buffer")
		return false
	}
}

// Publish delivers an event, blocking until the bus accepts it or the
// context is done. Account events go through here: dropping one would
// desynchronize provider state from the account session.
func (b *EventBus) Publish(ctx context.Context, event Event) error {
	if b == nil || !b.initialized.Load() || !b.running.Load() {
		return fmt.Errorf("event bus not running")
	}

	select {
	case b.eventChan <- event:
		b.counters.received.Add(1)
		return nil
	case <-ctx.Done():
		b.counters.dropped.Add(1)
		return ctx.Err()
	case <-b.ctx.Done():
		return fmt.Errorf("event bus shutting down")
	}
}

func (b *EventBus) startWorkers() {
	if b.running.Swap(true) {
		return
	}
	b.logger.Info("starting event bus workers", "count", b.workers)
	for id := range b.workers {
		b.wg.Add(1)
		go b.runWorker(id)
	}
}

func (b *EventBus) runWorker(id int) {
	defer b.wg.Done()
	logger := b.logger.With("worker_id", id)

	for {
		select {
		case <-b.ctx.Done():
			return
		case event, ok := <-b.eventChan:
			if !ok {
				return
			}
			b.fanOut(event, logger)
		}
	}
}

// fanOut hands one event to every consumer, isolating panics so a bad
// consumer cannot take down the worker.
func (b *EventBus) fanOut(event Event, logger *slog.Logger) {
	b.mu.Lock()
	consumers := make([]EventConsumer, len(b.consumers))
	copy(consumers, b.consumers)
	b.mu.Unlock()

	for _, consumer := range consumers {
		b.consume(consumer, event, logger)
	}
}

func (b *EventBus) consume(consumer EventConsumer, event Event, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			b.counters.consumerErrs.Add(1)
			logger.Error("consumer panicked",
				"consumer", consumer.Name(),
				"panic", r,
			)
		}
	}()

	if err := b.route(consumer, event); err != nil {
		b.counters.consumerErrs.Add(1)
		logger.Error("consumer error",
			"consumer", consumer.Name(),
			"error", err,
		)
		return
	}
	b.counters.processed.Add(1)
}

// route prefers the consumer's typed account entry point, falling back
// to the generic ProcessEvent.
func (b *EventBus) route(consumer EventConsumer, event Event) error {
	if accountEvent, ok := event.(AccountEvent); ok {
		if ac, ok := consumer.(AccountEventConsumer); ok {
			return ac.ProcessAccountEvent(accountEvent)
		}
	}
	return consumer.ProcessEvent(event)
}

// Shutdown stops intake, cancels the workers and waits up to timeout
// for them to drain.
func (b *EventBus) Shutdown(timeout time.Duration) error {
	if b == nil || !b.initialized.Load() {
		return nil
	}

	b.logger.Info("shutting down event bus", "timeout", timeout)
	b.running.Store(false)
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		b.logger.Info("event bus shutdown complete")
		return nil
	case <-time.After(timeout):
		b.logger.Warn("event bus shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// GetStats returns a snapshot of the bus counters.
func (b *EventBus) GetStats() EventBusStats {
	if b == nil {
		return EventBusStats{}
	}
	return EventBusStats{
		EventsReceived:  b.counters.received.Load(),
		EventsProcessed: b.counters.processed.Load(),
		EventsDropped:   b.counters.dropped.Load(),
		ConsumerErrors:  b.counters.consumerErrs.Load(),
		FastPathHits:    b.counters.fastPathHits.Load(),
	}
}

package telemetry

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tkoskin/headsup/internal/events"
)

// Circuit breaker states.
const (
	breakerClosed   = "closed"
	breakerOpen     = "open"
	breakerHalfOpen = "half-open"
)

// WorkerConfig holds tuning for the telemetry consumer.
type WorkerConfig struct {
	// Circuit breaker settings.
	FailureThreshold  int
	RecoveryTimeout   time.Duration
	HalfOpenMaxEvents int

	// Sliding-window rate limit across all error events.
	RateLimitWindow    time.Duration
	RateLimitMaxEvents int
}

// DefaultWorkerConfig returns the production defaults.
func DefaultWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		FailureThreshold:   10,
		RecoveryTimeout:    60 * time.Second,
		HalfOpenMaxEvents:  5,
		RateLimitWindow:    time.Minute,
		RateLimitMaxEvents: 100,
	}
}

// Worker consumes error events from the bus and forwards them to
// Sentry. A circuit breaker and a rate limit sit in front of the
// reporting call so an error storm cannot flood the backend or loop
// back into the error pipeline.
type Worker struct {
	enabled bool
	breaker *circuitBreaker
	limiter *slidingWindow

	eventsProcessed atomic.Uint64
	eventsDropped   atomic.Uint64
	eventsFailed    atomic.Uint64

	// report is swappable in tests.
	report func(events.ErrorEvent) error

	logger *slog.Logger
}

// NewWorker creates a telemetry worker. A nil config selects the
// defaults.
func NewWorker(enabled bool, config *WorkerConfig) (*Worker, error) {
	if config == nil {
		config = DefaultWorkerConfig()
	}

	return &Worker{
		enabled: enabled,
		breaker: newCircuitBreaker(config),
		limiter: &slidingWindow{
			window:    config.RateLimitWindow,
			maxEvents: config.RateLimitMaxEvents,
			now:       time.Now,
		},
		report: captureErrorEvent,
		logger: getLogger(),
	}, nil
}

// Name returns the consumer name used by the event bus.
func (w *Worker) Name() string {
	return "telemetry-worker"
}

// ProcessEvent forwards a single error event to the reporting backend.
// Non-error events and gate rejections are not errors from the bus's
// point of view.
func (w *Worker) ProcessEvent(event events.Event) error {
	errorEvent, ok := event.(events.ErrorEvent)
	if !ok {
		return nil
	}
	if !w.enabled {
		return nil
	}

	if !w.breaker.Allow() {
		w.eventsDropped.Add(1)
		w.logger.Debug("circuit breaker open, dropping error event",
			"component", errorEvent.GetComponent(),
			"category", errorEvent.GetCategory(),
		)
		return nil
	}
	if !w.limiter.Allow() {
		w.eventsDropped.Add(1)
		w.logger.Debug("rate limit exceeded, dropping error event",
			"component", errorEvent.GetComponent(),
			"category", errorEvent.GetCategory(),
		)
		return nil
	}
	if errorEvent.IsReported() {
		return nil
	}

	if err := w.report(errorEvent); err != nil {
		w.eventsFailed.Add(1)
		w.breaker.RecordFailure()
		w.logger.Error("failed to report error event",
			"error", err,
			"component", errorEvent.GetComponent(),
			"category", errorEvent.GetCategory(),
		)
		return err
	}

	w.eventsProcessed.Add(1)
	w.breaker.RecordSuccess()
	errorEvent.MarkReported()
	return nil
}

// Stats returns a snapshot of the worker counters.
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		EventsProcessed: w.eventsProcessed.Load(),
		EventsDropped:   w.eventsDropped.Load(),
		EventsFailed:    w.eventsFailed.Load(),
		CircuitState:    w.breaker.State(),
	}
}

// WorkerStats contains runtime counters for monitoring.
type WorkerStats struct {
	EventsProcessed uint64
	EventsDropped   uint64
	EventsFailed    uint64
	CircuitState    string
}

// captureErrorEvent reports a bus error event to Sentry with component
// and category tags. Message text is scrubbed before it leaves.
func captureErrorEvent(event events.ErrorEvent) error {
	err := event.GetError()
	if err == nil {
		return nil
	}

	component := event.GetComponent()
	category := event.GetCategory()
	scrubbed := ScrubMessage(event.GetMessage())
	title := errorTitle(scrubbed, component)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetTag("category", category)
		scope.SetFingerprint([]string{title, component, category})

		sentryEvent := sentry.NewEvent()
		sentryEvent.Level = sentry.LevelError
		sentryEvent.Message = scrubbed
		sentryEvent.Extra = map[string]any{
			"error_type": fmt.Sprintf("%T", err),
			"component":  component,
		}
		sentryEvent.Exception = []sentry.Exception{{
			Type:  title,
			Value: scrubbed,
		}}
		sentry.CaptureEvent(sentryEvent)
	})
	return nil
}

// circuitBreaker trips after repeated reporting failures and recovers
// through a half-open probe phase.
type circuitBreaker struct {
	mu          sync.Mutex
	state       string
	failures    int
	lastFailure time.Time
	successes   int
	config      *WorkerConfig
}

func newCircuitBreaker(config *WorkerConfig) *circuitBreaker {
	return &circuitBreaker{state: breakerClosed, config: config}
}

// Allow reports whether an operation may proceed, transitioning from
// open to half-open once the recovery timeout has passed.
func (cb *circuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerOpen:
		if time.Since(cb.lastFailure) > cb.config.RecoveryTimeout {
			cb.state = breakerHalfOpen
			cb.successes = 0
			return true
		}
		return false
	case breakerHalfOpen:
		return cb.successes < cb.config.HalfOpenMaxEvents
	default:
		return true
	}
}

func (cb *circuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == breakerHalfOpen {
		cb.successes++
		if cb.successes >= cb.config.HalfOpenMaxEvents {
			cb.state = breakerClosed
		}
	}
}

func (cb *circuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	if cb.state == breakerHalfOpen || cb.failures >= cb.config.FailureThreshold {
		cb.state = breakerOpen
	}
}

func (cb *circuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// slidingWindow counts events inside a rolling window. The clock is
// injectable so tests can drive it.
type slidingWindow struct {
	mu        sync.Mutex
	window    time.Duration
	maxEvents int
	times     []time.Time
	now       func() time.Time
}

// Allow admits the event if the window has room, recording it.
func (sw *slidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	cutoff := now.Add(-sw.window)

	kept := sw.times[:0]
	for _, t := range sw.times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	sw.times = kept

	if len(sw.times) >= sw.maxEvents {
		return false
	}
	sw.times = append(sw.times, now)
	return true
}

package alertcenter

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tkoskin/headsup/internal/conf"
	"github.com/tkoskin/headsup/internal/errors"
	"github.com/tkoskin/headsup/internal/notification"
	"github.com/tkoskin/headsup/internal/observability/metrics"
)

const (
	defaultDeliveryRate    = 1.0
	defaultDeliveryBurst   = 5
	defaultDeliveryTimeout = 30 * time.Second
	// shutdownTimeout bounds how long Stop waits for in-flight deliveries.
	shutdownTimeout = 5 * time.Second
)

// Target is one push destination for fired alerts. Implementations
// must be safe for concurrent use.
type Target interface {
	Name() string
	Send(ctx context.Context, alert notification.Alert) error
}

// Dispatcher mirrors fired alerts to all configured targets. Targets
// run concurrently behind a shared rate limiter; failures are logged
// per target and never propagate back to the alert store.
type Dispatcher struct {
	targets []Target
	limiter *rate.Limiter
	timeout time.Duration
	metrics *metrics.DeliveryMetrics
	logger  *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	wg      sync.WaitGroup
	stopped bool
}

// NewDispatcher builds a dispatcher from the delivery settings. Targets
// that fail to construct are logged and skipped so one bad destination
// does not take the rest down. The source names this node in outgoing
// payloads and message titles.
func NewDispatcher(settings *conf.DeliverySettings, source string, m *metrics.DeliveryMetrics) (*Dispatcher, error) {
	if settings == nil {
		return nil, errors.Newf("delivery settings are required").
			Component("alertcenter").
			Category(errors.CategoryValidation).
			Build()
	}

	rps := settings.RateLimit
	if rps <= 0 {
		rps = defaultDeliveryRate
	}
	burst := settings.Burst
	if burst < 1 {
		burst = defaultDeliveryBurst
	}
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		timeout: timeout,
		metrics: m,
		logger:  getFileLogger(false),
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := range settings.Targets {
		tc := &settings.Targets[i]
		if !tc.Enabled {
			d.logger.Info("delivery target disabled", "name", tc.Name, "type", tc.Type)
			continue
		}
		target, err := buildTarget(tc, source, timeout)
		if err != nil {
			d.logger.Error("delivery target config invalid",
				"name", tc.Name,
				"type", tc.Type,
				"error", err)
			continue
		}
		d.targets = append(d.targets, target)
	}

	if len(d.targets) == 0 {
		d.logger.Info("delivery enabled but no usable targets configured")
	} else {
		d.logger.Info("delivery dispatcher ready",
			"targets", len(d.targets),
			"rate_limit", rps,
			"burst", burst)
	}
	return d, nil
}

// buildTarget constructs a target from its configuration.
func buildTarget(tc *conf.DeliveryTarget, source string, timeout time.Duration) (Target, error) {
	name := tc.Name
	if name == "" {
		name = tc.Type
	}
	switch tc.Type {
	case "shoutrrr":
		return NewShoutrrrTarget(name, source, tc.URLs, timeout)
	case "webhook":
		return NewWebhookTarget(name, source, tc.URLs, tc.Token, timeout)
	default:
		return nil, errors.Newf("unknown delivery target type: %s", tc.Type).
			Component("alertcenter").
			Category(errors.CategoryValidation).
			Context("target", name).
			Build()
	}
}

// TargetCount reports how many targets survived construction.
func (d *Dispatcher) TargetCount() int { return len(d.targets) }

// Dispatch queues a fired alert for delivery and returns immediately.
// Suitable as the center's OnFired hook.
func (d *Dispatcher) Dispatch(alert notification.Alert) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		for _, target := range d.targets {
			d.recordSkipped(target.Name(), "shutdown")
		}
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.deliver(alert)
	}()
}

// deliver fans one alert out to every target concurrently.
func (d *Dispatcher) deliver(alert notification.Alert) {
	g, ctx := errgroup.WithContext(d.ctx)
	for _, target := range d.targets {
		g.Go(func() error {
			d.sendToTarget(ctx, target, alert)
			return nil
		})
	}
	_ = g.Wait()
}

// sendToTarget pushes one alert to one target behind the shared rate
// limiter and per-target timeout.
func (d *Dispatcher) sendToTarget(ctx context.Context, target Target, alert notification.Alert) {
	name := target.Name()

	waitStart := time.Now()
	if err := d.limiter.Wait(ctx); err != nil {
		d.recordSkipped(name, "shutdown")
		return
	}
	if time.Since(waitStart) > time.Millisecond {
		d.recordRateLimitWait(name)
	}

	var timer *metrics.DeliveryTimer
	if d.metrics != nil {
		timer = d.metrics.StartDeliveryTimer()
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	err := target.Send(sendCtx, alert)
	cancel()

	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
		category := "provider_error"
		if errors.Is(err, context.DeadlineExceeded) {
			category = "timeout"
		}
		if d.metrics != nil {
			d.metrics.RecordDeliveryError(name, category)
		}
		d.logger.Error("delivery failed",
			"target", name,
			"key", alert.Key,
			"error", err)
	} else {
		d.logger.Info("alert delivered", "target", name, "key", alert.Key)
	}
	if timer != nil {
		timer.ObserveDuration(name, status)
	}
}

// Stop cancels in-flight deliveries and waits briefly for them to
// finish. Dispatch calls afterwards are counted as skipped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		d.logger.Warn("delivery dispatcher stop timed out")
	}

	for _, target := range d.targets {
		if closer, ok := target.(io.Closer); ok {
			_ = closer.Close()
		}
	}
}

func (d *Dispatcher) recordSkipped(target, reason string) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordSkipped(target, reason)
}

func (d *Dispatcher) recordRateLimitWait(target string) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordRateLimitWait(target)
}

package notification

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/tkoskin/headsup/internal/errors"
	"github.com/tkoskin/headsup/internal/observability/metrics"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Center is the alert store all scheduling writes go to. Required.
	Center AlertCenter

	// DedupWindow suppresses identical alert requests scheduled within
	// this window. Zero disables deduplication.
	DedupWindow time.Duration

	// StoreTimeout bounds one batch of store writes. Zero selects
	// DefaultStoreTimeout.
	StoreTimeout time.Duration

	// MaxBanners caps the published banner list. Zero means unlimited.
	MaxBanners int

	// Debug enables verbose logging.
	Debug bool

	// Metrics receives manager counters when set.
	Metrics *metrics.NotificationMetrics
}

// registryEntry pairs a provider with its capabilities. Capabilities
// are detected once at registration; a provider cannot gain or lose
// them afterwards.
type registryEntry struct {
	provider Provider
	alerts   AlertProvider
	banners  BannerProvider
}

// subscriber wraps a banner channel with its cancellation context.
type subscriber struct {
	ch     chan []Banner
	ctx    context.Context
	cancel context.CancelFunc
}

// Manager coordinates providers against the alert store. Provider
// queries and banner publication happen synchronously on the calling
// goroutine; store writes are handed to a single worker so that clears
// always land before adds and batches from successive passes never
// interleave.
type Manager struct {
	center AlertCenter

	mu         sync.Mutex
	registry   []*registryEntry
	byKey      map[string]*registryEntry
	banners    []Banner
	lastBanner map[string]Banner

	subscribersMu sync.Mutex
	subscribers   []*subscriber

	ops      chan storePlan
	workerWG sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc

	dedup        *gocache.Cache
	dedupWindow  time.Duration
	storeTimeout time.Duration
	maxBanners   int
	debug        bool

	metrics *metrics.NotificationMetrics
	logger  *slog.Logger
}

// NewManager wires a manager against an alert store. The returned
// manager owns a store worker goroutine; call Stop to release it.
func NewManager(config *ManagerConfig) (*Manager, error) {
	if config == nil || config.Center == nil {
		return nil, errors.Newf("notification: alert center is required").
			Component("notification").
			Category(errors.CategoryValidation).
			Build()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		center:       config.Center,
		byKey:        make(map[string]*registryEntry),
		lastBanner:   make(map[string]Banner),
		ops:          make(chan storePlan, defaultPlanBuffer),
		ctx:          ctx,
		cancel:       cancel,
		dedupWindow:  config.DedupWindow,
		storeTimeout: config.StoreTimeout,
		maxBanners:   config.MaxBanners,
		debug:        config.Debug,
		metrics:      config.Metrics,
		logger:       getFileLogger(config.Debug),
	}
	if m.storeTimeout <= 0 {
		m.storeTimeout = DefaultStoreTimeout
	}
	if m.dedupWindow > 0 {
		// No cleanup interval: entries expire lazily on read, which
		// keeps a janitor goroutine out of the picture.
		m.dedup = gocache.New(m.dedupWindow, 0)
	}

	m.workerWG.Add(1)
	go m.storeWorker()

	return m, nil
}

// Register adds a provider to the pass order. Providers are queried in
// registration order on every full pass.
func (m *Manager) Register(p Provider) error {
	if p == nil {
		return errors.Newf("notification: provider must not be nil").
			Component("notification").
			Category(errors.CategoryValidation).
			Build()
	}
	key := p.Key()
	if key == "" {
		return errors.Newf("notification: provider key must not be empty").
			Component("notification").
			Category(errors.CategoryValidation).
			Build()
	}

	m.mu.Lock()
	if _, exists := m.byKey[key]; exists {
		m.mu.Unlock()
		return errors.Newf("notification: provider %q already registered", key).
			Component("notification").
			Category(errors.CategoryConflict).
			Build()
	}
	entry := &registryEntry{provider: p}
	entry.alerts, _ = p.(AlertProvider)
	entry.banners, _ = p.(BannerProvider)
	m.registry = append(m.registry, entry)
	m.byKey[key] = entry
	m.mu.Unlock()

	// The callback carries the key, not the provider, so invalidation
	// stays valid however the provider mutates internally.
	if binder, ok := p.(InvalidationBinder); ok {
		binder.BindInvalidation(func() { m.Invalidate(key) })
	}

	m.logger.Info("provider registered",
		"key", key,
		"alerts", entry.alerts != nil,
		"banners", entry.banners != nil)
	return nil
}

// Banners returns a snapshot of the currently published banner list.
func (m *Manager) Banners() []Banner {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.banners)
}

// Subscribe returns a channel receiving every published banner list and
// a context that ends when the subscription is cancelled. Each delivery
// is a full snapshot, so a skipped update is corrected by the next one.
func (m *Manager) Subscribe() (<-chan []Banner, context.Context) {
	m.subscribersMu.Lock()
	defer m.subscribersMu.Unlock()

	ctx, cancel := context.WithCancel(m.ctx)
	sub := &subscriber{
		ch:     make(chan []Banner, DefaultChannelBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
	m.subscribers = append(m.subscribers, sub)

	if m.debug {
		m.logger.Debug("new subscriber added",
			"total_subscribers", len(m.subscribers))
	}

	return sub.ch, ctx
}

// Unsubscribe removes a banner channel. It cancels the subscriber's
// context but does not close the channel; the subscriber stops reading
// when its context ends.
func (m *Manager) Unsubscribe(ch <-chan []Banner) {
	m.subscribersMu.Lock()
	defer m.subscribersMu.Unlock()

	for i, sub := range m.subscribers {
		if sub.ch == ch {
			sub.cancel()
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)

			if m.debug {
				m.logger.Debug("subscriber removed",
					"remaining_subscribers", len(m.subscribers))
			}

			break
		}
	}
}

// publish pushes a banner list snapshot to every active subscriber.
// Subscribers with full channels miss this update and resynchronize on
// the next one.
func (m *Manager) publish(banners []Banner) {
	m.subscribersMu.Lock()
	defer m.subscribersMu.Unlock()

	active := make([]*subscriber, 0, len(m.subscribers))
	for _, sub := range m.subscribers {
		select {
		case <-sub.ctx.Done():
			continue
		default:
		}
		active = append(active, sub)

		snapshot := slices.Clone(banners)
		select {
		case sub.ch <- snapshot:
		default:
			if m.debug {
				m.logger.Debug("banner channel full, skipping subscriber")
			}
		}
	}
	m.subscribers = active

	if m.metrics != nil {
		m.metrics.SetActiveBanners(len(banners))
		m.metrics.SetSubscriberCount(len(active))
		m.metrics.RecordBannerPublish()
	}
}

// Stop cancels the store worker and waits briefly for an in-flight
// batch to finish. Queued plans that have not started are dropped.
func (m *Manager) Stop() {
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		m.logger.Warn("store worker did not stop in time")
	}
}

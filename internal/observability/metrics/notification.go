// Package metrics provides custom Prometheus metrics for notification operations.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetrics contains all Prometheus metrics related to the
// notification manager's reconcile and invalidation passes.
type NotificationMetrics struct {
	// Pass metrics
	ReconcilesTotal    prometheus.Counter       // Total full reconcile passes
	ReconcileDuration  prometheus.Histogram     // Time spent per reconcile pass
	InvalidationsTotal *prometheus.CounterVec   // Invalidations by provider key

	// Alert plan metrics
	AlertRequestsTotal *prometheus.CounterVec // Alert requests by provider key and status
	AlertClearsTotal   *prometheus.CounterVec // Cleared alert keys by scope

	// Authorization metrics
	AuthorizationState         prometheus.Gauge       // Current authorization status as reported by the store
	AuthorizationRequestsTotal *prometheus.CounterVec // Permission prompts by outcome

	// Banner metrics
	ActiveBanners        prometheus.Gauge   // Banners in the currently published list
	BannerPublishesTotal prometheus.Counter // Published banner list updates
	SubscriberCount      prometheus.Gauge   // Active banner subscribers

	registry *prometheus.Registry
}

// NewNotificationMetrics creates a new instance of NotificationMetrics.
// It requires a Prometheus registry to register the metrics.
// It returns an error if metric registration fails.
func NewNotificationMetrics(registry *prometheus.Registry) (*NotificationMetrics, error) {
	m := &NotificationMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize notification metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register notification metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for NotificationMetrics.
func (m *NotificationMetrics) initMetrics() error {
	m.ReconcilesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_reconciles_total",
			Help: "Total number of full reconcile passes over all providers",
		},
	)

	m.ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notification_reconcile_duration_seconds",
			Help:    "Time taken to query all providers and publish banner state",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1.0}, // 100µs to 1s
		},
	)

	m.InvalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_invalidations_total",
			Help: "Total number of single-provider invalidations by provider key",
		},
		[]string{"provider"},
	)

	m.AlertRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_alert_requests_total",
			Help: "Total number of alert scheduling requests by provider key and status",
		},
		[]string{"provider", "status"}, // status: scheduled, duplicate, unauthorized, error
	)

	m.AlertClearsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_alert_clears_total",
			Help: "Total number of alert keys cleared from the store by scope",
		},
		[]string{"scope"}, // scope: pending, delivered
	)

	m.AuthorizationState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_authorization_state",
			Help: "Alert store authorization status (0=not_determined, 1=denied, 2=authorized, 3=provisional, 4=ephemeral)",
		},
	)

	m.AuthorizationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_authorization_requests_total",
			Help: "Total number of authorization prompts by outcome",
		},
		[]string{"outcome"}, // outcome: granted, denied, error
	)

	m.ActiveBanners = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_active_banners",
			Help: "Number of banners in the currently published list",
		},
	)

	m.BannerPublishesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_banner_publishes_total",
			Help: "Total number of banner list updates pushed to subscribers",
		},
	)

	m.SubscriberCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_subscriber_count",
			Help: "Number of active banner list subscribers",
		},
	)

	return nil
}

// RecordReconcile records a completed reconcile pass.
func (m *NotificationMetrics) RecordReconcile(duration time.Duration) {
	m.ReconcilesTotal.Inc()
	m.ReconcileDuration.Observe(duration.Seconds())
}

// RecordInvalidation records a single-provider invalidation.
func (m *NotificationMetrics) RecordInvalidation(provider string) {
	m.InvalidationsTotal.WithLabelValues(provider).Inc()
}

// RecordAlertRequest records the outcome of one alert scheduling request.
func (m *NotificationMetrics) RecordAlertRequest(provider, status string) {
	m.AlertRequestsTotal.WithLabelValues(provider, status).Inc()
}

// AddAlertClears records cleared alert keys for a scope.
// scope: pending, delivered
func (m *NotificationMetrics) AddAlertClears(scope string, count int) {
	if count <= 0 {
		return
	}
	m.AlertClearsTotal.WithLabelValues(scope).Add(float64(count))
}

// SetAuthorizationState updates the last observed authorization status.
func (m *NotificationMetrics) SetAuthorizationState(state int) {
	m.AuthorizationState.Set(float64(state))
}

// RecordAuthorizationRequest records a permission prompt outcome.
// outcome: granted, denied, error
func (m *NotificationMetrics) RecordAuthorizationRequest(outcome string) {
	m.AuthorizationRequestsTotal.WithLabelValues(outcome).Inc()
}

// SetActiveBanners sets the published banner count gauge.
func (m *NotificationMetrics) SetActiveBanners(count int) {
	m.ActiveBanners.Set(float64(count))
}

// RecordBannerPublish increments the banner publish counter.
func (m *NotificationMetrics) RecordBannerPublish() {
	m.BannerPublishesTotal.Inc()
}

// SetSubscriberCount sets the active subscriber gauge.
func (m *NotificationMetrics) SetSubscriberCount(count int) {
	m.SubscriberCount.Set(float64(count))
}

// Collect implements the prometheus.Collector interface.
func (m *NotificationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ReconcilesTotal.Collect(ch)
	m.ReconcileDuration.Collect(ch)
	m.InvalidationsTotal.Collect(ch)
	m.AlertRequestsTotal.Collect(ch)
	m.AlertClearsTotal.Collect(ch)
	m.AuthorizationState.Collect(ch)
	m.AuthorizationRequestsTotal.Collect(ch)
	m.ActiveBanners.Collect(ch)
	m.BannerPublishesTotal.Collect(ch)
	m.SubscriberCount.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *NotificationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ReconcilesTotal.Describe(ch)
	m.ReconcileDuration.Describe(ch)
	m.InvalidationsTotal.Describe(ch)
	m.AlertRequestsTotal.Describe(ch)
	m.AlertClearsTotal.Describe(ch)
	m.AuthorizationState.Describe(ch)
	m.AuthorizationRequestsTotal.Describe(ch)
	m.ActiveBanners.Describe(ch)
	m.BannerPublishesTotal.Describe(ch)
	m.SubscriberCount.Describe(ch)
}

// Package metrics provides custom Prometheus metrics for delivery target operations.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DeliveryMetrics contains all Prometheus metrics related to external
// delivery targets that mirror fired alerts to messaging services.
type DeliveryMetrics struct {
	// Target delivery metrics
	TargetDeliveriesTotal  *prometheus.CounterVec   // Total deliveries by target and status
	TargetDeliveryDuration *prometheus.HistogramVec // Latency by target
	TargetDeliveryErrors   *prometheus.CounterVec   // Errors by target and error category

	// Target health metrics
	TargetLastSuccessTime *prometheus.GaugeVec // Timestamp of last successful delivery by target

	// Throttling metrics
	RateLimitWaitsTotal *prometheus.CounterVec // Deliveries that waited on the rate limiter by target
	SkippedTotal        *prometheus.CounterVec // Deliveries skipped by target and reason

	registry *prometheus.Registry
}

// NewDeliveryMetrics creates a new instance of DeliveryMetrics.
// It requires a Prometheus registry to register the metrics.
// It returns an error if metric registration fails.
func NewDeliveryMetrics(registry *prometheus.Registry) (*DeliveryMetrics, error) {
	m := &DeliveryMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize delivery metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register delivery metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for DeliveryMetrics.
func (m *DeliveryMetrics) initMetrics() error {
	m.TargetDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_target_deliveries_total",
			Help: "Total number of delivery attempts by target and status",
		},
		[]string{"target", "status"}, // status: success, error, timeout
	)

	m.TargetDeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "delivery_target_duration_seconds",
			Help:    "Time taken for delivery by target",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0}, // 10ms to 30s
		},
		[]string{"target"},
	)

	m.TargetDeliveryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_target_errors_total",
			Help: "Total number of delivery errors by target and error category",
		},
		[]string{"target", "error_category"}, // error_category: network, timeout, validation, provider_error
	)

	m.TargetLastSuccessTime = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "delivery_target_last_success_timestamp_seconds",
			Help: "Timestamp of last successful delivery by target",
		},
		[]string{"target"},
	)

	m.RateLimitWaitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_rate_limit_waits_total",
			Help: "Total number of deliveries that waited on the rate limiter by target",
		},
		[]string{"target"},
	)

	m.SkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_skipped_total",
			Help: "Total number of deliveries skipped by target and reason",
		},
		[]string{"target", "reason"}, // reason: disabled, shutdown, invalid_config
	)

	return nil
}

// RecordDelivery records a delivery attempt.
func (m *DeliveryMetrics) RecordDelivery(target, status string, duration time.Duration) {
	m.TargetDeliveriesTotal.WithLabelValues(target, status).Inc()
	m.TargetDeliveryDuration.WithLabelValues(target).Observe(duration.Seconds())

	if status == StatusSuccess {
		m.TargetLastSuccessTime.WithLabelValues(target).SetToCurrentTime()
	}
}

// RecordDeliveryError records a delivery error.
func (m *DeliveryMetrics) RecordDeliveryError(target, errorCategory string) {
	m.TargetDeliveryErrors.WithLabelValues(target, errorCategory).Inc()
}

// RecordRateLimitWait records a delivery that waited on the rate limiter.
func (m *DeliveryMetrics) RecordRateLimitWait(target string) {
	m.RateLimitWaitsTotal.WithLabelValues(target).Inc()
}

// RecordSkipped records a skipped delivery.
func (m *DeliveryMetrics) RecordSkipped(target, reason string) {
	m.SkippedTotal.WithLabelValues(target, reason).Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *DeliveryMetrics) Collect(ch chan<- prometheus.Metric) {
	m.TargetDeliveriesTotal.Collect(ch)
	m.TargetDeliveryDuration.Collect(ch)
	m.TargetDeliveryErrors.Collect(ch)
	m.TargetLastSuccessTime.Collect(ch)
	m.RateLimitWaitsTotal.Collect(ch)
	m.SkippedTotal.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *DeliveryMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.TargetDeliveriesTotal.Describe(ch)
	m.TargetDeliveryDuration.Describe(ch)
	m.TargetDeliveryErrors.Describe(ch)
	m.TargetLastSuccessTime.Describe(ch)
	m.RateLimitWaitsTotal.Describe(ch)
	m.SkippedTotal.Describe(ch)
}

// StartDeliveryTimer creates a timer for measuring delivery duration.
func (m *DeliveryMetrics) StartDeliveryTimer() *DeliveryTimer {
	return &DeliveryTimer{
		startTime: time.Now(),
		metrics:   m,
	}
}

// DeliveryTimer is a helper struct for measuring delivery duration.
type DeliveryTimer struct {
	startTime time.Time
	metrics   *DeliveryMetrics
}

// ObserveDuration stops the timer and records the duration with delivery status.
func (dt *DeliveryTimer) ObserveDuration(target, status string) {
	duration := time.Since(dt.startTime)
	dt.metrics.RecordDelivery(target, status, duration)
}

// Package metrics provides custom Prometheus metrics for alert store operations.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AlertStoreMetrics contains all Prometheus metrics related to the
// in-memory alert store and its persistence journal.
type AlertStoreMetrics struct {
	// Store operation metrics
	OperationsTotal   *prometheus.CounterVec   // Store operations by op and status
	OperationDuration *prometheus.HistogramVec // Store operation latency by op

	// Store state metrics
	PendingAlerts   prometheus.Gauge   // Alerts scheduled but not fired
	DeliveredAlerts prometheus.Gauge   // Alerts retained after firing
	FiredTotal      prometheus.Counter // Alerts that reached their fire time

	// Journal metrics
	JournalOperationsTotal *prometheus.CounterVec // Journal writes and prunes by op and status
	JournalPrunedTotal     prometheus.Counter     // Journal rows removed by retention pruning

	registry *prometheus.Registry
}

// NewAlertStoreMetrics creates a new instance of AlertStoreMetrics.
// It requires a Prometheus registry to register the metrics.
// It returns an error if metric registration fails.
func NewAlertStoreMetrics(registry *prometheus.Registry) (*AlertStoreMetrics, error) {
	m := &AlertStoreMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize alert store metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register alert store metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for AlertStoreMetrics.
func (m *AlertStoreMetrics) initMetrics() error {
	m.OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertstore_operations_total",
			Help: "Total number of alert store operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	m.OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alertstore_operation_duration_seconds",
			Help:    "Time taken for alert store operations by operation",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0}, // 100µs to 5s
		},
		[]string{"operation"},
	)

	m.PendingAlerts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alertstore_pending_alerts",
			Help: "Number of alerts scheduled but not yet fired",
		},
	)

	m.DeliveredAlerts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alertstore_delivered_alerts",
			Help: "Number of fired alerts retained in delivery history",
		},
	)

	m.FiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alertstore_fired_total",
			Help: "Total number of alerts that reached their fire time",
		},
	)

	m.JournalOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertstore_journal_operations_total",
			Help: "Total number of journal operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	m.JournalPrunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alertstore_journal_pruned_total",
			Help: "Total number of journal rows removed by retention pruning",
		},
	)

	return nil
}

// RecordOperation records a store operation with its duration.
func (m *AlertStoreMetrics) RecordOperation(operation, status string, duration time.Duration) {
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetPendingCount sets the pending alert gauge.
func (m *AlertStoreMetrics) SetPendingCount(count int) {
	m.PendingAlerts.Set(float64(count))
}

// SetDeliveredCount sets the delivered alert gauge.
func (m *AlertStoreMetrics) SetDeliveredCount(count int) {
	m.DeliveredAlerts.Set(float64(count))
}

// RecordFire records an alert reaching its fire time.
func (m *AlertStoreMetrics) RecordFire() {
	m.FiredTotal.Inc()
}

// RecordJournalOperation records a journal write or prune outcome.
func (m *AlertStoreMetrics) RecordJournalOperation(operation, status string) {
	m.JournalOperationsTotal.WithLabelValues(operation, status).Inc()
}

// AddJournalPruned records rows removed by retention pruning.
func (m *AlertStoreMetrics) AddJournalPruned(count int64) {
	if count <= 0 {
		return
	}
	m.JournalPrunedTotal.Add(float64(count))
}

// Collect implements the prometheus.Collector interface.
func (m *AlertStoreMetrics) Collect(ch chan<- prometheus.Metric) {
	m.OperationsTotal.Collect(ch)
	m.OperationDuration.Collect(ch)
	m.PendingAlerts.Collect(ch)
	m.DeliveredAlerts.Collect(ch)
	m.FiredTotal.Collect(ch)
	m.JournalOperationsTotal.Collect(ch)
	m.JournalPrunedTotal.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *AlertStoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.OperationsTotal.Describe(ch)
	m.OperationDuration.Describe(ch)
	m.PendingAlerts.Describe(ch)
	m.DeliveredAlerts.Describe(ch)
	m.FiredTotal.Describe(ch)
	m.JournalOperationsTotal.Describe(ch)
	m.JournalPrunedTotal.Describe(ch)
}

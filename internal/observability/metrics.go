// Package observability provides Prometheus metrics functionality for monitoring
// the HeadsUp notification engine. Sentry-related error telemetry is handled in
// the telemetry package.
package observability

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tkoskin/headsup/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry     *prometheus.Registry
	Notification *metrics.NotificationMetrics
	AlertStore   *metrics.AlertStoreMetrics
	Delivery     *metrics.DeliveryMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric collectors.
// It returns an error if any metric collector fails to initialize.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	notificationMetrics, err := metrics.NewNotificationMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification metrics: %w", err)
	}

	alertStoreMetrics, err := metrics.NewAlertStoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert store metrics: %w", err)
	}

	deliveryMetrics, err := metrics.NewDeliveryMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery metrics: %w", err)
	}

	m := &Metrics{
		registry:     registry,
		Notification: notificationMetrics,
		AlertStore:   alertStoreMetrics,
		Delivery:     deliveryMetrics,
	}

	return m, nil
}

// Registry returns the Prometheus registry backing all collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

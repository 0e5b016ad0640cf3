// Package metrics collects Prometheus metrics for the dashboard server.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the dashboard's Prometheus collectors.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	fallbacksTotal  *prometheus.CounterVec
	refreshesTotal  *prometheus.CounterVec
	backendUp       prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *Metrics
)

// New creates the metrics collector. Collectors register globally, so the
// instance is shared process-wide.
func New() *Metrics {
	metricsOnce.Do(func() {
		metricsInst = &Metrics{
			requestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "airview_requests_total",
					Help: "Total number of dashboard API requests",
				},
				[]string{"route", "status"},
			),
			requestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "airview_request_duration_seconds",
					Help:    "Dashboard API request duration in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"route"},
			),
			fallbacksTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "airview_backend_fallback_total",
					Help: "Total number of reads served from synthetic fallback data",
				},
				[]string{"resource"},
			),
			refreshesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "airview_token_refresh_total",
					Help: "Total number of token refresh attempts by result",
				},
				[]string{"result"},
			),
			backendUp: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "airview_backend_up",
					Help: "Whether the last backend call succeeded (1) or fell back (0)",
				},
			),
		}
	})
	return metricsInst
}

// RecordRequest records one completed dashboard API request.
func (m *Metrics) RecordRequest(route, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(route, status).Inc()
	m.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordFallback records a read served from synthetic data.
func (m *Metrics) RecordFallback(resource string) {
	if m == nil {
		return
	}
	m.fallbacksTotal.WithLabelValues(resource).Inc()
	m.backendUp.Set(0)
}

// RecordBackendSuccess marks the backend as reachable.
func (m *Metrics) RecordBackendSuccess() {
	if m == nil {
		return
	}
	m.backendUp.Set(1)
}

// RecordRefresh records one token refresh attempt.
func (m *Metrics) RecordRefresh(result string) {
	if m == nil {
		return
	}
	m.refreshesTotal.WithLabelValues(result).Inc()
}

// Package metrics holds the Prometheus collectors of the scene server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomeRenewed  = "renewed"
	OutcomeFailed   = "failed"
)

// Metrics holds all application metrics.
type Metrics struct {
	SceneOperationsTotal   *prometheus.CounterVec
	SceneOperationDuration *prometheus.HistogramVec
	URLRenewalsTotal       *prometheus.CounterVec
	HTTPRequestsTotal      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "gamemaker"
	}
	factory := promauto.With(reg)

	return &Metrics{
		SceneOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scene",
				Name:      "operations_total",
				Help:      "Total number of scene operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		SceneOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "scene",
				Name:      "operation_duration_seconds",
				Help:      "Scene operation duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		URLRenewalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scene",
				Name:      "url_renewals_total",
				Help:      "Total number of expired sprite URLs seen on read, by outcome",
			},
			[]string{"outcome"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "status"},
		),
	}
}

// RecordOperation records the outcome and duration of a scene operation.
// It is safe to call on a nil *Metrics.
func (m *Metrics) RecordOperation(operation, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.SceneOperationsTotal.WithLabelValues(operation, outcome).Inc()
	m.SceneOperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// RecordRenewal counts one URL renewal attempt.
func (m *Metrics) RecordRenewal(outcome string) {
	if m == nil {
		return
	}
	m.URLRenewalsTotal.WithLabelValues(outcome).Inc()
}

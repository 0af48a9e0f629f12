// Package metrics registers the Prometheus instrumentation for the
// inventory engine. Scrape via the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	TransactionsRecorded *prometheus.CounterVec
	AdmissionsRejected   *prometheus.CounterVec
	Logins               prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		TransactionsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_transactions_recorded_total",
			Help: "Ledger entries recorded, by ledger kind and direction.",
		}, []string{"kind", "direction"}),
		AdmissionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_admissions_rejected_total",
			Help: "Outbound requests rejected for insufficient stock, by ledger kind.",
		}, []string{"kind"}),
		Logins: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inventory_logins_total",
			Help: "Successful logins.",
		}),
	}
}

// RecordTransaction increments the recorded-entries counter. Nil-safe so
// services can run without metrics in tests.
func (m *Metrics) RecordTransaction(kind, direction string) {
	if m == nil {
		return
	}
	m.TransactionsRecorded.WithLabelValues(kind, direction).Inc()
}

// RecordRejection increments the insufficient-stock rejection counter.
func (m *Metrics) RecordRejection(kind string) {
	if m == nil {
		return
	}
	m.AdmissionsRejected.WithLabelValues(kind).Inc()
}

// RecordLogin increments the login counter.
func (m *Metrics) RecordLogin() {
	if m == nil {
		return
	}
	m.Logins.Inc()
}

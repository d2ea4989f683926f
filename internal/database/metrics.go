package database

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "booklog"

// Metrics counts statements issued through BaseRepository, per store and kind.
type Metrics struct {
	statements *prometheus.CounterVec
	errors     *prometheus.CounterVec
}

var (
	defaultMetricsOnce sync.Once
	defaultMetricsInst *Metrics
)

// DefaultMetrics returns the process-wide metrics registered on the default registerer.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetricsInst = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetricsInst
}

// NewMetrics creates statement counters and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		statements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "db",
			Name:      "statements_total",
			Help:      "Total number of SQL statements issued, by store and kind.",
		}, []string{"store", "kind"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "db",
			Name:      "errors_total",
			Help:      "Total number of failed SQL statements, by store and kind.",
		}, []string{"store", "kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.statements, m.errors)
	}
	return m
}

func (m *Metrics) observe(store Store, kind string, err error) {
	if m == nil {
		return
	}
	m.statements.WithLabelValues(string(store), kind).Inc()
	if err != nil {
		m.errors.WithLabelValues(string(store), kind).Inc()
	}
}

// Statements returns the counter for one store and kind, for tests and diagnostics.
func (m *Metrics) Statements(store Store, kind string) prometheus.Counter {
	return m.statements.WithLabelValues(string(store), kind)
}

// Package metrics exports handle-lifecycle counters as Prometheus
// collectors. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Invalidation causes.
const (
	CauseDBClosed  = "db_closed"
	CauseCFDropped = "cf_dropped"
)

// Metrics is a set of collectors shared by any number of databases.
type Metrics struct {
	openDBs       prometheus.Gauge
	liveIterators prometheus.Gauge
	liveCFs       prometheus.Gauge
	invalidations *prometheus.CounterVec
	operations    *prometheus.CounterVec
	opLatency     *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg when reg is not nil.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		openDBs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rockguard_open_databases",
			Help: "Number of open database handles",
		}),
		liveIterators: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rockguard_live_iterators",
			Help: "Number of registered iterators",
		}),
		liveCFs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rockguard_live_column_families",
			Help: "Number of registered column family handles, default included",
		}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rockguard_handle_invalidations_total",
			Help: "Handles invalidated, by handle kind and cause",
		}, []string{"handle", "cause"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rockguard_operations_total",
			Help: "Database operations, by operation and outcome",
		}, []string{"op", "outcome"}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rockguard_operation_latency_seconds",
			Help:    "Latency of database operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.openDBs, m.liveIterators, m.liveCFs,
		m.invalidations, m.operations, m.opLatency,
	}
}

// DBOpened records a successful open.
func (m *Metrics) DBOpened() {
	if m != nil {
		m.openDBs.Inc()
	}
}

// DBClosed records a close.
func (m *Metrics) DBClosed() {
	if m != nil {
		m.openDBs.Dec()
	}
}

// IteratorRegistered records a new iterator.
func (m *Metrics) IteratorRegistered() {
	if m != nil {
		m.liveIterators.Inc()
	}
}

// IteratorsReleased records n iterators leaving the registry.
func (m *Metrics) IteratorsReleased(n int) {
	if m != nil && n > 0 {
		m.liveIterators.Sub(float64(n))
	}
}

// ColumnFamiliesRegistered records n column family handles entering the registry.
func (m *Metrics) ColumnFamiliesRegistered(n int) {
	if m != nil && n > 0 {
		m.liveCFs.Add(float64(n))
	}
}

// ColumnFamiliesReleased records n column family handles leaving the registry.
func (m *Metrics) ColumnFamiliesReleased(n int) {
	if m != nil && n > 0 {
		m.liveCFs.Sub(float64(n))
	}
}

// Invalidated records n handles of the given kind ("iterator" or
// "column_family") invalidated for cause.
func (m *Metrics) Invalidated(handle, cause string, n int) {
	if m != nil && n > 0 {
		m.invalidations.WithLabelValues(handle, cause).Add(float64(n))
	}
}

// Observe records one operation that started at start.
func (m *Metrics) Observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.opLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

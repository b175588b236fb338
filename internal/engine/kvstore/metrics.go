package kvstore

import (
	"github.com/prometheus/client_golang/prometheus"
)

// engineMetrics holds the engine's Prometheus collectors. Zero value
// reports nothing.
type engineMetrics struct {
	compactions prometheus.Counter
	liveKeys    prometheus.Gauge
	logSize     prometheus.Gauge
}

// RegisterMetrics registers the engine's metrics with the registry.
// Returns the store for chaining.
func (s *Store) RegisterMetrics(reg prometheus.Registerer) *Store {
	s.metrics.compactions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kvs",
		Subsystem: "engine",
		Name:      "compactions_total",
		Help:      "Number of log compactions since startup",
	})
	s.metrics.liveKeys = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "kvs",
		Subsystem: "engine",
		Name:      "indexed_keys",
		Help:      "Number of indexed keys, tombstones included",
	})
	s.metrics.logSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "kvs",
		Subsystem: "engine",
		Name:      "active_log_bytes",
		Help:      "Size of the active log file in bytes",
	})

	reg.MustRegister(s.metrics.compactions, s.metrics.liveKeys, s.metrics.logSize)

	s.metrics.liveKeys.Set(float64(s.index.Load().Count()))
	s.metrics.logSize.Set(float64(s.activeSize))
	return s
}

func (m *engineMetrics) observeAppend(keys int, logSize int64) {
	if m.liveKeys == nil {
		return
	}
	m.liveKeys.Set(float64(keys))
	m.logSize.Set(float64(logSize))
}

func (m *engineMetrics) observeCompaction(keys int, logSize int64) {
	if m.compactions == nil {
		return
	}
	m.compactions.Inc()
	m.liveKeys.Set(float64(keys))
	m.logSize.Set(float64(logSize))
}

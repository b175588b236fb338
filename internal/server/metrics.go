package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kvslab/kvs/internal/protocol"
)

// serverMetrics holds the server's Prometheus collectors. Zero value
// reports nothing.
type serverMetrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	decodeErrors prometheus.Counter
	rejected     prometheus.Counter
}

// RegisterMetrics registers the server's metrics with the registry.
// Returns the server for chaining.
func (s *Server) RegisterMetrics(reg prometheus.Registerer) *Server {
	s.metrics.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kvs",
		Subsystem: "server",
		Name:      "requests_total",
		Help:      "Requests served, by operation and outcome",
	}, []string{"op", "outcome"})
	s.metrics.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kvs",
		Subsystem: "server",
		Name:      "request_duration_seconds",
		Help:      "Request handling latency, by operation",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
	s.metrics.decodeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kvs",
		Subsystem: "server",
		Name:      "decode_errors_total",
		Help:      "Connections aborted by a framing or codec failure",
	})
	s.metrics.rejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kvs",
		Subsystem: "server",
		Name:      "rejected_connections_total",
		Help:      "Connections dropped by the per-IP rate limiter",
	})

	reg.MustRegister(s.metrics.requests, s.metrics.duration, s.metrics.decodeErrors, s.metrics.rejected)
	return s
}

func outcomeLabel(resp protocol.Response) string {
	switch resp.Kind {
	case protocol.RespSuccess, protocol.RespOk:
		return "ok"
	case protocol.RespKeyNotFound:
		return "key_not_found"
	default:
		return "error"
	}
}

func (m *serverMetrics) observeRequest(op protocol.Op, resp protocol.Response, elapsed time.Duration) {
	if m.requests == nil {
		return
	}
	m.requests.WithLabelValues(op.String(), outcomeLabel(resp)).Inc()
	m.duration.WithLabelValues(op.String()).Observe(elapsed.Seconds())
}

func (m *serverMetrics) observeDecodeError() {
	if m.decodeErrors == nil {
		return
	}
	m.decodeErrors.Inc()
}

func (m *serverMetrics) observeRejected() {
	if m.rejected == nil {
		return
	}
	m.rejected.Inc()
}

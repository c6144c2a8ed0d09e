package vfs

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks client-side Prometheus metrics, mirroring the shape of
// the server's arbiter.Metrics: a counter vector by operation and status,
// a latency histogram by operation, and a gauge for live session count.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	OpenSessions      prometheus.GaugeFunc
}

// NewMetrics registers client metrics with reg and wires OpenSessions to
// cst's live size.
func NewMetrics(reg prometheus.Registerer, cst *CST) *Metrics {
	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watfs_client_operations_total",
				Help: "Total client session operations by name and status",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "watfs_client_operation_duration_seconds",
				Help:    "Client session operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
	m.OpenSessions = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "watfs_client_open_sessions",
			Help: "Number of live Client Session Table entries",
		},
		func() float64 { return float64(cst.Len()) },
	)
	reg.MustRegister(m.OperationsTotal, m.OperationDuration, m.OpenSessions)
	return m
}

// Observe records one session operation's outcome.
func (m *Metrics) Observe(operation string, ok bool, seconds float64) {
	status := "ok"
	if !ok {
		status = "error"
	}
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(seconds)
}

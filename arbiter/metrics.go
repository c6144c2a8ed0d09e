package arbiter

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks server-side Prometheus metrics, grounded on the pack's
// adapter/nlm Metrics shape: a counter vector by procedure and status, a
// latency histogram by procedure, and a gauge for live SOMT state.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	OpenPaths       prometheus.GaugeFunc
}

// NewMetrics registers server metrics with reg (NewServer passes its own
// fresh prometheus.Registry) and wires OpenPaths to somt's live size.
func NewMetrics(reg prometheus.Registerer, somt *SOMT) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watfs_server_requests_total",
				Help: "Total server RPC requests by procedure and status",
			},
			[]string{"procedure", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "watfs_server_request_duration_seconds",
				Help:    "Server RPC request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"procedure"},
		),
	}
	m.OpenPaths = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "watfs_server_open_paths",
			Help: "Number of paths with a live SOMT record",
		},
		func() float64 { return float64(somt.Len()) },
	)
	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.OpenPaths)
	return m
}

// Observe records one RPC dispatch's outcome.
func (m *Metrics) Observe(procedure string, ok bool, seconds float64) {
	status := "ok"
	if !ok {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(procedure, status).Inc()
	m.RequestDuration.WithLabelValues(procedure).Observe(seconds)
}

package arbiter

import (
	"syscall"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsObserveIncrementsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	somt := NewSOMT()
	m := NewMetrics(reg, somt)

	m.Observe("getattr", true, 0.01)
	m.Observe("getattr", false, 0.02)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("getattr", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("getattr", "error")))
}

func TestMetricsOpenPathsTracksSOMT(t *testing.T) {
	reg := prometheus.NewRegistry()
	somt := NewSOMT()
	m := NewMetrics(reg, somt)

	assert.Equal(t, float64(0), testutil.ToFloat64(m.OpenPaths))
	require.NoError(t, somt.Acquire("/a", syscall.O_RDWR))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OpenPaths))
}

package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics_Counter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)

	m.IncCounter("netpulse_test_decisions_total", 1, Label{Key: "policy", Value: "greedy"})
	m.IncCounter("netpulse_test_decisions_total", 2, Label{Key: "policy", Value: "greedy"})

	count, err := testutil.GatherAndCount(reg, "netpulse_test_decisions_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestPrometheusMetrics_GaugeAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)

	m.SetGauge("netpulse_test_nodes", 3, Label{Key: "state", Value: "alive"})
	m.SetGauge("netpulse_test_nodes", 5, Label{Key: "state", Value: "alive"})
	m.ObserveHistogram("netpulse_test_bind_attempts", 2)

	count, err := testutil.GatherAndCount(reg, "netpulse_test_nodes", "netpulse_test_bind_attempts")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector_RegistersLazily(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheus(reg, "test")

	m.SetPullPendingMsgs("orders-consumer", 42)
	m.IncrementConsumerTerminated("orders-consumer", "consumer-deleted")

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/docspasta/internal/metrics"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.PagesCrawled.Inc()
	m.PagesFailed.WithLabelValues("http_error").Inc()
	m.PagesFailed.WithLabelValues("http_error").Inc()
	m.ActiveWorkers.Set(3)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.PagesCrawled))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.PagesFailed.WithLabelValues("http_error")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.ActiveWorkers))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewUnregisteredIsIsolated(t *testing.T) {
	first := metrics.NewUnregistered()
	second := metrics.NewUnregistered()

	first.URLsDiscovered.Add(5)

	assert.Equal(t, float64(5), testutil.ToFloat64(first.URLsDiscovered))
	assert.Equal(t, float64(0), testutil.ToFloat64(second.URLsDiscovered))
}

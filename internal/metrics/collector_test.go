package metrics_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ngone6325/gofac/v2/internal/metrics"
	"github.com/Ngone6325/gofac/v2/registration"
)

type service struct{}

var serviceType = reflect.TypeOf((*service)(nil))

func TestCollectorRecordsLifecycle(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	col, err := metrics.NewCollector("test", reg)
	require.NoError(t, err)

	fail := true
	single, err := registration.NewSingleton(serviceType, nil,
		registration.WithObserver(col),
		registration.WithFactory(func() (any, error) {
			if fail {
				return nil, errors.New("boom")
			}
			return &service{}, nil
		}),
	)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = single.GetService(ctx)
	require.Error(t, err)

	fail = false
	require.NoError(t, single.Reset(ctx))
	_, err = single.GetService(ctx)
	require.NoError(t, err)
	require.NoError(t, single.Reset(ctx))

	assertSeries(t, reg, "test_constructions_total")
	assert.Equal(t, 1.0, counterValue(t, reg, "test_constructions_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "test_construction_failures_total"))
	assertSeries(t, reg, "test_construction_failures_total")
	assertSeries(t, reg, "test_invalidations_total")
	assertSeries(t, reg, "test_construction_duration_seconds")
}

func assertSeries(t *testing.T, reg *prometheus.Registry, name string) {
	t.Helper()
	n, err := testutil.GatherAndCount(reg, name)
	require.NoError(t, err)
	assert.Equal(t, 1, n, name)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			require.Len(t, f.GetMetric(), 1)
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}

func TestCollectorDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := metrics.NewCollector("dup", reg)
	require.NoError(t, err)
	_, err = metrics.NewCollector("dup", reg)
	assert.Error(t, err)
}

func TestCollectorWithoutRegistry(t *testing.T) {
	t.Parallel()

	col, err := metrics.NewCollector("none", nil)
	require.NoError(t, err)
	col.Invalidated(serviceType, registration.LifetimeSingleton, registration.ReasonExpired)
}

package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ukydev/bus-tracker/internal/models"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] = dp.Value
				}
			}
		}
	}
	return out
}

func TestScheduler_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	degenerate := models.Route{ID: "r2", Active: true, Waypoints: []models.Waypoint{
		wp("X", 1, 1, 1, false),
		wp("Y", 2, 1, 1, false),
	}}
	s, _ := newTestScheduler(t, Dependencies{
		Sink:          &recordingSink{failFor: "b1"},
		MeterProvider: provider,
	})
	_, err := s.Bootstrap(context.Background(), &fakeDirectory{
		buses: []models.Bus{busAt("b1", "r1", 0, 0), busAt("b2", "r2", 1, 1)},
		routes: map[string]models.Route{
			"r1": lineRoute("r1", 3, 0.01),
			"r2": degenerate,
		},
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		s.Tick(context.Background(), t0)
	}
	waitEmissions(t, s)

	got := collect(t, reader)
	assert.Equal(t, int64(3), got["sim.ticks"])
	assert.Equal(t, int64(3), got["sim.buses.skipped"])
	assert.Equal(t, int64(3), got["sim.samples.emitted"])
	assert.Equal(t, int64(3), got["sim.emission.failures"])
	assert.Equal(t, int64(2), got["sim.buses.active"])
}

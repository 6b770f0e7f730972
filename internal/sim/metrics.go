package sim

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/ukydev/bus-tracker/internal/sim"

// metrics are no-ops unless a MeterProvider is supplied or installed globally.
type metrics struct {
	ticks       metric.Int64Counter
	samples     metric.Int64Counter
	skipped     metric.Int64Counter
	emitFailed  metric.Int64Counter
	activeBuses metric.Int64ObservableGauge
}

func newMetrics(provider metric.MeterProvider, active func() int) (*metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	m := provider.Meter(instrumentationName)
	out := &metrics{}

	var err error
	out.ticks, err = m.Int64Counter(
		"sim.ticks",
		metric.WithDescription("Simulation ticks executed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}

	out.samples, err = m.Int64Counter(
		"sim.samples.emitted",
		metric.WithDescription("Position samples produced"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating samples counter: %w", err)
	}

	out.skipped, err = m.Int64Counter(
		"sim.buses.skipped",
		metric.WithDescription("Buses skipped for one tick after a computation error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}

	out.emitFailed, err = m.Int64Counter(
		"sim.emission.failures",
		metric.WithDescription("Failed sink writes"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating emission failure counter: %w", err)
	}

	out.activeBuses, err = m.Int64ObservableGauge(
		"sim.buses.active",
		metric.WithDescription("Buses currently simulated"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating active buses gauge: %w", err)
	}
	_, err = m.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			o.ObserveInt64(out.activeBuses, int64(active()))
			return nil
		},
		out.activeBuses,
	)
	if err != nil {
		return nil, fmt.Errorf("registering active buses callback: %w", err)
	}

	return out, nil
}

func (m *metrics) emissionFailed(ctx context.Context, target string) {
	m.emitFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("target", target)))
}

package telemetry

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wricardo/mcp-training/locosim/loco/locomotive"
)

const instrumentationName = "github.com/wricardo/mcp-training/locosim/loco/telemetry"

// Metrics counts simulation activity. It uses the global OTel meter
// provider, which is a no-op until one is installed.
type Metrics struct {
	ticks    metric.Int64Counter
	events   metric.Int64Counter
	fuelUsed metric.Float64Counter
	force    metric.Float64Histogram
}

// NewMetrics creates the instruments on the meter from mp, or from the
// global provider when mp is nil.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	m := mp.Meter(instrumentationName)

	var (
		out Metrics
		err error
	)
	out.ticks, err = m.Int64Counter(
		"locosim.ticks",
		metric.WithDescription("Simulation ticks advanced"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}

	out.events, err = m.Int64Counter(
		"locosim.events",
		metric.WithDescription("Discrete locomotive events raised"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating event counter: %w", err)
	}

	out.fuelUsed, err = m.Float64Counter(
		"locosim.fuel.used",
		metric.WithDescription("Diesel fuel committed from tanks"),
		metric.WithUnit("L"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fuel counter: %w", err)
	}

	out.force, err = m.Float64Histogram(
		"locosim.tractive_force",
		metric.WithDescription("Magnitude of tractive force at the rail"),
		metric.WithUnit("N"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating force histogram: %w", err)
	}
	return &out, nil
}

// ObserveTick records one tick; fuelUsedL is the level drop across it
func (m *Metrics) ObserveTick(ctx context.Context, configID string, out locomotive.Output, fuelUsedL float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("config", configID))
	m.ticks.Add(ctx, 1, attrs)
	m.force.Record(ctx, math.Abs(out.ForceN), attrs)
	if fuelUsedL > 0 {
		m.fuelUsed.Add(ctx, fuelUsedL, attrs)
	}
	for _, e := range out.Events {
		m.events.Add(ctx, 1, metric.WithAttributes(
			attribute.String("config", configID),
			attribute.String("kind", string(e.Kind)),
		))
	}
}

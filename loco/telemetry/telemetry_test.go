package telemetry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/wricardo/mcp-training/locosim/loco/diesel"
	"github.com/wricardo/mcp-training/locosim/loco/locomotive"
	"github.com/wricardo/mcp-training/locosim/loco/traction"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func samples(sessionID string, n int) []Sample {
	out := make([]Sample, n)
	for i := range out {
		out[i] = Sample{SessionID: sessionID, Tick: int64(i + 1), ForceN: float64(i * 1000)}
	}
	return out
}

func TestStoreRecordAndRecent(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Record(samples("ab12", 10)))
	require.NoError(t, store.Record(samples("cd34", 3)))

	recent, err := store.Recent("ab12", 4)
	require.NoError(t, err)
	require.Len(t, recent, 4)
	assert.Equal(t, int64(7), recent[0].Tick, "oldest of the newest four first")
	assert.Equal(t, int64(10), recent[3].Tick)

	n, err := store.Count("cd34")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestStoreRecordEmptyIsNoop(t *testing.T) {
	store := openTestStore(t)
	assert.NoError(t, store.Record(nil))
}

func TestStorePrune(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Record(samples("ab12", 20)))

	require.NoError(t, store.Prune("ab12", 5))
	n, err := store.Count("ab12")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	recent, err := store.Recent("ab12", 0)
	require.NoError(t, err)
	require.Len(t, recent, 5)
	assert.Equal(t, int64(16), recent[0].Tick)

	// pruning below the current count is a no-op
	require.NoError(t, store.Prune("ab12", 50))
	n, _ = store.Count("ab12")
	assert.Equal(t, int64(5), n)
}

func TestStoreDeleteSession(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Record(samples("ab12", 5)))
	require.NoError(t, store.Record(samples("cd34", 5)))

	require.NoError(t, store.DeleteSession("ab12"))
	n, _ := store.Count("ab12")
	assert.Zero(t, n)
	n, _ = store.Count("cd34")
	assert.Equal(t, int64(5), n)
}

func TestStoreClosed(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Record(samples("ab12", 1)), ErrStoreClosed)
	_, err = store.Recent("ab12", 1)
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.NoError(t, store.Close())
}

func TestNewSample(t *testing.T) {
	out := locomotive.Output{
		ForceN:      12000,
		Model:       traction.ModelBasic,
		Gear:        -1,
		FuelLevelL:  900,
		FuelFlowLph: 120,
		MainPowerOn: true,
	}
	r := locomotive.Readout{
		ElapsedS: 12.5,
		Engines: []diesel.Readout{
			{State: diesel.Running, RPM: 800, LoadPercent: 60},
			{State: diesel.Stopped, RPM: 300, LoadPercent: 0},
		},
	}

	s := NewSample("ab12", 42, 0.7, 8, out, r)
	assert.Equal(t, "ab12", s.SessionID)
	assert.Equal(t, int64(42), s.Tick)
	assert.Equal(t, 800.0, s.RPM)
	assert.Equal(t, 30.0, s.LoadPercent)
	assert.Equal(t, "running,stopped", s.EngineStates)
	assert.Equal(t, "basic", s.Model)
	assert.Equal(t, 12.5, s.ElapsedS)
}

func TestMetricsObserveTick(t *testing.T) {
	m, err := NewMetrics(noop.NewMeterProvider())
	require.NoError(t, err)

	out := locomotive.Output{
		ForceN: -5000,
		Events: []locomotive.Event{{Kind: locomotive.EventGearChanged}},
	}
	assert.NotPanics(t, func() {
		m.ObserveTick(context.Background(), "class37", out, 0.1)
	})

	var nilMetrics *Metrics
	assert.NotPanics(t, func() {
		nilMetrics.ObserveTick(context.Background(), "class37", out, 0)
	})
}

func TestNewMetricsUsesGlobalProvider(t *testing.T) {
	m, err := NewMetrics(nil)
	require.NoError(t, err)
	assert.NotNil(t, m)
}

package simulate

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/locosim/loco/config"
	"github.com/wricardo/mcp-training/locosim/loco/locomotive"
	"github.com/wricardo/mcp-training/locosim/loco/traction"
)

func loadLoco(t *testing.T, name string) *locomotive.Locomotive {
	t.Helper()
	mgr, err := config.NewManager("../configs")
	require.NoError(t, err)
	cfg, err := mgr.LoadConfig(name)
	require.NoError(t, err)
	loco, err := locomotive.New(cfg)
	require.NoError(t, err)
	return loco
}

func TestRun_ElectricFullThrottle(t *testing.T) {
	loco := loadLoco(t, "class37")

	s, err := Run(context.Background(), loco, Plan{DurationS: 120, Throttle: 1, Direction: traction.Forward})
	require.NoError(t, err)

	assert.Equal(t, "Class 37", s.Name)
	assert.Len(t, s.Rows, 120)
	assert.InDelta(t, 120, s.Rows[len(s.Rows)-1].TimeS, 1e-6)
	assert.Greater(t, s.DistanceM, 0.0)
	assert.Greater(t, s.TopSpeedMpS, 1.0)
	assert.Greater(t, s.FuelUsedL, 0.0)
	assert.False(t, s.Stalled)

	var events []string
	for _, r := range s.Rows {
		events = append(events, r.Events...)
	}
	assert.Contains(t, events, string(locomotive.EventPowerOn))
	assert.Contains(t, events, string(locomotive.EventEngineState))
}

func TestRun_Reverse(t *testing.T) {
	loco := loadLoco(t, "class37")

	s, err := Run(context.Background(), loco, Plan{DurationS: 60, Throttle: 0.5, Direction: traction.Reverse})
	require.NoError(t, err)

	last := s.Rows[len(s.Rows)-1]
	assert.Less(t, last.SpeedMpS, 0.0)
	assert.Less(t, last.DistanceM, 0.0)
}

func TestRun_ManualGearboxIsDriven(t *testing.T) {
	loco := loadLoco(t, "shunter_hydraulic")

	s, err := Run(context.Background(), loco, Plan{DurationS: 90, Throttle: 1, Direction: traction.Forward})
	require.NoError(t, err)

	last := s.Rows[len(s.Rows)-1]
	assert.GreaterOrEqual(t, last.Gear, 0, "driver should engage a gear")
	assert.Greater(t, s.DistanceM, 0.0)
}

func TestRun_AutomaticGearbox(t *testing.T) {
	loco := loadLoco(t, "dmu_mechanical")

	s, err := Run(context.Background(), loco, Plan{DurationS: 60, Throttle: 0.8, Direction: traction.Forward, ReportEveryS: 5})
	require.NoError(t, err)

	assert.Len(t, s.Rows, 12)
	assert.GreaterOrEqual(t, s.Rows[len(s.Rows)-1].Gear, 0)
}

func TestRun_ClosedThrottleStaysPut(t *testing.T) {
	loco := loadLoco(t, "class37")

	s, err := Run(context.Background(), loco, Plan{DurationS: 30, Direction: traction.Forward})
	require.NoError(t, err)

	assert.Zero(t, s.DistanceM)
	assert.Zero(t, s.TopSpeedMpS)
}

func TestRun_InvalidPlan(t *testing.T) {
	loco := loadLoco(t, "class37")

	tests := []struct {
		name string
		plan Plan
	}{
		{"no duration", Plan{Throttle: 1}},
		{"dt too large", Plan{DurationS: 10, Dt: 5}},
		{"throttle above one", Plan{DurationS: 10, Throttle: 1.5}},
		{"negative throttle", Plan{DurationS: 10, Throttle: -0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), loco, tt.plan)
			assert.True(t, errors.Is(err, ErrInvalidPlan), "got %v", err)
		})
	}
}

func TestRun_Cancelled(t *testing.T) {
	loco := loadLoco(t, "class37")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, loco, Plan{DurationS: 10, Throttle: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteTable(t *testing.T) {
	s := &Summary{
		Name: "Test Loco",
		Rows: []Row{
			{TimeS: 1, RPM: 450, Gear: -1, FuelLevelL: 999.9, Events: []string{"engine_state", "power_on"}},
			{TimeS: 2, RPM: 600, ForceN: 120000, SpeedMpS: 2, DistanceM: 1, Gear: 0, FuelLevelL: 999.8},
		},
		DistanceM:   1,
		TopSpeedMpS: 2,
		FuelUsedL:   0.2,
		Stalled:     true,
	}

	var buf bytes.Buffer
	WriteTable(&buf, s)
	out := buf.String()

	for _, want := range []string{"Test Loco", "engine_state,power_on", "120.0", "7.2", "stalled: fuel exhausted"} {
		assert.True(t, strings.Contains(out, want), "expected %q in:\n%s", want, out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Contains(t, lines[3], "    N ")
	assert.Contains(t, lines[4], "    1 ")
}

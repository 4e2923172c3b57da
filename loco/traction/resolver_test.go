package traction

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is a scripted engine bank
type fakeSource struct {
	fraction  float64
	apparent  float64
	flow      float64
	gearForce float64
	geared    bool
	running   bool

	demandedW float64
	stopped   int
}

func (f *fakeSource) RunningPowerFraction() float64 { return f.fraction }
func (f *fakeSource) ApparentThrottle() float64     { return f.apparent }
func (f *fakeSource) FuelFlow() float64             { return f.flow }
func (f *fakeSource) SetDemandedPower(w float64)    { f.demandedW = w }
func (f *fakeSource) Running() bool                 { return f.running }
func (f *fakeSource) StopAll() {
	f.stopped++
	f.running = false
	f.flow = 0
}
func (f *fakeSource) TractiveForce(throttle, speed float64) (float64, bool) {
	return f.gearForce, f.geared
}

func allRunning() *fakeSource {
	return &fakeSource{fraction: 1, apparent: 1, running: true}
}

func basicEnvelope() Envelope {
	env, _ := Envelope{MaxForceN: 300000, MaxRailOutputPowerW: 1500000}.Derive()
	return env
}

func drive(throttle, speed float64) Input {
	return Input{Dt: 0.1, Throttle: throttle, Direction: Forward, SpeedMpS: speed, MainPowerOn: true}
}

func TestBasicForceIsLesserOfForceAndPower(t *testing.T) {
	tests := []struct {
		name  string
		speed float64
		want  float64
	}{
		{"standstill uses force term", 0, 300000},
		{"low speed force limited", 5, 300000},
		{"power limited", 10, 150000},
		{"high speed", 30, 50000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(basicEnvelope(), nil)
			res := r.Resolve(allRunning(), drive(1, tt.speed))
			assert.InDelta(t, tt.want, res.ForceN, 1e-6)
			assert.Equal(t, ModelBasic, res.Model)
		})
	}
}

func TestForceZeroWithMainPowerOff(t *testing.T) {
	r := NewResolver(basicEnvelope(), nil)
	in := drive(1, 5)
	in.MainPowerOn = false
	res := r.Resolve(allRunning(), in)
	assert.Zero(t, res.ForceN)
	assert.Equal(t, ModelNone, res.Model)
}

func TestForceZeroWhenAllEnginesStopped(t *testing.T) {
	r := NewResolver(basicEnvelope(), nil)
	src := &fakeSource{}
	for _, speed := range []float64{0, 3, 20} {
		res := r.Resolve(src, drive(1, speed))
		assert.Zero(t, res.ForceN, "speed %v", speed)
	}
}

func TestForceScalesWithRunningFraction(t *testing.T) {
	r := NewResolver(basicEnvelope(), nil)
	src := allRunning()
	src.fraction = 0.5
	res := r.Resolve(src, drive(1, 0))
	assert.InDelta(t, 150000, res.ForceN, 1e-6)
}

func TestDirectionSetsSign(t *testing.T) {
	r := NewResolver(basicEnvelope(), nil)

	in := drive(1, 5)
	in.Direction = Reverse
	assert.InDelta(t, -300000, r.Resolve(allRunning(), in).ForceN, 1e-6)

	in.Direction = Neutral
	assert.Zero(t, r.Resolve(allRunning(), in).ForceN)
}

func TestPlayerThrottleLimitedByEngineSpeed(t *testing.T) {
	r := NewResolver(basicEnvelope(), nil)
	src := allRunning()
	src.apparent = 0.2

	in := drive(1, 10)
	in.PlayerControlled = true
	res := r.Resolve(src, in)
	assert.InDelta(t, 0.2, res.ApparentThrottle, 1e-12)
	// power term 1.5 MW * 0.2 / 10 m/s
	assert.InDelta(t, 30000, res.ForceN, 1e-6)

	in.PlayerControlled = false
	res = r.Resolve(src, in)
	assert.InDelta(t, 1, res.ApparentThrottle, 1e-12)
}

func TestUnloadingSpeedFadesPower(t *testing.T) {
	env := basicEnvelope()
	env.UnloadingSpeedMpS = 20
	env.MaxSpeedMpS = 60
	r := NewResolver(env, nil)

	// at 30 m/s the factor is 2 - 30/20 = 0.5
	res := r.Resolve(allRunning(), drive(1, 30))
	assert.InDelta(t, 1500000*0.5/30, res.ForceN, 1e-6)

	// beyond 2x the unloading speed power is cut completely
	res = r.Resolve(allRunning(), drive(1, 45))
	assert.Zero(t, res.ForceN)

	// at or above max speed the fade no longer applies
	res = r.Resolve(allRunning(), drive(1, 60))
	assert.InDelta(t, 25000, res.ForceN, 1e-6)

	// slipping wheels skip unloading
	in := drive(1, 30)
	in.WheelSlip = true
	res = r.Resolve(allRunning(), in)
	assert.InDelta(t, 50000, res.ForceN, 1e-6)
}

func TestAdvancedAdhesionUsesWheelSpeedWhenSlipping(t *testing.T) {
	env := basicEnvelope()
	env.AdvancedAdhesion = true
	r := NewResolver(env, nil)

	in := drive(1, 5)
	in.WheelSlip = true
	in.WheelSpeedMpS = 15
	res := r.Resolve(allRunning(), in)
	assert.InDelta(t, 15, res.TractionSpeedMpS, 1e-12)
	assert.InDelta(t, 100000, res.ForceN, 1e-6)
}

func TestAdvancedModelInterpolatesTable(t *testing.T) {
	table, err := NewForceTable([]Curve{
		{Throttle: 1, Points: []Point{{0, 200000}, {10, 100000}, {20, 50000}}},
		{Throttle: 0.5, Points: []Point{{0, 100000}, {20, 20000}}},
	}, false)
	require.NoError(t, err)

	env, _ := Envelope{Curves: table, MaxRailOutputPowerW: 2e6}.Derive()
	assert.InDelta(t, 200000, env.MaxForceN, 1e-9, "max force taken from the table")
	r := NewResolver(env, nil)

	res := r.Resolve(allRunning(), drive(1, 5))
	assert.Equal(t, ModelAdvanced, res.Model)
	assert.InDelta(t, 150000, res.ForceN, 1e-6)

	// halfway between the 0.5 and 1.0 curves at 10 m/s: (60000 + 100000) / 2
	src := allRunning()
	src.apparent = 0.75
	res = r.Resolve(src, drive(0.75, 10))
	assert.InDelta(t, 80000, res.ForceN, 1e-6)

	// under the lowest curve force fades to zero
	res = r.Resolve(allRunning(), drive(0.25, 0))
	assert.InDelta(t, 50000, res.ForceN, 1e-6)
}

func TestAdvancedModelClampsNegativeForce(t *testing.T) {
	curves := []Curve{{Throttle: 1, Points: []Point{{0, 1000}, {10, -5000}}}}

	table, err := NewForceTable(curves, false)
	require.NoError(t, err)
	env, _ := Envelope{Curves: table, MaxRailOutputPowerW: 1e6}.Derive()
	res := NewResolver(env, nil).Resolve(allRunning(), drive(1, 10))
	assert.Zero(t, res.ForceN)

	table, err = NewForceTable(curves, true)
	require.NoError(t, err)
	env, _ = Envelope{Curves: table, MaxRailOutputPowerW: 1e6}.Derive()
	res = NewResolver(env, nil).Resolve(allRunning(), drive(1, 10))
	assert.InDelta(t, -5000, res.ForceN, 1e-9)
}

func TestMechanicalGearboxForceBypassesEnvelope(t *testing.T) {
	r := NewResolver(basicEnvelope(), nil)
	src := allRunning()
	src.geared = true
	src.gearForce = 42000

	res := r.Resolve(src, drive(1, 5))
	assert.Equal(t, ModelMechanical, res.Model)
	assert.InDelta(t, 42000, res.ForceN, 1e-9)

	// coasting drag still acts with the engines off
	src.gearForce = -1500
	in := drive(0, 5)
	in.MainPowerOn = false
	res = r.Resolve(src, in)
	assert.InDelta(t, -1500, res.ForceN, 1e-9)
}

func TestContinuousForceLimiter(t *testing.T) {
	env := basicEnvelope()
	env.MaxContinuousForceN = 200000
	env.ContinuousForceTimeFactorS = 10
	r := NewResolver(env, nil)

	first := r.Resolve(allRunning(), drive(1, 0))
	assert.InDelta(t, 300000, first.ForceN, 1e-6, "no history, no derating")
	// w = (10 - 0.1) / 10
	assert.InDelta(t, 0.01*300000, r.AverageForceN(), 1e-6)

	var last float64
	for i := 0; i < 2000; i++ {
		last = r.Resolve(allRunning(), drive(1, 0)).ForceN
	}
	assert.Less(t, last, 300000.0)
	assert.Greater(t, last, 0.0)
	// steady state: F = 300000 * (1 - k (F - 200000)) with k = 1/600000, so F = 800000/3
	assert.InDelta(t, 800000.0/3, last, 1)
	assert.Greater(t, last, 200000.0)
}

func TestContinuousForceLimiterIgnoresSubContinuousDemand(t *testing.T) {
	env, _ := Envelope{MaxForceN: 250000, MaxContinuousForceN: 180000, MaxRailOutputPowerW: 1500000}.Derive()
	env.ContinuousForceTimeFactorS = 10
	r := NewResolver(env, nil)

	var last float64
	for i := 0; i < 6000; i++ {
		last = r.Resolve(allRunning(), drive(0.4, 0)).ForceN
	}
	assert.InDelta(t, 100000, last, 1e-6, "demand below the continuous rating is never derated")
	assert.InDelta(t, 100000, r.AverageForceN(), 1)
}

func TestLimiterOffAtFullPowerReduction(t *testing.T) {
	env := basicEnvelope()
	env.MaxContinuousForceN = 200000
	env.PowerReduction = 1
	r := NewResolver(env, nil)
	r.Resolve(allRunning(), drive(1, 0))
	assert.Zero(t, r.AverageForceN())
}

func TestDemandedPowerFeedback(t *testing.T) {
	r := NewResolver(basicEnvelope(), nil)
	src := allRunning()
	r.Resolve(src, drive(1, 10))
	assert.InDelta(t, 1500000, src.demandedW, 1e-6)

	in := drive(1, 10)
	in.Direction = Reverse
	r.Resolve(src, in)
	assert.InDelta(t, 1500000, src.demandedW, 1e-6)
}

func TestFuelBatchedAndStallsWhenEmpty(t *testing.T) {
	tank := NewFuelTank(100, 50)
	r := NewResolver(basicEnvelope(), tank)
	src := allRunning()
	src.flow = 1

	in := drive(0, 0)
	in.Dt = 0.05
	r.Resolve(src, in)
	assert.Equal(t, 50.0, tank.LevelL, "first half batch stays pending")
	r.Resolve(src, in)
	assert.InDelta(t, 49.9, tank.LevelL, 1e-9)
	assert.Zero(t, tank.PendingL())

	tank.Restore(0.05)
	in.Dt = 0.1
	res := r.Resolve(src, in)
	assert.True(t, res.FuelExhausted)
	assert.Equal(t, 1, src.stopped)
	assert.Zero(t, tank.LevelL, "level clamped at zero")

	res = r.Resolve(src, in)
	assert.False(t, res.FuelExhausted, "stall is reported once")
}

func TestEnvelopeDerivation(t *testing.T) {
	t.Run("power from continuous force", func(t *testing.T) {
		env, notes := Envelope{MaxForceN: 250000, MaxContinuousForceN: 180000, SpeedOfMaxContinuousForceMpS: 8}.Derive()
		assert.InDelta(t, 1440000, env.MaxRailOutputPowerW, 1e-6)
		assert.NotEmpty(t, notes)
	})
	t.Run("force from power", func(t *testing.T) {
		env, _ := Envelope{MaxRailOutputPowerW: 1000000, SpeedOfMaxContinuousForceMpS: 5}.Derive()
		assert.InDelta(t, 200000, env.MaxForceN, 1e-6)
	})
	t.Run("defaults when both missing", func(t *testing.T) {
		env, notes := Envelope{}.Derive()
		assert.Equal(t, DefaultMaxForceN, env.MaxForceN)
		assert.Equal(t, DefaultMaxPowerW, env.MaxRailOutputPowerW)
		assert.NotEmpty(t, notes)
	})
	t.Run("reduction clamped", func(t *testing.T) {
		env, _ := Envelope{MaxForceN: 1, MaxRailOutputPowerW: 1, PowerReduction: 3}.Derive()
		assert.Equal(t, 1.0, env.PowerReduction)
	})
}

func TestParseTransmission(t *testing.T) {
	tr, err := ParseTransmission("Mechanic")
	require.NoError(t, err)
	assert.Equal(t, Mechanic, tr)

	tr, err = ParseTransmission("")
	require.NoError(t, err)
	assert.Equal(t, Electric, tr)

	_, err = ParseTransmission("steam")
	assert.Error(t, err)
}

func TestForceTableValidation(t *testing.T) {
	_, err := NewForceTable(nil, false)
	assert.ErrorIs(t, err, ErrInvalidCurves)

	_, err = NewForceTable([]Curve{{Throttle: 1, Points: []Point{{5, 1}, {5, 2}}}}, false)
	assert.ErrorIs(t, err, ErrInvalidCurves)

	_, err = NewForceTable([]Curve{{Throttle: 1.5, Points: []Point{{0, 1}}}}, false)
	assert.ErrorIs(t, err, ErrInvalidCurves)

	_, err = NewForceTable([]Curve{
		{Throttle: 1, Points: []Point{{0, 1}}},
		{Throttle: 1, Points: []Point{{0, 2}}},
	}, false)
	assert.ErrorIs(t, err, ErrInvalidCurves)
}

func TestFuelTankRefuel(t *testing.T) {
	tank := NewFuelTank(100, 150)
	assert.Equal(t, 100.0, tank.LevelL)

	tank.Restore(40)
	assert.InDelta(t, 60, tank.Refuel(500), 1e-12)
	assert.Equal(t, 100.0, tank.LevelL)
	assert.Zero(t, tank.Refuel(-3))
	assert.False(t, math.IsNaN(tank.LevelL))
}

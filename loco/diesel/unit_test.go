package diesel

import (
	"math"
	"testing"
)

func testParams() Params {
	return Params{
		IdleRPM:                  300,
		MaxRPM:                   1000,
		RPMChangeUpRate:          100,
		RPMChangeDownRate:        200,
		MaxPowerW:                1000000,
		IdleFuelLps:              0.01,
		MaxFuelLps:               0.1,
		MinOilPressureKPa:        100,
		MaxOilPressureKPa:        400,
		MaxTemperatureC:          90,
		AmbientTemperatureC:      20,
		TemperatureTimeConstantS: 1,
		Cooling:                  CoolingProportional,
	}
}

func runningUnit(t *testing.T, p Params) *Unit {
	t.Helper()
	u := NewUnit(0, p)
	if !u.HandleEvent(StartEngine) {
		t.Fatal("start rejected on a stopped engine")
	}
	u.Advance(0.01, Demand{})
	if u.State() != Running {
		t.Fatalf("expected running after start, got %s", u.State())
	}
	return u
}

func TestSanitizeIdleRPM(t *testing.T) {
	tests := []struct {
		name     string
		idle     float64
		max      float64
		wantIdle float64
	}{
		{"zero idle small engine", 0, 1000, 150},
		{"tiny idle large engine", 5, 2500, 250},
		{"sane idle kept", 300, 1000, 300},
		{"boundary kept", 10, 1000, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, notes := Params{IdleRPM: tt.idle, MaxRPM: tt.max}.Sanitize()
			if p.IdleRPM != tt.wantIdle {
				t.Errorf("idle = %v, want %v", p.IdleRPM, tt.wantIdle)
			}
			if tt.idle < MinSaneIdleRPM && len(notes) == 0 {
				t.Error("expected a correction note")
			}
			if p.GovernorRPM != p.MaxRPM {
				t.Errorf("governor defaults to max, got %v", p.GovernorRPM)
			}
			if p.RPMChangeDownRate != p.RPMChangeUpRate {
				t.Errorf("down rate defaults to up rate, got %v", p.RPMChangeDownRate)
			}
		})
	}
}

func TestUnitRunStateMachine(t *testing.T) {
	p := testParams()
	p.StartingTimeS = 2
	p.StoppingTimeS = 1
	u := NewUnit(0, p)

	if u.HandleEvent(StopEngine) {
		t.Error("stop accepted on a stopped engine")
	}
	if !u.HandleEvent(StartEngine) {
		t.Fatal("start rejected on a stopped engine")
	}
	if u.HandleEvent(StartEngine) {
		t.Error("start accepted while starting")
	}

	u.Advance(1, Demand{})
	if u.State() != Starting {
		t.Fatalf("expected starting after 1s, got %s", u.State())
	}
	u.Advance(1.5, Demand{})
	if u.State() != Running {
		t.Fatalf("expected running after 2.5s, got %s", u.State())
	}

	if !u.HandleEvent(StopEngine) {
		t.Fatal("stop rejected while running")
	}
	u.Advance(0.5, Demand{})
	if u.State() != Stopping {
		t.Fatalf("expected stopping, got %s", u.State())
	}
	u.Advance(0.5, Demand{})
	if u.State() != Stopped {
		t.Fatalf("expected stopped, got %s", u.State())
	}
	if u.FuelFlowLps() != 0 {
		t.Errorf("stopped engine burns fuel: %v", u.FuelFlowLps())
	}
}

func TestUnitStartWhileStoppingIsQueued(t *testing.T) {
	p := testParams()
	p.StoppingTimeS = 10
	u := NewUnit(0, p)
	u.HandleEvent(StartEngine)
	u.Advance(0.1, Demand{})
	if u.State() != Running {
		t.Fatalf("expected running, got %s", u.State())
	}

	u.HandleEvent(StopEngine)
	u.Advance(1, Demand{})
	if !u.HandleEvent(StartEngine) {
		t.Fatal("start while stopping should be queued, not dropped")
	}
	if u.HandleEvent(StartEngine) {
		t.Error("second start while one is queued should be ignored")
	}
	if !u.RestartPending() || u.State() != Stopping {
		t.Fatalf("expected stopping with a queued start, got %s pending=%v", u.State(), u.RestartPending())
	}

	snap := u.Snapshot()
	restored := NewUnit(0, p)
	restored.Restore(snap)
	if !restored.RestartPending() {
		t.Error("queued start lost across snapshot")
	}

	u.Advance(9, Demand{})
	if u.State() != Starting {
		t.Fatalf("expected the queued start to crank once stopped, got %s", u.State())
	}
	if u.RestartPending() {
		t.Error("queued start should be consumed")
	}
	u.Advance(0.1, Demand{})
	if u.State() != Running {
		t.Errorf("expected running again, got %s", u.State())
	}
}

func TestUnitStopCancelsQueuedStart(t *testing.T) {
	p := testParams()
	p.StoppingTimeS = 5
	u := NewUnit(0, p)
	u.HandleEvent(StartEngine)
	u.Advance(0.1, Demand{})
	u.HandleEvent(StopEngine)

	if u.HandleEvent(StopEngine) {
		t.Error("stop while stopping without a queued start should be ignored")
	}
	u.HandleEvent(StartEngine)
	if !u.HandleEvent(StopEngine) {
		t.Fatal("stop should cancel the queued start")
	}
	u.Advance(5, Demand{})
	if u.State() != Stopped {
		t.Errorf("expected stopped, got %s", u.State())
	}
}

func TestUnitRPMWithinEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		dt       float64
		throttle float64
		target   float64
	}{
		{"huge step full throttle", 1000, 1, 0},
		{"throttle above one", 0.1, 7, 0},
		{"negative throttle", 0.1, -3, 0},
		{"negative dt", -1, 1, 0},
		{"override beyond max", 1000, 0, 5000},
		{"override below idle", 1000, 1, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := runningUnit(t, testParams())
			for i := 0; i < 20; i++ {
				u.Advance(tt.dt, Demand{Throttle: tt.throttle, TargetRPM: tt.target})
				rpm := u.RPM()
				if rpm < 300 || rpm > 1000 {
					t.Fatalf("rpm %v outside [300, 1000]", rpm)
				}
				if r := u.RPMRatio(); r < 0 || r > 1 {
					t.Fatalf("rpm ratio %v outside [0, 1]", r)
				}
			}
		})
	}
}

func TestUnitRPMRateLimited(t *testing.T) {
	u := runningUnit(t, testParams())

	u.Advance(0.5, Demand{Throttle: 1})
	if got := u.RPM(); math.Abs(got-350) > 1e-9 {
		t.Errorf("rpm after 0.5s at 100 rpm/s = %v, want 350", got)
	}

	for i := 0; i < 100; i++ {
		u.Advance(0.1, Demand{Throttle: 1})
	}
	if got := u.RPM(); got != 1000 {
		t.Fatalf("rpm at full throttle = %v, want 1000", got)
	}

	u.Advance(0.5, Demand{Throttle: 0})
	if got := u.RPM(); math.Abs(got-900) > 1e-9 {
		t.Errorf("rpm after 0.5s at 200 rpm/s down = %v, want 900", got)
	}
}

func TestUnitGovernorCapsRPM(t *testing.T) {
	p := testParams()
	p.GovernorRPM = 800
	u := runningUnit(t, p)
	for i := 0; i < 200; i++ {
		u.Advance(0.1, Demand{Throttle: 1})
	}
	if got := u.RPM(); got != 800 {
		t.Errorf("rpm = %v, want governor 800", got)
	}
}

func TestUnitStoppedTargetsIdle(t *testing.T) {
	u := runningUnit(t, testParams())
	for i := 0; i < 100; i++ {
		u.Advance(0.1, Demand{Throttle: 1})
	}
	u.HandleEvent(StopEngine)
	for i := 0; i < 100; i++ {
		u.Advance(0.1, Demand{Throttle: 1})
	}
	if u.State() != Stopped {
		t.Fatalf("expected stopped, got %s", u.State())
	}
	if got := u.RPM(); got != 300 {
		t.Errorf("stopped engine rpm = %v, want idle 300", got)
	}
}

func TestUnitFuelFlowBlend(t *testing.T) {
	u := runningUnit(t, testParams())
	if got := u.FuelFlowLps(); math.Abs(got-0.01) > 1e-12 {
		t.Errorf("idle flow = %v, want 0.01", got)
	}
	for i := 0; i < 100; i++ {
		u.Advance(0.1, Demand{Throttle: 1})
	}
	if got := u.FuelFlowLps(); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("max flow = %v, want 0.1", got)
	}
}

func TestUnitLoadBounded(t *testing.T) {
	u := runningUnit(t, testParams())
	for i := 0; i < 100; i++ {
		u.Advance(0.1, Demand{Throttle: 1, PowerW: 1e12})
		if l := u.LoadFraction(); l < 0 || l > 1 {
			t.Fatalf("load %v outside [0, 1]", l)
		}
		if e := u.Exhaust(); e < 0 || e > 1 {
			t.Fatalf("exhaust %v outside [0, 1]", e)
		}
	}
	if got := u.LoadFraction(); got != 1 {
		t.Errorf("load at full power = %v, want 1", got)
	}
}

func TestUnitCoolingPolicies(t *testing.T) {
	tests := []struct {
		cooling  Cooling
		overheat bool
	}{
		{CoolingNone, true},
		{CoolingProportional, false},
		{CoolingMechanical, false},
		{CoolingHysteresis, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.cooling), func(t *testing.T) {
			p := testParams()
			p.Cooling = tt.cooling
			u := runningUnit(t, p)
			for i := 0; i < 600; i++ {
				u.Advance(0.1, Demand{Throttle: 1, PowerW: 1e7})
			}
			if u.Overheat() != tt.overheat {
				t.Errorf("overheat = %v at %.1fC, want %v", u.Overheat(), u.TemperatureC(), tt.overheat)
			}
		})
	}
}

func TestUnitLowOilPressureAfterStart(t *testing.T) {
	u := runningUnit(t, testParams())
	if !u.LowOilPressure() {
		t.Errorf("expected low oil alarm right after start, pressure %v", u.OilPressureKPa())
	}
	for i := 0; i < 50; i++ {
		u.Advance(0.1, Demand{})
	}
	if u.LowOilPressure() {
		t.Errorf("oil alarm persists at %v kPa", u.OilPressureKPa())
	}
}

func TestUnitRestoreClampsRPM(t *testing.T) {
	u := NewUnit(0, testParams())
	u.Restore(Snapshot{State: Running, RPM: 99999})
	if u.State() != Running {
		t.Errorf("state = %s, want running", u.State())
	}
	if u.RPM() != 1000 {
		t.Errorf("rpm = %v, want 1000", u.RPM())
	}
	u.Restore(Snapshot{State: RunState(42), RPM: 0})
	if u.State() != Stopped {
		t.Errorf("unknown state restored as %s", u.State())
	}
	if u.RPM() != 300 {
		t.Errorf("rpm = %v, want 300", u.RPM())
	}
}

func TestRunStateText(t *testing.T) {
	for _, s := range []RunState{Stopped, Starting, Running, Stopping} {
		b, err := s.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var got RunState
		if err := got.UnmarshalText(b); err != nil {
			t.Fatal(err)
		}
		if got != s {
			t.Errorf("round trip %s gave %s", s, got)
		}
	}
	var s RunState
	if err := s.UnmarshalText([]byte("exploded")); err == nil {
		t.Error("expected error for unknown state")
	}
}

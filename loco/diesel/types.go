package diesel

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"
)

// RunState is the state of a single engine's run-state machine
type RunState int

const (
	Stopped RunState = iota
	Starting
	Running
	Stopping
)

var runStateNames = [...]string{"stopped", "starting", "running", "stopping"}

func (s RunState) String() string {
	if s < Stopped || s > Stopping {
		return fmt.Sprintf("RunState(%d)", int(s))
	}
	return runStateNames[s]
}

// MarshalText encodes the state by name so snapshots stay readable
func (s RunState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name
func (s *RunState) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for i, n := range runStateNames {
		if n == name {
			*s = RunState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown run state %q", string(text))
}

// PowerSupplyEvent is a command delivered by the locomotive power supply
type PowerSupplyEvent int

const (
	StartEngine PowerSupplyEvent = iota
	StopEngine
)

// Cooling selects how the engine cooling circuit reacts to heat
type Cooling string

const (
	CoolingNone         Cooling = "none"
	CoolingMechanical   Cooling = "mechanical"
	CoolingHysteresis   Cooling = "hysteresis"
	CoolingProportional Cooling = "proportional"
)

// ParseCooling maps a configuration string to a Cooling policy
func ParseCooling(s string) (Cooling, error) {
	switch c := Cooling(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return CoolingProportional, nil
	case CoolingNone, CoolingMechanical, CoolingHysteresis, CoolingProportional:
		return c, nil
	default:
		return "", fmt.Errorf("unknown cooling policy %q", s)
	}
}

const (
	// MinSaneIdleRPM is the lowest idle speed accepted from configuration
	MinSaneIdleRPM = 10.0
	// FallbackIdleRPM is the floor of the substitute idle speed
	FallbackIdleRPM = 150.0

	DefaultRPMChangeRate           = 200.0
	DefaultMaxTemperatureC         = 95.0
	DefaultTemperatureTimeConstant = 240.0

	oilPressureTimeConstant = 1.0
	exhaustTimeConstant     = 0.5
	hysteresisBandC         = 5.0
	normalTemperatureMargin = 10.0
)

// Params is the static capability of one engine
type Params struct {
	IdleRPM           float64
	MaxRPM            float64
	GovernorRPM       float64
	RPMChangeUpRate   float64 // rpm per second
	RPMChangeDownRate float64 // rpm per second

	MaxPowerW   float64
	IdleFuelLps float64
	MaxFuelLps  float64

	MinOilPressureKPa float64
	MaxOilPressureKPa float64

	MaxTemperatureC          float64
	AmbientTemperatureC      float64
	TemperatureTimeConstantS float64
	Cooling                  Cooling

	StartingTimeS float64
	StoppingTimeS float64
}

// DefaultParams describes the engine fitted when a bank is built without any
func DefaultParams() Params {
	return Params{
		IdleRPM:                  400,
		MaxRPM:                   1000,
		RPMChangeUpRate:          DefaultRPMChangeRate,
		RPMChangeDownRate:        DefaultRPMChangeRate,
		MaxPowerW:                1000000,
		IdleFuelLps:              20.0 / 3600,
		MaxFuelLps:               250.0 / 3600,
		MinOilPressureKPa:        150,
		MaxOilPressureKPa:        450,
		MaxTemperatureC:          DefaultMaxTemperatureC,
		AmbientTemperatureC:      20,
		TemperatureTimeConstantS: DefaultTemperatureTimeConstant,
		Cooling:                  CoolingProportional,
	}
}

// Sanitize corrects malformed values and reports each correction made.
// An idle speed under MinSaneIdleRPM becomes max(FallbackIdleRPM, MaxRPM/10).
func (p Params) Sanitize() (Params, []string) {
	var notes []string

	if p.IdleRPM < MinSaneIdleRPM {
		fixed := math.Max(FallbackIdleRPM, p.MaxRPM/10)
		notes = append(notes, fmt.Sprintf("idle rpm %.0f below %.0f, using %.0f", p.IdleRPM, MinSaneIdleRPM, fixed))
		p.IdleRPM = fixed
	}
	if p.MaxRPM <= p.IdleRPM {
		fixed := p.IdleRPM * 2
		notes = append(notes, fmt.Sprintf("max rpm %.0f not above idle, using %.0f", p.MaxRPM, fixed))
		p.MaxRPM = fixed
	}
	if p.GovernorRPM <= 0 || p.GovernorRPM > p.MaxRPM {
		p.GovernorRPM = p.MaxRPM
	} else if p.GovernorRPM < p.IdleRPM {
		notes = append(notes, fmt.Sprintf("governor rpm %.0f below idle, using idle", p.GovernorRPM))
		p.GovernorRPM = p.IdleRPM
	}
	if p.RPMChangeUpRate <= 0 {
		p.RPMChangeUpRate = DefaultRPMChangeRate
	}
	if p.RPMChangeDownRate <= 0 {
		p.RPMChangeDownRate = p.RPMChangeUpRate
	}
	if p.MaxPowerW < 0 {
		p.MaxPowerW = 0
	}
	if p.IdleFuelLps < 0 {
		p.IdleFuelLps = 0
	}
	if p.MaxFuelLps < p.IdleFuelLps {
		p.MaxFuelLps = p.IdleFuelLps
	}
	if p.MaxOilPressureKPa < p.MinOilPressureKPa {
		p.MaxOilPressureKPa = p.MinOilPressureKPa
	}
	if p.MaxTemperatureC <= 0 {
		p.MaxTemperatureC = DefaultMaxTemperatureC
	}
	if p.TemperatureTimeConstantS <= 0 {
		p.TemperatureTimeConstantS = DefaultTemperatureTimeConstant
	}
	if p.Cooling == "" {
		p.Cooling = CoolingProportional
	}
	if p.StartingTimeS < 0 {
		p.StartingTimeS = 0
	}
	if p.StoppingTimeS < 0 {
		p.StoppingTimeS = 0
	}
	return p, notes
}

// Readout is the per-engine state read by HUD, sound and animation consumers
type Readout struct {
	Index          int      `json:"index"`
	State          RunState `json:"state"`
	RPM            float64  `json:"rpm"`
	LoadPercent    float64  `json:"load_percent"`
	OutputPowerW   float64  `json:"output_power_w"`
	FuelFlowLph    float64  `json:"fuel_flow_lph"`
	OilPressureKPa float64  `json:"oil_pressure_kpa"`
	TemperatureC   float64  `json:"temperature_c"`
	Exhaust        float64  `json:"exhaust"`
	FanOn          bool     `json:"fan_on,omitempty"`
	Overheat       bool     `json:"overheat,omitempty"`
	LowOilPressure bool     `json:"low_oil_pressure,omitempty"`
}

// Snapshot is the per-engine state carried across save/restore
type Snapshot struct {
	State          RunState `json:"state"`
	RPM            float64  `json:"rpm"`
	RestartPending bool     `json:"restart_pending,omitempty"`
}

// atomicFloat publishes a float64 with a single-word store
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

func (f *atomicFloat) Store(v float64) {
	f.bits.Store(math.Float64bits(v))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

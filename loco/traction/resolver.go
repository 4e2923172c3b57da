// Package traction turns throttle, engine state and vehicle speed into the
// tractive force delivered at the rail, and accounts for the fuel burned
// while doing it.
package traction

import (
	"fmt"
	"math"
	"strings"
)

const (
	// DefaultMaxForceN and DefaultMaxPowerW stand in when a configuration
	// gives neither a force nor a power rating
	DefaultMaxForceN = 200000.0
	DefaultMaxPowerW = 1000000.0

	DefaultContinuousForceTimeFactorS = 1800.0

	// below this speed the power term is not evaluated
	minPowerSpeedMpS = 1e-3
)

// Transmission is how engine power reaches the wheels
type Transmission int

const (
	Electric Transmission = iota
	Hydraulic
	Mechanic
)

var transmissionNames = [...]string{"electric", "hydraulic", "mechanic"}

func (t Transmission) String() string {
	if t < Electric || t > Mechanic {
		return fmt.Sprintf("Transmission(%d)", int(t))
	}
	return transmissionNames[t]
}

// ParseTransmission maps a configuration string to a Transmission
func ParseTransmission(s string) (Transmission, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "", "electric", "dieselelectric":
		return Electric, nil
	case "hydraulic", "dieselhydraulic":
		return Hydraulic, nil
	case "mechanic", "mechanical", "dieselmechanical":
		return Mechanic, nil
	}
	return Electric, fmt.Errorf("unknown transmission type %q", s)
}

// Model names the path that produced the force on a tick
type Model string

const (
	ModelNone       Model = "none"
	ModelBasic      Model = "basic"
	ModelAdvanced   Model = "advanced"
	ModelMechanical Model = "mechanical"
)

// Direction is the reverser position
type Direction int

const (
	Reverse Direction = -1
	Neutral Direction = 0
	Forward Direction = 1
)

// ParseDirection maps a reverser name to a Direction
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forward", "fwd", "f":
		return Forward, nil
	case "reverse", "rev", "r", "backward":
		return Reverse, nil
	case "neutral", "n", "":
		return Neutral, nil
	}
	return Neutral, fmt.Errorf("unknown direction %q", s)
}

func (d Direction) String() string {
	switch {
	case d > 0:
		return "forward"
	case d < 0:
		return "reverse"
	}
	return "neutral"
}

// Envelope is the force and power limit of the locomotive
type Envelope struct {
	MaxForceN                    float64
	MaxContinuousForceN          float64
	MaxRailOutputPowerW          float64
	SpeedOfMaxContinuousForceMpS float64
	UnloadingSpeedMpS            float64
	MaxSpeedMpS                  float64
	PowerReduction               float64
	ContinuousForceTimeFactorS   float64
	AdvancedAdhesion             bool
	Curves                       *ForceTable
}

// Derive fills the ratings a configuration left out and reports each
// substitution made.
func (e Envelope) Derive() (Envelope, []string) {
	var notes []string

	if e.Curves != nil && e.MaxForceN <= 0 {
		e.MaxForceN = e.Curves.MaxForceN()
	}
	if e.MaxRailOutputPowerW <= 0 && e.MaxContinuousForceN > 0 && e.SpeedOfMaxContinuousForceMpS > 0 {
		e.MaxRailOutputPowerW = e.MaxContinuousForceN * e.SpeedOfMaxContinuousForceMpS
		notes = append(notes, fmt.Sprintf("max rail power derived from continuous force: %.0f W", e.MaxRailOutputPowerW))
	}
	switch {
	case e.MaxForceN <= 0 && e.MaxRailOutputPowerW <= 0:
		e.MaxForceN = DefaultMaxForceN
		e.MaxRailOutputPowerW = DefaultMaxPowerW
		notes = append(notes, fmt.Sprintf("no force or power rating, using %.0f N and %.0f W", DefaultMaxForceN, DefaultMaxPowerW))
	case e.MaxForceN <= 0:
		speed := e.SpeedOfMaxContinuousForceMpS
		if speed <= 0 {
			speed = e.UnloadingSpeedMpS
		}
		if speed > 0 {
			e.MaxForceN = e.MaxRailOutputPowerW / speed
		} else {
			e.MaxForceN = DefaultMaxForceN
		}
		notes = append(notes, fmt.Sprintf("max force derived from power: %.0f N", e.MaxForceN))
	case e.MaxRailOutputPowerW <= 0:
		e.MaxRailOutputPowerW = DefaultMaxPowerW
		notes = append(notes, fmt.Sprintf("no power rating, using %.0f W", DefaultMaxPowerW))
	}
	e.PowerReduction = clamp(e.PowerReduction, 0, 1)
	if e.ContinuousForceTimeFactorS <= 0 {
		e.ContinuousForceTimeFactorS = DefaultContinuousForceTimeFactorS
	}
	return e, notes
}

// Source is the engine side of the drive as seen by the resolver
type Source interface {
	RunningPowerFraction() float64
	ApparentThrottle() float64
	FuelFlow() float64
	// TractiveForce reports the mechanical gearbox force; ok is false when
	// no mechanical gearbox drives the wheels
	TractiveForce(throttle, speedMpS float64) (force float64, ok bool)
	SetDemandedPower(w float64)
	Running() bool
	StopAll()
}

// Input is the per-tick driving situation
type Input struct {
	Dt               float64
	Throttle         float64
	Direction        Direction
	SpeedMpS         float64
	WheelSpeedMpS    float64
	WheelSlip        bool
	PlayerControlled bool
	MainPowerOn      bool
}

// Result is the outcome of one resolution
type Result struct {
	ForceN               float64
	Model                Model
	ApparentThrottle     float64
	RunningPowerFraction float64
	TractionSpeedMpS     float64
	FuelFlowLps          float64
	FuelExhausted        bool
}

// Resolver computes tractive force from the envelope and engine state.
// It keeps the running average force used by the continuous-force limiter.
type Resolver struct {
	env           Envelope
	tank          *FuelTank
	averageForceN float64
}

// NewResolver binds a derived envelope to a fuel tank. A nil tank means
// unlimited fuel.
func NewResolver(env Envelope, tank *FuelTank) *Resolver {
	return &Resolver{env: env, tank: tank}
}

func (r *Resolver) Envelope() Envelope     { return r.env }
func (r *Resolver) Tank() *FuelTank        { return r.tank }
func (r *Resolver) AverageForceN() float64 { return r.averageForceN }

// Reset clears the continuous-force history
func (r *Resolver) Reset() { r.averageForceN = 0 }

// Resolve computes this tick's tractive force and burns fuel for dt
func (r *Resolver) Resolve(src Source, in Input) Result {
	dt := math.Max(in.Dt, 0)
	env := r.env

	throttle := clamp(in.Throttle, 0, 1)
	apparent := throttle
	if in.PlayerControlled {
		apparent = math.Min(throttle, src.ApparentThrottle())
	}
	apparent = clamp(apparent, 0, 1)
	fraction := clamp(src.RunningPowerFraction(), 0, 1)

	speed := math.Abs(in.SpeedMpS)
	if in.WheelSlip && env.AdvancedAdhesion {
		speed = math.Abs(in.WheelSpeedMpS)
	}

	res := Result{
		Model:                ModelNone,
		ApparentThrottle:     apparent,
		RunningPowerFraction: fraction,
		TractionSpeedMpS:     speed,
	}

	gearForce, geared := src.TractiveForce(throttle, speed)
	var force float64
	switch {
	case !in.MainPowerOn && !geared:
		force = 0
	case geared:
		force = gearForce
		res.Model = ModelMechanical
	case env.Curves != nil:
		force = env.Curves.Lookup(apparent, speed) * fraction * (1 - env.PowerReduction)
		if force < 0 && !env.Curves.AllowNegative {
			force = 0
		}
		res.Model = ModelAdvanced
	default:
		force = r.basicForce(throttle, apparent, fraction, speed, in.WheelSlip)
		res.Model = ModelBasic
	}

	if in.Direction == Neutral {
		force = 0
	}
	force = r.limitContinuousForce(force, dt)

	if force > 0 {
		src.SetDemandedPower(force * speed)
	} else {
		src.SetDemandedPower(0)
	}

	if in.Direction < 0 {
		force = -force
	}
	res.ForceN = force

	res.FuelFlowLps = src.FuelFlow()
	if r.tank != nil {
		r.tank.Draw(res.FuelFlowLps * dt)
		if r.tank.Empty() && src.Running() {
			res.FuelExhausted = true
			src.StopAll()
		}
	}
	return res
}

// basicForce is the lesser of the force limit and the power limit at speed
func (r *Resolver) basicForce(throttle, apparent, fraction, speed float64, slip bool) float64 {
	env := r.env
	forceTerm := throttle * env.MaxForceN * (1 - env.PowerReduction) * fraction
	if speed <= minPowerSpeedMpS {
		return forceTerm
	}
	power := env.MaxRailOutputPowerW * fraction * apparent
	u := env.UnloadingSpeedMpS
	belowMax := env.MaxSpeedMpS <= 0 || speed < env.MaxSpeedMpS
	if u > 0 && speed > u && belowMax && !slip {
		power *= clamp(2-speed/u, 0, 1)
	}
	return math.Min(forceTerm, power/speed)
}

// limitContinuousForce derates the force by how far the running average
// force exceeds the continuous rating, and folds the result into that average.
func (r *Resolver) limitContinuousForce(force, dt float64) float64 {
	env := r.env
	if env.MaxForceN <= 0 || env.MaxContinuousForceN <= 0 || env.PowerReduction >= 1 {
		return force
	}
	k := (env.MaxForceN - env.MaxContinuousForceN) / (env.MaxForceN * env.MaxContinuousForceN)
	excess := math.Max(0, r.averageForceN-env.MaxContinuousForceN)
	force *= clamp(1-k*excess*(1-env.PowerReduction), 0, 1)

	tf := env.ContinuousForceTimeFactorS
	w := clamp((tf-dt)/tf, 0, 1)
	r.averageForceN = w*r.averageForceN + (1-w)*math.Abs(force)
	return force
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

// Package gearbox implements the discrete gear selector of a mechanically
// or hydraulically driven locomotive.
//
// The gearbox holds a current and a next gear index. A shift request moves
// the next index one step; the current index follows once the shift timer
// elapses. Neutral is index -1.
package gearbox

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Neutral is the gear index of a disengaged gearbox
const Neutral = -1

const (
	DefaultWheelRadiusM = 0.5
	// fullRPMForceDrop is the share of gear tractive force lost at max engine RPM
	fullRPMForceDrop = 0.3
)

var (
	ErrNoGears         = errors.New("gearbox has no gears")
	ErrGearOutOfRange  = errors.New("gear index out of range")
	ErrInvalidGearStep = errors.New("current and next gear differ by more than one step")
)

// Mode selects who decides when to shift
type Mode int

const (
	Manual Mode = iota
	Semiautomatic
	Automatic
)

var modeNames = [...]string{"manual", "semiautomatic", "automatic"}

func (m Mode) String() string {
	if m < Manual || m > Automatic {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// ParseMode maps a configuration string to a Mode. Empty means manual.
func ParseMode(s string) (Mode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return Manual, nil
	}
	for i, n := range modeNames {
		if n == name {
			return Mode(i), nil
		}
	}
	return Manual, fmt.Errorf("unknown gearbox mode %q", s)
}

// ClutchType selects how engine and gears are coupled during a shift
type ClutchType int

const (
	Friction ClutchType = iota
	Fluid
	NoClutch
)

var clutchNames = [...]string{"friction", "fluid", "none"}

func (c ClutchType) String() string {
	if c < Friction || c > NoClutch {
		return fmt.Sprintf("ClutchType(%d)", int(c))
	}
	return clutchNames[c]
}

// ParseClutch maps a configuration string to a ClutchType. Empty means friction.
func ParseClutch(s string) (ClutchType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return Friction, nil
	}
	for i, n := range clutchNames {
		if n == name {
			return ClutchType(i), nil
		}
	}
	return Friction, fmt.Errorf("unknown clutch type %q", s)
}

// Gear is one selectable ratio
type Gear struct {
	Ratio             float64 `json:"ratio"`
	MaxSpeedMpS       float64 `json:"max_speed_mps,omitempty"`
	MaxTractiveForceN float64 `json:"max_tractive_force_n"`
	UpShiftRPM        float64 `json:"up_shift_rpm,omitempty"`
	DownShiftRPM      float64 `json:"down_shift_rpm,omitempty"`
	CoastingForceN    float64 `json:"coasting_force_n,omitempty"`
	BackLoadForceN    float64 `json:"back_load_force_n,omitempty"`
}

// Params is the static description of a gearbox
type Params struct {
	Gears        []Gear
	Mode         Mode
	Clutch       ClutchType
	FreeWheel    bool
	ShiftTimeS   float64
	WheelRadiusM float64
	// engine envelope of the driving unit
	IdleRPM float64
	MaxRPM  float64
}

// Input is what the shift policy sees each tick
type Input struct {
	RPM      float64 // engine or shaft speed the policy compares against thresholds
	Throttle float64
	SpeedMpS float64
}

// ForceInput is what the gear force computation sees each tick
type ForceInput struct {
	Throttle      float64
	RPMRatio      float64
	SpeedMpS      float64
	PowerFraction float64
}

// Gearbox is the shift state machine
type Gearbox struct {
	params Params

	current    int
	next       int
	shiftTimer float64
	manualUp   bool
	manualDown bool
}

// New validates params and returns a gearbox in neutral
func New(p Params) (*Gearbox, error) {
	if len(p.Gears) == 0 {
		return nil, ErrNoGears
	}
	if p.WheelRadiusM <= 0 {
		p.WheelRadiusM = DefaultWheelRadiusM
	}
	if p.ShiftTimeS < 0 {
		p.ShiftTimeS = 0
	}
	gears := make([]Gear, len(p.Gears))
	for i, g := range p.Gears {
		if g.Ratio <= 0 {
			return nil, fmt.Errorf("gear %d: ratio must be positive", i)
		}
		if g.MaxSpeedMpS <= 0 && p.MaxRPM > 0 {
			g.MaxSpeedMpS = p.MaxRPM / 60 / g.Ratio * 2 * math.Pi * p.WheelRadiusM
		}
		gears[i] = g
	}
	p.Gears = gears

	g := &Gearbox{params: p}
	g.Initialize()
	return g, nil
}

// Initialize puts the gearbox in neutral with no pending requests
func (g *Gearbox) Initialize() {
	g.current = Neutral
	g.next = Neutral
	g.shiftTimer = 0
	g.manualUp = false
	g.manualDown = false
}

// Restore sets the persisted gear indices
func (g *Gearbox) Restore(current, next int) error {
	if !g.validIndex(current) || !g.validIndex(next) {
		return fmt.Errorf("%w: current %d next %d", ErrGearOutOfRange, current, next)
	}
	if current-next > 1 || next-current > 1 {
		return fmt.Errorf("%w: current %d next %d", ErrInvalidGearStep, current, next)
	}
	g.current = current
	g.next = next
	g.shiftTimer = 0
	g.manualUp = false
	g.manualDown = false
	return nil
}

func (g *Gearbox) validIndex(i int) bool {
	return i >= Neutral && i < len(g.params.Gears)
}

func (g *Gearbox) Params() Params    { return g.params }
func (g *Gearbox) Mode() Mode        { return g.params.Mode }
func (g *Gearbox) GearCount() int    { return len(g.params.Gears) }
func (g *Gearbox) CurrentGear() int  { return g.current }
func (g *Gearbox) NextGear() int     { return g.next }
func (g *Gearbox) Shifting() bool    { return g.current != g.next }
func (g *Gearbox) PendingUp() bool   { return g.manualUp }
func (g *Gearbox) PendingDown() bool { return g.manualDown }

// Gear returns the engaged gear, or nil in neutral
func (g *Gearbox) Gear() *Gear {
	if g.current == Neutral {
		return nil
	}
	gear := g.params.Gears[g.current]
	return &gear
}

// RequestUp records a driver request for the next higher gear
func (g *Gearbox) RequestUp() { g.manualUp = true }

// RequestDown records a driver request for the next lower gear
func (g *Gearbox) RequestDown() { g.manualDown = true }

// ShaftRPM is the engine-side speed of the engaged gear at the given road speed
func (g *Gearbox) ShaftRPM(speedMpS float64) float64 {
	if g.current == Neutral {
		return 0
	}
	wheelRPM := math.Abs(speedMpS) / (2 * math.Pi * g.params.WheelRadiusM) * 60
	return wheelRPM * g.params.Gears[g.current].Ratio
}

// ClutchLocked reports whether the engine is held at the shaft speed
func (g *Gearbox) ClutchLocked(speedMpS float64) bool {
	if g.current == Neutral || g.Shifting() || g.params.Clutch == Fluid {
		return false
	}
	return g.ShaftRPM(speedMpS) >= g.params.IdleRPM
}

// Advance runs the shift policy and the shift timer. It reports whether
// the current gear changed.
func (g *Gearbox) Advance(dt float64, in Input) bool {
	if dt < 0 {
		dt = 0
	}
	if !g.Shifting() {
		switch g.params.Mode {
		case Manual:
			g.resolveManual()
		case Semiautomatic:
			g.resolveSemiautomatic(in.RPM)
		case Automatic:
			g.manualUp = false
			g.manualDown = false
			g.resolveAutomatic(in)
		}
	}
	if !g.Shifting() {
		return false
	}
	g.shiftTimer += dt
	if g.shiftTimer < g.params.ShiftTimeS {
		return false
	}
	g.current = g.next
	g.shiftTimer = 0
	return true
}

func (g *Gearbox) resolveManual() {
	switch {
	case g.manualUp:
		g.manualUp = false
		g.beginShift(1)
	case g.manualDown:
		g.manualDown = false
		g.beginShift(-1)
	}
}

func (g *Gearbox) resolveSemiautomatic(rpm float64) {
	switch {
	case g.manualUp:
		g.manualUp = false
		g.autoGearUp(rpm)
	case g.manualDown:
		g.manualDown = false
		g.autoGearDown(rpm)
	}
}

func (g *Gearbox) resolveAutomatic(in Input) {
	if g.current == Neutral {
		if in.Throttle > 0 {
			g.beginShift(1)
		}
		return
	}
	gear := g.params.Gears[g.current]
	if gear.UpShiftRPM > 0 && in.RPM >= gear.UpShiftRPM && g.autoGearUp(in.RPM) {
		return
	}
	if g.current > 0 && gear.DownShiftRPM > 0 && in.RPM <= gear.DownShiftRPM {
		g.autoGearDown(in.RPM)
	}
}

// autoGearUp shifts up when the engine would stay above the higher gear's
// down-shift point afterwards. Neutral to first gear is always allowed.
func (g *Gearbox) autoGearUp(rpm float64) bool {
	target := g.current + 1
	if target >= len(g.params.Gears) {
		return false
	}
	if g.current != Neutral {
		next := g.params.Gears[target]
		after := rpm * next.Ratio / g.params.Gears[g.current].Ratio
		if next.DownShiftRPM > 0 && after < next.DownShiftRPM {
			return false
		}
	}
	return g.beginShift(1)
}

// autoGearDown shifts down unless the engine would overrun the lower gear's
// up-shift point afterwards.
func (g *Gearbox) autoGearDown(rpm float64) bool {
	target := g.current - 1
	if target < Neutral {
		return false
	}
	if target != Neutral {
		lower := g.params.Gears[target]
		after := rpm * lower.Ratio / g.params.Gears[g.current].Ratio
		if lower.UpShiftRPM > 0 && after > lower.UpShiftRPM {
			return false
		}
	}
	return g.beginShift(-1)
}

func (g *Gearbox) beginShift(step int) bool {
	target := g.current + step
	if !g.validIndex(target) {
		return false
	}
	g.next = target
	g.shiftTimer = 0
	return true
}

// TractiveForce is the force the engaged gear delivers at the rail.
// Negative values are resistive coasting or back-load forces.
func (g *Gearbox) TractiveForce(in ForceInput) float64 {
	if g.current == Neutral {
		return 0
	}
	// a fitted free-wheel disengages even a fluid clutch mid-shift
	if g.Shifting() && (g.params.FreeWheel || g.params.Clutch != Fluid) {
		return 0
	}
	gear := g.params.Gears[g.current]
	speed := math.Abs(in.SpeedMpS)
	if gear.MaxSpeedMpS > 0 && speed >= gear.MaxSpeedMpS {
		if g.params.FreeWheel {
			return 0
		}
		return -gear.BackLoadForceN
	}
	throttle := clampUnit(in.Throttle)
	if throttle == 0 {
		if g.params.FreeWheel {
			return 0
		}
		return -gear.CoastingForceN
	}
	r := clampUnit(in.RPMRatio)
	return gear.MaxTractiveForceN * throttle * (1 - fullRPMForceDrop*r*r) * clampUnit(in.PowerFraction)
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

package diesel

import (
	"errors"
	"fmt"

	"github.com/wricardo/mcp-training/locosim/loco/gearbox"
)

var ErrUnknownEngine = errors.New("unknown engine index")

// Bank is the ordered set of engines fitted to one locomotive
type Bank struct {
	units          []*Unit
	gearbox        *gearbox.Gearbox
	demandedPowerW float64
}

// NewBank builds one stopped unit per params entry, or a single default
// unit when params is empty.
func NewBank(params []Params) *Bank {
	if len(params) == 0 {
		params = []Params{DefaultParams()}
	}
	b := &Bank{units: make([]*Unit, len(params))}
	for i, p := range params {
		b.units[i] = NewUnit(i, p)
	}
	return b
}

// AttachGearbox couples a mechanical gearbox to the lead engine
func (b *Bank) AttachGearbox(g *gearbox.Gearbox) { b.gearbox = g }

func (b *Bank) Gearbox() *gearbox.Gearbox { return b.gearbox }
func (b *Bank) Units() []*Unit            { return b.units }
func (b *Bank) Len() int                  { return len(b.units) }

// Unit returns engine i
func (b *Bank) Unit(i int) (*Unit, error) {
	if i < 0 || i >= len(b.units) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEngine, i)
	}
	return b.units[i], nil
}

// HandleEvent delivers a power-supply command to engine i
func (b *Bank) HandleEvent(i int, ev PowerSupplyEvent) (bool, error) {
	u, err := b.Unit(i)
	if err != nil {
		return false, err
	}
	return u.HandleEvent(ev), nil
}

// StartAll starts every stopped engine
func (b *Bank) StartAll() {
	for _, u := range b.units {
		u.HandleEvent(StartEngine)
	}
}

// StopAll stops every running or starting engine
func (b *Bank) StopAll() {
	for _, u := range b.units {
		u.HandleEvent(StopEngine)
	}
}

// Reset returns every engine to its stopped state
func (b *Bank) Reset() {
	for _, u := range b.units {
		u.Reset()
	}
	b.demandedPowerW = 0
}

// SetDemandedPower records the power drawn at the rail on the last tick
func (b *Bank) SetDemandedPower(w float64) {
	if w < 0 {
		w = 0
	}
	b.demandedPowerW = w
}

func (b *Bank) DemandedPowerW() float64 { return b.demandedPowerW }

// Lead is the first running engine, or engine 0 when none run
func (b *Bank) Lead() *Unit {
	for _, u := range b.units {
		if u.State() == Running {
			return u
		}
	}
	return b.units[0]
}

// Running reports whether any engine is starting or running
func (b *Bank) Running() bool {
	for _, u := range b.units {
		if u.Active() {
			return true
		}
	}
	return false
}

// AllStopped reports whether every engine is fully stopped
func (b *Bank) AllStopped() bool {
	for _, u := range b.units {
		if u.State() != Stopped {
			return false
		}
	}
	return true
}

// MaxPowerW is the summed rated power of the bank
func (b *Bank) MaxPowerW() float64 {
	var total float64
	for _, u := range b.units {
		total += u.params.MaxPowerW
	}
	return total
}

// RunningPowerFraction is the rated power of running engines over the
// rated power of the bank, in [0, 1].
func (b *Bank) RunningPowerFraction() float64 {
	total := b.MaxPowerW()
	if total <= 0 {
		return 0
	}
	var running float64
	for _, u := range b.units {
		if u.State() == Running {
			running += u.params.MaxPowerW
		}
	}
	return clamp(running/total, 0, 1)
}

// ApparentThrottle is the highest RPM ratio among running engines. It is
// 0 when nothing runs.
func (b *Bank) ApparentThrottle() float64 {
	var best float64
	for _, u := range b.units {
		if u.State() == Running {
			if r := u.RPMRatio(); r > best {
				best = r
			}
		}
	}
	return best
}

// FuelFlow is the summed fuel flow of all engines in litres per second
func (b *Bank) FuelFlow() float64 {
	var total float64
	for _, u := range b.units {
		total += u.FuelFlowLps()
	}
	return total
}

// AvailablePowerW is the summed power the running engines can deliver now
func (b *Bank) AvailablePowerW() float64 {
	var total float64
	for _, u := range b.units {
		total += u.AvailablePowerW()
	}
	return total
}

// Advance integrates every engine by dt. The demanded power recorded on
// the previous tick is shared by rated power among running engines.
func (b *Bank) Advance(dt, throttle, speedMpS float64) {
	var runningRated float64
	for _, u := range b.units {
		if u.State() == Running {
			runningRated += u.params.MaxPowerW
		}
	}

	lead := b.Lead()
	var shaftRPM float64
	if b.gearbox != nil && b.gearbox.ClutchLocked(speedMpS) {
		shaftRPM = b.gearbox.ShaftRPM(speedMpS)
	}

	for _, u := range b.units {
		d := Demand{Throttle: throttle}
		if u.State() == Running && runningRated > 0 {
			d.PowerW = b.demandedPowerW * u.params.MaxPowerW / runningRated
		}
		if u == lead {
			d.TargetRPM = shaftRPM
		}
		u.Advance(dt, d)
	}
}

// TractiveForce is the gearbox force at the rail. ok is false when no
// mechanical gearbox is attached.
func (b *Bank) TractiveForce(throttle, speedMpS float64) (force float64, ok bool) {
	if b.gearbox == nil {
		return 0, false
	}
	return b.gearbox.TractiveForce(gearbox.ForceInput{
		Throttle:      throttle,
		RPMRatio:      b.Lead().RPMRatio(),
		SpeedMpS:      speedMpS,
		PowerFraction: b.RunningPowerFraction(),
	}), true
}

// Readouts returns the display state of every engine
func (b *Bank) Readouts() []Readout {
	out := make([]Readout, len(b.units))
	for i, u := range b.units {
		out[i] = u.Readout()
	}
	return out
}

// Snapshots returns the persisted state of every engine
func (b *Bank) Snapshots() []Snapshot {
	out := make([]Snapshot, len(b.units))
	for i, u := range b.units {
		out[i] = u.Snapshot()
	}
	return out
}

// Restore applies one snapshot per engine
func (b *Bank) Restore(snaps []Snapshot) error {
	if len(snaps) != len(b.units) {
		return fmt.Errorf("snapshot has %d engines, bank has %d", len(snaps), len(b.units))
	}
	for i, s := range snaps {
		b.units[i].Restore(s)
	}
	return nil
}

package diesel

import "math"

// Demand is what the rest of the locomotive asks of one engine for a tick
type Demand struct {
	Throttle float64 // [0, 1]
	PowerW   float64 // share of the power drawn at the rail
	// TargetRPM overrides the throttle-derived set-point when a locked
	// mechanical drive holds the crankshaft at the transmission speed
	TargetRPM float64
}

// Unit is a single diesel engine
type Unit struct {
	index       int
	params      Params
	corrections []string

	state      RunState
	stateTimer float64
	// restart is a start received while stopping, applied once stopped
	restart bool

	outputPowerW   float64
	fuelFlowLps    float64
	oilPressureKPa float64
	temperatureC   float64
	fanOn          bool

	rpm     atomicFloat
	load    atomicFloat
	exhaust atomicFloat
}

// NewUnit builds a stopped engine at idle from sanitized params
func NewUnit(index int, p Params) *Unit {
	u := &Unit{index: index}
	u.params, u.corrections = p.Sanitize()
	u.Reset()
	return u
}

// Reset returns the engine to its stopped, cold state
func (u *Unit) Reset() {
	u.state = Stopped
	u.stateTimer = 0
	u.restart = false
	u.outputPowerW = 0
	u.fuelFlowLps = 0
	u.oilPressureKPa = 0
	u.temperatureC = u.params.AmbientTemperatureC
	u.fanOn = false
	u.rpm.Store(u.params.IdleRPM)
	u.load.Store(0)
	u.exhaust.Store(0)
}

func (u *Unit) Index() int              { return u.index }
func (u *Unit) Params() Params          { return u.params }
func (u *Unit) Corrections() []string   { return u.corrections }
func (u *Unit) State() RunState         { return u.state }
func (u *Unit) RPM() float64            { return u.rpm.Load() }
func (u *Unit) LoadFraction() float64   { return u.load.Load() }
func (u *Unit) Exhaust() float64        { return u.exhaust.Load() }
func (u *Unit) FuelFlowLps() float64    { return u.fuelFlowLps }
func (u *Unit) OutputPowerW() float64   { return u.outputPowerW }
func (u *Unit) OilPressureKPa() float64 { return u.oilPressureKPa }
func (u *Unit) TemperatureC() float64   { return u.temperatureC }

// Active reports whether the engine is turning under its own power
func (u *Unit) Active() bool {
	return u.state == Starting || u.state == Running
}

// RPMRatio is the position of the current RPM between idle and max, in [0, 1]
func (u *Unit) RPMRatio() float64 {
	span := u.params.MaxRPM - u.params.IdleRPM
	if span <= 0 {
		return 0
	}
	return clamp((u.RPM()-u.params.IdleRPM)/span, 0, 1)
}

// AvailablePowerW is the power the engine can deliver at its current RPM
func (u *Unit) AvailablePowerW() float64 {
	if u.state != Running {
		return 0
	}
	return u.params.MaxPowerW * u.RPMRatio()
}

// Overheat reports a coolant temperature above the configured maximum
func (u *Unit) Overheat() bool {
	return u.temperatureC > u.params.MaxTemperatureC
}

// LowOilPressure reports a running engine whose oil pressure lags under the minimum
func (u *Unit) LowOilPressure() bool {
	return u.state == Running && u.params.MinOilPressureKPa > 0 &&
		u.oilPressureKPa < 0.9*u.params.MinOilPressureKPa
}

// HandleEvent applies a power-supply command. It returns false when the
// command does not apply to the current state. A start while stopping is
// queued and the engine cranks again as soon as it has stopped; a stop
// cancels a queued start.
func (u *Unit) HandleEvent(ev PowerSupplyEvent) bool {
	switch ev {
	case StartEngine:
		switch u.state {
		case Stopped:
			u.state = Starting
			u.stateTimer = 0
			return true
		case Stopping:
			if u.restart {
				return false
			}
			u.restart = true
			return true
		}
		return false
	case StopEngine:
		switch u.state {
		case Running, Starting:
			u.state = Stopping
			u.stateTimer = 0
			return true
		case Stopping:
			if !u.restart {
				return false
			}
			u.restart = false
			return true
		}
		return false
	}
	return false
}

// RestartPending reports a start queued behind a stop
func (u *Unit) RestartPending() bool { return u.restart }

// Advance integrates the engine by dt seconds
func (u *Unit) Advance(dt float64, d Demand) {
	if dt < 0 {
		dt = 0
	}
	p := u.params

	switch u.state {
	case Starting:
		u.stateTimer += dt
		if u.stateTimer >= p.StartingTimeS {
			u.state = Running
			u.stateTimer = 0
		}
	case Stopping:
		u.stateTimer += dt
		if u.stateTimer >= p.StoppingTimeS {
			u.state = Stopped
			u.stateTimer = 0
			if u.restart {
				u.restart = false
				u.state = Starting
			}
		}
	}

	target := p.IdleRPM
	if u.state == Running {
		target = p.IdleRPM + (p.MaxRPM-p.IdleRPM)*clamp(d.Throttle, 0, 1)
		if d.TargetRPM > 0 {
			target = d.TargetRPM
		}
		target = clamp(target, p.IdleRPM, p.GovernorRPM)
	}
	u.stepRPM(dt, target)

	ratio := u.RPMRatio()

	u.outputPowerW = 0
	u.fuelFlowLps = 0
	if u.state == Running {
		u.outputPowerW = math.Min(math.Max(d.PowerW, 0), u.AvailablePowerW())
		u.fuelFlowLps = p.IdleFuelLps + (p.MaxFuelLps-p.IdleFuelLps)*ratio
	}
	load := 0.0
	if p.MaxPowerW > 0 {
		load = clamp(u.outputPowerW/p.MaxPowerW, 0, 1)
	}
	u.load.Store(load)

	oilTarget := 0.0
	if u.Active() {
		oilTarget = p.MinOilPressureKPa + (p.MaxOilPressureKPa-p.MinOilPressureKPa)*ratio
	}
	u.oilPressureKPa += (oilTarget - u.oilPressureKPa) * clamp(dt/oilPressureTimeConstant, 0, 1)

	u.temperatureC += (u.temperatureTarget(ratio, load) - u.temperatureC) *
		clamp(dt/p.TemperatureTimeConstantS, 0, 1)

	exhaustTarget := 0.0
	if u.state == Running {
		exhaustTarget = math.Max(ratio, load)
	}
	e := u.Exhaust()
	u.exhaust.Store(clamp(e+(exhaustTarget-e)*clamp(dt/exhaustTimeConstant, 0, 1), 0, 1))
}

// stepRPM moves toward target no faster than the configured change rates
func (u *Unit) stepRPM(dt, target float64) {
	p := u.params
	rpm := u.RPM()
	delta := target - rpm
	if up := p.RPMChangeUpRate * dt; delta > up {
		delta = up
	} else if down := p.RPMChangeDownRate * dt; delta < -down {
		delta = -down
	}
	u.rpm.Store(clamp(rpm+delta, p.IdleRPM, p.MaxRPM))
}

// temperatureTarget is the coolant temperature the engine settles toward
func (u *Unit) temperatureTarget(ratio, load float64) float64 {
	p := u.params
	ambient := p.AmbientTemperatureC
	if u.state != Running {
		u.fanOn = false
		return ambient
	}
	// uncooled, a fully loaded engine settles above its limit
	heat := ambient + (p.MaxTemperatureC+normalTemperatureMargin-ambient)*(0.5+0.5*load)
	normal := p.MaxTemperatureC - normalTemperatureMargin

	switch p.Cooling {
	case CoolingNone:
		return heat
	case CoolingMechanical:
		return math.Max(ambient, heat-2*normalTemperatureMargin*(0.5+0.5*ratio))
	case CoolingHysteresis:
		if u.temperatureC > p.MaxTemperatureC-hysteresisBandC {
			u.fanOn = true
		} else if u.temperatureC < normal {
			u.fanOn = false
		}
		if u.fanOn {
			return ambient
		}
		return heat
	default:
		return math.Min(heat, normal)
	}
}

// Readout returns the engine state for display
func (u *Unit) Readout() Readout {
	return Readout{
		Index:          u.index,
		State:          u.state,
		RPM:            u.RPM(),
		LoadPercent:    u.LoadFraction() * 100,
		OutputPowerW:   u.outputPowerW,
		FuelFlowLph:    u.fuelFlowLps * 3600,
		OilPressureKPa: u.oilPressureKPa,
		TemperatureC:   u.temperatureC,
		Exhaust:        u.Exhaust(),
		FanOn:          u.fanOn,
		Overheat:       u.Overheat(),
		LowOilPressure: u.LowOilPressure(),
	}
}

// Snapshot captures the state needed to resume the engine
func (u *Unit) Snapshot() Snapshot {
	return Snapshot{State: u.state, RPM: u.RPM(), RestartPending: u.restart}
}

// Restore applies a snapshot, clamping the RPM to the engine envelope
func (u *Unit) Restore(s Snapshot) {
	u.state = s.State
	if u.state < Stopped || u.state > Stopping {
		u.state = Stopped
	}
	u.stateTimer = 0
	u.restart = s.RestartPending && u.state == Stopping
	u.rpm.Store(clamp(s.RPM, u.params.IdleRPM, u.params.MaxRPM))
	if u.state == Running {
		ratio := u.RPMRatio()
		u.oilPressureKPa = u.params.MinOilPressureKPa + (u.params.MaxOilPressureKPa-u.params.MinOilPressureKPa)*ratio
	}
}

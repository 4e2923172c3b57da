package locomotive

import (
	"fmt"
	"math"

	"github.com/wricardo/mcp-training/locosim/loco/diesel"
	"github.com/wricardo/mcp-training/locosim/loco/gearbox"
	"github.com/wricardo/mcp-training/locosim/loco/traction"
)

// Update advances the locomotive by one tick: engine bank, then gearbox,
// then traction and fuel. Engines are stopped on the same tick the tank
// runs dry.
func (l *Locomotive) Update(in Inputs) (Output, error) {
	if !l.initialized {
		return Output{}, ErrNotInitialized
	}
	dt := math.Max(in.Dt, 0)
	throttle := math.Max(0, math.Min(1, in.Throttle))
	speed := math.Abs(in.SpeedMpS)

	states := make([]diesel.RunState, l.bank.Len())
	for i, u := range l.bank.Units() {
		states[i] = u.State()
	}
	prevGear := l.currentGear()

	l.bank.Advance(dt, throttle, speed)

	if l.gearbox != nil {
		policyRPM := l.bank.Lead().RPM()
		if l.gearbox.CurrentGear() != gearbox.Neutral {
			policyRPM = l.gearbox.ShaftRPM(speed)
		}
		l.gearbox.Advance(dt, gearbox.Input{RPM: policyRPM, Throttle: throttle, SpeedMpS: speed})
	}

	res := l.resolver.Resolve(l.bank, traction.Input{
		Dt:               dt,
		Throttle:         throttle,
		Direction:        in.Direction,
		SpeedMpS:         speed,
		WheelSpeedMpS:    in.WheelSpeedMpS,
		WheelSlip:        in.WheelSlip,
		PlayerControlled: in.PlayerControlled,
		MainPowerOn:      l.MainPowerOn(),
	})
	l.elapsedS += dt

	var events []Event
	if res.FuelExhausted {
		events = append(events, Event{Kind: EventFuelExhausted, Message: "Fuel tank empty, engines stopping"})
		l.log.Warn().Float64("elapsed_s", l.elapsedS).Msg("Fuel exhausted, stopping all engines")
	}

	for i, u := range l.bank.Units() {
		if s := u.State(); s != states[i] {
			events = append(events, Event{
				Kind:    EventEngineState,
				Engine:  i,
				State:   s.String(),
				Message: fmt.Sprintf("Engine %d %s", i+1, s),
			})
		}
		a := alarmState{overheat: u.Overheat(), lowOil: u.LowOilPressure()}
		if a.overheat && !l.alarms[i].overheat {
			events = append(events, Event{Kind: EventOverheat, Engine: i,
				Message: fmt.Sprintf("Engine %d overheating at %.0fC", i+1, u.TemperatureC())})
		}
		if a.lowOil && !l.alarms[i].lowOil {
			events = append(events, Event{Kind: EventLowOilPressure, Engine: i,
				Message: fmt.Sprintf("Engine %d low oil pressure %.0f kPa", i+1, u.OilPressureKPa())})
		}
		l.alarms[i] = a
	}

	if g := l.currentGear(); g != prevGear {
		events = append(events, Event{Kind: EventGearChanged, Gear: g, Message: gearMessage(g)})
	}

	powerOn := l.MainPowerOn()
	if powerOn != l.powerOn {
		if powerOn {
			events = append(events, Event{Kind: EventPowerOn, Message: "Main power on"})
		} else {
			events = append(events, Event{Kind: EventPowerOff, Message: "Main power off"})
		}
		l.powerOn = powerOn
	} else if res.FuelExhausted {
		events = append(events, Event{Kind: EventPowerOff, Message: "Main power off"})
	}

	l.last = Output{
		ForceN:           res.ForceN,
		Model:            res.Model,
		ApparentThrottle: res.ApparentThrottle,
		PowerFraction:    res.RunningPowerFraction,
		FuelLevelL:       l.tank.LevelL,
		FuelFlowLph:      res.FuelFlowLps * 3600,
		Gear:             l.currentGear(),
		NextGear:         l.nextGear(),
		MainPowerOn:      powerOn,
		Events:           events,
	}
	return l.last, nil
}

func gearMessage(g int) string {
	if g == gearbox.Neutral {
		return "Gearbox in neutral"
	}
	return fmt.Sprintf("Gear %d engaged", g+1)
}

// Readout returns the display state of the locomotive
func (l *Locomotive) Readout() Readout {
	r := Readout{
		Name:                 l.config.Name,
		ElapsedS:             l.elapsedS,
		Transmission:         l.transmission.String(),
		Model:                l.last.Model,
		ForceN:               l.last.ForceN,
		AverageForceN:        l.resolver.AverageForceN(),
		ApparentThrottle:     l.last.ApparentThrottle,
		RunningPowerFraction: l.bank.RunningPowerFraction(),
		MainPowerOn:          l.MainPowerOn(),
		TractionCutOff:       l.tractionCutOff,
		FuelLevelL:           l.tank.LevelL,
		FuelCapacityL:        l.tank.CapacityL,
		FuelFlowLph:          l.bank.FuelFlow() * 3600,
		Engines:              l.bank.Readouts(),
	}
	if r.Model == "" {
		r.Model = traction.ModelNone
	}
	if gb := l.gearbox; gb != nil {
		r.Gearbox = &GearReadout{
			Mode:     gb.Mode().String(),
			Current:  gb.CurrentGear(),
			Next:     gb.NextGear(),
			Count:    gb.GearCount(),
			Shifting: gb.Shifting(),
		}
	}
	return r
}

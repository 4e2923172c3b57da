// Package diesel models the prime movers of a diesel locomotive.
//
// A Unit is a single diesel engine with its own run-state machine
// (Stopped, Starting, Running, Stopping), RPM governor dynamics, and a
// fuel, oil-pressure and temperature model. A Bank is the ordered set of
// units fitted to one locomotive; it aggregates the running power fraction,
// the apparent throttle and the fuel flow, and, when a mechanical gearbox is
// attached, the gearbox tractive force.
//
// Scalars that sound, HUD or animation code may sample from another
// goroutine (RPM, load and exhaust intensity) are published with a single
// atomic store after they have been clamped, so a reader never observes a
// value outside [idle, max] RPM or [0, 1].
//
// Usage:
//
//	bank := diesel.NewBank([]diesel.Params{{IdleRPM: 300, MaxRPM: 1000, MaxPowerW: 1.5e6}})
//	bank.StartAll()
//	for range ticks {
//		bank.Advance(dt, throttle, speed)
//	}
//	fraction := bank.RunningPowerFraction()
package diesel

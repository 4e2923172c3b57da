// Package locomotive provides the propulsion core of a diesel locomotive.
//
// The locomotive package ties together:
//   - An engine bank of one or more diesel units (package diesel)
//   - An optional gearbox for mechanical and hydraulic drives (package gearbox)
//   - The traction resolver and fuel tank (package traction)
//   - Configuration loading and validation
//   - Snapshot and restore of the persisted state
//
// Lifecycle:
//
// A Locomotive is built from a Config with New, put into its default state
// with Initialize, and optionally brought back to a saved state with Restore.
// Restore before Initialize fails with ErrNotInitialized.
//
// Usage:
//
//	config, err := locomotive.LoadConfigFile("configs/class37.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	loco, err := locomotive.New(config, locomotive.WithLogger(logger))
//	if err != nil {
//		log.Fatal(err)
//	}
//	loco.Initialize()
//	loco.StartEngine(locomotive.AllEngines)
//
//	out, err := loco.Update(locomotive.Inputs{
//		Dt:        0.1,
//		Throttle:  0.8,
//		Direction: traction.Forward,
//		SpeedMpS:  12,
//	})
//
// Update order:
//
// Each tick advances the engine bank first, then the gearbox, then resolves
// tractive force and fuel. Output carries the signed force at the rail and
// any discrete events (engine state changes, gear changes, alarms, fuel
// exhaustion) raised during the tick.
package locomotive

// Package validate checks locomotive configuration files. For each file it
// verifies:
//   - JSON structure, rejecting unknown fields
//   - the rules enforced by locomotive.ValidateConfig
//   - build-time corrections the locomotive would apply, reported as warnings
//   - a trial run: engines start and the locomotive produces tractive force
//
// and reports a few heuristics such as fuel endurance and gear top speeds.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wricardo/mcp-training/locosim/loco/diesel"
	"github.com/wricardo/mcp-training/locosim/loco/gearbox"
	"github.com/wricardo/mcp-training/locosim/loco/locomotive"
	"github.com/wricardo/mcp-training/locosim/loco/traction"
)

const (
	trialDt       = 0.1
	trialSeconds  = 60.0
	trialSpeedMpS = 1.0
)

// Result captures the outcome of validating a single file. Errors make the
// file invalid; Warnings and Info are reported either way.
type Result struct {
	File     string   `json:"file"`
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Info     []string `json:"info,omitempty"`
}

func (r *Result) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) info(format string, args ...any) {
	r.Info = append(r.Info, fmt.Sprintf(format, args...))
}

// File loads and validates a single configuration file
func File(path string) Result {
	result := Result{File: filepath.Base(path), Valid: true}

	data, err := os.ReadFile(path)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var config locomotive.Config
	if err := dec.Decode(&config); err != nil {
		result.fail("Invalid JSON: %v", err)
		return result
	}

	Config(&config, &result)
	return result
}

// Config validates a decoded configuration into result
func Config(config *locomotive.Config, result *Result) {
	if err := locomotive.ValidateConfig(config); err != nil {
		result.fail("%v", err)
		return
	}

	var logs bytes.Buffer
	loco, err := locomotive.New(config, locomotive.WithLogger(zerolog.New(&logs).Level(zerolog.WarnLevel)))
	if err != nil {
		result.fail("Failed to build locomotive: %v", err)
		return
	}
	result.Warnings = append(result.Warnings, logMessages(&logs)...)

	analyze(config, loco, result)
	loco.Initialize()
	trial(loco, result)
}

// logMessages extracts the message of each JSON log line
func logMessages(r io.Reader) []string {
	var out []string
	dec := json.NewDecoder(r)
	for {
		var line struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := dec.Decode(&line); err != nil {
			return out
		}
		msg := line.Message
		if line.Error != "" {
			msg += ": " + line.Error
		}
		out = append(out, msg)
	}
}

// trial starts every engine and runs at full throttle against a slowly
// moving train
func trial(loco *locomotive.Locomotive, result *Result) {
	loco.StartEngine(locomotive.AllEngines)
	if gb := loco.Gearbox(); gb != nil && gb.Mode() != gearbox.Automatic {
		loco.ShiftUp()
	}

	startL := loco.Tank().LevelL
	var peakN float64
	for t := 0.0; t < trialSeconds; t += trialDt {
		out, err := loco.Update(locomotive.Inputs{
			Dt:        trialDt,
			Throttle:  1,
			Direction: traction.Forward,
			SpeedMpS:  trialSpeedMpS,
		})
		if err != nil {
			result.fail("Trial run failed: %v", err)
			return
		}
		peakN = max(peakN, out.ForceN)
	}

	r := loco.Readout()
	for _, e := range r.Engines {
		if e.State != diesel.Running {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Engine %d is %s after %.0fs of the trial run", e.Index+1, e.State, trialSeconds))
		}
	}
	if peakN <= 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("No tractive force after %.0fs at full throttle", trialSeconds))
		return
	}
	result.info("✓ Trial: peak force %.1f kN, %.1f L burnt in %.0fs", peakN/1000, startL-r.FuelLevelL, trialSeconds)
}

// analyze adds heuristics about the configuration
func analyze(config *locomotive.Config, loco *locomotive.Locomotive, result *Result) {
	engines := len(config.Engines)
	var powerW, idleLph, maxLph float64
	for _, e := range config.Engines {
		powerW += e.MaxPowerW
		idleLph += e.IdleFuelLph
		maxLph += e.MaxFuelLph
	}

	transmission := config.Transmission
	if transmission == "" {
		transmission = "electric"
	}
	result.info("✓ Name: %s", config.Name)
	result.info("✓ Engines: %d, %.0f kW total, %s transmission", max(engines, 1), powerW/1000, transmission)

	capacity := config.Fuel.CapacityL
	if capacity <= 0 {
		capacity = locomotive.DefaultTankL
	}
	if maxLph > 0 {
		result.info("✓ Fuel: %.0f L, %.1f h at full load, %.1f h idling", capacity, capacity/maxLph, capacity/max(idleLph, 1e-9))
	} else {
		result.info("✓ Fuel: %.0f L", capacity)
	}

	if len(config.Traction.ForceCurves) > 0 {
		result.info("✓ Force table: %d throttle curves", len(config.Traction.ForceCurves))
	}

	if gb := loco.Gearbox(); gb != nil {
		gears := gb.Params().Gears
		speeds := make([]string, len(gears))
		for i, g := range gears {
			speeds[i] = fmt.Sprintf("%.0f", g.MaxSpeedMpS*3.6)
		}
		result.info("✓ Gearbox: %s, %d gears, top speeds %s km/h", gb.Mode(), len(gears), strings.Join(speeds, "/"))
	}
}

// Dir validates every *.json file in dir, sorted by name
func Dir(dir string) ([]Result, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("finding config files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no config files in %s", dir)
	}
	sort.Strings(files)

	results := make([]Result, 0, len(files))
	for _, file := range files {
		results = append(results, File(file))
	}
	return results, nil
}

// Report prints a concise report and returns whether every file is valid
func Report(w io.Writer, results []Result) bool {
	allValid := true
	for _, result := range results {
		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Fprintln(w, "✅ VALID")
		} else {
			fmt.Fprintln(w, "❌ INVALID")
			allValid = false
		}
		for _, e := range result.Errors {
			fmt.Fprintln(w, "  ❌ "+e)
		}
		for _, warn := range result.Warnings {
			fmt.Fprintln(w, "  ⚠ "+warn)
		}
		for _, info := range result.Info {
			fmt.Fprintln(w, "  "+info)
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Fprintln(w, "✅ All configurations are valid!")
	} else {
		fmt.Fprintln(w, "❌ Some configurations have errors")
	}
	return allValid
}

package locomotive

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/wricardo/mcp-training/locosim/loco/diesel"
	"github.com/wricardo/mcp-training/locosim/loco/gearbox"
	"github.com/wricardo/mcp-training/locosim/loco/traction"
)

const (
	MaxEngines         = 8
	MaxGears           = 16
	DefaultAmbientC    = 20.0
	DefaultTankL       = 4000.0
	DefaultTrainMassKg = 120000.0
)

// Config is the JSON description of one locomotive type
type Config struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Engines      []EngineConfig `json:"engines"`
	Transmission string         `json:"transmission,omitempty"`
	Gearbox      *GearboxConfig `json:"gearbox,omitempty"`
	Traction     TractionConfig `json:"traction"`
	Fuel         FuelConfig     `json:"fuel"`
	// TrainMassKg feeds the host's point-mass stand-in for train dynamics
	TrainMassKg float64 `json:"train_mass_kg,omitempty"`
}

// EngineConfig is one diesel engine. Fuel rates are litres per hour.
type EngineConfig struct {
	IdleRPM                  float64  `json:"idle_rpm"`
	MaxRPM                   float64  `json:"max_rpm"`
	GovernorRPM              float64  `json:"governor_rpm,omitempty"`
	RPMChangeUpRate          float64  `json:"rpm_change_up_rate,omitempty"`
	RPMChangeDownRate        float64  `json:"rpm_change_down_rate,omitempty"`
	MaxPowerW                float64  `json:"max_power_w"`
	IdleFuelLph              float64  `json:"idle_fuel_lph"`
	MaxFuelLph               float64  `json:"max_fuel_lph"`
	MinOilPressureKPa        float64  `json:"min_oil_pressure_kpa,omitempty"`
	MaxOilPressureKPa        float64  `json:"max_oil_pressure_kpa,omitempty"`
	MaxTemperatureC          float64  `json:"max_temperature_c,omitempty"`
	AmbientTemperatureC      *float64 `json:"ambient_temperature_c,omitempty"`
	TemperatureTimeConstantS float64  `json:"temperature_time_constant_s,omitempty"`
	Cooling                  string   `json:"cooling,omitempty"`
	StartingTimeS            float64  `json:"starting_time_s,omitempty"`
	StoppingTimeS            float64  `json:"stopping_time_s,omitempty"`
}

// GearboxConfig describes the gear set of a geared locomotive
type GearboxConfig struct {
	Mode         string         `json:"mode"`
	Clutch       string         `json:"clutch,omitempty"`
	FreeWheel    bool           `json:"free_wheel,omitempty"`
	ShiftTimeS   float64        `json:"shift_time_s,omitempty"`
	WheelRadiusM float64        `json:"wheel_radius_m,omitempty"`
	Gears        []gearbox.Gear `json:"gears"`
}

// TractionConfig is the force and power envelope
type TractionConfig struct {
	MaxForceN                    float64          `json:"max_force_n,omitempty"`
	MaxContinuousForceN          float64          `json:"max_continuous_force_n,omitempty"`
	MaxRailOutputPowerW          float64          `json:"max_rail_output_power_w,omitempty"`
	SpeedOfMaxContinuousForceMpS float64          `json:"speed_of_max_continuous_force_mps,omitempty"`
	UnloadingSpeedMpS            float64          `json:"unloading_speed_mps,omitempty"`
	MaxSpeedMpS                  float64          `json:"max_speed_mps,omitempty"`
	PowerReduction               float64          `json:"power_reduction,omitempty"`
	ContinuousForceTimeFactorS   float64          `json:"continuous_force_time_factor_s,omitempty"`
	AdvancedAdhesion             bool             `json:"advanced_adhesion,omitempty"`
	ForceCurves                  []traction.Curve `json:"force_curves,omitempty"`
	AllowNegativeForce           bool             `json:"allow_negative_force,omitempty"`
}

// FuelConfig sizes the tank. A missing initial level means a full tank.
type FuelConfig struct {
	CapacityL float64  `json:"capacity_l"`
	InitialL  *float64 `json:"initial_l,omitempty"`
}

// ValidateConfig rejects configurations that cannot be built. Values that
// are merely implausible are corrected at build time with a warning.
func ValidateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}
	if len(config.Engines) > MaxEngines {
		return fmt.Errorf("config validation: at most %d engines supported, got %d", MaxEngines, len(config.Engines))
	}

	for i, e := range config.Engines {
		if e.MaxRPM <= 0 {
			return fmt.Errorf("config validation: engines[%d].max_rpm must be positive", i)
		}
		if e.MaxPowerW < 0 {
			return fmt.Errorf("config validation: engines[%d].max_power_w must not be negative", i)
		}
		if e.IdleFuelLph < 0 || e.MaxFuelLph < 0 {
			return fmt.Errorf("config validation: engines[%d] fuel rates must not be negative", i)
		}
		if e.MaxFuelLph > 0 && e.MaxFuelLph < e.IdleFuelLph {
			return fmt.Errorf("config validation: engines[%d].max_fuel_lph below idle_fuel_lph", i)
		}
		if e.MaxOilPressureKPa > 0 && e.MaxOilPressureKPa < e.MinOilPressureKPa {
			return fmt.Errorf("config validation: engines[%d].max_oil_pressure_kpa below min_oil_pressure_kpa", i)
		}
		if _, err := diesel.ParseCooling(e.Cooling); err != nil {
			return fmt.Errorf("config validation: engines[%d]: %w", i, err)
		}
	}

	if gb := config.Gearbox; gb != nil {
		if len(gb.Gears) == 0 || len(gb.Gears) > MaxGears {
			return fmt.Errorf("config validation: gearbox must have between 1 and %d gears, got %d", MaxGears, len(gb.Gears))
		}
		if _, err := gearbox.ParseMode(gb.Mode); err != nil {
			return fmt.Errorf("config validation: gearbox: %w", err)
		}
		if _, err := gearbox.ParseClutch(gb.Clutch); err != nil {
			return fmt.Errorf("config validation: gearbox: %w", err)
		}
		for i, g := range gb.Gears {
			if g.Ratio <= 0 {
				return fmt.Errorf("config validation: gearbox.gears[%d].ratio must be positive", i)
			}
			if g.UpShiftRPM > 0 && g.DownShiftRPM >= g.UpShiftRPM {
				return fmt.Errorf("config validation: gearbox.gears[%d] down_shift_rpm must be below up_shift_rpm", i)
			}
			if g.MaxTractiveForceN < 0 || g.CoastingForceN < 0 || g.BackLoadForceN < 0 {
				return fmt.Errorf("config validation: gearbox.gears[%d] forces must not be negative", i)
			}
		}
	}

	tc := config.Traction
	if tc.PowerReduction < 0 || tc.PowerReduction > 1 {
		return fmt.Errorf("config validation: traction.power_reduction must be between 0 and 1, got %v", tc.PowerReduction)
	}
	if tc.MaxForceN < 0 || tc.MaxContinuousForceN < 0 || tc.MaxRailOutputPowerW < 0 {
		return fmt.Errorf("config validation: traction ratings must not be negative")
	}
	if tc.MaxForceN > 0 && tc.MaxContinuousForceN > tc.MaxForceN {
		return fmt.Errorf("config validation: traction.max_continuous_force_n exceeds max_force_n")
	}
	if len(tc.ForceCurves) > 0 {
		if _, err := traction.NewForceTable(tc.ForceCurves, tc.AllowNegativeForce); err != nil {
			return fmt.Errorf("config validation: traction.force_curves: %w", err)
		}
	}

	if config.Fuel.CapacityL < 0 {
		return fmt.Errorf("config validation: fuel.capacity_l must not be negative")
	}
	if in := config.Fuel.InitialL; in != nil && (*in < 0 || (config.Fuel.CapacityL > 0 && *in > config.Fuel.CapacityL)) {
		return fmt.Errorf("config validation: fuel.initial_l must be between 0 and capacity_l")
	}
	if config.TrainMassKg < 0 {
		return fmt.Errorf("config validation: train_mass_kg must not be negative")
	}
	return nil
}

// LoadConfigFile reads and validates a configuration file
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := ValidateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// DefaultConfig is a single-engine diesel-electric used when no
// configuration is available
func DefaultConfig() *Config {
	return &Config{
		Name:         "default",
		Description:  "Single-engine diesel-electric road switcher",
		Transmission: "electric",
		Engines: []EngineConfig{{
			IdleRPM:           400,
			MaxRPM:            1000,
			RPMChangeUpRate:   100,
			RPMChangeDownRate: 150,
			MaxPowerW:         1500000,
			IdleFuelLph:       25,
			MaxFuelLph:        380,
			MinOilPressureKPa: 150,
			MaxOilPressureKPa: 450,
			MaxTemperatureC:   95,
			Cooling:           "proportional",
			StartingTimeS:     5,
			StoppingTimeS:     3,
		}},
		Traction: TractionConfig{
			MaxForceN:                    250000,
			MaxContinuousForceN:          180000,
			MaxRailOutputPowerW:          1200000,
			SpeedOfMaxContinuousForceMpS: 6,
			MaxSpeedMpS:                  35,
		},
		Fuel:        FuelConfig{CapacityL: DefaultTankL},
		TrainMassKg: DefaultTrainMassKg,
	}
}

func (e EngineConfig) params() (diesel.Params, error) {
	cooling, err := diesel.ParseCooling(e.Cooling)
	if err != nil {
		return diesel.Params{}, err
	}
	ambient := DefaultAmbientC
	if e.AmbientTemperatureC != nil {
		ambient = *e.AmbientTemperatureC
	}
	return diesel.Params{
		IdleRPM:                  e.IdleRPM,
		MaxRPM:                   e.MaxRPM,
		GovernorRPM:              e.GovernorRPM,
		RPMChangeUpRate:          e.RPMChangeUpRate,
		RPMChangeDownRate:        e.RPMChangeDownRate,
		MaxPowerW:                e.MaxPowerW,
		IdleFuelLps:              e.IdleFuelLph / 3600,
		MaxFuelLps:               e.MaxFuelLph / 3600,
		MinOilPressureKPa:        e.MinOilPressureKPa,
		MaxOilPressureKPa:        e.MaxOilPressureKPa,
		MaxTemperatureC:          e.MaxTemperatureC,
		AmbientTemperatureC:      ambient,
		TemperatureTimeConstantS: e.TemperatureTimeConstantS,
		Cooling:                  cooling,
		StartingTimeS:            e.StartingTimeS,
		StoppingTimeS:            e.StoppingTimeS,
	}, nil
}

package service

import (
	"time"

	"github.com/wricardo/mcp-training/locosim/loco/locomotive"
	"github.com/wricardo/mcp-training/locosim/loco/telemetry"
)

const (
	DefaultDt    = 0.1
	MinDt        = 0.001
	MaxDt        = 1.0
	MaxStepTicks = 6000
)

// Controls is the driver's cab input held between steps
type Controls struct {
	Throttle         float64 `json:"throttle"`
	Direction        string  `json:"direction"`
	PlayerControlled bool    `json:"player_controlled"`
	TractionCutOff   bool    `json:"traction_cut_off"`
}

// ControlsRequest updates only the fields that are set
type ControlsRequest struct {
	Throttle         *float64 `json:"throttle,omitempty"`
	Direction        *string  `json:"direction,omitempty"`
	PlayerControlled *bool    `json:"player_controlled,omitempty"`
	TractionCutOff   *bool    `json:"traction_cut_off,omitempty"`
}

// StepRequest advances a session by a number of ticks. When SpeedMpS is
// set the caller owns train dynamics; otherwise the point-mass train
// model integrates the resulting force.
type StepRequest struct {
	Ticks         int      `json:"ticks"`
	Dt            float64  `json:"dt"`
	Throttle      *float64 `json:"throttle,omitempty"`
	SpeedMpS      *float64 `json:"speed_mps,omitempty"`
	WheelSpeedMpS *float64 `json:"wheel_speed_mps,omitempty"`
	WheelSlip     bool     `json:"wheel_slip,omitempty"`
}

// SessionInfo provides information about a driving session
type SessionInfo struct {
	ID             string              `json:"id"`
	ConfigName     string              `json:"config_name"`
	CreatedAt      time.Time           `json:"created_at"`
	LastAccessedAt time.Time           `json:"last_accessed_at"`
	Ticks          int64               `json:"ticks"`
	Controls       Controls            `json:"controls"`
	Train          TrainState          `json:"train"`
	Readout        *locomotive.Readout `json:"readout"`
}

// DriveEvent is a discrete event raised while stepping or commanding a session
type DriveEvent struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Tick      int64     `json:"tick"`
	Engine    *int      `json:"engine,omitempty"`
	Gear      *int      `json:"gear,omitempty"`
}

// StepResult contains the outcome of a step call
type StepResult struct {
	TicksExecuted int                 `json:"ticks_executed"`
	Dt            float64             `json:"dt"`
	Output        locomotive.Output   `json:"output"`
	Train         TrainState          `json:"train"`
	Events        []DriveEvent        `json:"events"`
	Readout       *locomotive.Readout `json:"readout"`
	FuelUsedL     float64             `json:"fuel_used_l"`
	Stalled       bool                `json:"stalled,omitempty"`
}

// EngineCommandResult reports a start or stop command
type EngineCommandResult struct {
	Engine   int                 `json:"engine"`
	Command  string              `json:"command"`
	Accepted bool                `json:"accepted"`
	Message  string              `json:"message"`
	Readout  *locomotive.Readout `json:"readout"`
}

// RefuelResult reports fuel taken on
type RefuelResult struct {
	AddedL  float64             `json:"added_l"`
	LevelL  float64             `json:"level_l"`
	Readout *locomotive.Readout `json:"readout"`
}

// TelemetryResponse is a window of recorded samples
type TelemetryResponse struct {
	SessionID string             `json:"session_id"`
	Samples   []telemetry.Sample `json:"samples"`
	Count     int                `json:"count"`
}

// ConfigInfo provides information about a locomotive configuration
type ConfigInfo struct {
	Filename     string  `json:"filename"`
	ConfigID     string  `json:"config_id"` // The identifier to use for session creation
	Name         string  `json:"name"`      // Display name
	Description  string  `json:"description"`
	Engines      int     `json:"engines"`
	Transmission string  `json:"transmission"`
	Gears        int     `json:"gears"`
	MaxPowerW    float64 `json:"max_power_w"`
	Tabulated    bool    `json:"tabulated"`
}

// NewConfigInfo summarizes a configuration stored in filename
func NewConfigInfo(filename, configID string, c *locomotive.Config) *ConfigInfo {
	info := &ConfigInfo{
		Filename:     filename,
		ConfigID:     configID,
		Name:         c.Name,
		Description:  c.Description,
		Engines:      len(c.Engines),
		Transmission: c.Transmission,
		Tabulated:    len(c.Traction.ForceCurves) > 0,
	}
	if info.Engines == 0 {
		info.Engines = 1
	}
	if info.Transmission == "" {
		info.Transmission = "electric"
	}
	if c.Gearbox != nil {
		info.Gears = len(c.Gearbox.Gears)
	}
	for _, e := range c.Engines {
		info.MaxPowerW += e.MaxPowerW
	}
	return info
}

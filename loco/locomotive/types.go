package locomotive

import (
	"errors"

	"github.com/wricardo/mcp-training/locosim/loco/diesel"
	"github.com/wricardo/mcp-training/locosim/loco/traction"
)

var (
	ErrNotInitialized  = errors.New("locomotive not initialized")
	ErrNoGearbox       = errors.New("locomotive has no gearbox")
	ErrInvalidSnapshot = errors.New("snapshot does not match locomotive")
	ErrFuelExhausted   = errors.New("fuel tank is empty")
)

// AllEngines addresses every engine in a start or stop command
const AllEngines = -1

// Inputs is the per-tick driving situation supplied by the host
type Inputs struct {
	Dt               float64            `json:"dt"`
	Throttle         float64            `json:"throttle"`
	Direction        traction.Direction `json:"direction"`
	SpeedMpS         float64            `json:"speed_mps"`
	WheelSpeedMpS    float64            `json:"wheel_speed_mps"`
	WheelSlip        bool               `json:"wheel_slip"`
	PlayerControlled bool               `json:"player_controlled"`
}

// EventKind names a discrete change reported by Update
type EventKind string

const (
	EventEngineState    EventKind = "engine_state"
	EventGearChanged    EventKind = "gear_changed"
	EventFuelExhausted  EventKind = "fuel_exhausted"
	EventPowerOff       EventKind = "power_off"
	EventPowerOn        EventKind = "power_on"
	EventOverheat       EventKind = "overheat"
	EventLowOilPressure EventKind = "low_oil_pressure"
)

// Event is one discrete change
type Event struct {
	Kind    EventKind `json:"kind"`
	Engine  int       `json:"engine"`
	State   string    `json:"state,omitempty"`
	Gear    int       `json:"gear"`
	Message string    `json:"message"`
}

// Output is the result of one Update
type Output struct {
	ForceN           float64        `json:"force_n"`
	Model            traction.Model `json:"model"`
	ApparentThrottle float64        `json:"apparent_throttle"`
	PowerFraction    float64        `json:"power_fraction"`
	FuelLevelL       float64        `json:"fuel_level_l"`
	FuelFlowLph      float64        `json:"fuel_flow_lph"`
	Gear             int            `json:"gear"`
	NextGear         int            `json:"next_gear"`
	MainPowerOn      bool           `json:"main_power_on"`
	Events           []Event        `json:"events,omitempty"`
}

// Readout is the full display state of the locomotive
type Readout struct {
	Name                 string           `json:"name"`
	ElapsedS             float64          `json:"elapsed_s"`
	Transmission         string           `json:"transmission"`
	Model                traction.Model   `json:"model"`
	ForceN               float64          `json:"force_n"`
	AverageForceN        float64          `json:"average_force_n"`
	ApparentThrottle     float64          `json:"apparent_throttle"`
	RunningPowerFraction float64          `json:"running_power_fraction"`
	MainPowerOn          bool             `json:"main_power_on"`
	TractionCutOff       bool             `json:"traction_cut_off"`
	FuelLevelL           float64          `json:"fuel_level_l"`
	FuelCapacityL        float64          `json:"fuel_capacity_l"`
	FuelFlowLph          float64          `json:"fuel_flow_lph"`
	Gearbox              *GearReadout     `json:"gearbox,omitempty"`
	Engines              []diesel.Readout `json:"engines"`
}

// GearReadout is the display state of the gearbox
type GearReadout struct {
	Mode     string `json:"mode"`
	Current  int    `json:"current"`
	Next     int    `json:"next"`
	Count    int    `json:"count"`
	Shifting bool   `json:"shifting"`
}

// Snapshot is the state persisted between sessions
type Snapshot struct {
	ElapsedS       float64           `json:"elapsed_s"`
	FuelLevelL     float64           `json:"fuel_level_l"`
	TractionCutOff bool              `json:"traction_cut_off,omitempty"`
	Gear           *GearSnapshot     `json:"gear,omitempty"`
	Engines        []diesel.Snapshot `json:"engines"`
}

// GearSnapshot holds the persisted gear indices
type GearSnapshot struct {
	Current int `json:"current"`
	Next    int `json:"next"`
}

package locomotive

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wricardo/mcp-training/locosim/loco/diesel"
	"github.com/wricardo/mcp-training/locosim/loco/gearbox"
	"github.com/wricardo/mcp-training/locosim/loco/traction"
)

// Locomotive owns the engine bank, optional gearbox, traction resolver and
// fuel tank of one diesel locomotive and advances them together.
type Locomotive struct {
	config       *Config
	log          zerolog.Logger
	bank         *diesel.Bank
	gearbox      *gearbox.Gearbox
	resolver     *traction.Resolver
	tank         *traction.FuelTank
	transmission traction.Transmission

	initialized    bool
	tractionCutOff bool
	elapsedS       float64
	last           Output
	alarms         []alarmState
	powerOn        bool
}

type alarmState struct {
	overheat bool
	lowOil   bool
}

// Option configures a Locomotive
type Option func(*Locomotive)

// WithLogger routes build warnings and runtime events to log
func WithLogger(log zerolog.Logger) Option {
	return func(l *Locomotive) { l.log = log }
}

// New builds a locomotive from a validated configuration. Implausible
// values are corrected and logged as warnings. The result must be
// initialized before use.
func New(config *Config, opts ...Option) (*Locomotive, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}
	l := &Locomotive{config: config, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.With().Str("locomotive", config.Name).Logger()

	transmission, err := traction.ParseTransmission(config.Transmission)
	if err != nil {
		l.log.Warn().Err(err).Msg("Ignoring transmission type")
	}
	l.transmission = transmission

	params := make([]diesel.Params, len(config.Engines))
	for i, e := range config.Engines {
		if params[i], err = e.params(); err != nil {
			return nil, fmt.Errorf("engines[%d]: %w", i, err)
		}
	}
	l.bank = diesel.NewBank(params)
	for _, u := range l.bank.Units() {
		for _, note := range u.Corrections() {
			l.log.Warn().Int("engine", u.Index()).Msg(note)
		}
	}

	if gc := config.Gearbox; gc != nil {
		mode, err := gearbox.ParseMode(gc.Mode)
		if err != nil {
			return nil, fmt.Errorf("gearbox: %w", err)
		}
		clutch, err := gearbox.ParseClutch(gc.Clutch)
		if err != nil {
			return nil, fmt.Errorf("gearbox: %w", err)
		}
		lead := l.bank.Units()[0].Params()
		gb, err := gearbox.New(gearbox.Params{
			Gears:        gc.Gears,
			Mode:         mode,
			Clutch:       clutch,
			FreeWheel:    gc.FreeWheel,
			ShiftTimeS:   gc.ShiftTimeS,
			WheelRadiusM: gc.WheelRadiusM,
			IdleRPM:      lead.IdleRPM,
			MaxRPM:       lead.MaxRPM,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build gearbox: %w", err)
		}
		l.gearbox = gb
		if transmission == traction.Mechanic {
			l.bank.AttachGearbox(gb)
		}
	}

	env, err := config.envelope()
	if err != nil {
		return nil, err
	}
	env, notes := env.Derive()
	for _, note := range notes {
		l.log.Warn().Msg(note)
	}

	capacity := config.Fuel.CapacityL
	if capacity <= 0 {
		l.log.Warn().Float64("capacity_l", DefaultTankL).Msg("No fuel capacity configured, using default")
		capacity = DefaultTankL
	}
	l.tank = traction.NewFuelTank(capacity, capacity)
	l.resolver = traction.NewResolver(env, l.tank)
	l.alarms = make([]alarmState, l.bank.Len())
	return l, nil
}

func (c *Config) envelope() (traction.Envelope, error) {
	tc := c.Traction
	env := traction.Envelope{
		MaxForceN:                    tc.MaxForceN,
		MaxContinuousForceN:          tc.MaxContinuousForceN,
		MaxRailOutputPowerW:          tc.MaxRailOutputPowerW,
		SpeedOfMaxContinuousForceMpS: tc.SpeedOfMaxContinuousForceMpS,
		UnloadingSpeedMpS:            tc.UnloadingSpeedMpS,
		MaxSpeedMpS:                  tc.MaxSpeedMpS,
		PowerReduction:               tc.PowerReduction,
		ContinuousForceTimeFactorS:   tc.ContinuousForceTimeFactorS,
		AdvancedAdhesion:             tc.AdvancedAdhesion,
	}
	if len(tc.ForceCurves) > 0 {
		table, err := traction.NewForceTable(tc.ForceCurves, tc.AllowNegativeForce)
		if err != nil {
			return env, fmt.Errorf("failed to build force table: %w", err)
		}
		env.Curves = table
	}
	return env, nil
}

// Initialize sets every component to its defaults: engines stopped, gearbox
// in neutral, tank at its configured initial level.
func (l *Locomotive) Initialize() {
	l.bank.Reset()
	if l.gearbox != nil {
		l.gearbox.Initialize()
	}
	l.resolver.Reset()
	level := l.tank.CapacityL
	if in := l.config.Fuel.InitialL; in != nil {
		level = *in
	}
	l.tank.Restore(level)
	l.tractionCutOff = false
	l.elapsedS = 0
	l.powerOn = false
	for i := range l.alarms {
		l.alarms[i] = alarmState{}
	}
	l.last = Output{Gear: gearbox.Neutral, NextGear: gearbox.Neutral, FuelLevelL: l.tank.LevelL}
	l.initialized = true
}

// Restore applies persisted state. It is only valid after Initialize.
func (l *Locomotive) Restore(s *Snapshot) error {
	if !l.initialized {
		return ErrNotInitialized
	}
	if s == nil {
		return fmt.Errorf("%w: nil snapshot", ErrInvalidSnapshot)
	}
	if err := l.bank.Restore(s.Engines); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if s.Gear != nil {
		if l.gearbox == nil {
			return fmt.Errorf("%w: gear state without a gearbox", ErrInvalidSnapshot)
		}
		if err := l.gearbox.Restore(s.Gear.Current, s.Gear.Next); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
	}
	l.tank.Restore(s.FuelLevelL)
	l.tractionCutOff = s.TractionCutOff
	l.elapsedS = s.ElapsedS
	l.powerOn = l.MainPowerOn()
	l.last = Output{
		Gear:        l.currentGear(),
		NextGear:    l.nextGear(),
		FuelLevelL:  l.tank.LevelL,
		MainPowerOn: l.powerOn,
	}
	return nil
}

// Snapshot captures the state needed to resume later
func (l *Locomotive) Snapshot() *Snapshot {
	s := &Snapshot{
		ElapsedS:       l.elapsedS,
		FuelLevelL:     l.tank.LevelL,
		TractionCutOff: l.tractionCutOff,
		Engines:        l.bank.Snapshots(),
	}
	if l.gearbox != nil {
		s.Gear = &GearSnapshot{Current: l.gearbox.CurrentGear(), Next: l.gearbox.NextGear()}
	}
	return s
}

func (l *Locomotive) Config() *Config                     { return l.config }
func (l *Locomotive) Bank() *diesel.Bank                  { return l.bank }
func (l *Locomotive) Gearbox() *gearbox.Gearbox           { return l.gearbox }
func (l *Locomotive) Tank() *traction.FuelTank            { return l.tank }
func (l *Locomotive) Transmission() traction.Transmission { return l.transmission }
func (l *Locomotive) Initialized() bool                   { return l.initialized }
func (l *Locomotive) ElapsedS() float64                   { return l.elapsedS }
func (l *Locomotive) LastOutput() Output                  { return l.last }

// MainPowerOn reports whether any engine runs and the traction relay is closed
func (l *Locomotive) MainPowerOn() bool {
	if l.tractionCutOff {
		return false
	}
	for _, u := range l.bank.Units() {
		if u.State() == diesel.Running {
			return true
		}
	}
	return false
}

// SetTractionCutOff opens or closes the traction cut-off relay
func (l *Locomotive) SetTractionCutOff(open bool) { l.tractionCutOff = open }

func (l *Locomotive) TractionCutOff() bool { return l.tractionCutOff }

// StartEngine starts engine i, or every engine for AllEngines
func (l *Locomotive) StartEngine(i int) (bool, error) {
	if !l.initialized {
		return false, ErrNotInitialized
	}
	if l.tank.Empty() {
		return false, ErrFuelExhausted
	}
	if i == AllEngines {
		l.bank.StartAll()
		return true, nil
	}
	return l.bank.HandleEvent(i, diesel.StartEngine)
}

// StopEngine stops engine i, or every engine for AllEngines
func (l *Locomotive) StopEngine(i int) (bool, error) {
	if !l.initialized {
		return false, ErrNotInitialized
	}
	if i == AllEngines {
		l.bank.StopAll()
		return true, nil
	}
	return l.bank.HandleEvent(i, diesel.StopEngine)
}

// ShiftUp requests the next higher gear
func (l *Locomotive) ShiftUp() error {
	if l.gearbox == nil {
		return ErrNoGearbox
	}
	l.gearbox.RequestUp()
	return nil
}

// ShiftDown requests the next lower gear
func (l *Locomotive) ShiftDown() error {
	if l.gearbox == nil {
		return ErrNoGearbox
	}
	l.gearbox.RequestDown()
	return nil
}

// Refuel adds liters to the tank and returns the amount taken
func (l *Locomotive) Refuel(liters float64) float64 {
	return l.tank.Refuel(liters)
}

func (l *Locomotive) currentGear() int {
	if l.gearbox == nil {
		return gearbox.Neutral
	}
	return l.gearbox.CurrentGear()
}

func (l *Locomotive) nextGear() int {
	if l.gearbox == nil {
		return gearbox.Neutral
	}
	return l.gearbox.NextGear()
}

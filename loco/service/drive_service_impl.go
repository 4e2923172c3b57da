package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wricardo/mcp-training/locosim/loco/locomotive"
	"github.com/wricardo/mcp-training/locosim/loco/telemetry"
	"github.com/wricardo/mcp-training/locosim/loco/traction"
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrTelemetryDisabled = errors.New("telemetry is not enabled")
)

// Option configures a DriveService
type Option func(*driveServiceImpl)

// WithTelemetry records a sample per tick and keeps the newest retain
// samples per session. retain <= 0 keeps everything.
func WithTelemetry(store TelemetryStore, retain int) Option {
	return func(s *driveServiceImpl) {
		s.store = store
		s.retain = retain
	}
}

// WithMetrics reports tick activity through OTel instruments
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *driveServiceImpl) { s.metrics = m }
}

// WithLogger sets the service logger
func WithLogger(log zerolog.Logger) Option {
	return func(s *driveServiceImpl) { s.log = log }
}

// WithDefaultDt sets the tick length used when a step names none
func WithDefaultDt(dt float64) Option {
	return func(s *driveServiceImpl) {
		if dt >= MinDt && dt <= MaxDt {
			s.defaultDt = dt
		}
	}
}

// driveServiceImpl implements the DriveService interface
type driveServiceImpl struct {
	sessions  SessionManager
	configs   ConfigManager
	store     TelemetryStore
	retain    int
	metrics   *telemetry.Metrics
	log       zerolog.Logger
	defaultDt float64
	mu        sync.RWMutex
}

// NewDriveService creates a new drive service instance
func NewDriveService(sessions SessionManager, configs ConfigManager, opts ...Option) DriveService {
	s := &driveServiceImpl{
		sessions:  sessions,
		configs:   configs,
		log:       zerolog.Nop(),
		defaultDt: DefaultDt,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// getConfigID returns the config_id for a display name
func (s *driveServiceImpl) getConfigID(configName string) string {
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == configName {
				return cfg.ConfigID
			}
		}
	}
	if configName == "" {
		return "default"
	}
	return configName
}

// CreateSession creates a new driving session
func (s *driveServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var config *locomotive.Config
	var err error
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			if strings.Contains(err.Error(), "configuration not found") {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, fmt.Errorf("config '%s' not found. Available configs: %v", configName, configIDs)
				}
				return nil, fmt.Errorf("config '%s' not found. Use /api/configs to list available configurations", configName)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
	}

	configID := strings.TrimSuffix(configName, ".json")
	if configID == "" {
		configID = s.getConfigID(config.Name)
	}

	sess, err := s.sessions.Create("", configID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.log.Info().Str("session", sess.ID).Str("config", configID).Msg("Session created")
	return sessionInfo(sess), nil
}

// GetSession retrieves session information
func (s *driveServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	return sessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *driveServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, sessionInfo(sess))
	}
	return result, nil
}

// DeleteSession removes a session and its telemetry
func (s *driveServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(sessionID); err != nil {
		return err
	}
	if s.store != nil {
		if err := s.store.DeleteSession(sess.ID); err != nil {
			s.log.Warn().Err(err).Str("session", sess.ID).Msg("Failed to delete telemetry")
		}
	}
	return nil
}

// SetControls applies the fields set in req to the cab controls
func (s *driveServiceImpl) SetControls(ctx context.Context, sessionID string, req ControlsRequest) (*SessionInfo, error) {
	if req.Throttle != nil {
		if err := checkThrottle(*req.Throttle); err != nil {
			return nil, err
		}
	}
	var dir traction.Direction
	if req.Direction != nil {
		d, err := traction.ParseDirection(*req.Direction)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		dir = d
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	if req.Throttle != nil {
		sess.Controls.Throttle = *req.Throttle
	}
	if req.Direction != nil {
		sess.Controls.Direction = dir.String()
	}
	if req.PlayerControlled != nil {
		sess.Controls.PlayerControlled = *req.PlayerControlled
	}
	if req.TractionCutOff != nil {
		sess.Loco.SetTractionCutOff(*req.TractionCutOff)
	}

	s.touch(sess)
	return sessionInfo(sess), nil
}

// Step advances the session by req.Ticks fixed ticks
func (s *driveServiceImpl) Step(ctx context.Context, sessionID string, req StepRequest) (*StepResult, error) {
	ticks := req.Ticks
	if ticks == 0 {
		ticks = 1
	}
	if ticks < 0 || ticks > MaxStepTicks {
		return nil, fmt.Errorf("%w: ticks must be between 1 and %d", ErrInvalidRequest, MaxStepTicks)
	}
	dt := req.Dt
	if dt == 0 {
		dt = s.defaultDt
	}
	if dt < MinDt || dt > MaxDt {
		return nil, fmt.Errorf("%w: dt must be between %g and %g seconds", ErrInvalidRequest, MinDt, MaxDt)
	}
	if req.Throttle != nil {
		if err := checkThrottle(*req.Throttle); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	if req.Throttle != nil {
		sess.Controls.Throttle = *req.Throttle
	}
	dir, _ := traction.ParseDirection(sess.Controls.Direction)

	result := &StepResult{Dt: dt, Events: []DriveEvent{}}
	var samples []telemetry.Sample
	for i := 0; i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			if result.TicksExecuted == 0 {
				return nil, err
			}
			break
		}

		speed := sess.Train.SpeedMpS
		if req.SpeedMpS != nil {
			speed = *req.SpeedMpS
		}
		wheel := speed
		if req.WheelSpeedMpS != nil {
			wheel = *req.WheelSpeedMpS
		}

		before := sess.Loco.Tank().LevelL
		out, err := sess.Loco.Update(locomotive.Inputs{
			Dt:               dt,
			Throttle:         sess.Controls.Throttle,
			Direction:        dir,
			SpeedMpS:         math.Abs(speed),
			WheelSpeedMpS:    math.Abs(wheel),
			WheelSlip:        req.WheelSlip,
			PlayerControlled: sess.Controls.PlayerControlled,
		})
		if err != nil {
			return nil, fmt.Errorf("tick %d: %w", sess.Ticks+1, err)
		}

		if req.SpeedMpS != nil {
			sess.Train.SpeedMpS = speed
			sess.Train.DistanceM += speed * dt
		} else {
			sess.Train.Advance(out.ForceN, dt)
		}
		sess.Ticks++
		result.TicksExecuted++
		result.Output = out

		used := math.Max(0, before-out.FuelLevelL)
		result.FuelUsedL += used
		s.metrics.ObserveTick(ctx, sess.ConfigID, out, used)

		for _, e := range out.Events {
			result.Events = append(result.Events, driveEvent(sess.Ticks, e))
			if e.Kind == locomotive.EventFuelExhausted {
				result.Stalled = true
			}
		}

		if s.store != nil {
			samples = append(samples, telemetry.NewSample(
				sess.ID, sess.Ticks, sess.Controls.Throttle, sess.Train.SpeedMpS, out, sess.Loco.Readout()))
		}
	}

	s.record(sess.ID, samples)
	s.touch(sess)

	r := sess.Loco.Readout()
	result.Readout = &r
	result.Train = sess.Train
	return result, nil
}

// Shift requests a gear change; direction is "up" or "down"
func (s *driveServiceImpl) Shift(ctx context.Context, sessionID, direction string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	switch strings.ToLower(direction) {
	case "up":
		err = sess.Loco.ShiftUp()
	case "down":
		err = sess.Loco.ShiftDown()
	default:
		return nil, fmt.Errorf("%w: shift direction must be up or down, got %q", ErrInvalidRequest, direction)
	}
	if err != nil {
		return nil, err
	}

	s.touch(sess)
	return sessionInfo(sess), nil
}

// EngineCommand starts or stops one engine, or all of them for
// locomotive.AllEngines
func (s *driveServiceImpl) EngineCommand(ctx context.Context, sessionID string, engine int, command string) (*EngineCommandResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	var accepted bool
	command = strings.ToLower(command)
	switch command {
	case "start":
		accepted, err = sess.Loco.StartEngine(engine)
	case "stop":
		accepted, err = sess.Loco.StopEngine(engine)
	default:
		return nil, fmt.Errorf("%w: engine command must be start or stop, got %q", ErrInvalidRequest, command)
	}
	if err != nil {
		return nil, err
	}

	target := "All engines"
	if engine != locomotive.AllEngines {
		target = fmt.Sprintf("Engine %d", engine+1)
	}
	msg := fmt.Sprintf("%s: %s accepted", target, command)
	if engine != locomotive.AllEngines {
		u, _ := sess.Loco.Bank().Unit(engine)
		switch {
		case !accepted:
			msg = fmt.Sprintf("%s is %s; %s ignored", target, u.State(), command)
		case u.RestartPending():
			msg = fmt.Sprintf("%s is stopping; start queued until it has stopped", target)
		}
	}
	s.log.Info().Str("session", sess.ID).Int("engine", engine).Str("command", command).Bool("accepted", accepted).Msg("Engine command")

	s.touch(sess)
	r := sess.Loco.Readout()
	return &EngineCommandResult{
		Engine:   engine,
		Command:  command,
		Accepted: accepted,
		Message:  msg,
		Readout:  &r,
	}, nil
}

// Refuel adds fuel up to the tank capacity
func (s *driveServiceImpl) Refuel(ctx context.Context, sessionID string, liters float64) (*RefuelResult, error) {
	if liters <= 0 || math.IsNaN(liters) {
		return nil, fmt.Errorf("%w: liters must be positive", ErrInvalidRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	added := sess.Loco.Refuel(liters)
	s.touch(sess)
	r := sess.Loco.Readout()
	return &RefuelResult{AddedL: added, LevelL: sess.Loco.Tank().LevelL, Readout: &r}, nil
}

// Reset returns the locomotive and train to their initial state
func (s *driveServiceImpl) Reset(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	sess.Loco.Initialize()
	sess.Controls = DefaultControls()
	sess.Train = NewTrainState(sess.Config)
	sess.Ticks = 0
	if s.store != nil {
		if err := s.store.DeleteSession(sess.ID); err != nil {
			s.log.Warn().Err(err).Str("session", sess.ID).Msg("Failed to clear telemetry")
		}
	}

	s.touch(sess)
	return sessionInfo(sess), nil
}

// GetReadout returns the full locomotive display state
func (s *driveServiceImpl) GetReadout(ctx context.Context, sessionID string) (*locomotive.Readout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	r := sess.Loco.Readout()
	return &r, nil
}

// GetTelemetry returns up to limit of the newest samples, oldest first
func (s *driveServiceImpl) GetTelemetry(ctx context.Context, sessionID string, limit int) (*TelemetryResponse, error) {
	if s.store == nil {
		return nil, ErrTelemetryDisabled
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	samples, err := s.store.Recent(sess.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read telemetry: %w", err)
	}
	return &TelemetryResponse{SessionID: sess.ID, Samples: samples, Count: len(samples)}, nil
}

// ListConfigs returns available configurations
func (s *driveServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific configuration
func (s *driveServiceImpl) LoadConfig(ctx context.Context, configName string) (*locomotive.Config, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a configuration
func (s *driveServiceImpl) SaveConfig(ctx context.Context, configName string, config *locomotive.Config) error {
	if config == nil {
		return fmt.Errorf("%w: config is required", ErrInvalidRequest)
	}
	return s.configs.SaveConfig(configName, config)
}

// touch refreshes the access time and persists the session
func (s *driveServiceImpl) touch(sess *Session) {
	s.sessions.UpdateLastAccessed(sess.ID)
	if err := s.sessions.Save(sess.ID); err != nil {
		s.log.Warn().Err(err).Str("session", sess.ID).Msg("Failed to persist session")
	}
}

func (s *driveServiceImpl) record(sessionID string, samples []telemetry.Sample) {
	if s.store == nil || len(samples) == 0 {
		return
	}
	if err := s.store.Record(samples); err != nil {
		s.log.Warn().Err(err).Str("session", sessionID).Msg("Failed to record telemetry")
		return
	}
	if s.retain > 0 {
		if err := s.store.Prune(sessionID, s.retain); err != nil {
			s.log.Warn().Err(err).Str("session", sessionID).Msg("Failed to prune telemetry")
		}
	}
}

func checkThrottle(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return fmt.Errorf("%w: throttle must be between 0 and 1", ErrInvalidRequest)
	}
	return nil
}

func sessionInfo(sess *Session) *SessionInfo {
	r := sess.Loco.Readout()
	controls := sess.Controls
	controls.TractionCutOff = sess.Loco.TractionCutOff()
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     sess.ConfigID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		Ticks:          sess.Ticks,
		Controls:       controls,
		Train:          sess.Train,
		Readout:        &r,
	}
}

func driveEvent(tick int64, e locomotive.Event) DriveEvent {
	de := DriveEvent{
		Type:      string(e.Kind),
		Message:   e.Message,
		Timestamp: time.Now(),
		Tick:      tick,
	}
	switch e.Kind {
	case locomotive.EventEngineState, locomotive.EventOverheat, locomotive.EventLowOilPressure:
		engine := e.Engine
		de.Engine = &engine
	case locomotive.EventGearChanged:
		gear := e.Gear
		de.Gear = &gear
	}
	return de
}

// DefaultControls is the cab state of a new session: reverser forward,
// throttle closed.
func DefaultControls() Controls {
	return Controls{Direction: traction.Forward.String()}
}

// NewTrainState is a stationary train of the configured mass
func NewTrainState(config *locomotive.Config) TrainState {
	mass := locomotive.DefaultTrainMassKg
	if config != nil && config.TrainMassKg > 0 {
		mass = config.TrainMassKg
	}
	return TrainState{MassKg: mass}
}

package service

import (
	"context"
	"time"

	"github.com/wricardo/mcp-training/locosim/loco/locomotive"
	"github.com/wricardo/mcp-training/locosim/loco/telemetry"
)

// DriveService defines all locomotive driving operations
type DriveService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Cab Operations
	SetControls(ctx context.Context, sessionID string, req ControlsRequest) (*SessionInfo, error)
	Step(ctx context.Context, sessionID string, req StepRequest) (*StepResult, error)
	Shift(ctx context.Context, sessionID, direction string) (*SessionInfo, error)
	EngineCommand(ctx context.Context, sessionID string, engine int, command string) (*EngineCommandResult, error)
	Refuel(ctx context.Context, sessionID string, liters float64) (*RefuelResult, error)
	Reset(ctx context.Context, sessionID string) (*SessionInfo, error)

	// State
	GetReadout(ctx context.Context, sessionID string) (*locomotive.Readout, error)
	GetTelemetry(ctx context.Context, sessionID string, limit int) (*TelemetryResponse, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*locomotive.Config, error)
	SaveConfig(ctx context.Context, configName string, config *locomotive.Config) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, configID string, config *locomotive.Config) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ConfigManager handles locomotive configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*locomotive.Config, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *locomotive.Config
	SaveConfig(name string, config *locomotive.Config) error
}

// TelemetryStore persists per-tick samples
type TelemetryStore interface {
	Record(samples []telemetry.Sample) error
	Recent(sessionID string, limit int) ([]telemetry.Sample, error)
	Prune(sessionID string, keep int) error
	DeleteSession(sessionID string) error
}

// Session represents an active driving session
type Session struct {
	ID             string
	ConfigID       string
	Loco           *locomotive.Locomotive
	Config         *locomotive.Config
	Controls       Controls
	Train          TrainState
	Ticks          int64
	CreatedAt      time.Time
	LastAccessedAt time.Time
}

// Package telemetry records per-tick locomotive samples to SQLite and
// exports simulation counters through OpenTelemetry metrics.
package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wricardo/mcp-training/locosim/loco/locomotive"
)

// MemoryDSN keeps samples in a shared in-memory database
const MemoryDSN = "file::memory:?cache=shared"

const (
	DefaultRecentLimit = 100
	MaxRecentLimit     = 5000
	createBatchSize    = 500
)

var ErrStoreClosed = errors.New("telemetry store closed")

// Sample is one recorded tick of one session
type Sample struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID    string    `gorm:"size:16;index:idx_session_tick" json:"session_id"`
	Tick         int64     `gorm:"index:idx_session_tick" json:"tick"`
	ElapsedS     float64   `json:"elapsed_s"`
	Throttle     float64   `json:"throttle"`
	SpeedMpS     float64   `json:"speed_mps"`
	ForceN       float64   `json:"force_n"`
	RPM          float64   `json:"rpm"`
	LoadPercent  float64   `json:"load_percent"`
	Gear         int       `json:"gear"`
	FuelLevelL   float64   `json:"fuel_level_l"`
	FuelFlowLph  float64   `json:"fuel_flow_lph"`
	MainPowerOn  bool      `json:"main_power_on"`
	Model        string    `gorm:"size:16" json:"model"`
	RecordedAt   time.Time `gorm:"autoCreateTime" json:"recorded_at"`
	EngineStates string    `gorm:"size:64" json:"engine_states"`
}

// NewSample builds a sample from the state after a tick
func NewSample(sessionID string, tick int64, throttle, speedMpS float64, out locomotive.Output, r locomotive.Readout) Sample {
	s := Sample{
		SessionID:   sessionID,
		Tick:        tick,
		ElapsedS:    r.ElapsedS,
		Throttle:    throttle,
		SpeedMpS:    speedMpS,
		ForceN:      out.ForceN,
		Gear:        out.Gear,
		FuelLevelL:  out.FuelLevelL,
		FuelFlowLph: out.FuelFlowLph,
		MainPowerOn: out.MainPowerOn,
		Model:       string(out.Model),
	}
	for i, e := range r.Engines {
		if i == 0 || e.RPM > s.RPM {
			s.RPM = e.RPM
		}
		s.LoadPercent += e.LoadPercent / float64(len(r.Engines))
		if i > 0 {
			s.EngineStates += ","
		}
		s.EngineStates += e.State.String()
	}
	return s
}

// Store persists samples with gorm on a pure-Go SQLite driver
type Store struct {
	db *gorm.DB
}

// Open connects to dsn, or to an in-memory database when dsn is empty,
// and migrates the sample table.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        createBatchSize,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening telemetry database: %w", err)
	}
	if err := db.AutoMigrate(&Sample{}); err != nil {
		return nil, fmt.Errorf("migrating telemetry schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Record inserts samples in batches
func (s *Store) Record(samples []Sample) error {
	if s.db == nil {
		return ErrStoreClosed
	}
	if len(samples) == 0 {
		return nil
	}
	if err := s.db.Create(&samples).Error; err != nil {
		return fmt.Errorf("recording %d samples: %w", len(samples), err)
	}
	return nil
}

// Recent returns up to limit of the newest samples for a session, oldest first
func (s *Store) Recent(sessionID string, limit int) ([]Sample, error) {
	if s.db == nil {
		return nil, ErrStoreClosed
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	var out []Sample
	err := s.db.Where("session_id = ?", sessionID).
		Order("tick desc").Order("id desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("querying samples for %s: %w", sessionID, err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Count returns the number of samples stored for a session
func (s *Store) Count(sessionID string) (int64, error) {
	if s.db == nil {
		return 0, ErrStoreClosed
	}
	var n int64
	err := s.db.Model(&Sample{}).Where("session_id = ?", sessionID).Count(&n).Error
	return n, err
}

// Prune keeps only the newest keep samples of a session
func (s *Store) Prune(sessionID string, keep int) error {
	if s.db == nil {
		return ErrStoreClosed
	}
	if keep <= 0 {
		return s.DeleteSession(sessionID)
	}
	var cutoff []Sample
	err := s.db.Select("id").
		Where("session_id = ?", sessionID).
		Order("id desc").
		Offset(keep).Limit(1).
		Find(&cutoff).Error
	if err != nil {
		return fmt.Errorf("finding prune cutoff for %s: %w", sessionID, err)
	}
	if len(cutoff) == 0 {
		return nil
	}
	return s.db.Where("session_id = ? AND id <= ?", sessionID, cutoff[0].ID).Delete(&Sample{}).Error
}

// DeleteSession removes every sample of a session
func (s *Store) DeleteSession(sessionID string) error {
	if s.db == nil {
		return ErrStoreClosed
	}
	return s.db.Where("session_id = ?", sessionID).Delete(&Sample{}).Error
}

// Close releases the database connection
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	s.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

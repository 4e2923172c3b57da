// Package settings loads server settings from defaults, an optional file and
// LOCOSIM_ environment variables.
package settings

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/wricardo/mcp-training/locosim/loco/service"
)

// EnvPrefix is prepended to every environment override, e.g. LOCOSIM_PORT
const EnvPrefix = "LOCOSIM"

// Settings is the resolved server configuration
type Settings struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	ConfigDir   string        `mapstructure:"config_dir"`
	SessionsDir string        `mapstructure:"sessions_dir"`
	SessionTTL  time.Duration `mapstructure:"session_ttl"`
	DefaultDt   float64       `mapstructure:"default_dt"`
	LogLevel    string        `mapstructure:"log_level"`
	LogPretty   bool          `mapstructure:"log_pretty"`
	Telemetry   Telemetry     `mapstructure:"telemetry"`
	Ngrok       Ngrok         `mapstructure:"ngrok"`
}

// Telemetry controls the per-tick sample store
type Telemetry struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
	Retain  int    `mapstructure:"retain"`
}

// Ngrok controls the optional public tunnel
type Ngrok struct {
	Enabled   bool   `mapstructure:"enabled"`
	Domain    string `mapstructure:"domain"`
	AuthToken string `mapstructure:"authtoken"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "localhost")
	v.SetDefault("port", 8080)
	v.SetDefault("config_dir", "configs")
	v.SetDefault("sessions_dir", "sessions")
	v.SetDefault("session_ttl", "24h")
	v.SetDefault("default_dt", service.DefaultDt)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.dsn", "telemetry.db")
	v.SetDefault("telemetry.retain", 36000)

	v.SetDefault("ngrok.enabled", false)
	v.SetDefault("ngrok.domain", "")
	v.SetDefault("ngrok.authtoken", "")
}

// Load resolves settings. path may be empty; otherwise the file must exist
// and its extension selects the format (yaml, json, toml).
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// conventional names used by the ngrok tooling and older deployments
	v.BindEnv("config_dir", EnvPrefix+"_CONFIG_DIR", "CONFIG_DIR")
	v.BindEnv("ngrok.enabled", EnvPrefix+"_NGROK_ENABLED", "NGROK_ENABLED")
	v.BindEnv("ngrok.domain", EnvPrefix+"_NGROK_DOMAIN", "NGROK_DOMAIN")
	v.BindEnv("ngrok.authtoken", EnvPrefix+"_NGROK_AUTHTOKEN", "NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading settings file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("error decoding settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects settings the server cannot start with
func (s *Settings) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("settings: port must be between 1 and 65535, got %d", s.Port)
	}
	if s.ConfigDir == "" {
		return fmt.Errorf("settings: config_dir is required")
	}
	if s.DefaultDt < service.MinDt || s.DefaultDt > service.MaxDt {
		return fmt.Errorf("settings: default_dt must be between %v and %v, got %v", service.MinDt, service.MaxDt, s.DefaultDt)
	}
	if s.Telemetry.Retain < 0 {
		return fmt.Errorf("settings: telemetry.retain must not be negative")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(s.LogLevel)); err != nil {
		return fmt.Errorf("settings: log_level: %w", err)
	}
	return nil
}

// Addr is the HTTP listen address
func (s *Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Logger builds the root logger writing to w
func (s *Settings) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(s.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if s.LogPretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

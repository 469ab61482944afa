package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every settings variable.
const EnvPrefix = "KIOSK"

// Settings are process-level knobs read from the environment.
type Settings struct {
	ConfigPath    string        `envconfig:"CONFIG"`
	ResourcesDir  string        `envconfig:"RESOURCES_DIR"`
	MarkerDir     string        `envconfig:"MARKER_DIR"`
	RestartPolicy string        `envconfig:"RESTART_POLICY"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat     string        `envconfig:"LOG_FORMAT" default:"auto"`
	MetricsAddr   string        `envconfig:"METRICS_ADDR"`
	DisplayPoll   time.Duration `envconfig:"DISPLAY_POLL" default:"2s"`
}

// LoadSettings reads KIOSK_* environment variables.
func LoadSettings() (*Settings, error) {
	var s Settings
	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	switch s.LogFormat {
	case "auto", "text", "json":
	default:
		return nil, fmt.Errorf("KIOSK_LOG_FORMAT must be one of: auto, text, json")
	}
	if s.DisplayPoll <= 0 {
		s.DisplayPoll = 2 * time.Second
	}
	return &s, nil
}

// ResolvePolicy picks the restart policy name: the environment wins over the
// config file.
func (s *Settings) ResolvePolicy(cfg *Config) string {
	if s != nil && s.RestartPolicy != "" {
		return s.RestartPolicy
	}
	if cfg != nil {
		return cfg.RestartPolicy
	}
	return ""
}

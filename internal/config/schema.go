package config

import (
	"time"

	"nvdiff/internal/domain"
)

// Config is the root configuration structure
type Config struct {
	Version    int                       `yaml:"version" validate:"gte=1"`
	Comparison ComparisonConfig          `yaml:"comparison"`
	Providers  map[string]ProviderConfig `yaml:"providers,omitempty" validate:"dive"`
	Matching   MatchingConfig            `yaml:"matching"`
	Ledger     LedgerConfig              `yaml:"ledger"`
	Logging    LoggingConfig             `yaml:"logging"`
	Metrics    MetricsConfig             `yaml:"metrics"`
	Server     ServerConfig              `yaml:"server"`
	Watch      WatchConfig               `yaml:"watch"`
}

// ComparisonConfig holds the default comparison settings
type ComparisonConfig struct {
	Method    domain.ComparisonMethod `yaml:"method" validate:"required,comparison_method"`
	Tolerance float64                 `yaml:"tolerance" validate:"gte=0"`
	Workers   int                     `yaml:"workers" validate:"gte=1,lte=256"`
}

// ProviderConfig overrides comparison settings for one dataset. Zero values
// inherit from ComparisonConfig.
type ProviderConfig struct {
	Method    domain.ComparisonMethod `yaml:"method,omitempty" validate:"omitempty,comparison_method"`
	Tolerance *float64                `yaml:"tolerance,omitempty" validate:"omitempty,gte=0"`
}

// MatchingConfig controls the default pairing of old and new elements
type MatchingConfig struct {
	SearchRadius float64  `yaml:"search_radius" validate:"gte=0"`
	ClassFields  []string `yaml:"class_fields,omitempty"`
}

// LedgerConfig selects the ledger store
type LedgerConfig struct {
	Backend           Backend `yaml:"backend" validate:"required,oneof=sqlite badger memory"`
	Path              string  `yaml:"path" validate:"required_unless=Backend memory"`
	BootstrapBaseline bool    `yaml:"bootstrap_baseline"`
	CacheSize         int     `yaml:"cache_size" validate:"gte=0"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

// MetricsConfig enables Prometheus metrics. They are exposed on /metrics
// when the server is enabled.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ServerConfig holds the HTTP listener used in watch mode
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" validate:"required_if=Enabled true"`
}

// WatchConfig holds watch mode settings
type WatchConfig struct {
	Debounce     Duration `yaml:"debounce"`
	ChangeLogDir string   `yaml:"change_log_dir,omitempty"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

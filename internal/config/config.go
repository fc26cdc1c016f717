// Package config provides configuration management for nvdiff.
//
// Config file locations (priority order):
//  1. $NVDIFF_CONFIG
//  2. ./nvdiff.yaml
//  3. $XDG_CONFIG_HOME/nvdiff/config.yaml
//  4. ~/.config/nvdiff/config.yaml
//  5. /etc/nvdiff/config.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"nvdiff/internal/domain"
)

// Defaults
const (
	DefaultMethod       = domain.MethodTopological
	DefaultTolerance    = 1e-7
	DefaultWorkers      = 8
	DefaultSearchRadius = 25.0
	DefaultLedgerPath   = "./nvdiff.db"
	DefaultServerAddr   = ":9464"
	DefaultDebounce     = 500 * time.Millisecond
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("comparison_method", func(fl validator.FieldLevel) bool {
		return domain.ComparisonMethod(fl.Field().String()).Valid()
	}); err != nil {
		panic(err)
	}
}

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()
	if path == "" {
		return DefaultConfig(), "", nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Parse decodes, defaults and validates a YAML document
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Comparison.Method == "" {
		c.Comparison.Method = DefaultMethod
	}
	if c.Comparison.Tolerance == 0 {
		c.Comparison.Tolerance = DefaultTolerance
	}
	if c.Comparison.Workers == 0 {
		c.Comparison.Workers = DefaultWorkers
	}
	if c.Matching.SearchRadius == 0 {
		c.Matching.SearchRadius = DefaultSearchRadius
	}
	if c.Ledger.Backend == "" {
		c.Ledger.Backend = BackendSQLite
	}
	if c.Ledger.Path == "" && c.Ledger.Backend.Persistent() {
		c.Ledger.Path = DefaultLedgerPath
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = Duration(DefaultDebounce)
	}

	if len(c.Providers) > 0 {
		providers := make(map[string]ProviderConfig, len(c.Providers))
		for name, p := range c.Providers {
			providers[strings.ToLower(name)] = p
		}
		c.Providers = providers
	}
}

// Validate checks field constraints and reports every failing field
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Settings are the effective comparison settings for one dataset
type Settings struct {
	Method    domain.ComparisonMethod
	Tolerance float64
	Workers   int
}

// SettingsFor returns the comparison settings for a dataset, applying any
// provider override. The method is chosen per dataset, never per record.
func (c *Config) SettingsFor(dataset string) Settings {
	s := Settings{
		Method:    c.Comparison.Method,
		Tolerance: c.Comparison.Tolerance,
		Workers:   c.Comparison.Workers,
	}
	p, ok := c.Providers[strings.ToLower(dataset)]
	if !ok {
		return s
	}
	if p.Method != "" {
		s.Method = p.Method
	}
	if p.Tolerance != nil {
		s.Tolerance = *p.Tolerance
	}
	return s
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Method: %s, Tolerance: %g, Workers: %d\n",
		c.Comparison.Method, c.Comparison.Tolerance, c.Comparison.Workers)
	summary += fmt.Sprintf("Ledger: %s %s\n", c.Ledger.Backend, c.Ledger.Path)
	if c.Server.Enabled {
		summary += fmt.Sprintf("Server: %s (metrics: %t)\n", c.Server.Addr, c.Metrics.Enabled)
	}
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	summary += fmt.Sprintf("Provider overrides (%d):", len(names))
	for _, name := range names {
		summary += fmt.Sprintf(" %s=%s", name, c.SettingsFor(name).Method)
	}
	return summary
}

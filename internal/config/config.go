// Package config provides configuration structures for the traffic simulator.
// The main Config struct ties together all simulator components.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Errors returned by the config package.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("config: invalid configuration")
	// ErrConfigNotFound is returned when the config file is not found.
	ErrConfigNotFound = errors.New("config: configuration file not found")
)

// Config is the root configuration structure for the traffic simulator.
type Config struct {
	// Name is a descriptive name for this configuration.
	Name string `yaml:"name" json:"name"`

	// Description provides additional context about the configuration.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Target is the frontend application being driven.
	Target TargetConfig `yaml:"target" json:"target"`

	// Traffic configures session admission and pacing.
	Traffic TrafficConfig `yaml:"traffic,omitempty" json:"traffic,omitempty"`

	// Browser configures the headless browser driver.
	Browser BrowserConfig `yaml:"browser,omitempty" json:"browser,omitempty"`

	// Timing configures the human-behavior timing model.
	Timing TimingConfig `yaml:"timing,omitempty" json:"timing,omitempty"`

	// Personas configures the synthetic user directory.
	Personas PersonasConfig `yaml:"personas,omitempty" json:"personas,omitempty"`

	// Output configures reporting.
	Output OutputConfig `yaml:"output,omitempty" json:"output,omitempty"`

	// Seed is the random seed for typo injection and delay sampling.
	// Zero means time-seeded (production default); tests pass a fixed seed
	// for deterministic behavior.
	Seed int64 `yaml:"seed,omitempty" json:"seed,omitempty"`
}

// TargetConfig holds target application configuration.
type TargetConfig struct {
	// BaseURL is the base URL of the frontend (e.g., "http://localhost:3000").
	BaseURL string `yaml:"baseURL" json:"baseURL"`

	// PageTimeout bounds a single navigation or element wait.
	// Default: 15s
	PageTimeout time.Duration `yaml:"pageTimeout,omitempty" json:"pageTimeout,omitempty"`
}

// TrafficConfig holds session admission and pacing configuration.
type TrafficConfig struct {
	// SessionsPerMinute is the target session launch rate.
	// Default: 2
	SessionsPerMinute float64 `yaml:"sessionsPerMinute" json:"sessionsPerMinute"`

	// MaxConcurrentSessions caps the number of in-flight sessions.
	// A launch tick that finds the pool full is skipped, not queued.
	// Default: 3
	MaxConcurrentSessions int `yaml:"maxConcurrentSessions" json:"maxConcurrentSessions"`

	// SessionDuration is the target wall-clock length of one session.
	// The free-exploration phase spends whatever budget remains.
	// Default: 30s
	SessionDuration time.Duration `yaml:"sessionDuration" json:"sessionDuration"`

	// ShutdownGrace is how long in-flight sessions may run after a stop
	// signal before their contexts are cut.
	// Default: 10s
	ShutdownGrace time.Duration `yaml:"shutdownGrace,omitempty" json:"shutdownGrace,omitempty"`
}

// BrowserConfig holds headless browser configuration.
type BrowserConfig struct {
	// Headless runs the browser without a display.
	// Default: true
	Headless *bool `yaml:"headless,omitempty" json:"headless,omitempty"`

	// NoSandbox runs Chrome without sandbox (required for Docker/root).
	NoSandbox bool `yaml:"noSandbox,omitempty" json:"noSandbox,omitempty"`

	// RemoteURL points at an already-running Chrome instance.
	// If empty, a local browser is launched.
	RemoteURL string `yaml:"remoteURL,omitempty" json:"remoteURL,omitempty"`

	// ViewportWidth is the page viewport width in pixels.
	// Default: 1280
	ViewportWidth int `yaml:"viewportWidth,omitempty" json:"viewportWidth,omitempty"`

	// ViewportHeight is the page viewport height in pixels.
	// Default: 720
	ViewportHeight int `yaml:"viewportHeight,omitempty" json:"viewportHeight,omitempty"`

	// UserAgent overrides the browser user agent string.
	UserAgent string `yaml:"userAgent,omitempty" json:"userAgent,omitempty"`
}

// TimingConfig holds human-behavior timing configuration.
type TimingConfig struct {
	// Scale multiplies every sampled delay. Tests shrink it toward zero
	// without changing code paths.
	// Default: 1.0
	Scale float64 `yaml:"scale,omitempty" json:"scale,omitempty"`

	// TypoProbability is the per-character chance of typing a wrong
	// character and correcting it.
	// Default: 0.10
	TypoProbability float64 `yaml:"typoProbability,omitempty" json:"typoProbability,omitempty"`

	// SearchTypoProbability is the chance a search query is first typed
	// as a typo variant and then retyped cleanly.
	// Default: 0.70
	SearchTypoProbability float64 `yaml:"searchTypoProbability,omitempty" json:"searchTypoProbability,omitempty"`
}

// PersonasConfig configures the synthetic user directory.
type PersonasConfig struct {
	// File is an optional YAML roster of personas. If empty, the built-in
	// roster is used.
	File string `yaml:"file,omitempty" json:"file,omitempty"`

	// Synthesize adds this many generated personas to the roster.
	Synthesize int `yaml:"synthesize,omitempty" json:"synthesize,omitempty"`
}

// OutputConfig configures reporting.
type OutputConfig struct {
	// ReportInterval is how often run statistics are logged.
	// Default: 15s
	ReportInterval time.Duration `yaml:"reportInterval,omitempty" json:"reportInterval,omitempty"`

	// PrometheusAddr is the listen address for the metrics endpoint
	// (e.g., ":9090"). Empty disables the exporter.
	PrometheusAddr string `yaml:"prometheusAddr,omitempty" json:"prometheusAddr,omitempty"`

	// Verbose enables verbose output.
	Verbose bool `yaml:"verbose,omitempty" json:"verbose,omitempty"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes.
func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a configuration with every field at its default value
// except the target base URL, which the caller must supply.
func Default(baseURL string) *Config {
	cfg := &Config{
		Name:   "traffic-simulator",
		Target: TargetConfig{BaseURL: baseURL},
	}
	cfg.ApplyDefaults()
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Target.BaseURL == "" {
		return fmt.Errorf("%w: target.baseURL is required", ErrInvalidConfig)
	}

	if c.Traffic.SessionsPerMinute <= 0 {
		return fmt.Errorf("%w: traffic.sessionsPerMinute must be positive", ErrInvalidConfig)
	}
	if c.Traffic.MaxConcurrentSessions <= 0 {
		return fmt.Errorf("%w: traffic.maxConcurrentSessions must be positive", ErrInvalidConfig)
	}
	if c.Traffic.SessionDuration <= 0 {
		return fmt.Errorf("%w: traffic.sessionDuration must be positive", ErrInvalidConfig)
	}
	if c.Traffic.ShutdownGrace < 0 {
		return fmt.Errorf("%w: traffic.shutdownGrace cannot be negative", ErrInvalidConfig)
	}

	if c.Timing.Scale < 0 {
		return fmt.Errorf("%w: timing.scale cannot be negative", ErrInvalidConfig)
	}
	if c.Timing.TypoProbability < 0 || c.Timing.TypoProbability > 1 {
		return fmt.Errorf("%w: timing.typoProbability must be in [0,1]", ErrInvalidConfig)
	}
	if c.Timing.SearchTypoProbability < 0 || c.Timing.SearchTypoProbability > 1 {
		return fmt.Errorf("%w: timing.searchTypoProbability must be in [0,1]", ErrInvalidConfig)
	}

	if c.Personas.Synthesize < 0 {
		return fmt.Errorf("%w: personas.synthesize cannot be negative", ErrInvalidConfig)
	}

	return nil
}

// ApplyDefaults applies default values to unset fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "traffic-simulator"
	}

	if c.Target.PageTimeout == 0 {
		c.Target.PageTimeout = 15 * time.Second
	}

	if c.Traffic.SessionsPerMinute == 0 {
		c.Traffic.SessionsPerMinute = 2
	}
	if c.Traffic.MaxConcurrentSessions == 0 {
		c.Traffic.MaxConcurrentSessions = 3
	}
	if c.Traffic.SessionDuration == 0 {
		c.Traffic.SessionDuration = 30 * time.Second
	}
	if c.Traffic.ShutdownGrace == 0 {
		c.Traffic.ShutdownGrace = 10 * time.Second
	}

	if c.Browser.Headless == nil {
		headless := true
		c.Browser.Headless = &headless
	}
	if c.Browser.ViewportWidth == 0 {
		c.Browser.ViewportWidth = 1280
	}
	if c.Browser.ViewportHeight == 0 {
		c.Browser.ViewportHeight = 720
	}

	if c.Timing.Scale == 0 {
		c.Timing.Scale = 1.0
	}
	if c.Timing.TypoProbability == 0 {
		c.Timing.TypoProbability = 0.10
	}
	if c.Timing.SearchTypoProbability == 0 {
		c.Timing.SearchTypoProbability = 0.70
	}

	if c.Output.ReportInterval == 0 {
		c.Output.ReportInterval = 15 * time.Second
	}
}

// LaunchInterval returns the pause between session launch ticks implied by
// the configured sessions-per-minute rate.
func (c *Config) LaunchInterval() time.Duration {
	return time.Duration(float64(time.Minute) / c.Traffic.SessionsPerMinute)
}

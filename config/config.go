// Package config loads and validates simulation configuration. Files are
// YAML, checked against an embedded CUE schema before decoding, then
// structurally validated in Go.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/careloop/icumesh/core"
)

// Duration wraps time.Duration so YAML accepts "5s", "2m30s" notation.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// AlertRule configures one threshold rule for the alert engine. Min and Max
// are optional bounds; a nil bound is not checked.
type AlertRule struct {
	Name        string   `yaml:"name"`
	Signal      string   `yaml:"signal"`
	Min         *float64 `yaml:"min,omitempty"`
	Max         *float64 `yaml:"max,omitempty"`
	Severity    string   `yaml:"severity"`
	BucketWidth float64  `yaml:"bucket_width"`
}

// BusConfig sizes the event bus.
type BusConfig struct {
	QueueCapacity    int `yaml:"queue_capacity"`
	BacklogThreshold int `yaml:"backlog_threshold"`
}

// AlertsConfig configures the alert engine.
type AlertsConfig struct {
	Cooldown Duration    `yaml:"cooldown"`
	Rules    []AlertRule `yaml:"rules"`
}

// Config is the root simulation configuration.
type Config struct {
	Patients        int      `yaml:"patients"`
	TickInterval    Duration `yaml:"tick_interval"`
	Duration        Duration `yaml:"duration"`
	DecisionTimeout Duration `yaml:"decision_timeout"`
	Seed            int64    `yaml:"seed"`

	// LabEveryTicks and MedicationEveryTicks set the cadence of lab results
	// and feed-driven medication changes, in ticks. Zero disables the stream.
	LabEveryTicks        int `yaml:"lab_every_ticks"`
	MedicationEveryTicks int `yaml:"medication_every_ticks"`

	Bus    BusConfig    `yaml:"bus"`
	Alerts AlertsConfig `yaml:"alerts"`

	// RolePriority is the arbitration tie-break order, highest first.
	RolePriority []string `yaml:"role_priority"`
}

// Default returns the baseline configuration: ten patients on a five second
// tick for two minutes, with the standard critical-threshold alert rules.
func Default() *Config {
	f := func(v float64) *float64 { return &v }
	return &Config{
		Patients:             10,
		TickInterval:         Duration(5 * time.Second),
		Duration:             Duration(2 * time.Minute),
		DecisionTimeout:      Duration(5 * time.Second),
		Seed:                 1,
		LabEveryTicks:        3,
		MedicationEveryTicks: 6,
		Bus: BusConfig{
			QueueCapacity:    256,
			BacklogThreshold: 16,
		},
		Alerts: AlertsConfig{
			Cooldown: Duration(60 * time.Second),
			Rules: []AlertRule{
				{Name: "heart_rate_range", Signal: "heart_rate", Min: f(50), Max: f(120), Severity: "high", BucketWidth: 10},
				{Name: "systolic_bp_range", Signal: "systolic_bp", Min: f(90), Max: f(180), Severity: "high", BucketWidth: 10},
				{Name: "spo2_low", Signal: "spo2", Min: f(92), Severity: "critical", BucketWidth: 2},
				{Name: "fever_high", Signal: "temperature", Max: f(39), Severity: "high", BucketWidth: 0.5},
			},
		},
		RolePriority: []string{"physician", "pharmacist", "nurse"},
	}
}

// Load reads a YAML file, validates it against the CUE schema and decodes it
// over the defaults, so partial files only override what they set.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	if err := ValidateWithCue(data); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the structural constraints the schema cannot express
// (cross-field and domain rules).
func (c *Config) Validate() error {
	if c.Patients <= 0 {
		return fmt.Errorf("config: patients must be positive, got %d", c.Patients)
	}
	if c.TickInterval.Std() <= 0 {
		return fmt.Errorf("config: tick_interval must be positive")
	}
	if c.Duration.Std() <= 0 {
		return fmt.Errorf("config: duration must be positive")
	}
	if c.Duration.Std() < c.TickInterval.Std() {
		return fmt.Errorf("config: duration %s shorter than one tick %s",
			c.Duration.Std(), c.TickInterval.Std())
	}
	if c.DecisionTimeout.Std() <= 0 {
		return fmt.Errorf("config: decision_timeout must be positive")
	}
	if c.Bus.QueueCapacity <= 0 {
		return fmt.Errorf("config: bus.queue_capacity must be positive")
	}
	if c.Bus.BacklogThreshold < 0 {
		return fmt.Errorf("config: bus.backlog_threshold must not be negative")
	}
	if c.LabEveryTicks < 0 || c.MedicationEveryTicks < 0 {
		return fmt.Errorf("config: cadences must not be negative")
	}

	seen := map[string]bool{}
	for _, rule := range c.Alerts.Rules {
		if rule.Name == "" || rule.Signal == "" {
			return fmt.Errorf("config: alert rules need a name and a signal")
		}
		if seen[rule.Name] {
			return fmt.Errorf("config: duplicate alert rule %q", rule.Name)
		}
		seen[rule.Name] = true
		if rule.Min == nil && rule.Max == nil {
			return fmt.Errorf("config: alert rule %q has no bounds", rule.Name)
		}
		if rule.Min != nil && rule.Max != nil && *rule.Min > *rule.Max {
			return fmt.Errorf("config: alert rule %q has min above max", rule.Name)
		}
		if _, err := core.ParseUrgency(rule.Severity); err != nil {
			return fmt.Errorf("config: alert rule %q: %w", rule.Name, err)
		}
	}

	for _, role := range c.RolePriority {
		if _, err := core.ParseRole(role); err != nil {
			return fmt.Errorf("config: role_priority: %w", err)
		}
	}
	return nil
}

// Priority converts the configured role priority into core roles. An empty
// configuration falls back to the default order.
func (c *Config) Priority() []core.Role {
	if len(c.RolePriority) == 0 {
		return core.Roles()
	}
	out := make([]core.Role, 0, len(c.RolePriority))
	for _, role := range c.RolePriority {
		out = append(out, core.Role(role))
	}
	return out
}

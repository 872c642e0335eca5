// Package config loads and validates the run configuration: the target
// fleet, the credential strategy, timeouts, concurrency, and check filters.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fleetdb/mysql-upgrade-precheck/pkg/assess"
	"github.com/fleetdb/mysql-upgrade-precheck/pkg/credential"
)

// Duration decodes YAML duration strings ("30s", "5m") as well as
// plain integers, which are taken as seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var n int64
	if err := node.Decode(&n); err == nil {
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// TargetSpec declares one database endpoint to assess.
type TargetSpec struct {
	Identifier    string `yaml:"identifier"`
	Endpoint      string `yaml:"endpoint"`
	Port          int    `yaml:"port"`
	Kind          string `yaml:"kind"`
	EngineVersion string `yaml:"engine_version"`
}

// Config is the full run configuration.
type Config struct {
	TargetVersion string                    `yaml:"target_version"`
	Targets       []TargetSpec              `yaml:"targets"`
	Credentials   credential.StrategyConfig `yaml:"credentials"`

	// Concurrency bounds how many targets are assessed in parallel.
	Concurrency int `yaml:"concurrency"`
	// ConnectRate paces connection establishment across the fleet, in
	// connections per second. Zero disables pacing.
	ConnectRate float64 `yaml:"connect_rate"`

	ConnectTimeout Duration `yaml:"connect_timeout"`
	ReadTimeout    Duration `yaml:"read_timeout"`
	CheckTimeout   Duration `yaml:"check_timeout"`
	TargetTimeout  Duration `yaml:"target_timeout"`

	IncludeChecks []string `yaml:"include_checks"`
	ExcludeChecks []string `yaml:"exclude_checks"`
}

// Defaults used when the config file leaves a knob unset.
const (
	DefaultTargetVersion  = "8.0"
	DefaultConcurrency    = 4
	DefaultConnectTimeout = Duration(10 * time.Second)
	DefaultReadTimeout    = Duration(30 * time.Second)
	DefaultCheckTimeout   = Duration(2 * time.Minute)
	DefaultTargetTimeout  = Duration(30 * time.Minute)
	DefaultPort           = 3306
)

// Load reads, defaults, and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a config document and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.TargetVersion == "" {
		c.TargetVersion = DefaultTargetVersion
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.CheckTimeout <= 0 {
		c.CheckTimeout = DefaultCheckTimeout
	}
	if c.TargetTimeout <= 0 {
		c.TargetTimeout = DefaultTargetTimeout
	}
	for i := range c.Targets {
		if c.Targets[i].Port == 0 {
			c.Targets[i].Port = DefaultPort
		}
		if c.Targets[i].Kind == "" {
			c.Targets[i].Kind = string(assess.KindStandalone)
		}
	}
}

func (c *Config) validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("config declares no targets")
	}
	seen := make(map[string]bool, len(c.Targets))
	for i, t := range c.Targets {
		if t.Identifier == "" {
			return fmt.Errorf("target %d has no identifier", i)
		}
		if seen[t.Identifier] {
			return fmt.Errorf("duplicate target identifier %q", t.Identifier)
		}
		seen[t.Identifier] = true
		if t.Endpoint == "" {
			return fmt.Errorf("target %q has no endpoint", t.Identifier)
		}
		switch assess.TargetKind(t.Kind) {
		case assess.KindStandalone, assess.KindClustered:
		default:
			return fmt.Errorf("target %q has unknown kind %q", t.Identifier, t.Kind)
		}
	}
	switch c.Credentials.Kind {
	case credential.StrategySecretStore, credential.StrategyFederatedAuth, credential.StrategyStaticConfig:
	case "":
		return fmt.Errorf("config declares no credential strategy")
	default:
		return fmt.Errorf("unknown credential strategy %q", c.Credentials.Kind)
	}
	return nil
}

// AssessTarget converts a spec into the immutable run-time target.
func (t TargetSpec) AssessTarget(targetVersion string) assess.Target {
	return assess.Target{
		Identifier:    t.Identifier,
		Kind:          assess.TargetKind(t.Kind),
		EngineVersion: t.EngineVersion,
		TargetVersion: targetVersion,
	}
}

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file the CLI looks for in the working directory.
const DefaultFileName = "pigeon.yml"

// Defaults applied by Validate when a field is omitted.
const (
	DefaultDevice        = "-"
	DefaultBaud          = 115200
	DefaultPoolSize      = 32
	DefaultMessageDelay  = 40 * time.Millisecond
	DefaultRedisURL      = "redis://localhost:6379"
	DefaultInstance      = "default"
	DefaultDashboardAddr = ":8080"
	DefaultSimPeriod     = 100 * time.Millisecond
	DefaultSimPortal     = "flywheel"
)

// Environment variables that override file values.
const (
	EnvRedisURL = "REDIS_URL"
	EnvInstance = "PIGEON_INSTANCE"
	EnvDevice   = "PIGEON_DEVICE"
)

// MaxInstanceLength is the maximum length for an instance name
const MaxInstanceLength = 63

// InstancePattern is the regex pattern for valid instance names. Instance names end up in
// Redis keys, so they are kept DNS-like: lowercase alphanumeric, hyphens allowed (but not at
// start/end)
var InstancePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// Config represents the top-level pigeon.yml configuration
type Config struct {
	Version  string          `yaml:"version"`
	Link     *LinkConfig     `yaml:"link,omitempty"`
	Registry *RegistryConfig `yaml:"registry,omitempty"`
	Bridge   *BridgeConfig   `yaml:"bridge,omitempty"`
	Sim      *SimConfig      `yaml:"sim,omitempty"`
}

// LinkConfig selects the byte stream the registry talks over
type LinkConfig struct {
	Device string `yaml:"device"` // serial device path, "-" for stdin/stdout
	Baud   int    `yaml:"baud"`
}

// RegistryConfig tunes the registry
type RegistryConfig struct {
	PoolSize     int            `yaml:"pool_size"`
	MessageDelay *time.Duration `yaml:"message_delay,omitempty"` // pause after each input line (0 = none)
	Enable       []string       `yaml:"enable,omitempty"`        // portals enabled at startup
}

// BridgeConfig configures the Redis fan-out and the dashboard
type BridgeConfig struct {
	RedisURL      string `yaml:"redis_url"`
	Instance      string `yaml:"instance"`
	DashboardAddr string `yaml:"dashboard_addr"`
}

// SimConfig configures the simulated subsystem run by `pigeon serve --sim`
type SimConfig struct {
	Period time.Duration `yaml:"period"`
	Portal string        `yaml:"portal"`
}

// Default returns a validated configuration with every default applied
func Default() *Config {
	c := &Config{Version: "1.0"}
	if err := c.Validate(); err != nil {
		// defaults always validate
		panic(err)
	}
	return c
}

// Validate applies defaults and rejects values the runtime cannot use
func (c *Config) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Link == nil {
		c.Link = &LinkConfig{}
	}
	if c.Link.Device == "" {
		c.Link.Device = DefaultDevice
	}
	if c.Link.Baud == 0 {
		c.Link.Baud = DefaultBaud
	}
	if c.Link.Baud < 0 {
		return fmt.Errorf("link.baud must be > 0, got %d", c.Link.Baud)
	}

	if c.Registry == nil {
		c.Registry = &RegistryConfig{}
	}
	if c.Registry.PoolSize == 0 {
		c.Registry.PoolSize = DefaultPoolSize
	}
	if c.Registry.PoolSize < 1 {
		return fmt.Errorf("registry.pool_size must be >= 1, got %d", c.Registry.PoolSize)
	}
	if c.Registry.MessageDelay == nil {
		d := DefaultMessageDelay
		c.Registry.MessageDelay = &d
	}
	if *c.Registry.MessageDelay < 0 {
		return fmt.Errorf("registry.message_delay must be >= 0, got %s", *c.Registry.MessageDelay)
	}

	if c.Bridge == nil {
		c.Bridge = &BridgeConfig{}
	}
	if c.Bridge.RedisURL == "" {
		c.Bridge.RedisURL = DefaultRedisURL
	}
	if c.Bridge.Instance == "" {
		c.Bridge.Instance = DefaultInstance
	}
	if err := ValidateInstance(c.Bridge.Instance); err != nil {
		return fmt.Errorf("bridge.instance: %w", err)
	}
	if c.Bridge.DashboardAddr == "" {
		c.Bridge.DashboardAddr = DefaultDashboardAddr
	}

	if c.Sim == nil {
		c.Sim = &SimConfig{}
	}
	if c.Sim.Period == 0 {
		c.Sim.Period = DefaultSimPeriod
	}
	if c.Sim.Period < 0 {
		return fmt.Errorf("sim.period must be > 0, got %s", c.Sim.Period)
	}
	if c.Sim.Portal == "" {
		c.Sim.Portal = DefaultSimPortal
	}

	return nil
}

// ValidateInstance checks if an instance name is valid
func ValidateInstance(name string) error {
	if name == "" {
		return fmt.Errorf("instance name cannot be empty")
	}

	if len(name) > MaxInstanceLength {
		return fmt.Errorf("instance name too long: %d characters (max: %d)", len(name), MaxInstanceLength)
	}

	if !InstancePattern.MatchString(name) {
		return fmt.Errorf("invalid instance name '%s': must be lowercase alphanumeric with hyphens (not at start/end)", name)
	}

	return nil
}

// ApplyEnv overrides file values with REDIS_URL, PIGEON_INSTANCE and PIGEON_DEVICE when set
func (c *Config) ApplyEnv() {
	if c.Bridge == nil {
		c.Bridge = &BridgeConfig{}
	}
	if c.Link == nil {
		c.Link = &LinkConfig{}
	}

	if v := os.Getenv(EnvRedisURL); v != "" {
		c.Bridge.RedisURL = v
	}
	if v := os.Getenv(EnvInstance); v != "" {
		c.Bridge.Instance = v
	}
	if v := os.Getenv(EnvDevice); v != "" {
		c.Link.Device = v
	}
}

// Load reads pigeon.yml from the specified path, applies environment overrides and validates it
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault loads path when it exists and falls back to Default (with environment
// overrides) when it does not
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		c := &Config{Version: "1.0"}
		c.ApplyEnv()
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return c, nil
	}
	return Load(path)
}

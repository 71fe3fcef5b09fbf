package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
link:
  device: /dev/ttyACM0
  baud: 921600
registry:
  pool_size: 64
  message_delay: 10ms
  enable: [flywheel, conveyor]
bridge:
  redis_url: redis://redis:6379/1
  instance: bench
  dashboard_addr: ":9000"
sim:
  period: 250ms
  portal: wheel
`)

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", config.Link.Device)
	assert.Equal(t, 921600, config.Link.Baud)
	assert.Equal(t, 64, config.Registry.PoolSize)
	assert.Equal(t, 10*time.Millisecond, *config.Registry.MessageDelay)
	assert.Equal(t, []string{"flywheel", "conveyor"}, config.Registry.Enable)
	assert.Equal(t, "redis://redis:6379/1", config.Bridge.RedisURL)
	assert.Equal(t, "bench", config.Bridge.Instance)
	assert.Equal(t, ":9000", config.Bridge.DashboardAddr)
	assert.Equal(t, 250*time.Millisecond, config.Sim.Period)
	assert.Equal(t, "wheel", config.Sim.Portal)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	config, err := Load(writeConfig(t, `version: "1.0"`))
	require.NoError(t, err)

	assert.Equal(t, DefaultDevice, config.Link.Device)
	assert.Equal(t, DefaultBaud, config.Link.Baud)
	assert.Equal(t, DefaultPoolSize, config.Registry.PoolSize)
	assert.Equal(t, DefaultMessageDelay, *config.Registry.MessageDelay)
	assert.Equal(t, DefaultRedisURL, config.Bridge.RedisURL)
	assert.Equal(t, DefaultInstance, config.Bridge.Instance)
	assert.Equal(t, DefaultDashboardAddr, config.Bridge.DashboardAddr)
	assert.Equal(t, DefaultSimPeriod, config.Sim.Period)
	assert.Equal(t, DefaultSimPortal, config.Sim.Portal)
}

func TestLoad_ZeroMessageDelayIsKept(t *testing.T) {
	config, err := Load(writeConfig(t, "version: \"1.0\"\nregistry:\n  message_delay: 0s\n"))
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), *config.Registry.MessageDelay)
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/pigeon.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	config, err := Load(writeConfig(t, `version: "1.0"
link:
  - this is invalid
    yaml syntax
`))
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvRedisURL, "redis://override:6380")
	t.Setenv(EnvInstance, "lab")
	t.Setenv(EnvDevice, "/dev/ttyUSB1")

	config, err := Load(writeConfig(t, `version: "1.0"
link:
  device: /dev/ttyACM0
bridge:
  instance: bench
`))
	require.NoError(t, err)
	assert.Equal(t, "redis://override:6380", config.Bridge.RedisURL)
	assert.Equal(t, "lab", config.Bridge.Instance)
	assert.Equal(t, "/dev/ttyUSB1", config.Link.Device)
}

func TestLoadOrDefault(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		t.Setenv(EnvInstance, "ci")
		config, err := LoadOrDefault(filepath.Join(t.TempDir(), DefaultFileName))
		require.NoError(t, err)
		assert.Equal(t, "ci", config.Bridge.Instance)
		assert.Equal(t, DefaultPoolSize, config.Registry.PoolSize)
	})

	t.Run("existing file is loaded", func(t *testing.T) {
		config, err := LoadOrDefault(writeConfig(t, "version: \"1.0\"\nregistry:\n  pool_size: 8\n"))
		require.NoError(t, err)
		assert.Equal(t, 8, config.Registry.PoolSize)
	})
}

func TestValidate(t *testing.T) {
	negative := -time.Second

	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"unsupported version", Config{Version: "2.0"}, "unsupported version: 2.0"},
		{"negative baud", Config{Version: "1.0", Link: &LinkConfig{Baud: -1}}, "link.baud"},
		{"negative pool", Config{Version: "1.0", Registry: &RegistryConfig{PoolSize: -4}}, "registry.pool_size"},
		{"negative delay", Config{Version: "1.0", Registry: &RegistryConfig{MessageDelay: &negative}}, "registry.message_delay"},
		{"negative sim period", Config{Version: "1.0", Sim: &SimConfig{Period: -time.Second}}, "sim.period"},
		{"uppercase instance", Config{Version: "1.0", Bridge: &BridgeConfig{Instance: "Lab"}}, "bridge.instance"},
		{"instance with colon", Config{Version: "1.0", Bridge: &BridgeConfig{Instance: "lab:1"}}, "bridge.instance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefault(t *testing.T) {
	config := Default()
	assert.Equal(t, "1.0", config.Version)
	assert.Equal(t, DefaultDevice, config.Link.Device)
}

func TestValidateInstance(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"default", true},
		{"bench-2", true},
		{"a", true},
		{"", false},
		{"-lab", false},
		{"lab-", false},
		{"Lab", false},
		{"lab_1", false},
		{strings.Repeat("a", MaxInstanceLength), true},
		{strings.Repeat("a", MaxInstanceLength+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInstance(tt.name)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig tests the shipped defaults.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10*time.Second, cfg.HeartbeatTimeout)
	assert.Equal(t, 2*time.Second, cfg.HealthCheckInterval)
	assert.Equal(t, 3, cfg.MaxMissedHeartbeats)
	assert.Equal(t, "load_balanced", cfg.AssignmentStrategy)
	assert.Equal(t, 4, cfg.Distributed.NumWorkers)
	assert.Equal(t, 5, cfg.Distributed.MaxConcurrentTasks)
	assert.Equal(t, "round_robin", cfg.Distributed.LoadBalancingStrategy)
	assert.False(t, cfg.Distributed.Enabled)
	assert.False(t, cfg.History.Enabled)
}

// TestLoadConfigMissingDefault tests that an absent default file yields
// defaults without error.
func TestLoadConfigMissingDefault(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

// TestLoadConfigExplicitMissing tests that a named path must exist.
func TestLoadConfigExplicitMissing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

// TestLoadConfigFile tests YAML parsing over the defaults.
func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
heartbeat_timeout: 20s
assignment_strategy: round_robin
distributed:
  enabled: true
  num_workers: 8
  load_balancing_strategy: least_loaded
history:
  enabled: true
  path: /tmp/history.db
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, cfg.HeartbeatTimeout)
	assert.Equal(t, "round_robin", cfg.AssignmentStrategy)
	assert.True(t, cfg.Distributed.Enabled)
	assert.Equal(t, 8, cfg.Distributed.NumWorkers)
	assert.Equal(t, "least_loaded", cfg.Distributed.LoadBalancingStrategy)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "/tmp/history.db", cfg.History.Path)
	// Untouched keys keep their defaults.
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 5, cfg.Distributed.MaxConcurrentTasks)
}

// TestEnvOverrides tests the deployment-time switches.
func TestEnvOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("ROBOFLEET_ASSIGNMENT_STRATEGY", "round_robin")
	t.Setenv("ROBOFLEET_LB_STRATEGY", "random")
	t.Setenv("ROBOFLEET_DISTRIBUTED", "true")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "round_robin", cfg.AssignmentStrategy)
	assert.Equal(t, "random", cfg.Distributed.LoadBalancingStrategy)
	assert.True(t, cfg.Distributed.Enabled)
}

package core

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DistributedConfig controls the worker-pool backend.
type DistributedConfig struct {
	Enabled               bool   `yaml:"enabled"`
	NumWorkers            int    `yaml:"num_workers"`
	MaxConcurrentTasks    int    `yaml:"max_concurrent_tasks"`
	LoadBalancingStrategy string `yaml:"load_balancing_strategy"`
}

// HistoryConfig controls terminal-task persistence.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TelemetryConfig controls the in-process metrics collector.
type TelemetryConfig struct {
	Enabled       bool          `yaml:"enabled"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// Config is the orchestrator's full configuration surface.
type Config struct {
	HeartbeatTimeout    time.Duration     `yaml:"heartbeat_timeout"`
	HealthCheckInterval time.Duration     `yaml:"health_check_interval"`
	MaxMissedHeartbeats int               `yaml:"max_missed_heartbeats"`
	AssignmentStrategy  string            `yaml:"assignment_strategy"`
	AssignmentTimeout   time.Duration     `yaml:"assignment_timeout"`
	MaxRetries          int               `yaml:"max_retries"`
	MonitorInterval     time.Duration     `yaml:"monitor_interval"`
	Distributed         DistributedConfig `yaml:"distributed"`
	History             HistoryConfig     `yaml:"history"`
	Telemetry           TelemetryConfig   `yaml:"telemetry"`
}

// DefaultConfig mirrors the defaults the components apply themselves.
func DefaultConfig() Config {
	return Config{
		HeartbeatTimeout:    10 * time.Second,
		HealthCheckInterval: 2 * time.Second,
		MaxMissedHeartbeats: 3,
		AssignmentStrategy:  "load_balanced",
		AssignmentTimeout:   30 * time.Second,
		MaxRetries:          3,
		MonitorInterval:     5 * time.Second,
		Distributed: DistributedConfig{
			NumWorkers:            4,
			MaxConcurrentTasks:    5,
			LoadBalancingStrategy: "round_robin",
		},
		Telemetry: TelemetryConfig{FlushInterval: 30 * time.Second},
	}
}

// LoadConfig reads YAML configuration from a path. If path is empty, it
// resolves $XDG_CONFIG_HOME/robofleet/config.yaml or
// ~/.config/robofleet/config.yaml. A missing default file yields the
// defaults; an explicit path must exist.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	explicit := path != ""
	if path == "" {
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, _ := os.UserHomeDir()
			base = filepath.Join(home, ".config")
		}
		path = filepath.Join(base, "robofleet", "config.yaml")
	}
	f, err := os.Open(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides merges a few deployment-time switches so strategy
// and backend toggles need no config file edit.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ROBOFLEET_ASSIGNMENT_STRATEGY"); v != "" {
		cfg.AssignmentStrategy = v
	}
	if v := os.Getenv("ROBOFLEET_LB_STRATEGY"); v != "" {
		cfg.Distributed.LoadBalancingStrategy = v
	}
	switch os.Getenv("ROBOFLEET_DISTRIBUTED") {
	case "1", "true", "yes":
		cfg.Distributed.Enabled = true
	case "0", "false", "no":
		cfg.Distributed.Enabled = false
	}
}

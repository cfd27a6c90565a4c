package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sohaibzafar701/robofleet/internal/cluster"
	"github.com/sohaibzafar701/robofleet/internal/fleet"
	"github.com/sohaibzafar701/robofleet/internal/tasks"
	"github.com/sohaibzafar701/robofleet/internal/telemetry"
)

// Orchestrator wires the fleet registry, task manager, and optional
// distributed backend from one configuration.
type Orchestrator struct {
	Fleet   *fleet.Registry
	Tasks   *tasks.Manager
	Cluster *cluster.Manager

	cfg     Config
	history *HistoryStore
	metrics *telemetry.Collector
}

// SystemHealth aggregates every component's health snapshot.
type SystemHealth struct {
	Fleet   fleet.Health    `json:"fleet_registry"`
	Tasks   tasks.Health    `json:"task_manager"`
	Cluster *cluster.Health `json:"cluster_manager,omitempty"`
}

// NewOrchestrator builds all components. The cluster manager and
// history store are created only when enabled.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	o := &Orchestrator{cfg: cfg}

	o.metrics = telemetry.NewCollector(cfg.Telemetry.Enabled, cfg.Telemetry.FlushInterval)
	telemetry.SetGlobal(o.metrics)

	o.Fleet = fleet.NewRegistry(fleet.Config{
		HeartbeatTimeout:    cfg.HeartbeatTimeout,
		HealthCheckInterval: cfg.HealthCheckInterval,
		MaxMissedHeartbeats: cfg.MaxMissedHeartbeats,
	})

	var distrib tasks.Distributor
	if cfg.Distributed.Enabled {
		cm, err := cluster.NewManager(cluster.Config{
			NumWorkers:         cfg.Distributed.NumWorkers,
			MaxConcurrentTasks: cfg.Distributed.MaxConcurrentTasks,
			Strategy:           cfg.Distributed.LoadBalancingStrategy,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("create cluster manager: %w", err)
		}
		o.Cluster = cm
		distrib = cm
	}

	var history tasks.History
	if cfg.History.Enabled {
		store, err := NewHistoryStore(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
		o.history = store
		history = store
	}

	o.Tasks = tasks.NewManager(o.Fleet, tasks.Config{
		Strategy:          cfg.AssignmentStrategy,
		AssignmentTimeout: cfg.AssignmentTimeout,
		MaxRetries:        cfg.MaxRetries,
		MonitorInterval:   cfg.MonitorInterval,
		UseDistributed:    cfg.Distributed.Enabled,
	}, distrib, history)

	return o, nil
}

// History exposes the terminal-task store, nil unless enabled.
func (o *Orchestrator) History() *HistoryStore { return o.history }

// Start launches every component's monitoring loop.
func (o *Orchestrator) Start(ctx context.Context) {
	o.Fleet.Start(ctx)
	if o.Cluster != nil {
		o.Cluster.Start(ctx)
	}
	o.Tasks.Start(ctx)
	log.Info().Bool("distributed", o.Cluster != nil).Msg("orchestrator started")
}

// Stop halts loops in dependency order and flushes telemetry.
func (o *Orchestrator) Stop() {
	o.Tasks.Stop()
	if o.Cluster != nil {
		o.Cluster.Stop()
	}
	o.Fleet.Stop()
	if o.history != nil {
		if err := o.history.Close(); err != nil {
			log.Error().Err(err).Msg("close history store")
		}
	}
	_ = o.metrics.Shutdown()
	log.Info().Msg("orchestrator stopped")
}

// Health reports every component's health.
func (o *Orchestrator) Health() SystemHealth {
	h := SystemHealth{
		Fleet: o.Fleet.Health(),
		Tasks: o.Tasks.Health(),
	}
	if o.Cluster != nil {
		ch := o.Cluster.Health()
		h.Cluster = &ch
	}
	return h
}

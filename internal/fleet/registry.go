package fleet

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sohaibzafar701/robofleet/internal/telemetry"
	"github.com/sohaibzafar701/robofleet/pkg/api"
)

// Config holds the registry's health-monitoring knobs.
type Config struct {
	// HeartbeatTimeout is the window a robot has to report before it is
	// considered late. Each robot's expected interval is half of this.
	HeartbeatTimeout time.Duration
	// HealthCheckInterval is how often the sweep runs.
	HealthCheckInterval time.Duration
	// MaxMissedHeartbeats flips a robot unhealthy once reached.
	MaxMissedHeartbeats int
}

func (c *Config) applyDefaults() {
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 10 * time.Second
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = 2 * time.Second
	}
	if c.MaxMissedHeartbeats <= 0 {
		c.MaxMissedHeartbeats = 3
	}
}

// RobotInfo is a robot's registration record plus health bookkeeping.
type RobotInfo struct {
	RobotID           string
	State             api.RobotState
	Capabilities      map[api.Capability]bool
	LastHeartbeat     time.Time
	RegisteredAt      time.Time
	HeartbeatInterval time.Duration
	IsHealthy         bool
	MissedHeartbeats  int
}

func (r *RobotInfo) availableForTask() bool {
	return r.IsHealthy && r.State.IsAvailable()
}

func (r *RobotInfo) clone() RobotInfo {
	out := *r
	out.Capabilities = make(map[api.Capability]bool, len(r.Capabilities))
	for c := range r.Capabilities {
		out.Capabilities[c] = true
	}
	return out
}

// FleetStatus is an aggregate snapshot of the fleet.
type FleetStatus struct {
	TotalRobots            int                        `json:"total_robots"`
	HealthyRobots          int                        `json:"healthy_robots"`
	AvailableRobots        int                        `json:"available_robots"`
	UnhealthyRobots        int                        `json:"unhealthy_robots"`
	StatusDistribution     map[api.RobotStatus]int    `json:"status_distribution"`
	CapabilityDistribution map[api.Capability]int     `json:"capability_distribution"`
	Timestamp              time.Time                  `json:"timestamp"`
}

// Health is the registry's component health snapshot.
type Health struct {
	Component        string    `json:"component"`
	Status           string    `json:"status"`
	MonitoringActive bool      `json:"monitoring_active"`
	TotalRobots      int       `json:"total_robots"`
	HealthyRobots    int       `json:"healthy_robots"`
	UnhealthyRobots  int       `json:"unhealthy_robots"`
	Timestamp        time.Time `json:"timestamp"`
}

// Registry is the authoritative store of robot identity, state, and health.
// All access goes through its methods; records are never exposed by reference.
type Registry struct {
	mu     sync.Mutex
	robots map[string]*RobotInfo

	cfg Config
	log zerolog.Logger
	now func() time.Time

	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRegistry creates a registry with defaults applied for zero fields.
func NewRegistry(cfg Config) *Registry {
	cfg.applyDefaults()
	return &Registry{
		robots: make(map[string]*RobotInfo),
		cfg:    cfg,
		log:    log.With().Str("component", "fleet_registry").Logger(),
		now:    time.Now,
	}
}

// Register adds or replaces a robot record. Re-registering an existing id
// overwrites it with a warning; the call always succeeds. When no explicit
// capability set is given, capabilities are discovered heuristically.
func (r *Registry) Register(robotID string, state api.RobotState, caps []api.Capability) bool {
	if len(caps) == 0 {
		caps = DiscoverCapabilities(robotID)
	}
	capSet := make(map[api.Capability]bool, len(caps))
	for _, c := range caps {
		capSet[c] = true
	}

	r.mu.Lock()
	_, existed := r.robots[robotID]
	now := r.now()
	r.robots[robotID] = &RobotInfo{
		RobotID:           robotID,
		State:             state,
		Capabilities:      capSet,
		LastHeartbeat:     now,
		RegisteredAt:      now,
		HeartbeatInterval: r.cfg.HeartbeatTimeout / 2,
		IsHealthy:         true,
	}
	r.mu.Unlock()

	if existed {
		r.log.Warn().Str("robot_id", robotID).Msg("robot already registered, overwriting record")
	} else {
		r.log.Info().Str("robot_id", robotID).Int("capabilities", len(capSet)).Msg("robot registered")
	}
	return true
}

// Unregister removes a robot. Returns false for unknown ids.
func (r *Registry) Unregister(robotID string) bool {
	r.mu.Lock()
	_, ok := r.robots[robotID]
	if ok {
		delete(r.robots, robotID)
	}
	r.mu.Unlock()

	if !ok {
		r.log.Warn().Str("robot_id", robotID).Msg("unregister for unknown robot")
		return false
	}
	r.log.Info().Str("robot_id", robotID).Msg("robot unregistered")
	return true
}

// UpdateState replaces a robot's reported state and counts as a heartbeat.
func (r *Registry) UpdateState(robotID string, state api.RobotState) bool {
	r.mu.Lock()
	info, ok := r.robots[robotID]
	if ok {
		info.State = state
		r.refreshHeartbeatLocked(info)
	}
	r.mu.Unlock()

	if !ok {
		r.log.Warn().Str("robot_id", robotID).Msg("state update for unknown robot")
	}
	return ok
}

// Heartbeat records a liveness signal. A single heartbeat restores health
// and zeroes the missed counter regardless of prior state.
func (r *Registry) Heartbeat(robotID string) bool {
	r.mu.Lock()
	info, ok := r.robots[robotID]
	if ok {
		r.refreshHeartbeatLocked(info)
	}
	r.mu.Unlock()

	if !ok {
		r.log.Warn().Str("robot_id", robotID).Msg("heartbeat from unknown robot")
	}
	return ok
}

func (r *Registry) refreshHeartbeatLocked(info *RobotInfo) {
	info.LastHeartbeat = r.now()
	info.MissedHeartbeats = 0
	info.IsHealthy = true
}

// RobotInfo returns a copy of a robot's record.
func (r *Registry) RobotInfo(robotID string) (RobotInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.robots[robotID]
	if !ok {
		return RobotInfo{}, false
	}
	return info.clone(), true
}

// AllRobots returns copies of every registered record.
func (r *Registry) AllRobots() map[string]RobotInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]RobotInfo, len(r.robots))
	for id, info := range r.robots {
		out[id] = info.clone()
	}
	return out
}

// AvailableRobots lists robots that are healthy, idle, and above the
// battery floor, sorted for deterministic strategy iteration.
func (r *Registry) AvailableRobots() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, info := range r.robots {
		if info.availableForTask() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// RobotsWithCapability lists healthy robots advertising the capability.
func (r *Registry) RobotsWithCapability(capability api.Capability) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, info := range r.robots {
		if info.IsHealthy && info.Capabilities[capability] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// HealthyRobots lists all robots currently marked healthy.
func (r *Registry) HealthyRobots() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, info := range r.robots {
		if info.IsHealthy {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// FleetStatus aggregates counts by health, status, and capability.
func (r *Registry) FleetStatus() FleetStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := FleetStatus{
		TotalRobots:            len(r.robots),
		StatusDistribution:     make(map[api.RobotStatus]int),
		CapabilityDistribution: make(map[api.Capability]int),
		Timestamp:              r.now(),
	}
	for _, info := range r.robots {
		if info.IsHealthy {
			st.HealthyRobots++
		}
		if info.availableForTask() {
			st.AvailableRobots++
		}
		st.StatusDistribution[info.State.Status]++
		for c := range info.Capabilities {
			st.CapabilityDistribution[c]++
		}
	}
	st.UnhealthyRobots = st.TotalRobots - st.HealthyRobots
	return st
}

// Health reports the registry's own component health.
func (r *Registry) Health() Health {
	r.mu.Lock()
	total := len(r.robots)
	healthy := 0
	for _, info := range r.robots {
		if info.IsHealthy {
			healthy++
		}
	}
	running := r.running
	r.mu.Unlock()

	status := "healthy"
	if !running {
		status = "unhealthy"
	}
	return Health{
		Component:        "fleet_registry",
		Status:           status,
		MonitoringActive: running,
		TotalRobots:      total,
		HealthyRobots:    healthy,
		UnhealthyRobots:  total - healthy,
		Timestamp:        r.now(),
	}
}

// Start launches the periodic health sweep. It is a no-op if already running.
func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.running = true
	r.cancel = cancel
	r.done = make(chan struct{})
	r.mu.Unlock()

	go r.healthLoop(ctx)
	r.log.Info().Msg("fleet registry started with health monitoring")
}

// Stop halts the health sweep and waits for it to exit.
func (r *Registry) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	cancel()
	<-done
	r.log.Info().Msg("fleet registry stopped")
}

func (r *Registry) healthLoop(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.cfg.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.checkRobotHealth()
		}
	}
}

// checkRobotHealth runs one sweep: robots whose last heartbeat is older
// than twice their interval accrue a miss; at the configured threshold
// they are flagged unhealthy. Logging happens outside the lock.
func (r *Registry) checkRobotHealth() {
	r.mu.Lock()
	now := r.now()
	total := len(r.robots)
	var unhealthy []string
	for id, info := range r.robots {
		if now.Sub(info.LastHeartbeat) > 2*info.HeartbeatInterval {
			info.MissedHeartbeats++
			if info.MissedHeartbeats >= r.cfg.MaxMissedHeartbeats {
				info.IsHealthy = false
			}
		}
		if !info.IsHealthy {
			unhealthy = append(unhealthy, id)
		}
	}
	r.mu.Unlock()

	telemetry.GaugeGlobal("robofleet_fleet_healthy_robots", float64(total-len(unhealthy)), map[string]string{
		"component": "fleet_registry",
	})

	if len(unhealthy) > 0 {
		sort.Strings(unhealthy)
		r.log.Warn().Strs("robot_ids", unhealthy).Msg("unhealthy robots detected")
	}
}

// DiscoverCapabilities guesses a capability set from the robot id prefix.
// Used only when registration omits an explicit set; real deployments are
// expected to declare capabilities.
func DiscoverCapabilities(robotID string) []api.Capability {
	switch {
	case strings.HasPrefix(robotID, "tiago"):
		return []api.Capability{api.CapNavigation, api.CapManipulation, api.CapInspection, api.CapSensing}
	case strings.HasPrefix(robotID, "mobile"):
		return []api.Capability{api.CapNavigation, api.CapSensing}
	default:
		return []api.Capability{api.CapNavigation}
	}
}

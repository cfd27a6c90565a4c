package cluster

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sohaibzafar701/robofleet/internal/telemetry"
	"github.com/sohaibzafar701/robofleet/pkg/api"
)

// Load-balancing policies for worker selection.
const (
	StrategyRoundRobin  = "round_robin"
	StrategyLeastLoaded = "least_loaded"
	StrategyRandom      = "random"
)

// Config holds the pool's sizing and selection knobs.
type Config struct {
	NumWorkers         int
	MaxConcurrentTasks int    // per-worker in-flight cap
	Strategy           string // round_robin, least_loaded, random
	ResultCacheSize    int    // recent results kept for lookup
}

func (c *Config) applyDefaults() {
	if c.NumWorkers <= 0 {
		c.NumWorkers = 4
	}
	if c.MaxConcurrentTasks <= 0 {
		c.MaxConcurrentTasks = 5
	}
	if c.Strategy == "" {
		c.Strategy = StrategyRoundRobin
	}
	if c.ResultCacheSize <= 0 {
		c.ResultCacheSize = 256
	}
}

// WorkerStats is the per-worker bookkeeping the result path maintains.
type WorkerStats struct {
	WorkerID       string    `json:"worker_id"`
	TasksProcessed int       `json:"tasks_processed"`
	TasksFailed    int       `json:"tasks_failed"`
	CurrentLoad    int       `json:"current_load"`
	LastActivity   time.Time `json:"last_activity"`
	IsHealthy      bool      `json:"is_healthy"`
}

// ClusterStats aggregates totals across the pool.
type ClusterStats struct {
	TotalWorkers        int     `json:"total_workers"`
	HealthyWorkers      int     `json:"healthy_workers"`
	TotalTasksProcessed int     `json:"total_tasks_processed"`
	TotalTasksFailed    int     `json:"total_tasks_failed"`
	CurrentTotalLoad    int     `json:"current_total_load"`
	PendingTasks        int     `json:"pending_tasks"`
	ExecutingTasks      int     `json:"executing_tasks"`
	SuccessRate         float64 `json:"success_rate"`
	Strategy            string  `json:"load_balancing_strategy"`
}

// Health is the manager's component health snapshot.
type Health struct {
	Component      string    `json:"component"`
	Status         string    `json:"status"`
	Running        bool      `json:"running"`
	TotalWorkers   int       `json:"total_workers"`
	HealthyWorkers int       `json:"healthy_workers"`
	PendingTasks   int       `json:"pending_tasks"`
	ExecutingTasks int       `json:"executing_tasks"`
	Strategy       string    `json:"load_balancing_strategy"`
	Timestamp      time.Time `json:"timestamp"`
}

// Manager executes delegated tasks across a fixed pool of stateless
// workers. Dispatch launches one goroutine per in-flight task; a single
// result loop drains completions and applies all stat mutations.
type Manager struct {
	mu        sync.Mutex
	workers   []Worker
	stats     map[string]*WorkerStats
	pending   map[string]api.Task
	executing map[string]string // task id -> worker id
	rrIndex   int

	cfg     Config
	log     zerolog.Logger
	rnd     *rand.Rand
	results chan api.DistributedTaskResult
	recent  *lru.Cache[string, api.DistributedTaskResult]

	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewManager builds the pool. A nil factory gets local workers.
func NewManager(cfg Config, factory WorkerFactory) (*Manager, error) {
	cfg.applyDefaults()
	if factory == nil {
		factory = func(id string) Worker { return NewLocalWorker(id) }
	}

	recent, err := lru.New[string, api.DistributedTaskResult](cfg.ResultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}

	m := &Manager{
		stats:     make(map[string]*WorkerStats),
		pending:   make(map[string]api.Task),
		executing: make(map[string]string),
		cfg:       cfg,
		log:       log.With().Str("component", "cluster_manager").Logger(),
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		results:   make(chan api.DistributedTaskResult, cfg.NumWorkers*cfg.MaxConcurrentTasks),
		recent:    recent,
	}

	for i := 0; i < cfg.NumWorkers; i++ {
		id := fmt.Sprintf("worker_%d_%s", i, uuid.NewString()[:8])
		m.workers = append(m.workers, factory(id))
		m.stats[id] = &WorkerStats{WorkerID: id, IsHealthy: true}
		m.log.Info().Str("worker_id", id).Msg("created worker")
	}

	return m, nil
}

// Start launches the result-processing loop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.running = true
	m.ctx = ctx
	m.cancel = cancel
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.resultLoop(ctx)
	m.log.Info().Int("workers", len(m.workers)).Str("strategy", m.cfg.Strategy).Msg("cluster manager started")
}

// Stop halts result processing. In-flight workers finish but their
// results are dropped once the loop exits.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	cancel()
	<-done
	m.log.Info().Msg("cluster manager stopped")
}

// Submit dispatches a task to a worker chosen by the configured policy.
// Returns false if the manager is not running. If no worker has spare
// capacity the task stays in the pending set; it is not re-dispatched
// by this manager (the caller's monitor owns retries).
func (m *Manager) Submit(task api.Task) bool {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		m.log.Error().Str("task_id", task.TaskID).Msg("submit rejected, manager not running")
		return false
	}

	m.pending[task.TaskID] = task

	worker := m.selectWorkerLocked()
	if worker == nil {
		m.mu.Unlock()
		m.log.Warn().Str("task_id", task.TaskID).Msg("no worker with spare capacity")
		return true
	}

	ws := m.stats[worker.ID()]
	ws.CurrentLoad++
	m.executing[task.TaskID] = worker.ID()
	delete(m.pending, task.TaskID)
	ctx := m.ctxLocked()
	m.mu.Unlock()

	telemetry.CounterGlobal("robofleet_cluster_dispatched", 1, map[string]string{
		"component": "cluster_manager",
		"worker_id": worker.ID(),
	})
	m.log.Info().Str("task_id", task.TaskID).Str("worker_id", worker.ID()).Msg("task dispatched")

	go func(w Worker, t api.Task) {
		res := w.Execute(ctx, t)
		select {
		case m.results <- res:
		case <-ctx.Done():
		}
	}(worker, task)

	return true
}

// ctxLocked returns the context dispatch goroutines run under.
func (m *Manager) ctxLocked() context.Context {
	if m.ctx == nil {
		return context.Background()
	}
	return m.ctx
}

// selectWorkerLocked applies the configured policy. Workers at or over
// the per-worker cap, or flagged unhealthy, are ineligible.
func (m *Manager) selectWorkerLocked() Worker {
	switch m.cfg.Strategy {
	case StrategyLeastLoaded:
		return m.selectLeastLoadedLocked()
	case StrategyRandom:
		return m.selectRandomLocked()
	default:
		return m.selectRoundRobinLocked()
	}
}

func (m *Manager) eligibleLocked(w Worker) bool {
	ws := m.stats[w.ID()]
	return ws != nil && ws.IsHealthy && ws.CurrentLoad < m.cfg.MaxConcurrentTasks
}

func (m *Manager) selectRoundRobinLocked() Worker {
	for i := 0; i < len(m.workers); i++ {
		w := m.workers[m.rrIndex%len(m.workers)]
		m.rrIndex++
		if m.eligibleLocked(w) {
			return w
		}
	}
	return nil
}

func (m *Manager) selectLeastLoadedLocked() Worker {
	var best Worker
	bestLoad := 0
	for _, w := range m.workers {
		if !m.eligibleLocked(w) {
			continue
		}
		load := m.stats[w.ID()].CurrentLoad
		if best == nil || load < bestLoad {
			best = w
			bestLoad = load
		}
	}
	return best
}

func (m *Manager) selectRandomLocked() Worker {
	var eligible []Worker
	for _, w := range m.workers {
		if m.eligibleLocked(w) {
			eligible = append(eligible, w)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	return eligible[m.rnd.Intn(len(eligible))]
}

func (m *Manager) resultLoop(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			return
		case res := <-m.results:
			m.handleResult(res)
		}
	}
}

// handleResult applies one task's outcome: load decrement, counters,
// activity timestamp, in-flight removal, result cache.
func (m *Manager) handleResult(res api.DistributedTaskResult) {
	m.mu.Lock()
	if ws, ok := m.stats[res.WorkerID]; ok {
		if ws.CurrentLoad > 0 {
			ws.CurrentLoad--
		}
		ws.LastActivity = time.Now()
		if res.Success {
			ws.TasksProcessed++
		} else {
			ws.TasksFailed++
		}
	}
	delete(m.executing, res.TaskID)
	m.recent.Add(res.TaskID, res)
	m.mu.Unlock()

	status := "success"
	if !res.Success {
		status = "error"
	}
	telemetry.CounterGlobal("robofleet_cluster_results", 1, map[string]string{
		"component": "cluster_manager",
		"worker_id": res.WorkerID,
		"status":    status,
	})
	telemetry.TimerGlobal("robofleet_cluster_execution", res.ExecutionTime, map[string]string{
		"component": "cluster_manager",
		"worker_id": res.WorkerID,
	})

	m.log.Info().
		Str("task_id", res.TaskID).
		Str("worker_id", res.WorkerID).
		Bool("success", res.Success).
		Dur("execution_time", res.ExecutionTime).
		Msg("task result processed")
}

// Result returns a recently completed task's outcome, if still cached.
func (m *Manager) Result(taskID string) (api.DistributedTaskResult, bool) {
	return m.recent.Get(taskID)
}

// WorkerStats returns per-worker detail for observability.
func (m *Manager) WorkerStats() map[string]WorkerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]WorkerStats, len(m.stats))
	for id, ws := range m.stats {
		out[id] = *ws
	}
	return out
}

// ClusterStats aggregates totals and a success rate across the pool.
func (m *Manager) ClusterStats() ClusterStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := ClusterStats{
		TotalWorkers:   len(m.workers),
		PendingTasks:   len(m.pending),
		ExecutingTasks: len(m.executing),
		Strategy:       m.cfg.Strategy,
	}
	for _, ws := range m.stats {
		if ws.IsHealthy {
			st.HealthyWorkers++
		}
		st.TotalTasksProcessed += ws.TasksProcessed
		st.TotalTasksFailed += ws.TasksFailed
		st.CurrentTotalLoad += ws.CurrentLoad
	}
	if total := st.TotalTasksProcessed + st.TotalTasksFailed; total > 0 {
		st.SuccessRate = float64(st.TotalTasksProcessed) / float64(total)
	}
	return st
}

// Health reports the manager's component health.
func (m *Manager) Health() Health {
	m.mu.Lock()
	running := m.running
	healthy := 0
	for _, ws := range m.stats {
		if ws.IsHealthy {
			healthy++
		}
	}
	pending := len(m.pending)
	executing := len(m.executing)
	total := len(m.workers)
	m.mu.Unlock()

	status := "healthy"
	if !running || healthy == 0 {
		status = "unhealthy"
	}
	return Health{
		Component:      "cluster_manager",
		Status:         status,
		Running:        running,
		TotalWorkers:   total,
		HealthyWorkers: healthy,
		PendingTasks:   pending,
		ExecutingTasks: executing,
		Strategy:       m.cfg.Strategy,
		Timestamp:      time.Now(),
	}
}

package tasks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sohaibzafar701/robofleet/internal/cluster"
	"github.com/sohaibzafar701/robofleet/internal/fleet"
	"github.com/sohaibzafar701/robofleet/internal/queue"
	"github.com/sohaibzafar701/robofleet/internal/telemetry"
	"github.com/sohaibzafar701/robofleet/pkg/api"
)

// Assignment pairs an accepted task with the robot executing it. It
// exists only while the task is assigned or executing; completion,
// failure, and cancellation move it to a terminal table.
type Assignment struct {
	Task                api.Task
	RobotID             string
	AssignedAt          time.Time
	StartedAt           time.Time // zero until StartTask
	CompletedAt         time.Time // zero until terminal
	EstimatedCompletion time.Time
}

// Duration returns the executed duration once the assignment finished.
func (a Assignment) Duration() (time.Duration, bool) {
	if a.StartedAt.IsZero() || a.CompletedAt.IsZero() {
		return 0, false
	}
	return a.CompletedAt.Sub(a.StartedAt), true
}

// Overdue reports whether the estimated completion has passed.
func (a Assignment) Overdue(now time.Time) bool {
	return !a.EstimatedCompletion.IsZero() && now.After(a.EstimatedCompletion)
}

// Distributor is the distributed backend the manager can delegate to.
type Distributor interface {
	Submit(task api.Task) bool
	ClusterStats() cluster.ClusterStats
}

// History receives terminal task records, for persistence.
type History interface {
	Record(a Assignment, status api.TaskStatus) error
}

// Config holds the manager's scheduling knobs.
type Config struct {
	Strategy          string
	AssignmentTimeout time.Duration
	MaxRetries        int
	MonitorInterval   time.Duration
	UseDistributed    bool
}

func (c *Config) applyDefaults() {
	if c.Strategy == "" {
		c.Strategy = StrategyLoadBalanced
	}
	if c.AssignmentTimeout <= 0 {
		c.AssignmentTimeout = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = 5 * time.Second
	}
}

// Statistics summarizes lifecycle counts across both execution paths.
type Statistics struct {
	PendingTasks    int                   `json:"pending_tasks"`
	ActiveTasks     int                   `json:"active_tasks"`
	CompletedTasks  int                   `json:"completed_tasks"`
	FailedTasks     int                   `json:"failed_tasks"`
	TotalProcessed  int                   `json:"total_processed"`
	SuccessRate     float64               `json:"success_rate"`
	AverageDuration time.Duration         `json:"average_duration"`
	Strategy        string                `json:"assignment_strategy"`
	UseDistributed  bool                  `json:"use_distributed"`
	Cluster         *cluster.ClusterStats `json:"distributed,omitempty"`
}

// Health is the manager's component health snapshot.
type Health struct {
	Component        string    `json:"component"`
	Status           string    `json:"status"`
	MonitoringActive bool      `json:"monitoring_active"`
	PendingTasks     int       `json:"pending_tasks"`
	ActiveTasks      int       `json:"active_tasks"`
	CompletedTasks   int       `json:"completed_tasks"`
	FailedTasks      int       `json:"failed_tasks"`
	Strategy         string    `json:"assignment_strategy"`
	Timestamp        time.Time `json:"timestamp"`
}

// Manager accepts submitted work, assigns it to robots (or delegates it
// to the distributed backend), tracks lifecycle, and supervises active
// assignments.
type Manager struct {
	registry   *fleet.Registry
	queue      *queue.TaskQueue
	strategies *StrategyRegistry
	distrib    Distributor
	history    History

	mu        sync.Mutex
	active    map[string]*Assignment
	completed map[string]*Assignment
	failed    map[string]*Assignment

	cfg Config
	log zerolog.Logger

	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewManager wires the manager to its registry and queue. distrib and
// history may be nil.
func NewManager(registry *fleet.Registry, cfg Config, distrib Distributor, history History) *Manager {
	cfg.applyDefaults()
	return &Manager{
		registry:   registry,
		queue:      queue.New(),
		strategies: DefaultStrategies(),
		distrib:    distrib,
		history:    history,
		active:     make(map[string]*Assignment),
		completed:  make(map[string]*Assignment),
		failed:     make(map[string]*Assignment),
		cfg:        cfg,
		log:        log.With().Str("component", "task_manager").Logger(),
	}
}

// Queue exposes the manager's task queue (for status queries).
func (m *Manager) Queue() *queue.TaskQueue { return m.queue }

// Strategies exposes the registry so callers can plug replacements in.
func (m *Manager) Strategies() *StrategyRegistry { return m.strategies }

// Submit accepts a task. In distributed mode the task is forwarded
// whole to the backend and not tracked locally; on forwarding failure
// it falls back to the local queue. A missing task id is backfilled.
// An id that is queued, active, or terminal is rejected: task ids own
// exactly one lifecycle record.
func (m *Manager) Submit(task api.Task, priority int) bool {
	if task.TaskID == "" {
		task.TaskID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if task.Status == "" {
		task.Status = api.TaskPending
	}

	m.mu.Lock()
	_, tracked := m.active[task.TaskID]
	if !tracked {
		_, tracked = m.completed[task.TaskID]
	}
	if !tracked {
		_, tracked = m.failed[task.TaskID]
	}
	m.mu.Unlock()
	if tracked {
		m.log.Warn().Str("task_id", task.TaskID).Msg("task rejected, id already tracked")
		return false
	}

	if m.cfg.UseDistributed && m.distrib != nil {
		if m.distrib.Submit(task) {
			telemetry.CounterGlobal("robofleet_tasks_submitted", 1, map[string]string{
				"component": "task_manager",
				"path":      "distributed",
			})
			m.log.Info().Str("task_id", task.TaskID).Int("priority", priority).Msg("task forwarded to distributed backend")
			return true
		}
		m.log.Warn().Str("task_id", task.TaskID).Msg("distributed submit failed, falling back to local queue")
	}

	if !m.queue.Add(task, priority) {
		m.log.Warn().Str("task_id", task.TaskID).Msg("task rejected, id already queued")
		return false
	}
	telemetry.CounterGlobal("robofleet_tasks_submitted", 1, map[string]string{
		"component": "task_manager",
		"path":      "local",
	})
	m.log.Info().Str("task_id", task.TaskID).Int("priority", priority).Msg("task queued")
	return true
}

// Assign runs the configured strategy against a snapshot of the fleet
// and the active table. Returns false, leaving the task pending, when
// no robot is available.
func (m *Manager) Assign(task api.Task) bool {
	strategy, err := m.strategies.Get(m.cfg.Strategy)
	if err != nil {
		m.log.Error().Err(err).Str("task_id", task.TaskID).Msg("unknown assignment strategy")
		return false
	}

	sc := SelectionContext{Available: m.registry.AvailableRobots()}
	m.mu.Lock()
	sc.ActiveByRobot = make(map[string]int, len(m.active))
	for _, a := range m.active {
		sc.ActiveByRobot[a.RobotID]++
	}
	m.mu.Unlock()

	robotID, ok := strategy.Select(task, sc)
	if !ok {
		m.log.Warn().Str("task_id", task.TaskID).Msg("no suitable robot for task")
		return false
	}

	now := time.Now()
	task.AssignedRobot = robotID
	task.Status = api.TaskAssigned
	assignment := &Assignment{
		Task:                task,
		RobotID:             robotID,
		AssignedAt:          now,
		EstimatedCompletion: now.Add(time.Duration(task.EstimatedDuration) * time.Second),
	}

	m.mu.Lock()
	m.active[task.TaskID] = assignment
	m.mu.Unlock()

	telemetry.CounterGlobal("robofleet_tasks_assigned", 1, map[string]string{
		"component": "task_manager",
		"robot_id":  robotID,
		"strategy":  strategy.Name(),
	})
	m.log.Info().Str("task_id", task.TaskID).Str("robot_id", robotID).Msg("task assigned")
	return true
}

// StartTask marks an assigned task as executing.
func (m *Manager) StartTask(taskID string) bool {
	m.mu.Lock()
	a, ok := m.active[taskID]
	if ok {
		a.StartedAt = time.Now()
		a.Task.Status = api.TaskExecuting
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	m.log.Info().Str("task_id", taskID).Msg("task started")
	return true
}

// CompleteTask finishes an active task. On success the queue's
// completed set is notified so dependents can unblock.
func (m *Manager) CompleteTask(taskID string, success bool) bool {
	m.mu.Lock()
	a, ok := m.active[taskID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	a.CompletedAt = time.Now()
	status := api.TaskFailed
	if success {
		status = api.TaskCompleted
		m.completed[taskID] = a
	} else {
		m.failed[taskID] = a
	}
	a.Task.Status = status
	delete(m.active, taskID)
	record := *a
	m.mu.Unlock()

	if success {
		m.queue.MarkCompleted(taskID)
	}
	m.recordHistory(record, status)

	if d, ok := record.Duration(); ok {
		telemetry.TimerGlobal("robofleet_task_duration", d, map[string]string{
			"component": "task_manager",
			"status":    string(status),
		})
	}
	m.log.Info().Str("task_id", taskID).Bool("success", success).Msg("task completed")
	return true
}

// CancelTask removes a pending task or force-fails an active one.
// Best effort: an executing robot or worker is not preempted.
func (m *Manager) CancelTask(taskID string) bool {
	if m.queue.Remove(taskID) {
		m.log.Info().Str("task_id", taskID).Msg("pending task cancelled")
		return true
	}

	m.mu.Lock()
	a, ok := m.active[taskID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	a.CompletedAt = time.Now()
	a.Task.Status = api.TaskFailed
	m.failed[taskID] = a
	delete(m.active, taskID)
	record := *a
	m.mu.Unlock()

	m.recordHistory(record, api.TaskFailed)
	m.log.Info().Str("task_id", taskID).Msg("active task cancelled")
	return true
}

func (m *Manager) recordHistory(a Assignment, status api.TaskStatus) {
	if m.history == nil {
		return
	}
	if err := m.history.Record(a, status); err != nil {
		m.log.Error().Err(err).Str("task_id", a.Task.TaskID).Msg("record task history")
	}
}

// TaskStatus reports a task's lifecycle state, or "unknown".
func (m *Manager) TaskStatus(taskID string) api.TaskStatus {
	m.mu.Lock()
	if a, ok := m.active[taskID]; ok {
		status := api.TaskAssigned
		if !a.StartedAt.IsZero() {
			status = api.TaskExecuting
		}
		m.mu.Unlock()
		return status
	}
	if _, ok := m.completed[taskID]; ok {
		m.mu.Unlock()
		return api.TaskCompleted
	}
	if _, ok := m.failed[taskID]; ok {
		m.mu.Unlock()
		return api.TaskFailed
	}
	m.mu.Unlock()

	if task, ok := m.queue.Get(taskID); ok {
		return task.Status
	}
	return "unknown"
}

// Assignment returns a copy of a task's assignment, active or terminal.
func (m *Manager) Assignment(taskID string) (Assignment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, table := range []map[string]*Assignment{m.active, m.completed, m.failed} {
		if a, ok := table[taskID]; ok {
			return *a, true
		}
	}
	return Assignment{}, false
}

// AvailableRobots proxies the registry's availability view.
func (m *Manager) AvailableRobots() []string {
	return m.registry.AvailableRobots()
}

// Statistics aggregates counts, success rate, and mean duration, with
// distributed-backend statistics merged in when that path is active.
func (m *Manager) Statistics() Statistics {
	m.mu.Lock()
	st := Statistics{
		PendingTasks:   m.queue.Size(),
		ActiveTasks:    len(m.active),
		CompletedTasks: len(m.completed),
		FailedTasks:    len(m.failed),
		Strategy:       m.cfg.Strategy,
		UseDistributed: m.cfg.UseDistributed && m.distrib != nil,
	}
	var total time.Duration
	var counted int
	for _, a := range m.completed {
		if d, ok := a.Duration(); ok {
			total += d
			counted++
		}
	}
	m.mu.Unlock()

	st.TotalProcessed = st.CompletedTasks + st.FailedTasks
	if st.TotalProcessed > 0 {
		st.SuccessRate = float64(st.CompletedTasks) / float64(st.TotalProcessed)
	}
	if counted > 0 {
		st.AverageDuration = total / time.Duration(counted)
	}
	if st.UseDistributed {
		cs := m.distrib.ClusterStats()
		st.Cluster = &cs
	}
	return st
}

// Health reports the manager's component health.
func (m *Manager) Health() Health {
	m.mu.Lock()
	running := m.running
	active := len(m.active)
	completed := len(m.completed)
	failed := len(m.failed)
	m.mu.Unlock()

	status := "healthy"
	if !running {
		status = "unhealthy"
	}
	return Health{
		Component:        "task_manager",
		Status:           status,
		MonitoringActive: running,
		PendingTasks:     m.queue.Size(),
		ActiveTasks:      active,
		CompletedTasks:   completed,
		FailedTasks:      failed,
		Strategy:         m.cfg.Strategy,
		Timestamp:        time.Now(),
	}
}

// Start launches the supervising loop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.monitorLoop(ctx)
	m.log.Info().Str("strategy", m.cfg.Strategy).Msg("task manager started with monitoring")
}

// Stop halts the supervising loop and waits for it to exit.
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
	m.log.Info().Msg("task manager stopped")
}

func (m *Manager) monitorLoop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkOverdueTasks()
			m.processPendingTasks()
		}
	}
}

// checkOverdueTasks logs active assignments past their estimated
// completion. Signal only; no retry or reassignment happens here.
func (m *Manager) checkOverdueTasks() {
	now := time.Now()
	m.mu.Lock()
	var overdue []string
	for id, a := range m.active {
		if a.Overdue(now) {
			overdue = append(overdue, id)
		}
	}
	m.mu.Unlock()

	if len(overdue) > 0 {
		sort.Strings(overdue)
		m.log.Warn().Strs("task_ids", overdue).Msg("overdue tasks detected")
	}
}

// processPendingTasks drains ready work from the queue, requeueing the
// head and stopping when assignment fails so the next cycle retries.
func (m *Manager) processPendingTasks() {
	for {
		task, priority, ok := m.queue.NextReady()
		if !ok {
			return
		}
		if !m.Assign(task) {
			m.queue.Add(task, priority)
			return
		}
	}
}

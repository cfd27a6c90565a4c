package api

import (
	"encoding/json"
	"time"
)

// Public types shared between the orchestration core, the worker agent,
// and embedding callers.

type RobotStatus string

const (
	RobotIdle      RobotStatus = "idle"
	RobotMoving    RobotStatus = "moving"
	RobotExecuting RobotStatus = "executing"
	RobotError     RobotStatus = "error"
)

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskAssigned  TaskStatus = "assigned"
	TaskExecuting TaskStatus = "executing"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Capability is a named skill a robot advertises.
type Capability string

const (
	CapNavigation   Capability = "navigation"
	CapManipulation Capability = "manipulation"
	CapInspection   Capability = "inspection"
	CapLifting      Capability = "lifting"
	CapSensing      Capability = "sensing"
)

// Task priority levels. Any value in between is accepted.
const (
	PriorityLow      = 1
	PriorityNormal   = 5
	PriorityHigh     = 8
	PriorityCritical = 10
)

// MinBatteryLevel is the floor below which a robot is not offered work.
const MinBatteryLevel = 10.0

// RobotState is the state a robot (or the bridge acting for it) reports.
type RobotState struct {
	RobotID      string      `json:"robot_id"`
	Position     [3]float64  `json:"position"`
	Orientation  [4]float64  `json:"orientation"`
	Status       RobotStatus `json:"status"`
	BatteryLevel float64     `json:"battery_level"`
	CurrentTask  string      `json:"current_task,omitempty"`
	LastUpdate   time.Time   `json:"last_update"`
}

// IsAvailable reports whether the robot can take new work based on its
// own state alone; fleet health is layered on top by the registry.
func (s RobotState) IsAvailable() bool {
	return s.Status == RobotIdle && s.BatteryLevel > MinBatteryLevel
}

// Task is one unit of work. The payload is opaque to the core; only the
// executor behind a robot or worker interprets it.
type Task struct {
	TaskID            string          `json:"task_id"`
	Description       string          `json:"description"`
	AssignedRobot     string          `json:"assigned_robot,omitempty"`
	Status            TaskStatus      `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	EstimatedDuration int             `json:"estimated_duration"` // seconds, > 0
	Dependencies      []string        `json:"dependencies,omitempty"`
	Payload           json.RawMessage `json:"payload,omitempty"`
}

// CanStart reports whether every prerequisite task id is completed.
func (t Task) CanStart(completed map[string]bool) bool {
	for _, dep := range t.Dependencies {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// IsTerminal reports whether the task reached a final state.
func (t Task) IsTerminal() bool {
	return t.Status == TaskCompleted || t.Status == TaskFailed
}

// DistributedTaskResult is the immutable outcome of one task on one worker.
type DistributedTaskResult struct {
	TaskID        string        `json:"task_id"`
	WorkerID      string        `json:"worker_id"`
	Success       bool          `json:"success"`
	Result        string        `json:"result,omitempty"`
	Error         string        `json:"error,omitempty"`
	ExecutionTime time.Duration `json:"execution_time"`
	Timestamp     time.Time     `json:"timestamp"`
}

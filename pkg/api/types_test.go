package api

import "testing"

// TestIsAvailable tests the robot-side availability rule.
func TestIsAvailable(t *testing.T) {
	tests := []struct {
		name    string
		status  RobotStatus
		battery float64
		want    bool
	}{
		{"idle charged", RobotIdle, 50, true},
		{"idle at floor", RobotIdle, MinBatteryLevel, false},
		{"idle below floor", RobotIdle, 5, false},
		{"executing", RobotExecuting, 90, false},
		{"error", RobotError, 90, false},
	}
	for _, tt := range tests {
		s := RobotState{Status: tt.status, BatteryLevel: tt.battery}
		if got := s.IsAvailable(); got != tt.want {
			t.Fatalf("%s: got %v", tt.name, got)
		}
	}
}

// TestCanStart tests dependency gating.
func TestCanStart(t *testing.T) {
	task := Task{Dependencies: []string{"a", "b"}}
	if task.CanStart(map[string]bool{"a": true}) {
		t.Fatalf("started with unmet dependency")
	}
	if !task.CanStart(map[string]bool{"a": true, "b": true}) {
		t.Fatalf("blocked with all dependencies met")
	}
	if !(Task{}).CanStart(nil) {
		t.Fatalf("dependency-free task blocked")
	}
}

// TestIsTerminal tests the terminal-state check.
func TestIsTerminal(t *testing.T) {
	for _, st := range []TaskStatus{TaskPending, TaskAssigned, TaskExecuting} {
		if (Task{Status: st}).IsTerminal() {
			t.Fatalf("%s reported terminal", st)
		}
	}
	for _, st := range []TaskStatus{TaskCompleted, TaskFailed} {
		if !(Task{Status: st}).IsTerminal() {
			t.Fatalf("%s not terminal", st)
		}
	}
}

package robofleet_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/sohaibzafar701/robofleet/internal/core"
	"github.com/sohaibzafar701/robofleet/pkg/api"
)

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func fastConfig() core.Config {
	cfg := core.DefaultConfig()
	cfg.HealthCheckInterval = 50 * time.Millisecond
	cfg.MonitorInterval = 20 * time.Millisecond
	cfg.Telemetry.Enabled = false
	return cfg
}

// TestLocalWorkflow tests the full local pipeline: register, submit,
// background assignment, lifecycle transitions, statistics, history.
func TestLocalWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := fastConfig()
	cfg.History.Enabled = true
	cfg.History.Path = filepath.Join(t.TempDir(), "history.db")

	orch, err := core.NewOrchestrator(cfg)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	orch.Start(context.Background())
	defer orch.Stop()

	for _, id := range []string{"tiago_01", "mobile_01"} {
		orch.Fleet.Register(id, api.RobotState{
			RobotID:      id,
			Status:       api.RobotIdle,
			BatteryLevel: 85,
			LastUpdate:   time.Now(),
		}, nil)
	}

	if !orch.Tasks.Submit(api.Task{TaskID: "pick", Description: "pick item", EstimatedDuration: 5}, api.PriorityHigh) {
		t.Fatalf("submit pick")
	}
	if !orch.Tasks.Submit(api.Task{TaskID: "place", Description: "place item", EstimatedDuration: 5, Dependencies: []string{"pick"}}, api.PriorityNormal) {
		t.Fatalf("submit place")
	}

	waitFor(t, 2*time.Second, "pick assignment", func() bool {
		return orch.Tasks.TaskStatus("pick") == api.TaskAssigned
	})
	if st := orch.Tasks.TaskStatus("place"); st != api.TaskPending {
		t.Fatalf("dependent task status %s before parent finished", st)
	}

	a, ok := orch.Tasks.Assignment("pick")
	if !ok || a.RobotID == "" {
		t.Fatalf("missing assignment for pick")
	}
	if !orch.Tasks.StartTask("pick") {
		t.Fatalf("start pick")
	}
	if !orch.Tasks.CompleteTask("pick", true) {
		t.Fatalf("complete pick")
	}

	waitFor(t, 2*time.Second, "place assignment", func() bool {
		return orch.Tasks.TaskStatus("place") == api.TaskAssigned
	})
	orch.Tasks.StartTask("place")
	orch.Tasks.CompleteTask("place", true)

	st := orch.Tasks.Statistics()
	if st.CompletedTasks != 2 || st.SuccessRate != 1.0 {
		t.Fatalf("statistics: %+v", st)
	}

	recs, err := orch.History().RecentTasks(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent tasks: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("history records %d", len(recs))
	}

	h := orch.Health()
	if h.Fleet.Status != "healthy" || h.Tasks.Status != "healthy" {
		t.Fatalf("system health: %+v", h)
	}
	if h.Cluster != nil {
		t.Fatalf("cluster health reported without distributed mode")
	}
}

// TestDistributedWorkflow tests delegation through the worker pool.
func TestDistributedWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := fastConfig()
	cfg.Distributed.Enabled = true
	cfg.Distributed.NumWorkers = 2
	cfg.Distributed.LoadBalancingStrategy = "least_loaded"

	orch, err := core.NewOrchestrator(cfg)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	orch.Start(context.Background())
	defer orch.Stop()

	const n = 5
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("job_%d", i)
		ids = append(ids, id)
		if !orch.Tasks.Submit(api.Task{TaskID: id, EstimatedDuration: 1}, api.PriorityNormal) {
			t.Fatalf("submit %s", id)
		}
	}

	waitFor(t, 5*time.Second, "pool drain", func() bool {
		return orch.Cluster.ClusterStats().TotalTasksProcessed == n
	})

	for _, id := range ids {
		res, ok := orch.Cluster.Result(id)
		if !ok {
			t.Fatalf("missing result for %s", id)
		}
		if !res.Success {
			t.Fatalf("task %s failed: %s", id, res.Error)
		}
	}

	st := orch.Tasks.Statistics()
	if !st.UseDistributed || st.Cluster == nil {
		t.Fatalf("distributed statistics missing: %+v", st)
	}
	if st.Cluster.SuccessRate != 1.0 {
		t.Fatalf("cluster success rate %v", st.Cluster.SuccessRate)
	}
	if st.PendingTasks != 0 || st.ActiveTasks != 0 {
		t.Fatalf("local tables touched in distributed mode: %+v", st)
	}

	h := orch.Health()
	if h.Cluster == nil || h.Cluster.Status != "healthy" {
		t.Fatalf("cluster health: %+v", h.Cluster)
	}
}

// TestHeartbeatLifecycle tests health decay and recovery end to end.
func TestHeartbeatLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := fastConfig()
	cfg.HeartbeatTimeout = 200 * time.Millisecond
	cfg.MaxMissedHeartbeats = 2

	orch, err := core.NewOrchestrator(cfg)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	orch.Start(context.Background())
	defer orch.Stop()

	orch.Fleet.Register("r1", api.RobotState{
		RobotID:      "r1",
		Status:       api.RobotIdle,
		BatteryLevel: 70,
		LastUpdate:   time.Now(),
	}, nil)

	waitFor(t, 3*time.Second, "health decay", func() bool {
		return len(orch.Fleet.HealthyRobots()) == 0
	})
	if avail := orch.Fleet.AvailableRobots(); len(avail) != 0 {
		t.Fatalf("unhealthy robot still available: %v", avail)
	}

	if !orch.Fleet.Heartbeat("r1") {
		t.Fatalf("heartbeat rejected")
	}
	if got := orch.Fleet.HealthyRobots(); len(got) != 1 {
		t.Fatalf("heartbeat did not restore health: %v", got)
	}
}

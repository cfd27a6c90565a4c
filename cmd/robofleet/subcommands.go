package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sohaibzafar701/robofleet/internal/core"
	"github.com/sohaibzafar701/robofleet/pkg/api"
)

func loadConfig(cmd *cobra.Command) (core.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	return core.LoadConfig(cfgPath)
}

// Run a self-contained demo: simulated robots, a batch of tasks, stats.
func newDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a local demo fleet through a batch of tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			robots, _ := cmd.Flags().GetInt("robots")
			taskCount, _ := cmd.Flags().GetInt("tasks")
			distributed, _ := cmd.Flags().GetBool("distributed")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Distributed.Enabled = distributed
			cfg.MonitorInterval = 200 * time.Millisecond
			cfg.HealthCheckInterval = 500 * time.Millisecond

			orch, err := core.NewOrchestrator(cfg)
			if err != nil {
				return err
			}
			orch.Start(cmd.Context())
			defer orch.Stop()

			for i := 0; i < robots; i++ {
				id := fmt.Sprintf("mobile_%02d", i)
				orch.Fleet.Register(id, api.RobotState{
					RobotID:      id,
					Status:       api.RobotIdle,
					BatteryLevel: 90,
					LastUpdate:   time.Now(),
				}, nil)
			}

			taskIDs := make([]string, 0, taskCount)
			for i := 0; i < taskCount; i++ {
				task := api.Task{
					TaskID:            fmt.Sprintf("demo_task_%d", i),
					Description:       fmt.Sprintf("demo task %d", i),
					EstimatedDuration: 1,
				}
				taskIDs = append(taskIDs, task.TaskID)
				if !orch.Tasks.Submit(task, api.PriorityNormal) {
					return fmt.Errorf("submit demo task %d", i)
				}
			}

			// Drive the fleet side: in local mode the demo acts as the
			// robot bridge, starting and completing assigned tasks. In
			// distributed mode the worker pool does the executing.
			deadline := time.Now().Add(10 * time.Second)
			for time.Now().Before(deadline) {
				if distributed {
					cs := orch.Cluster.ClusterStats()
					if cs.TotalTasksProcessed+cs.TotalTasksFailed >= taskCount {
						break
					}
				} else {
					done := 0
					for _, id := range taskIDs {
						switch orch.Tasks.TaskStatus(id) {
						case api.TaskAssigned:
							orch.Tasks.StartTask(id)
							orch.Tasks.CompleteTask(id, true)
							done++
						case api.TaskCompleted, api.TaskFailed:
							done++
						}
					}
					if done >= taskCount {
						break
					}
				}
				time.Sleep(100 * time.Millisecond)
			}

			st := orch.Tasks.Statistics()
			fmt.Printf("pending=%d active=%d completed=%d failed=%d success_rate=%.2f\n",
				st.PendingTasks, st.ActiveTasks, st.CompletedTasks, st.FailedTasks, st.SuccessRate)
			if st.Cluster != nil {
				fmt.Printf("cluster: workers=%d processed=%d failed=%d success_rate=%.2f\n",
					st.Cluster.TotalWorkers, st.Cluster.TotalTasksProcessed,
					st.Cluster.TotalTasksFailed, st.Cluster.SuccessRate)
			}
			fs := orch.Fleet.FleetStatus()
			fmt.Printf("fleet: total=%d healthy=%d available=%d\n",
				fs.TotalRobots, fs.HealthyRobots, fs.AvailableRobots)
			return nil
		},
	}
	cmd.Flags().Int("robots", 3, "number of simulated robots")
	cmd.Flags().Int("tasks", 5, "number of demo tasks")
	cmd.Flags().Bool("distributed", false, "route tasks through the worker pool")
	return cmd
}

// Show recent terminal tasks from the history store.
func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent task history",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cfg.History.Enabled || cfg.History.Path == "" {
				return fmt.Errorf("task history is not enabled in config")
			}
			store, err := core.NewHistoryStore(cfg.History.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.RecentTasks(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("no task history")
				return nil
			}
			for _, rec := range records {
				fmt.Printf("%-36s %-10s robot=%-12s duration=%.1fs %s\n",
					rec.TaskID, rec.Status, rec.RobotID, rec.DurationSeconds, rec.Description)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "maximum records to show")
	return cmd
}

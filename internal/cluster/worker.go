package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/sohaibzafar701/robofleet/pkg/api"
)

// Worker is a stateless execution unit in the distributed pool. What a
// worker actually does with a task is the executor's concern; the pool
// only cares about the run-and-report contract.
type Worker interface {
	ID() string
	Execute(ctx context.Context, task api.Task) api.DistributedTaskResult
}

// WorkerFactory builds the pool's workers. id is assigned by the manager.
type WorkerFactory func(id string) Worker

// LocalWorker runs tasks in-process, simulating execution time from the
// task's estimated duration. Useful for tests and single-node setups.
type LocalWorker struct {
	id string
}

// NewLocalWorker creates a worker with the given id.
func NewLocalWorker(id string) *LocalWorker {
	return &LocalWorker{id: id}
}

func (w *LocalWorker) ID() string { return w.id }

// Execute simulates processing: a tenth of the estimated duration,
// capped at half a second.
func (w *LocalWorker) Execute(ctx context.Context, task api.Task) api.DistributedTaskResult {
	start := time.Now()

	processing := time.Duration(task.EstimatedDuration) * time.Second / 10
	if processing > 500*time.Millisecond {
		processing = 500 * time.Millisecond
	}

	select {
	case <-ctx.Done():
		return api.DistributedTaskResult{
			TaskID:        task.TaskID,
			WorkerID:      w.id,
			Success:       false,
			Error:         ctx.Err().Error(),
			ExecutionTime: time.Since(start),
			Timestamp:     time.Now(),
		}
	case <-time.After(processing):
	}

	return api.DistributedTaskResult{
		TaskID:        task.TaskID,
		WorkerID:      w.id,
		Success:       true,
		Result:        fmt.Sprintf("task %s processed by %s", task.TaskID, w.id),
		ExecutionTime: time.Since(start),
		Timestamp:     time.Now(),
	}
}

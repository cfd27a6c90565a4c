package agent

import (
	"time"

	"github.com/sohaibzafar701/robofleet/pkg/api"
)

// HeartbeatResponse reports the agent's liveness; the request is empty.
type HeartbeatResponse struct {
	Time     time.Time `json:"time"`
	Host     string    `json:"host"`
	WorkerID string    `json:"worker_id"`
	Version  string    `json:"version"`
}

// ExecuteRequest carries one task to run. The payload stays opaque.
type ExecuteRequest struct {
	Task api.Task `json:"task"`
}

// ExecuteResponse is the task's outcome; it mirrors the pool's result
// record so the client can feed it straight back.
type ExecuteResponse struct {
	Result api.DistributedTaskResult `json:"result"`
}

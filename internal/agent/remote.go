package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sohaibzafar701/robofleet/pkg/api"
)

// RemoteWorker makes an out-of-process agent usable as a pool worker.
// Transport failures come back as failed task results rather than
// errors, keeping the pool's run-and-report contract.
type RemoteWorker struct {
	id      string
	baseURL string
	token   string
	client  *http.Client
}

// NewRemoteWorker points a pool slot at an agent's base URL.
func NewRemoteWorker(id, baseURL, token string) *RemoteWorker {
	return &RemoteWorker{
		id:      id,
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (w *RemoteWorker) ID() string { return w.id }

// Execute posts the task to the agent and decodes the result.
func (w *RemoteWorker) Execute(ctx context.Context, task api.Task) api.DistributedTaskResult {
	start := time.Now()

	fail := func(err error) api.DistributedTaskResult {
		return api.DistributedTaskResult{
			TaskID:        task.TaskID,
			WorkerID:      w.id,
			Success:       false,
			Error:         err.Error(),
			ExecutionTime: time.Since(start),
			Timestamp:     time.Now(),
		}
	}

	body, err := json.Marshal(ExecuteRequest{Task: task})
	if err != nil {
		return fail(fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/v0/execute", bytes.NewReader(body))
	if err != nil {
		return fail(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fail(fmt.Errorf("execute request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fail(fmt.Errorf("agent returned status %d", resp.StatusCode))
	}

	var out ExecuteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fail(fmt.Errorf("decode response: %w", err))
	}

	res := out.Result
	res.WorkerID = w.id
	return res
}

// Heartbeat checks the agent's liveness.
func (w *RemoteWorker) Heartbeat(ctx context.Context) (HeartbeatResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/v0/heartbeat", nil)
	if err != nil {
		return HeartbeatResponse{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return HeartbeatResponse{}, fmt.Errorf("heartbeat request: %w", err)
	}
	defer resp.Body.Close()

	var h HeartbeatResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return HeartbeatResponse{}, fmt.Errorf("decode heartbeat: %w", err)
	}
	return h, nil
}

package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sohaibzafar701/robofleet/pkg/api"
)

// TestHeartbeat tests the heartbeat endpoint
func TestHeartbeat(t *testing.T) {
	srv := &Server{Version: "test"}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v0/heartbeat", nil)
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("status %d", rr.Code)
	}
	var resp HeartbeatResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Version != "test" {
		t.Fatalf("version mismatch")
	}
	if resp.WorkerID == "" {
		t.Fatalf("expected worker id")
	}
}

// TestExecute tests the execute endpoint
func TestExecute(t *testing.T) {
	srv := &Server{Version: "test"}
	body, _ := json.Marshal(ExecuteRequest{Task: api.Task{TaskID: "t1", EstimatedDuration: 1}})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v0/execute", bytes.NewReader(body))
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("status %d", rr.Code)
	}
	var resp ExecuteResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Result.Success {
		t.Fatalf("expected success, got error %q", resp.Result.Error)
	}
	if resp.Result.TaskID != "t1" {
		t.Fatalf("task id %q", resp.Result.TaskID)
	}
}

// TestExecuteBadBody tests malformed request handling
func TestExecuteBadBody(t *testing.T) {
	srv := &Server{Version: "test"}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v0/execute", bytes.NewReader([]byte("{")))
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rr.Code)
	}
}

// TestExecuteAuth tests token enforcement on the execute endpoint
func TestExecuteAuth(t *testing.T) {
	t.Setenv("ROBOFLEET_WORKER_TOKEN", "secret")
	srv := &Server{Version: "test"}
	body, _ := json.Marshal(ExecuteRequest{Task: api.Task{TaskID: "t1"}})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v0/execute", bytes.NewReader(body))
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v0/execute", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret")
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("bearer auth status %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v0/execute", bytes.NewReader(body))
	req.Header.Set("X-Auth-Token", "secret")
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("header auth status %d", rr.Code)
	}
}

// TestRemoteWorkerRoundTrip tests the client against a live agent
func TestRemoteWorkerRoundTrip(t *testing.T) {
	srv := &Server{Version: "test"}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	w := NewRemoteWorker("remote_0", ts.URL, "")
	res := w.Execute(context.Background(), api.Task{TaskID: "t1", EstimatedDuration: 1})
	if !res.Success {
		t.Fatalf("execute failed: %s", res.Error)
	}
	if res.WorkerID != "remote_0" {
		t.Fatalf("worker id %q", res.WorkerID)
	}

	h, err := w.Heartbeat(context.Background())
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if h.Version != "test" {
		t.Fatalf("version %q", h.Version)
	}
}

// TestRemoteWorkerTransportFailure tests that a dead agent yields a
// failed result instead of an error
func TestRemoteWorkerTransportFailure(t *testing.T) {
	w := NewRemoteWorker("remote_0", "http://127.0.0.1:1", "")
	res := w.Execute(context.Background(), api.Task{TaskID: "t1"})
	if res.Success {
		t.Fatalf("expected failure")
	}
	if res.TaskID != "t1" || res.WorkerID != "remote_0" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Error == "" {
		t.Fatalf("expected error message")
	}
}

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sohaibzafar701/robofleet/internal/cluster"
	"github.com/sohaibzafar701/robofleet/internal/telemetry"
)

// Server exposes a pool worker over HTTP so it can live out-of-process.
type Server struct {
	Version string
	Worker  cluster.Worker
	srv     *http.Server
}

// Routes for the server
func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("/v0/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		_ = r.Body.Close()

		telemetry.CounterGlobal("robofleet_worker_heartbeats", 1, map[string]string{
			"component": "worker_agent",
			"endpoint":  "heartbeat",
		})

		h := HeartbeatResponse{Time: time.Now(), Host: r.Host, WorkerID: s.Worker.ID(), Version: s.Version}
		_ = json.NewEncoder(w).Encode(h)

		telemetry.TimerGlobal("robofleet_worker_request_duration", time.Since(start), map[string]string{
			"component": "worker_agent",
			"endpoint":  "heartbeat",
			"status":    "200",
		})
	})
	mux.HandleFunc("/v0/execute", func(w http.ResponseWriter, r *http.Request) {
		// Optional token-based auth via env var
		if tok := os.Getenv("ROBOFLEET_WORKER_TOKEN"); tok != "" {
			auth := r.Header.Get("Authorization")
			x := r.Header.Get("X-Auth-Token")
			if auth != "Bearer "+tok && x != tok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		requestStart := time.Now()
		defer r.Body.Close()

		var req ExecuteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			telemetry.CounterGlobal("robofleet_worker_execute_errors", 1, map[string]string{
				"component": "worker_agent",
				"endpoint":  "execute",
				"error":     "decode_request",
			})
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		res := s.Worker.Execute(r.Context(), req.Task)

		status := "success"
		if !res.Success {
			status = "error"
		}
		labels := map[string]string{
			"component": "worker_agent",
			"endpoint":  "execute",
			"status":    status,
		}
		telemetry.TimerGlobal("robofleet_worker_execute_duration", res.ExecutionTime, labels)
		telemetry.TimerGlobal("robofleet_worker_request_duration", time.Since(requestStart), labels)
		telemetry.CounterGlobal("robofleet_worker_executed", 1, labels)

		_ = json.NewEncoder(w).Encode(ExecuteResponse{Result: res})
	})
}

// ListenAndServe starts the server
func (s *Server) ListenAndServe(addr string) error {
	if s.Worker == nil {
		s.Worker = cluster.NewLocalWorker("local")
	}
	mux := http.NewServeMux()
	s.routes(mux)
	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s.srv.ListenAndServe()
}

// Handler returns the agent's routes, for tests and embedding.
func (s *Server) Handler() http.Handler {
	if s.Worker == nil {
		s.Worker = cluster.NewLocalWorker("local")
	}
	mux := http.NewServeMux()
	s.routes(mux)
	return mux
}

// Shutdown the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return fmt.Errorf("server not running")
	}
	return s.srv.Shutdown(ctx)
}

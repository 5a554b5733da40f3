package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/taskweave/taskweave/schedule"
)

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if s.sched == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not initialized")
		return
	}
	writeJSON(w, http.StatusOK, s.sched.Status())
}

// runResponse is the manual-trigger result payload.
type runResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Stats   *schedule.CycleStats `json:"stats,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.sched == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not initialized")
		return
	}
	s.logger.Info("manual scheduling cycle triggered")
	stats, err := s.sched.RunCycle(r.Context())
	if errors.Is(err, schedule.ErrCycleInFlight) {
		writeJSON(w, http.StatusConflict, runResponse{
			Success: false,
			Message: "a scheduling cycle is already running",
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, runResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, runResponse{
		Success: true,
		Message: "scheduling cycle completed",
		Stats:   &stats,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.sched == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "not_initialized",
			"healthy": false,
		})
		return
	}
	st := s.sched.Status()
	resp := map[string]any{
		"status":  "operational",
		"healthy": s.sched.Healthy(),
	}
	if !s.sched.Healthy() {
		resp["status"] = "degraded"
		resp["error"] = st.LastError
	}
	if st.LastRun != nil {
		resp["last_run"] = st.LastRun
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version": s.version,
		"uptime":  time.Since(s.startTime).String(),
	})
}

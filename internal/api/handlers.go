package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/hookgw/internal/runlog"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}
	if s.deps.InFlight != nil {
		resp.InFlight = s.deps.InFlight()
	}
	if s.deps.Fingerprint != nil {
		resp.ConfigFingerprint = s.deps.Fingerprint()
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleGetRun handles GET /runs/{runID}.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if s.deps.Runs == nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	run, err := s.deps.Runs.Get(r.Context(), runID)
	if errors.Is(err, runlog.ErrRunNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load run", "run_id", runID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}

	respondJSON(w, http.StatusOK, RunResponse{
		RunID:      run.RunID,
		JobID:      run.JobID,
		JobName:    run.JobName,
		AgentID:    run.AgentID,
		SessionKey: run.SessionKey,
		Lane:       run.Lane,
		Status:     string(run.Status),
		Summary:    run.Summary,
		Error:      run.LastError,
		Delivered:  run.Delivered,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	})
}

// handleOpenAPI handles GET /openapi.json.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.openapi)
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

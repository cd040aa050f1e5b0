package api

import "time"

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status            string `json:"status"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
	InFlight          int64  `json:"in_flight"`
	ConfigFingerprint string `json:"config_fingerprint,omitempty"`
}

// RunResponse is returned by GET /runs/{runID}.
type RunResponse struct {
	RunID      string     `json:"run_id"`
	JobID      string     `json:"job_id"`
	JobName    string     `json:"job_name"`
	AgentID    string     `json:"agent_id,omitempty"`
	SessionKey string     `json:"session_key"`
	Lane       string     `json:"lane"`
	Status     string     `json:"status"`
	Summary    *string    `json:"summary,omitempty"`
	Error      *string    `json:"error,omitempty"`
	Delivered  bool       `json:"delivered"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Package runlog records hook executions so a run id handed back to a hook
// caller can later be looked up.
package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

var ErrRunNotFound = errors.New("run not found")

// Run is one execution of a hook job.
type Run struct {
	RunID      string
	JobID      string
	JobName    string
	AgentID    string
	SessionKey string
	Lane       string
	Status     Status
	Summary    *string
	LastError  *string
	Delivered  bool
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Store persists runs in the hook_runs table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Start inserts a running row for r.
func (s *Store) Start(ctx context.Context, r Run) error {
	if r.RunID == "" {
		return fmt.Errorf("run id is empty")
	}
	if r.JobID == "" {
		return fmt.Errorf("job id is empty")
	}
	started := r.StartedAt
	if started.IsZero() {
		started = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO hook_runs(run_id, job_id, job_name, agent_id, session_key, lane, status, started_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?);
`, r.RunID, r.JobID, r.JobName, r.AgentID, r.SessionKey, r.Lane, StatusRunning, started.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert hook run: %w", err)
	}
	return nil
}

// Finish marks a run terminal.
func (s *Store) Finish(ctx context.Context, runID string, status Status, summary, lastError string, delivered bool) error {
	if runID == "" {
		return fmt.Errorf("run id is empty")
	}
	if status != StatusSucceeded && status != StatusFailed {
		return fmt.Errorf("invalid terminal status: %q", status)
	}

	finished := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
UPDATE hook_runs
SET status = ?, summary = ?, last_error = ?, delivered = ?, finished_at = ?
WHERE run_id = ?;
`, status, nullString(summary), nullString(lastError), delivered, finished, runID)
	if err != nil {
		return fmt.Errorf("update hook run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update hook run: %w", err)
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// Get loads a run by id.
func (s *Store) Get(ctx context.Context, runID string) (*Run, error) {
	var (
		r           Run
		agentID     sql.NullString
		statusS     string
		summary     sql.NullString
		lastError   sql.NullString
		startedAtS  string
		finishedAtS sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
SELECT run_id, job_id, job_name, agent_id, session_key, lane, status, summary, last_error, delivered, started_at, finished_at
FROM hook_runs
WHERE run_id = ?;
`, runID).Scan(
		&r.RunID, &r.JobID, &r.JobName, &agentID, &r.SessionKey, &r.Lane, &statusS,
		&summary, &lastError, &r.Delivered, &startedAtS, &finishedAtS,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get hook run: %w", err)
	}

	r.Status = Status(statusS)
	r.AgentID = agentID.String
	if summary.Valid {
		r.Summary = &summary.String
	}
	if lastError.Valid {
		r.LastError = &lastError.String
	}
	if t, err := time.Parse(time.RFC3339Nano, startedAtS); err == nil {
		r.StartedAt = t
	}
	if finishedAtS.Valid {
		if t, err := time.Parse(time.RFC3339Nano, finishedAtS.String); err == nil {
			r.FinishedAt = &t
		}
	}
	return &r, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

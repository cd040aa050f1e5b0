package protocol

import (
	"time"

	"github.com/mattjoyce/hookgw/internal/hooks"
)

// Version is the agent turn protocol version written to every request.
const Version = 1

// Request is the turn envelope sent to the agent process via stdin.
type Request struct {
	Protocol   int                 `json:"protocol"`
	RunID      string              `json:"run_id"`
	Lane       string              `json:"lane"` // cron | main
	SessionKey string              `json:"session_key"`
	Message    string              `json:"message"`
	Job        hooks.JobDescriptor `json:"job"`
	DeadlineAt time.Time           `json:"deadline_at"`
}

// Response is the turn result read from the agent process's stdout.
type Response struct {
	Status    string     `json:"status"` // ok | any other value is a non-ok outcome
	Summary   string     `json:"summary,omitempty"`
	Error     string     `json:"error,omitempty"`
	Delivered bool       `json:"delivered,omitempty"`
	Logs      []LogEntry `json:"logs,omitempty"`
}

// LogEntry represents a log message from the agent.
type LogEntry struct {
	Level   string `json:"level"` // info | warn | error | debug
	Message string `json:"message"`
}

// Result converts the response into the executor result shape.
func (r *Response) Result() hooks.ExecutionResult {
	return hooks.ExecutionResult{
		Status:    r.Status,
		Summary:   r.Summary,
		Error:     r.Error,
		Delivered: r.Delivered,
	}
}

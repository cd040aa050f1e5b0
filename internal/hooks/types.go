package hooks

import "github.com/mattjoyce/hookgw/internal/config"

// WakeMode selects whether a hook wakes the primary session immediately.
type WakeMode string

const (
	WakeNow           WakeMode = "now"
	WakeNextHeartbeat WakeMode = "next-heartbeat"
)

// Valid reports whether m is a known wake mode.
func (m WakeMode) Valid() bool {
	return m == WakeNow || m == WakeNextHeartbeat
}

const (
	// StatusOK is the executor status for a successful turn.
	StatusOK = "ok"
	// StatusError is the normalised non-ok status sent to ping callbacks.
	StatusError = "error"

	// LaneCron is the execution lane used for hook-triggered turns.
	LaneCron = "cron"
	// LaneMain is the lane of heartbeat turns on the primary session.
	LaneMain = "main"

	sessionTargetIsolated = "isolated"
	sessionTargetMain     = "main"
	scheduleKindAt        = "at"
	payloadKindAgentTurn  = "agentTurn"
	pingJobName           = "PingHook"
	heartbeatJobName      = "Heartbeat"
	pingChannel           = "last"
)

// WakeEvent asks for a system event on the primary session.
type WakeEvent struct {
	Text string   `json:"text"`
	Mode WakeMode `json:"mode"`
}

// AgentEvent asks for an isolated agent turn.
type AgentEvent struct {
	AgentID                    string   `json:"agentId,omitempty"`
	Name                       string   `json:"name"`
	SessionKey                 string   `json:"sessionKey"`
	Message                    string   `json:"message"`
	Model                      string   `json:"model,omitempty"`
	Thinking                   string   `json:"thinking,omitempty"`
	TimeoutSeconds             *int     `json:"timeoutSeconds,omitempty"`
	Deliver                    *bool    `json:"deliver,omitempty"`
	Channel                    string   `json:"channel,omitempty"`
	To                         string   `json:"to,omitempty"`
	AllowUnsafeExternalContent *bool    `json:"allowUnsafeExternalContent,omitempty"`
	WakeMode                   WakeMode `json:"wakeMode"`
}

// PingCallback is where a ping's outcome is reported.
type PingCallback struct {
	URL            string   `json:"url"`
	Token          string   `json:"token,omitempty"`
	AllowedDomains []string `json:"allowedDomains,omitempty"`
}

// PingEvent is a tenant-scoped request that is answered via callback.
type PingEvent struct {
	UpdateID    string       `json:"update_id"`
	TenantID    string       `json:"tenant_id"`
	CallbackRef string       `json:"callback_ref"`
	AgentID     string       `json:"agentId,omitempty"`
	SessionKey  string       `json:"sessionKey"`
	Message     string       `json:"message,omitempty"`
	Model       string       `json:"model,omitempty"`
	Thinking    string       `json:"thinking,omitempty"`
	Callback    PingCallback `json:"callback"`
}

// JobSchedule pins a job to a single instant.
type JobSchedule struct {
	Kind string `json:"kind"`
	At   string `json:"at"`
}

// JobPayload carries the execution instructions of a job.
type JobPayload struct {
	Kind                       string `json:"kind"`
	Message                    string `json:"message"`
	Model                      string `json:"model,omitempty"`
	Thinking                   string `json:"thinking,omitempty"`
	TimeoutSeconds             *int   `json:"timeoutSeconds,omitempty"`
	Deliver                    *bool  `json:"deliver,omitempty"`
	Channel                    string `json:"channel,omitempty"`
	To                         string `json:"to,omitempty"`
	AllowUnsafeExternalContent *bool  `json:"allowUnsafeExternalContent,omitempty"`
}

// JobState is the scheduling state at creation.
type JobState struct {
	NextRunAtMs int64 `json:"nextRunAtMs"`
}

// JobDescriptor is the one-shot job built for an agent or ping hook. It is
// owned by exactly one hook goroutine and is not modified once that goroutine starts.
type JobDescriptor struct {
	ID            string      `json:"id"`
	AgentID       string      `json:"agentId,omitempty"`
	Name          string      `json:"name"`
	Enabled       bool        `json:"enabled"`
	CreatedAtMs   int64       `json:"createdAtMs"`
	UpdatedAtMs   int64       `json:"updatedAtMs"`
	Schedule      JobSchedule `json:"schedule"`
	SessionTarget string      `json:"sessionTarget"`
	WakeMode      WakeMode    `json:"wakeMode"`
	Payload       JobPayload  `json:"payload"`
	State         JobState    `json:"state"`
}

// ExecutionRequest is handed to the Executor for one isolated turn.
type ExecutionRequest struct {
	Config     *config.Config
	Job        JobDescriptor
	Message    string
	SessionKey string
	Lane       string
	RunID      string
}

// ExecutionResult is what the Executor reports for a finished turn.
type ExecutionResult struct {
	Status  string `json:"status"`
	Summary string `json:"summary,omitempty"`
	Error   string `json:"error,omitempty"`
	// Delivered is true when the executor already notified the user itself.
	Delivered bool `json:"delivered"`
}

// CallbackResult is the outcome reported to a ping callback.
type CallbackResult struct {
	RunID      string
	Status     string
	Summary    string
	Error      string
	SessionKey string
	FinishedAt string
}

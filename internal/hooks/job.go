package hooks

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewAgentJob builds the job for an agent hook, created at now.
func NewAgentJob(ev AgentEvent, now time.Time) JobDescriptor {
	return newJob(ev.AgentID, ev.Name, ev.WakeMode, now, JobPayload{
		Kind:                       payloadKindAgentTurn,
		Message:                    ev.Message,
		Model:                      ev.Model,
		Thinking:                   ev.Thinking,
		TimeoutSeconds:             ev.TimeoutSeconds,
		Deliver:                    ev.Deliver,
		Channel:                    ev.Channel,
		To:                         ev.To,
		AllowUnsafeExternalContent: ev.AllowUnsafeExternalContent,
	})
}

// NewPingJob builds the job for a ping hook. The ping's own message is used
// unless it is blank, in which case DefaultPingMessage is.
func NewPingJob(ev PingEvent, now time.Time) JobDescriptor {
	deliver := false
	return newJob(ev.AgentID, pingJobName, WakeNow, now, JobPayload{
		Kind:     payloadKindAgentTurn,
		Message:  PingMessage(ev),
		Model:    ev.Model,
		Thinking: ev.Thinking,
		Deliver:  &deliver,
		Channel:  pingChannel,
	})
}

// NewHeartbeatJob builds the job for a heartbeat turn on the primary session.
func NewHeartbeatJob(agentID, message string, now time.Time) JobDescriptor {
	job := newJob(agentID, heartbeatJobName, WakeNow, now, JobPayload{
		Kind:    payloadKindAgentTurn,
		Message: message,
	})
	job.SessionTarget = sessionTargetMain
	return job
}

func newJob(agentID, name string, wake WakeMode, now time.Time, payload JobPayload) JobDescriptor {
	ms := now.UnixMilli()
	return JobDescriptor{
		ID:          uuid.NewString(),
		AgentID:     agentID,
		Name:        name,
		Enabled:     true,
		CreatedAtMs: ms,
		UpdatedAtMs: ms,
		Schedule: JobSchedule{
			Kind: scheduleKindAt,
			At:   formatISO(now),
		},
		SessionTarget: sessionTargetIsolated,
		WakeMode:      wake,
		Payload:       payload,
		State:         JobState{NextRunAtMs: ms},
	}
}

// PingMessage returns the trimmed ping message, or the default one when blank.
func PingMessage(ev PingEvent) string {
	if msg := strings.TrimSpace(ev.Message); msg != "" {
		return msg
	}
	return DefaultPingMessage(ev)
}

// DefaultPingMessage is the instruction sent for a ping that carries no message.
func DefaultPingMessage(ev PingEvent) string {
	domainsLine := "Allowed tenant domains: use only domains owned by this tenant."
	if len(ev.Callback.AllowedDomains) > 0 {
		domainsLine = fmt.Sprintf("Allowed tenant domains: %s.", strings.Join(ev.Callback.AllowedDomains, ", "))
	}

	return strings.Join([]string{
		fmt.Sprintf("Process update %s for tenant %s.", ev.UpdateID, ev.TenantID),
		"All requests are tenant-business scoped.",
		"Read tenant-docs/.docs-base-url for the documentation base URL, then web_fetch that URL for the index and base URL + path for each doc.",
		"Never resolve docs under skills/tenant-api-ops/.",
		domainsLine,
		"If the docs URL fetch fails or the endpoint is undocumented, stop and report a status gap.",
		"Return concise output with action, endpoint, request summary, response status, and business result.",
	}, " ")
}

// formatISO renders t in UTC with millisecond precision.
func formatISO(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

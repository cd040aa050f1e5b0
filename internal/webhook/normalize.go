package webhook

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mattjoyce/hookgw/internal/hooks"
	"github.com/mattjoyce/hookgw/internal/session"
)

const (
	defaultAgentName = "Hook"
	defaultChannel   = "last"
)

// payloadError is a client error reported as 400.
type payloadError struct {
	msg string
}

func (e *payloadError) Error() string { return e.msg }

func invalid(format string, args ...any) error {
	return &payloadError{msg: fmt.Sprintf(format, args...)}
}

func normalizeWakeMode(mode hooks.WakeMode, field string) (hooks.WakeMode, error) {
	mode = hooks.WakeMode(strings.TrimSpace(string(mode)))
	if mode == "" {
		return hooks.WakeNow, nil
	}
	if !mode.Valid() {
		return "", invalid("%s must be %q or %q", field, hooks.WakeNow, hooks.WakeNextHeartbeat)
	}
	return mode, nil
}

func normalizeWake(ev hooks.WakeEvent) (hooks.WakeEvent, error) {
	ev.Text = strings.TrimSpace(ev.Text)
	if ev.Text == "" {
		return ev, invalid("text required")
	}
	mode, err := normalizeWakeMode(ev.Mode, "mode")
	if err != nil {
		return ev, err
	}
	ev.Mode = mode
	return ev, nil
}

func (s *Server) normalizeAgent(ev hooks.AgentEvent) (hooks.AgentEvent, error) {
	ev.Message = strings.TrimSpace(ev.Message)
	if ev.Message == "" {
		return ev, invalid("message required")
	}

	ev.Name = strings.TrimSpace(ev.Name)
	if ev.Name == "" {
		ev.Name = defaultAgentName
	}

	mode, err := normalizeWakeMode(ev.WakeMode, "wakeMode")
	if err != nil {
		return ev, err
	}
	ev.WakeMode = mode

	ev.SessionKey = strings.TrimSpace(ev.SessionKey)
	if ev.SessionKey == "" {
		ev.SessionKey = session.NewHookKey()
	}

	ev.AgentID = s.agentID(ev.AgentID)

	ev.Channel = strings.TrimSpace(ev.Channel)
	if ev.Channel == "" {
		ev.Channel = defaultChannel
	}
	ev.To = strings.TrimSpace(ev.To)
	ev.Model = strings.TrimSpace(ev.Model)
	ev.Thinking = strings.TrimSpace(ev.Thinking)

	if ev.Deliver == nil {
		deliver := true
		ev.Deliver = &deliver
	}
	if ev.AllowUnsafeExternalContent == nil {
		allow := s.config.AllowUnsafeExternalContent
		ev.AllowUnsafeExternalContent = &allow
	}
	if ev.TimeoutSeconds != nil && *ev.TimeoutSeconds <= 0 {
		return ev, invalid("timeoutSeconds must be positive")
	}
	return ev, nil
}

func (s *Server) normalizePing(ev hooks.PingEvent) (hooks.PingEvent, error) {
	ev.UpdateID = strings.TrimSpace(ev.UpdateID)
	ev.TenantID = strings.TrimSpace(ev.TenantID)
	if ev.UpdateID == "" {
		return ev, invalid("update_id required")
	}
	if ev.TenantID == "" {
		return ev, invalid("tenant_id required")
	}

	ev.Callback.URL = strings.TrimSpace(ev.Callback.URL)
	if ev.Callback.URL == "" {
		return ev, invalid("callback.url required")
	}
	u, err := url.Parse(ev.Callback.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ev, invalid("callback.url must be an absolute http(s) URL")
	}
	ev.Callback.Token = strings.TrimSpace(ev.Callback.Token)

	var domains []string
	for _, d := range ev.Callback.AllowedDomains {
		if d = strings.TrimSpace(d); d != "" {
			domains = append(domains, d)
		}
	}
	ev.Callback.AllowedDomains = domains

	ev.CallbackRef = strings.TrimSpace(ev.CallbackRef)
	if ev.CallbackRef == "" {
		ev.CallbackRef = ev.UpdateID
	}

	ev.SessionKey = strings.TrimSpace(ev.SessionKey)
	if ev.SessionKey == "" {
		ev.SessionKey = session.PingKey(ev.TenantID, ev.UpdateID)
	}

	ev.AgentID = s.agentID(ev.AgentID)
	ev.Model = strings.TrimSpace(ev.Model)
	ev.Thinking = strings.TrimSpace(ev.Thinking)
	return ev, nil
}

func (s *Server) agentID(id string) string {
	if strings.TrimSpace(id) == "" {
		id = s.config.DefaultAgent
	}
	return session.NormalizeAgentID(id)
}

// Package session derives session keys for hook runs and the primary session.
package session

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mattjoyce/hookgw/internal/config"
	"github.com/mattjoyce/hookgw/internal/hooks"
)

const (
	// ScopeGlobal shares one session across all senders.
	ScopeGlobal = "global"
	// GlobalKey is the primary session key in global scope.
	GlobalKey = "global"

	DefaultMainKey = "main"
	DefaultAgentID = "main"
)

// Resolver implements hooks.SessionResolver over the current configuration.
type Resolver struct {
	configs hooks.ConfigLoader
}

func NewResolver(configs hooks.ConfigLoader) *Resolver {
	return &Resolver{configs: configs}
}

// PrimarySessionKey reads the config on every call. If it cannot be loaded
// the default per-sender key is returned.
func (r *Resolver) PrimarySessionKey() string {
	cfg, err := r.configs.Current()
	if err != nil || cfg == nil {
		return MainSessionKey(config.SessionConfig{})
	}
	return MainSessionKey(cfg.Session)
}

// MainSessionKey is "global" in global scope, else agent:{agent}:{main key}.
func MainSessionKey(s config.SessionConfig) string {
	if strings.EqualFold(strings.TrimSpace(s.Scope), ScopeGlobal) {
		return GlobalKey
	}
	return AgentMainKey(s.DefaultAgent, s.MainKey)
}

// AgentMainKey builds agent:{agentID}:{mainKey}, lower-cased, with defaults for blanks.
func AgentMainKey(agentID, mainKey string) string {
	agentID = NormalizeAgentID(agentID)
	mainKey = strings.ToLower(strings.TrimSpace(mainKey))
	if mainKey == "" {
		mainKey = DefaultMainKey
	}
	return fmt.Sprintf("agent:%s:%s", agentID, mainKey)
}

// NormalizeAgentID lower-cases and trims id, defaulting to DefaultAgentID.
func NormalizeAgentID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return DefaultAgentID
	}
	return id
}

// NewHookKey returns a fresh hook:{uuid} key for an agent hook without one.
func NewHookKey() string {
	return "hook:" + uuid.NewString()
}

// PingKey is the default session key of a tenant ping.
func PingKey(tenantID, updateID string) string {
	return fmt.Sprintf("hook:ping:%s:%s", strings.TrimSpace(tenantID), strings.TrimSpace(updateID))
}

package config

import "time"

// Config represents the complete hookgw configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	State     StateConfig     `yaml:"state"`
	Session   SessionConfig   `yaml:"session"`
	Hooks     HooksConfig     `yaml:"hooks"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Agent     AgentConfig     `yaml:"agent"`
	API       APIConfig       `yaml:"api,omitempty"`

	// Fingerprint is the BLAKE3 hex digest of the file this config was loaded from.
	// Empty for configs built in code.
	Fingerprint string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name         string        `yaml:"name"`
	LogLevel     string        `yaml:"log_level"`
	DrainTimeout time.Duration `yaml:"drain_timeout"`
}

// StateConfig defines state storage settings.
type StateConfig struct {
	Path string `yaml:"path"`
}

// SessionConfig controls how the primary session key is derived.
type SessionConfig struct {
	// Scope is "per-sender" (default) or "global".
	Scope        string `yaml:"scope"`
	MainKey      string `yaml:"main_key"`
	DefaultAgent string `yaml:"default_agent"`
}

// HooksConfig defines the hook ingress listener.
type HooksConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Listen   string `yaml:"listen"`
	BasePath string `yaml:"base_path"`
	Token    string `yaml:"token"`

	// SigningSecret enables HMAC-SHA256 body verification when set.
	SigningSecret   string `yaml:"signing_secret,omitempty"`
	SignatureHeader string `yaml:"signature_header,omitempty"`
	MaxBodySize     string `yaml:"max_body_size,omitempty"`

	// CallbackTimeout bounds ping callback POSTs. Zero leaves the transport default.
	CallbackTimeout time.Duration `yaml:"callback_timeout,omitempty"`

	// AllowUnsafeExternalContent is the default for agent hooks that omit the field.
	AllowUnsafeExternalContent bool `yaml:"allow_unsafe_external_content,omitempty"`

	// PingDedupeWindow answers a repeated (tenant_id, update_id) ping with the
	// first run's ID instead of dispatching again. Zero disables it.
	PingDedupeWindow time.Duration `yaml:"ping_dedupe_window,omitempty"`
}

// HeartbeatConfig defines the wake loop.
type HeartbeatConfig struct {
	// Every is the periodic heartbeat interval; zero disables periodic beats.
	Every    time.Duration `yaml:"every"`
	Coalesce time.Duration `yaml:"coalesce"`
}

// AgentConfig defines the agent subprocess used to execute hook turns.
type AgentConfig struct {
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args,omitempty"`
	Timeout time.Duration `yaml:"timeout"`
	Workdir string        `yaml:"workdir,omitempty"`
}

// APIConfig defines the ops HTTP server settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`

	// Token, when set, is required as a bearer token on /events and /runs.
	Token string `yaml:"token,omitempty"`

	// CORSOrigins lists browser origins allowed to call the API.
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:         "hookgw",
			LogLevel:     "info",
			DrainTimeout: 30 * time.Second,
		},
		State: StateConfig{
			Path: "./data/state.db",
		},
		Session: SessionConfig{
			Scope:        "per-sender",
			MainKey:      "main",
			DefaultAgent: "main",
		},
		Hooks: HooksConfig{
			Enabled:         false,
			Listen:          "127.0.0.1:18789",
			BasePath:        "/hooks",
			SignatureHeader: "X-Hook-Signature",
			MaxBodySize:     "256KB",
		},
		Heartbeat: HeartbeatConfig{
			Every:    0,
			Coalesce: 250 * time.Millisecond,
		},
		Agent: AgentConfig{
			Timeout: 10 * time.Minute,
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8080",
		},
	}
}

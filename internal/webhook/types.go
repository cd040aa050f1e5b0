package webhook

import (
	"context"
	"time"

	"github.com/mattjoyce/hookgw/internal/hooks"
)

// Dispatcher receives normalised hook events. See hooks.Dispatcher.
type Dispatcher interface {
	DispatchWake(ctx context.Context, ev hooks.WakeEvent) error
	DispatchAgent(ctx context.Context, ev hooks.AgentEvent) string
	DispatchPing(ctx context.Context, ev hooks.PingEvent) string
}

// Config holds hook ingress configuration.
type Config struct {
	Listen   string
	BasePath string

	// Token authenticates every request.
	Token string

	// SigningSecret enables HMAC body verification when non-empty.
	SigningSecret   string
	SignatureHeader string

	MaxBodySize int64

	// Defaults applied to agent and ping payloads.
	DefaultAgent               string
	AllowUnsafeExternalContent bool

	// PingDedupeWindow enables duplicate ping suppression when positive.
	PingDedupeWindow time.Duration
}

// WakeResponse answers an accepted wake.
type WakeResponse struct {
	OK   bool           `json:"ok"`
	Mode hooks.WakeMode `json:"mode"`
}

// RunResponse answers an accepted agent or ping hook.
type RunResponse struct {
	OK    bool   `json:"ok"`
	RunID string `json:"runId"`
	// Duplicate marks a ping answered from the dedupe window.
	Duplicate bool `json:"duplicate,omitempty"`
}

// ErrorResponse is the JSON body of every rejected request.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Default values
const (
	DefaultBasePath        = "/hooks"
	DefaultMaxBodySize     = 256 * 1024
	DefaultSignatureHeader = "X-Hook-Signature"
	TokenHeader            = "X-Hook-Token"

	recentPingCapacity = 1024
)

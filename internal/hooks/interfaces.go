package hooks

import (
	"context"

	"github.com/mattjoyce/hookgw/internal/config"
)

//go:generate mockgen -destination=mocks/mock_hooks.go -package=mocks github.com/mattjoyce/hookgw/internal/hooks SessionResolver,EventQueue,Heartbeat,ConfigLoader,Executor

// SessionResolver returns the primary session key. It is called on every
// dispatch so configuration edits take effect without a restart.
type SessionResolver interface {
	PrimarySessionKey() string
}

// EventQueue appends system events for a session.
type EventQueue interface {
	Enqueue(ctx context.Context, text, sessionKey string) error
}

// Heartbeat triggers a wake of the primary session. Reason is diagnostic only.
type Heartbeat interface {
	RequestNow(reason string)
}

// ConfigLoader returns the configuration to run a hook job with.
type ConfigLoader interface {
	Current() (*config.Config, error)
}

// Executor runs one isolated agent turn. A returned error means the turn
// could not produce a result at all.
type Executor interface {
	Run(ctx context.Context, req ExecutionRequest) (ExecutionResult, error)
}

// Metrics receives dispatch counters. See internal/metrics.
type Metrics interface {
	HookDispatched(kind string)
	HookCompleted(kind, outcome string)
	CallbackDelivered(result string)
	TaskStarted()
	TaskFinished()
}

type nopMetrics struct{}

func (nopMetrics) HookDispatched(string) {}
func (nopMetrics) HookCompleted(string, string) {}
func (nopMetrics) CallbackDelivered(string) {}
func (nopMetrics) TaskStarted() {}
func (nopMetrics) TaskFinished() {}

package heartbeat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/hookgw/internal/events"
	"github.com/mattjoyce/hookgw/internal/hooks"
)

// Drainer removes and returns the pending system events of a session.
type Drainer interface {
	Drain(ctx context.Context, sessionKey string) ([]events.SystemEvent, error)
}

// MainTurn is the Handler used by the gateway: it hands pending system
// events of the primary session to the agent as one main-lane turn.
type MainTurn struct {
	Sessions hooks.SessionResolver
	Queue    Drainer
	Configs  hooks.ConfigLoader
	Executor hooks.Executor
	Hub      *events.Hub
	Logger   *slog.Logger

	now func() time.Time
}

// Handle drains the primary session and runs a turn if anything was pending.
func (m *MainTurn) Handle(ctx context.Context, reason string) error {
	sessionKey := m.Sessions.PrimarySessionKey()
	pending, err := m.Queue.Drain(ctx, sessionKey)
	if err != nil {
		return fmt.Errorf("drain system events: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	for _, ev := range pending {
		m.Hub.Publish(events.TypeSystemEvent, map[string]any{
			"id":          ev.ID,
			"session_key": ev.SessionKey,
			"text":        ev.Text,
		})
	}

	cfg, err := m.Configs.Current()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	now := time.Now
	if m.now != nil {
		now = m.now
	}
	job := hooks.NewHeartbeatJob(cfg.Session.DefaultAgent, SystemEventsMessage(pending), now())
	runID := uuid.NewString()

	res, err := m.Executor.Run(ctx, hooks.ExecutionRequest{
		Config:     cfg,
		Job:        job,
		Message:    job.Payload.Message,
		SessionKey: sessionKey,
		Lane:       hooks.LaneMain,
		RunID:      runID,
	})
	if err != nil {
		return fmt.Errorf("heartbeat turn %s: %w", runID, err)
	}

	m.logger().Info("heartbeat turn finished",
		"run_id", runID,
		"reason", reason,
		"events", len(pending),
		"status", res.Status,
		"delivered", res.Delivered,
	)
	return nil
}

func (m *MainTurn) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

// SystemEventsMessage renders pending events as the turn's message.
func SystemEventsMessage(pending []events.SystemEvent) string {
	var b strings.Builder
	b.WriteString("System events:")
	for _, ev := range pending {
		b.WriteString("\n- ")
		b.WriteString(ev.Text)
	}
	return b.String()
}

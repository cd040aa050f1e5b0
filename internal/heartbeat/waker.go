// Package heartbeat wakes the primary session on request and on a fixed period.
package heartbeat

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/mattjoyce/hookgw/internal/events"
)

// DefaultCoalesce is how long pending wake requests are merged before firing.
const DefaultCoalesce = 250 * time.Millisecond

// ReasonInterval is the reason passed to the handler for periodic fires.
const ReasonInterval = "interval"

// Handler runs one heartbeat. Reason is diagnostic only.
type Handler func(ctx context.Context, reason string) error

// Waker serialises heartbeat runs. Wake requests never block the caller.
type Waker struct {
	handler  Handler
	every    time.Duration
	coalesce time.Duration
	hub      *events.Hub
	logger   *slog.Logger

	mu      sync.Mutex
	pending string
	wakeCh  chan struct{}
}

// New creates a Waker. A zero every disables periodic heartbeats; a zero
// coalesce uses DefaultCoalesce.
func New(handler Handler, every, coalesce time.Duration, hub *events.Hub, logger *slog.Logger) *Waker {
	if coalesce <= 0 {
		coalesce = DefaultCoalesce
	}
	return &Waker{
		handler:  handler,
		every:    every,
		coalesce: coalesce,
		hub:      hub,
		logger:   logger.With("component", "heartbeat"),
		wakeCh:   make(chan struct{}, 1),
	}
}

// RequestNow asks for a heartbeat soon. Requests made while one is pending
// are merged and the latest reason is kept.
func (w *Waker) RequestNow(reason string) {
	w.mu.Lock()
	w.pending = reason
	w.mu.Unlock()

	select {
	case w.wakeCh <- struct{}{}:
	default:
	}
}

// Run fires heartbeats until ctx is cancelled.
func (w *Waker) Run(ctx context.Context) error {
	w.logger.Info("heartbeat started", "every", w.every.String(), "coalesce", w.coalesce.String())

	var tick <-chan time.Time
	if w.every > 0 {
		ticker := time.NewTicker(w.every)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("heartbeat stopped")
			return nil
		case <-tick:
			w.fire(ctx, ReasonInterval)
		case <-w.wakeCh:
			timer := time.NewTimer(w.coalesce)
			select {
			case <-ctx.Done():
				timer.Stop()
				w.logger.Info("heartbeat stopped")
				return nil
			case <-timer.C:
			}
			select {
			case <-w.wakeCh:
			default:
			}
			w.fire(ctx, w.takePending())
		}
	}
}

func (w *Waker) takePending() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	reason := w.pending
	w.pending = ""
	return reason
}

func (w *Waker) fire(ctx context.Context, reason string) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("heartbeat handler panicked", "reason", reason, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()

	w.logger.Debug("heartbeat", "reason", reason)
	w.hub.Publish(events.TypeHeartbeat, map[string]any{"reason": reason})

	if err := w.handler(ctx, reason); err != nil {
		w.logger.Warn("heartbeat handler failed", "reason", reason, "error", err)
	}
}

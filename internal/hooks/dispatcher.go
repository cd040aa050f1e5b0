package hooks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mattjoyce/hookgw/internal/events"
)

// Hook kinds, as used for metrics and the live event feed.
const (
	KindWake  = "wake"
	KindAgent = "agent"
	KindPing  = "ping"
)

// Completion outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeNotOK = "not_ok"
	OutcomeError = "error"
)

// Deps are the collaborators a Dispatcher notifies and executes through.
type Deps struct {
	Sessions  SessionResolver
	Queue     EventQueue
	Heartbeat Heartbeat
	Configs   ConfigLoader
	Executor  Executor
	Callbacks *CallbackPoster

	// Optional.
	Hub     *events.Hub
	Metrics Metrics
}

// Dispatcher admits hook events and runs agent and ping jobs in background goroutines.
type Dispatcher struct {
	sessions  SessionResolver
	queue     EventQueue
	heartbeat Heartbeat
	configs   ConfigLoader
	executor  Executor
	callbacks *CallbackPoster
	hub       *events.Hub
	metrics   Metrics
	logger    *slog.Logger
	now       func() time.Time

	wg       sync.WaitGroup
	inflight atomic.Int64
}

// New creates a Dispatcher. A nil Callbacks gets a poster on http.DefaultClient.
func New(deps Deps, logger *slog.Logger) *Dispatcher {
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Callbacks == nil {
		deps.Callbacks = NewCallbackPoster(nil, deps.Hub, deps.Metrics, logger)
	}
	return &Dispatcher{
		sessions:  deps.Sessions,
		queue:     deps.Queue,
		heartbeat: deps.Heartbeat,
		configs:   deps.Configs,
		executor:  deps.Executor,
		callbacks: deps.Callbacks,
		hub:       deps.Hub,
		metrics:   deps.Metrics,
		logger:    logger.With("component", "hooks"),
		now:       time.Now,
	}
}

// DispatchWake enqueues ev.Text on the primary session and, for mode "now",
// requests an immediate heartbeat. The heartbeat is requested even if the
// enqueue fails; the enqueue error is returned.
func (d *Dispatcher) DispatchWake(ctx context.Context, ev WakeEvent) error {
	sessionKey := d.sessions.PrimarySessionKey()
	d.metrics.HookDispatched(KindWake)

	err := d.tryEnqueue(ctx, ev.Text, sessionKey)
	if err != nil {
		d.logger.Warn("hook wake enqueue failed", "session_key", sessionKey, "error", err)
	}
	if ev.Mode == WakeNow {
		d.requestHeartbeat("hook:wake")
	}

	d.hub.Publish(events.TypeHookDispatched, map[string]any{
		"kind":        KindWake,
		"mode":        ev.Mode,
		"session_key": sessionKey,
	})
	if err != nil {
		return fmt.Errorf("enqueue wake event: %w", err)
	}
	return nil
}

// DispatchAgent starts an isolated agent turn for ev and returns its run id
// without waiting for it.
func (d *Dispatcher) DispatchAgent(ctx context.Context, ev AgentEvent) string {
	sessionKey := strings.TrimSpace(ev.SessionKey)
	mainKey := d.sessions.PrimarySessionKey()
	job := NewAgentJob(ev, d.now())
	runID := uuid.NewString()

	d.launch(ctx, KindAgent, runID, job, func(ctx context.Context) {
		d.runAgent(ctx, ev, job, runID, sessionKey, mainKey)
	})
	return runID
}

// DispatchPing starts an isolated turn for a tenant ping and returns its run id
// without waiting for it. The outcome is posted to ev.Callback.URL.
func (d *Dispatcher) DispatchPing(ctx context.Context, ev PingEvent) string {
	sessionKey := strings.TrimSpace(ev.SessionKey)
	mainKey := d.sessions.PrimarySessionKey()
	job := NewPingJob(ev, d.now())
	runID := uuid.NewString()

	d.launch(ctx, KindPing, runID, job, func(ctx context.Context) {
		d.runPing(ctx, ev, job, runID, sessionKey, mainKey)
	})
	return runID
}

// Wait blocks until every launched hook goroutine has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InFlight reports the number of hook goroutines still running.
func (d *Dispatcher) InFlight() int64 {
	return d.inflight.Load()
}

// launch runs fn in its own goroutine on a context that outlives the caller's.
func (d *Dispatcher) launch(ctx context.Context, kind, runID string, job JobDescriptor, fn func(context.Context)) {
	taskCtx := context.WithoutCancel(ctx)

	d.metrics.HookDispatched(kind)
	d.metrics.TaskStarted()
	d.inflight.Add(1)
	d.wg.Add(1)

	d.hub.Publish(events.TypeHookDispatched, map[string]any{
		"kind":   kind,
		"run_id": runID,
		"job_id": job.ID,
		"name":   job.Name,
	})
	d.logger.Debug("hook dispatched", "kind", kind, "run_id", runID, "job_id", job.ID)

	go func() {
		defer d.wg.Done()
		defer d.inflight.Add(-1)
		defer d.metrics.TaskFinished()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("hook task panicked",
					"kind", kind,
					"run_id", runID,
					"job_id", job.ID,
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()),
				)
			}
		}()
		fn(taskCtx)
	}()
}

// execute loads the current config and runs job. An executor panic is
// returned as an error.
func (d *Dispatcher) execute(ctx context.Context, job JobDescriptor, runID, message, sessionKey string) (res ExecutionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("execution panicked: %v", r)
		}
	}()

	cfg, err := d.configs.Current()
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("load config: %w", err)
	}
	if cfg == nil {
		return ExecutionResult{}, errors.New("load config: no configuration")
	}

	return d.executor.Run(ctx, ExecutionRequest{
		Config:     cfg,
		Job:        job,
		Message:    message,
		SessionKey: sessionKey,
		Lane:       LaneCron,
		RunID:      runID,
	})
}

func (d *Dispatcher) runAgent(ctx context.Context, ev AgentEvent, job JobDescriptor, runID, sessionKey, mainKey string) {
	res, err := d.execute(ctx, job, runID, ev.Message, sessionKey)
	if err != nil {
		d.logger.Warn("hook agent failed", "run_id", runID, "job_id", job.ID, "name", ev.Name, "error", err)
		d.enqueue(ctx, fmt.Sprintf("Hook %s (error): %s", ev.Name, err), mainKey)
		if ev.WakeMode == WakeNow {
			d.requestHeartbeat("hook:" + job.ID + ":error")
		}
		d.completed(KindAgent, OutcomeError, runID, job, err.Error())
		return
	}

	summary := Summarize(res)
	if !res.Delivered {
		prefix := "Hook " + ev.Name
		if res.Status != StatusOK {
			prefix = fmt.Sprintf("Hook %s (%s)", ev.Name, res.Status)
		}
		d.enqueue(ctx, prefix+": "+summary, mainKey)
		if ev.WakeMode == WakeNow {
			d.requestHeartbeat("hook:" + job.ID)
		}
	}
	d.completed(KindAgent, outcomeOf(res), runID, job, summary)
}

func (d *Dispatcher) runPing(ctx context.Context, ev PingEvent, job JobDescriptor, runID, sessionKey, mainKey string) {
	res, err := d.execute(ctx, job, runID, job.Payload.Message, sessionKey)
	finishedAt := formatISO(d.now())

	if err != nil {
		errText := err.Error()
		d.logger.Warn("hook ping failed", "run_id", runID, "job_id", job.ID, "update_id", ev.UpdateID, "error", err)
		d.enqueue(ctx, fmt.Sprintf("Ping %s (error): %s", ev.UpdateID, errText), mainKey)
		d.callbacks.Post(ctx, ev, CallbackResult{
			RunID:      runID,
			Status:     StatusError,
			Summary:    errText,
			Error:      errText,
			SessionKey: sessionKey,
			FinishedAt: finishedAt,
		})
		d.completed(KindPing, OutcomeError, runID, job, errText)
		return
	}

	summary := Summarize(res)
	result := CallbackResult{
		RunID:      runID,
		Status:     StatusOK,
		Summary:    summary,
		SessionKey: sessionKey,
		FinishedAt: finishedAt,
	}
	if res.Status != StatusOK {
		result.Status = StatusError
		result.Error = res.Error
		if result.Error == "" {
			result.Error = summary
		}
	}
	d.callbacks.Post(ctx, ev, result)

	if !res.Delivered {
		d.enqueue(ctx, fmt.Sprintf("Ping %s: %s", ev.UpdateID, summary), mainKey)
	}
	d.completed(KindPing, outcomeOf(res), runID, job, summary)
}

// enqueue is the system event channel of the fan-out; its failures stay here.
func (d *Dispatcher) enqueue(ctx context.Context, text, sessionKey string) {
	if err := d.tryEnqueue(ctx, strings.TrimSpace(text), sessionKey); err != nil {
		d.logger.Warn("system event enqueue failed", "session_key", sessionKey, "error", err)
	}
}

// tryEnqueue reports a queue panic as an error.
func (d *Dispatcher) tryEnqueue(ctx context.Context, text, sessionKey string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("enqueue panicked: %v", r)
		}
	}()
	return d.queue.Enqueue(ctx, text, sessionKey)
}

// requestHeartbeat is the heartbeat channel of the fan-out; a panic is logged
// and swallowed.
func (d *Dispatcher) requestHeartbeat(reason string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("heartbeat request failed", "reason", reason, "error", fmt.Sprint(r))
		}
	}()
	d.heartbeat.RequestNow(reason)
}

func (d *Dispatcher) completed(kind, outcome, runID string, job JobDescriptor, summary string) {
	d.metrics.HookCompleted(kind, outcome)
	d.hub.Publish(events.TypeHookCompleted, map[string]any{
		"kind":    kind,
		"run_id":  runID,
		"job_id":  job.ID,
		"outcome": outcome,
		"summary": truncateSummary(summary),
	})
}

// maxEventSummary bounds the summary carried on the live feed.
const maxEventSummary = 2048

func truncateSummary(s string) string {
	if len(s) <= maxEventSummary {
		return s
	}
	cut := maxEventSummary
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

func outcomeOf(res ExecutionResult) string {
	if res.Status == StatusOK {
		return OutcomeOK
	}
	return OutcomeNotOK
}

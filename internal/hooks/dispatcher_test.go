package hooks_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/hookgw/internal/config"
	"github.com/mattjoyce/hookgw/internal/events"
	"github.com/mattjoyce/hookgw/internal/hooks"
	"github.com/mattjoyce/hookgw/internal/hooks/mocks"
)

const mainKey = "agent:main:main"

type queuedEvent struct {
	Text       string
	SessionKey string
}

// recordingQueue is a thread-safe EventQueue fake.
type recordingQueue struct {
	mu     sync.Mutex
	events []queuedEvent
	err    error
	panics bool
}

func (q *recordingQueue) Enqueue(ctx context.Context, text, sessionKey string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.panics {
		panic("queue corrupted")
	}
	if q.err != nil {
		return q.err
	}
	q.events = append(q.events, queuedEvent{Text: text, SessionKey: sessionKey})
	return nil
}

func (q *recordingQueue) Events() []queuedEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queuedEvent(nil), q.events...)
}

// recordingHeartbeat is a thread-safe Heartbeat fake.
type recordingHeartbeat struct {
	mu      sync.Mutex
	reasons []string
	panics  bool
}

func (h *recordingHeartbeat) RequestNow(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reasons = append(h.reasons, reason)
	if h.panics {
		panic("waker stopped")
	}
}

func (h *recordingHeartbeat) Reasons() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.reasons...)
}

type fixture struct {
	disp      *hooks.Dispatcher
	executor  *mocks.MockExecutor
	sessions  *mocks.MockSessionResolver
	configs   *mocks.MockConfigLoader
	queue     *recordingQueue
	heartbeat *recordingHeartbeat
	hub       *events.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &fixture{
		executor:  mocks.NewMockExecutor(ctrl),
		sessions:  mocks.NewMockSessionResolver(ctrl),
		configs:   mocks.NewMockConfigLoader(ctrl),
		queue:     &recordingQueue{},
		heartbeat: &recordingHeartbeat{},
		hub:       events.NewHub(64),
	}
	f.sessions.EXPECT().PrimarySessionKey().Return(mainKey).AnyTimes()
	f.configs.EXPECT().Current().Return(config.Defaults(), nil).AnyTimes()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.disp = hooks.New(hooks.Deps{
		Sessions:  f.sessions,
		Queue:     f.queue,
		Heartbeat: f.heartbeat,
		Configs:   f.configs,
		Executor:  f.executor,
		Hub:       f.hub,
	}, logger)
	return f
}

func (f *fixture) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.disp.Wait(ctx))
}

func agentEvent(wake hooks.WakeMode) hooks.AgentEvent {
	return hooks.AgentEvent{
		Name:       "Gmail",
		SessionKey: " hook:gmail:1 ",
		Message:    "summarise inbox",
		WakeMode:   wake,
	}
}

func TestDispatchWake(t *testing.T) {
	tests := []struct {
		name       string
		mode       hooks.WakeMode
		heartbeats []string
	}{
		{"now", hooks.WakeNow, []string{"hook:wake"}},
		{"next heartbeat", hooks.WakeNextHeartbeat, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			err := f.disp.DispatchWake(context.Background(), hooks.WakeEvent{Text: "New email", Mode: tt.mode})
			require.NoError(t, err)

			assert.Equal(t, []queuedEvent{{Text: "New email", SessionKey: mainKey}}, f.queue.Events())
			assert.Equal(t, tt.heartbeats, f.heartbeat.Reasons())
		})
	}
}

func TestDispatchWake_EnqueueFailureStillWakes(t *testing.T) {
	f := newFixture(t)
	f.queue.err = errors.New("disk full")

	err := f.disp.DispatchWake(context.Background(), hooks.WakeEvent{Text: "x", Mode: hooks.WakeNow})
	assert.Error(t, err)
	assert.Equal(t, []string{"hook:wake"}, f.heartbeat.Reasons())
}

func TestDispatchAgent_RunIDs(t *testing.T) {
	f := newFixture(t)

	var (
		mu     sync.Mutex
		jobIDs = map[string]string{}
	)
	f.executor.EXPECT().Run(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req hooks.ExecutionRequest) (hooks.ExecutionResult, error) {
			mu.Lock()
			jobIDs[req.RunID] = req.Job.ID
			mu.Unlock()
			return hooks.ExecutionResult{Status: "ok", Delivered: true}, nil
		}).Times(2)

	ev := agentEvent(hooks.WakeNow)
	run1 := f.disp.DispatchAgent(context.Background(), ev)
	run2 := f.disp.DispatchAgent(context.Background(), ev)
	f.wait(t)

	assert.NotEmpty(t, run1)
	assert.NotEmpty(t, run2)
	assert.NotEqual(t, run1, run2)
	require.Len(t, jobIDs, 2)
	for runID, jobID := range jobIDs {
		assert.NotEqual(t, runID, jobID)
	}
	assert.NotEqual(t, jobIDs[run1], jobIDs[run2])
}

func TestDispatchAgent_ExecutionRequest(t *testing.T) {
	f := newFixture(t)

	var got hooks.ExecutionRequest
	f.executor.EXPECT().Run(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req hooks.ExecutionRequest) (hooks.ExecutionResult, error) {
			got = req
			return hooks.ExecutionResult{Status: "ok", Delivered: true}, nil
		})

	runID := f.disp.DispatchAgent(context.Background(), agentEvent(hooks.WakeNow))
	f.wait(t)

	assert.Equal(t, runID, got.RunID)
	assert.Equal(t, "hook:gmail:1", got.SessionKey)
	assert.Equal(t, "cron", got.Lane)
	assert.Equal(t, "summarise inbox", got.Message)
	assert.NotNil(t, got.Config)
	assert.Equal(t, "isolated", got.Job.SessionTarget)
	assert.Equal(t, "agentTurn", got.Job.Payload.Kind)
}

func TestDispatchAgent_ReturnsBeforeExecutionFinishes(t *testing.T) {
	f := newFixture(t)

	release := make(chan struct{})
	started := make(chan struct{})
	f.executor.EXPECT().Run(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req hooks.ExecutionRequest) (hooks.ExecutionResult, error) {
			close(started)
			<-release
			return hooks.ExecutionResult{Status: "ok", Summary: "late"}, nil
		})

	runID := f.disp.DispatchAgent(context.Background(), agentEvent(hooks.WakeNextHeartbeat))
	assert.NotEmpty(t, runID)

	<-started
	assert.Equal(t, int64(1), f.disp.InFlight())
	assert.Empty(t, f.queue.Events())

	close(release)
	f.wait(t)
	assert.Equal(t, int64(0), f.disp.InFlight())
	assert.Equal(t, []queuedEvent{{Text: "Hook Gmail: late", SessionKey: mainKey}}, f.queue.Events())
}

func TestDispatchAgent_CallerCancellationDoesNotAbortRun(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	f.executor.EXPECT().Run(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req hooks.ExecutionRequest) (hooks.ExecutionResult, error) {
			assert.NoError(t, ctx.Err())
			return hooks.ExecutionResult{Status: "ok", Summary: "fine"}, nil
		})

	f.disp.DispatchAgent(ctx, agentEvent(hooks.WakeNextHeartbeat))
	cancel()
	f.wait(t)

	assert.Len(t, f.queue.Events(), 1)
}

func TestDispatchAgent_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		wake       hooks.WakeMode
		result     hooks.ExecutionResult
		err        error
		wantEvents []string
		wantBeat   func(jobID string) []string
	}{
		{
			name:       "ok not delivered wakes now",
			wake:       hooks.WakeNow,
			result:     hooks.ExecutionResult{Status: "ok", Summary: " 3 new emails "},
			wantEvents: []string{"Hook Gmail: 3 new emails"},
			wantBeat:   func(jobID string) []string { return []string{"hook:" + jobID} },
		},
		{
			name:       "ok not delivered next heartbeat",
			wake:       hooks.WakeNextHeartbeat,
			result:     hooks.ExecutionResult{Status: "ok", Summary: "done"},
			wantEvents: []string{"Hook Gmail: done"},
			wantBeat:   func(string) []string { return nil },
		},
		{
			name:       "non-ok status uses error then status",
			wake:       hooks.WakeNextHeartbeat,
			result:     hooks.ExecutionResult{Status: "skipped", Error: "quota exceeded"},
			wantEvents: []string{"Hook Gmail (skipped): quota exceeded"},
			wantBeat:   func(string) []string { return nil },
		},
		{
			name:       "status as summary fallback",
			wake:       hooks.WakeNextHeartbeat,
			result:     hooks.ExecutionResult{Status: "timeout"},
			wantEvents: []string{"Hook Gmail (timeout): timeout"},
			wantBeat:   func(string) []string { return nil },
		},
		{
			name:       "ok and delivered stays quiet",
			wake:       hooks.WakeNow,
			result:     hooks.ExecutionResult{Status: "ok", Summary: "sent", Delivered: true},
			wantEvents: nil,
			wantBeat:   func(string) []string { return nil },
		},
		{
			name:       "executor error",
			wake:       hooks.WakeNow,
			err:        errors.New("agent crashed"),
			wantEvents: []string{"Hook Gmail (error): agent crashed"},
			wantBeat:   func(jobID string) []string { return []string{"hook:" + jobID + ":error"} },
		},
		{
			name:       "executor error ignores delivered",
			wake:       hooks.WakeNextHeartbeat,
			result:     hooks.ExecutionResult{Status: "ok", Delivered: true},
			err:        errors.New("agent crashed"),
			wantEvents: []string{"Hook Gmail (error): agent crashed"},
			wantBeat:   func(string) []string { return nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			var jobID string
			f.executor.EXPECT().Run(gomock.Any(), gomock.Any()).
				DoAndReturn(func(ctx context.Context, req hooks.ExecutionRequest) (hooks.ExecutionResult, error) {
					jobID = req.Job.ID
					return tt.result, tt.err
				})

			f.disp.DispatchAgent(context.Background(), agentEvent(tt.wake))
			f.wait(t)

			var texts []string
			for _, ev := range f.queue.Events() {
				assert.Equal(t, mainKey, ev.SessionKey)
				texts = append(texts, ev.Text)
			}
			assert.Equal(t, tt.wantEvents, texts)
			assert.Equal(t, tt.wantBeat(jobID), f.heartbeat.Reasons())
		})
	}
}

func TestDispatchAgent_ExecutorPanicBecomesError(t *testing.T) {
	f := newFixture(t)
	f.executor.EXPECT().Run(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req hooks.ExecutionRequest) (hooks.ExecutionResult, error) {
			panic("nil map")
		})

	f.disp.DispatchAgent(context.Background(), agentEvent(hooks.WakeNextHeartbeat))
	f.wait(t)

	evs := f.queue.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, "Hook Gmail (error): execution panicked: nil map", evs[0].Text)
}

func TestDispatchAgent_ConfigLoadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	executor := mocks.NewMockExecutor(ctrl)
	configs := mocks.NewMockConfigLoader(ctrl)
	sessions := mocks.NewMockSessionResolver(ctrl)
	sessions.EXPECT().PrimarySessionKey().Return(mainKey)
	configs.EXPECT().Current().Return(nil, errors.New("parse error"))
	// Executor must not be called.

	q := &recordingQueue{}
	disp := hooks.New(hooks.Deps{
		Sessions:  sessions,
		Queue:     q,
		Heartbeat: &recordingHeartbeat{},
		Configs:   configs,
		Executor:  executor,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	disp.DispatchAgent(context.Background(), agentEvent(hooks.WakeNextHeartbeat))
	require.NoError(t, disp.Wait(context.Background()))

	evs := q.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, "Hook Gmail (error): load config: parse error", evs[0].Text)
}

func TestDispatch_ResolvesPrimarySessionPerCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	sessions := mocks.NewMockSessionResolver(ctrl)
	configs := mocks.NewMockConfigLoader(ctrl)
	executor := mocks.NewMockExecutor(ctrl)

	gomock.InOrder(
		sessions.EXPECT().PrimarySessionKey().Return("agent:main:first"),
		sessions.EXPECT().PrimarySessionKey().Return("agent:main:second"),
	)
	configs.EXPECT().Current().Return(config.Defaults(), nil).AnyTimes()
	executor.EXPECT().Run(gomock.Any(), gomock.Any()).Return(hooks.ExecutionResult{Status: "ok", Summary: "s"}, nil).AnyTimes()

	q := &recordingQueue{}
	disp := hooks.New(hooks.Deps{
		Sessions:  sessions,
		Queue:     q,
		Heartbeat: &recordingHeartbeat{},
		Configs:   configs,
		Executor:  executor,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, disp.DispatchWake(context.Background(), hooks.WakeEvent{Text: "one", Mode: hooks.WakeNextHeartbeat}))
	disp.DispatchAgent(context.Background(), agentEvent(hooks.WakeNextHeartbeat))
	require.NoError(t, disp.Wait(context.Background()))

	evs := q.Events()
	require.Len(t, evs, 2)
	assert.Equal(t, "agent:main:first", evs[0].SessionKey)
	assert.Equal(t, "agent:main:second", evs[1].SessionKey)
}

// pingSink records callback bodies.
type pingSink struct {
	*httptest.Server
	mu     sync.Mutex
	bodies []map[string]any
	auth   []string
}

func newPingSink(t *testing.T, status int) *pingSink {
	t.Helper()
	s := &pingSink{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		s.bodies = append(s.bodies, body)
		s.auth = append(s.auth, r.Header.Get("Authorization"))
		s.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *pingSink) Bodies() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.bodies...)
}

func pingEvent(url string) hooks.PingEvent {
	return hooks.PingEvent{
		UpdateID:    "u1",
		TenantID:    "t1",
		CallbackRef: "ref-1",
		SessionKey:  "hook:ping:t1:u1",
		Callback: hooks.PingCallback{
			URL:            url,
			Token:          "secret",
			AllowedDomains: []string{"a.com", "b.com"},
		},
	}
}

func TestDispatchPing_Success(t *testing.T) {
	f := newFixture(t)
	sink := newPingSink(t, http.StatusOK)

	var got hooks.ExecutionRequest
	f.executor.EXPECT().Run(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req hooks.ExecutionRequest) (hooks.ExecutionResult, error) {
			got = req
			return hooks.ExecutionResult{Status: "ok", Summary: "Completed successfully"}, nil
		})

	before := time.Now().UTC().Add(-time.Second)
	runID := f.disp.DispatchPing(context.Background(), pingEvent(sink.URL))
	f.wait(t)

	assert.NotEqual(t, got.Job.ID, runID)
	assert.Equal(t, "PingHook", got.Job.Name)
	assert.Equal(t, hooks.WakeNow, got.Job.WakeMode)
	assert.Contains(t, got.Message, "Allowed tenant domains: a.com, b.com.")
	assert.Equal(t, "hook:ping:t1:u1", got.SessionKey)

	bodies := sink.Bodies()
	require.Len(t, bodies, 1)
	body := bodies[0]
	assert.Equal(t, runID, body["run_id"])
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "Completed successfully", body["summary"])
	assert.Equal(t, "allowed", body["policy_decision"])
	assert.Equal(t, "hook:ping:t1:u1", body["session_key"])
	assert.NotContains(t, body, "error")

	finished, err := time.Parse(time.RFC3339Nano, body["finished_at"].(string))
	require.NoError(t, err)
	assert.True(t, finished.After(before))

	assert.Equal(t, []queuedEvent{{Text: "Ping u1: Completed successfully", SessionKey: mainKey}}, f.queue.Events())
	assert.Empty(t, f.heartbeat.Reasons())
}

func TestDispatchPing_FinishedAtIsTakenAfterExecution(t *testing.T) {
	f := newFixture(t)
	sink := newPingSink(t, http.StatusOK)

	var execDone time.Time
	f.executor.EXPECT().Run(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req hooks.ExecutionRequest) (hooks.ExecutionResult, error) {
			time.Sleep(20 * time.Millisecond)
			execDone = time.Now().UTC().Truncate(time.Millisecond)
			return hooks.ExecutionResult{Status: "ok", Summary: "s", Delivered: true}, nil
		})

	f.disp.DispatchPing(context.Background(), pingEvent(sink.URL))
	f.wait(t)

	bodies := sink.Bodies()
	require.Len(t, bodies, 1)
	finished, err := time.Parse(time.RFC3339Nano, bodies[0]["finished_at"].(string))
	require.NoError(t, err)
	assert.False(t, finished.Before(execDone))
}

func TestDispatchPing_DeliveredSkipsSystemEvent(t *testing.T) {
	f := newFixture(t)
	sink := newPingSink(t, http.StatusOK)
	f.executor.EXPECT().Run(gomock.Any(), gomock.Any()).
		Return(hooks.ExecutionResult{Status: "ok", Summary: "done", Delivered: true}, nil)

	f.disp.DispatchPing(context.Background(), pingEvent(sink.URL))
	f.wait(t)

	assert.Len(t, sink.Bodies(), 1)
	assert.Empty(t, f.queue.Events())
}

func TestDispatchPing_NonOKResultIsBlocked(t *testing.T) {
	f := newFixture(t)
	sink := newPingSink(t, http.StatusOK)
	f.executor.EXPECT().Run(gomock.Any(), gomock.Any()).
		Return(hooks.ExecutionResult{Status: "denied", Summary: "Request blocked by domain allowlist"}, nil)

	f.disp.DispatchPing(context.Background(), pingEvent(sink.URL))
	f.wait(t)

	bodies := sink.Bodies()
	require.Len(t, bodies, 1)
	body := bodies[0]
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "Request blocked by domain allowlist", body["error"])
	assert.Equal(t, "blocked", body["policy_decision"])
	assert.Equal(t, "Request blocked by domain allowlist", body["policy_reason"])

	assert.Equal(t, []queuedEvent{{Text: "Ping u1: Request blocked by domain allowlist", SessionKey: mainKey}}, f.queue.Events())
}

func TestDispatchPing_ExecutorError(t *testing.T) {
	f := newFixture(t)
	sink := newPingSink(t, http.StatusOK)
	f.executor.EXPECT().Run(gomock.Any(), gomock.Any()).
		Return(hooks.ExecutionResult{Delivered: true}, errors.New("agent unavailable"))

	f.disp.DispatchPing(context.Background(), pingEvent(sink.URL))
	f.wait(t)

	assert.Equal(t, []queuedEvent{{Text: "Ping u1 (error): agent unavailable", SessionKey: mainKey}}, f.queue.Events())

	bodies := sink.Bodies()
	require.Len(t, bodies, 1)
	assert.Equal(t, "error", bodies[0]["status"])
	assert.Equal(t, "agent unavailable", bodies[0]["summary"])
	assert.Equal(t, "agent unavailable", bodies[0]["error"])
	assert.Equal(t, "allowed", bodies[0]["policy_decision"])
}

func TestDispatchPing_CallbackFailureDoesNotBlockSystemEvent(t *testing.T) {
	f := newFixture(t)
	sink := newPingSink(t, http.StatusInternalServerError)
	f.executor.EXPECT().Run(gomock.Any(), gomock.Any()).
		Return(hooks.ExecutionResult{Status: "ok", Summary: "done"}, nil)

	f.disp.DispatchPing(context.Background(), pingEvent(sink.URL))
	f.wait(t)

	assert.Len(t, sink.Bodies(), 1)
	assert.Equal(t, []queuedEvent{{Text: "Ping u1: done", SessionKey: mainKey}}, f.queue.Events())
}

func TestDispatchPing_EnqueueFailureDoesNotBlockCallback(t *testing.T) {
	f := newFixture(t)
	f.queue.err = errors.New("queue down")
	sink := newPingSink(t, http.StatusOK)
	f.executor.EXPECT().Run(gomock.Any(), gomock.Any()).
		Return(hooks.ExecutionResult{Status: "ok", Summary: "done"}, errors.New("boom"))

	f.disp.DispatchPing(context.Background(), pingEvent(sink.URL))
	f.wait(t)

	assert.Len(t, sink.Bodies(), 1)
}

func completedEvents(hub *events.Hub) []map[string]any {
	var out []map[string]any
	for _, ev := range hub.SnapshotSince(0) {
		if ev.Type != events.TypeHookCompleted {
			continue
		}
		var data map[string]any
		if err := json.Unmarshal(ev.Data, &data); err == nil {
			out = append(out, data)
		}
	}
	return out
}

func TestDispatchPing_QueuePanicDoesNotBlockCallback(t *testing.T) {
	f := newFixture(t)
	f.queue.panics = true
	sink := newPingSink(t, http.StatusOK)
	f.executor.EXPECT().Run(gomock.Any(), gomock.Any()).
		Return(hooks.ExecutionResult{}, errors.New("agent unavailable"))

	f.disp.DispatchPing(context.Background(), pingEvent(sink.URL))
	f.wait(t)

	require.Len(t, sink.Bodies(), 1)
	assert.Equal(t, "error", sink.Bodies()[0]["status"])
	completed := completedEvents(f.hub)
	require.Len(t, completed, 1)
	assert.Equal(t, hooks.OutcomeError, completed[0]["outcome"])
}

func TestDispatchAgent_HeartbeatPanicStillCompletes(t *testing.T) {
	f := newFixture(t)
	f.heartbeat.panics = true
	f.executor.EXPECT().Run(gomock.Any(), gomock.Any()).
		Return(hooks.ExecutionResult{}, errors.New("boom"))

	f.disp.DispatchAgent(context.Background(), agentEvent(hooks.WakeNow))
	f.wait(t)

	assert.Len(t, f.queue.Events(), 1)
	assert.Len(t, f.heartbeat.Reasons(), 1)
	require.Len(t, completedEvents(f.hub), 1)
}

func TestDispatchWake_QueuePanicStillWakes(t *testing.T) {
	f := newFixture(t)
	f.queue.panics = true

	err := f.disp.DispatchWake(context.Background(), hooks.WakeEvent{Text: "ping", Mode: hooks.WakeNow})
	require.Error(t, err)
	assert.Equal(t, []string{"hook:wake"}, f.heartbeat.Reasons())
}

func TestDispatch_LiveSummaryIsBounded(t *testing.T) {
	f := newFixture(t)
	long := strings.Repeat("é", 5000)
	f.executor.EXPECT().Run(gomock.Any(), gomock.Any()).
		Return(hooks.ExecutionResult{Status: "ok", Summary: long}, nil)

	f.disp.DispatchAgent(context.Background(), agentEvent(hooks.WakeNextHeartbeat))
	f.wait(t)

	completed := completedEvents(f.hub)
	require.Len(t, completed, 1)
	summary := completed[0]["summary"].(string)
	assert.Less(t, len(summary), len(long))
	assert.True(t, utf8.ValidString(summary))
	assert.Equal(t, []queuedEvent{{Text: "Hook Gmail: " + long, SessionKey: mainKey}}, f.queue.Events())
}

func TestDispatch_PublishesLiveEvents(t *testing.T) {
	f := newFixture(t)
	f.executor.EXPECT().Run(gomock.Any(), gomock.Any()).
		Return(hooks.ExecutionResult{Status: "ok", Summary: "done"}, nil)

	runID := f.disp.DispatchAgent(context.Background(), agentEvent(hooks.WakeNextHeartbeat))
	f.wait(t)

	var types []string
	for _, ev := range f.hub.SnapshotSince(0) {
		types = append(types, ev.Type)
		var data map[string]any
		require.NoError(t, json.Unmarshal(ev.Data, &data))
		assert.Equal(t, runID, data["run_id"])
	}
	assert.Equal(t, []string{events.TypeHookDispatched, events.TypeHookCompleted}, types)
}

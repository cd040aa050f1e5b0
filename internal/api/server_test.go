package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/hookgw/internal/events"
	"github.com/mattjoyce/hookgw/internal/runlog"
)

type fakeRuns map[string]*runlog.Run

func (f fakeRuns) Get(ctx context.Context, runID string) (*runlog.Run, error) {
	if runID == "broken" {
		return nil, errors.New("database is locked")
	}
	run, ok := f[runID]
	if !ok {
		return nil, runlog.ErrRunNotFound
	}
	return run, nil
}

func newTestServer(t *testing.T, cfg Config, deps Deps) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(New(cfg, deps, logger).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, Config{}, Deps{
		InFlight:    func() int64 { return 3 },
		Fingerprint: func() string { return "abc123" },
	})

	resp := get(t, srv.URL+"/healthz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body HealthzResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, int64(3), body.InFlight)
	assert.Equal(t, "abc123", body.ConfigFingerprint)
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "hookgw_hook_inflight 0\n")
	})
	srv := newTestServer(t, Config{Token: "secret"}, Deps{Metrics: metrics})

	resp := get(t, srv.URL+"/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(b), "hookgw_hook_inflight")
}

func TestGetRun(t *testing.T) {
	summary := "3 new emails"
	finished := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	runs := fakeRuns{
		"run-1": {
			RunID:      "run-1",
			JobID:      "job-1",
			JobName:    "Gmail",
			SessionKey: "hook:gmail:1",
			Lane:       "cron",
			Status:     runlog.StatusSucceeded,
			Summary:    &summary,
			StartedAt:  finished.Add(-5 * time.Second),
			FinishedAt: &finished,
		},
	}
	srv := newTestServer(t, Config{}, Deps{Runs: runs})

	resp := get(t, srv.URL+"/runs/run-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body RunResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "job-1", body.JobID)
	assert.Equal(t, "succeeded", body.Status)
	require.NotNil(t, body.Summary)
	assert.Equal(t, summary, *body.Summary)
	assert.Nil(t, body.Error)

	assert.Equal(t, http.StatusNotFound, get(t, srv.URL+"/runs/missing", "").StatusCode)
	assert.Equal(t, http.StatusInternalServerError, get(t, srv.URL+"/runs/broken", "").StatusCode)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t, Config{Token: "secret"}, Deps{Runs: fakeRuns{}})

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "nope", http.StatusUnauthorized},
		{"valid", "secret", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := get(t, srv.URL+"/runs/x", tt.token)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/healthz", "").StatusCode)
}

func TestEventsStreamsSnapshotAndLive(t *testing.T) {
	hub := events.NewHub(16)
	hub.Publish(events.TypeHookDispatched, map[string]any{"run_id": "r1"})
	hub.Publish(events.TypeHookCompleted, map[string]any{"run_id": "r1"})

	srv := newTestServer(t, Config{}, Deps{Hub: hub})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", "1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() []string {
		var lines []string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			if line == "" {
				return lines
			}
			lines = append(lines, line)
		}
	}

	first := readEvent()
	assert.Equal(t, []string{"id: 2", "event: hook.completed", `data: {"run_id":"r1"}`}, first)

	// The subscription exists once the snapshot has been flushed.
	hub.Publish(events.TypeHeartbeat, map[string]any{"reason": "hook:wake"})

	live := readEvent()
	require.Len(t, live, 3)
	assert.Equal(t, "event: heartbeat", live[1])
}

func TestEventsTypeFilter(t *testing.T) {
	hub := events.NewHub(16)
	hub.Publish(events.TypeHeartbeat, map[string]any{"reason": "interval"})
	hub.Publish(events.TypeHookCallback, map[string]any{"run_id": "r9"})

	srv := newTestServer(t, Config{}, Deps{Hub: hub})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?types=hook.callback,%20hook.completed", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "id: 2\n", line, "heartbeat is filtered out of the replay")
}

func TestParseTypeFilter(t *testing.T) {
	assert.Nil(t, parseTypeFilter(" "))
	assert.Equal(t, map[string]bool{"a": true, "b": true}, parseTypeFilter("a, b,,"))
}

func TestParseLastEventID(t *testing.T) {
	assert.Equal(t, int64(0), parseLastEventID(""))
	assert.Equal(t, int64(0), parseLastEventID("abc"))
	assert.Equal(t, int64(0), parseLastEventID("-4"))
	assert.Equal(t, int64(42), parseLastEventID("42"))
}

func TestOpenAPI(t *testing.T) {
	srv := newTestServer(t, Config{HooksBasePath: "/ext/hooks/"}, Deps{})

	resp := get(t, srv.URL+"/openapi.json", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	doc, err := openapi3.NewLoader().LoadFromData(raw)
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))

	for _, p := range []string{"/ext/hooks/wake", "/ext/hooks/agent", "/ext/hooks/ping", "/runs/{runID}"} {
		assert.NotNil(t, doc.Paths.Value(p), p)
	}
	assert.Equal(t, []string{"message"}, doc.Paths.Value("/ext/hooks/agent").Post.RequestBody.Value.Content.Get("application/json").Schema.Value.Required)
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, Config{CORSOrigins: []string{"https://dash.example"}}, Deps{})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dash.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "https://dash.example", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"))
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(Config{Listen: "127.0.0.1:0"}, Deps{}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}

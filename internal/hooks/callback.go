package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mattjoyce/hookgw/internal/events"
)

// Callback delivery results, as counted by Metrics.
const (
	CallbackOK             = "ok"
	CallbackHTTPError      = "http_error"
	CallbackTransportError = "transport_error"
)

// CallbackPayload is the JSON body posted to a ping callback URL.
type CallbackPayload struct {
	RunID          string   `json:"run_id"`
	UpdateID       string   `json:"update_id"`
	TenantID       string   `json:"tenant_id"`
	CallbackRef    string   `json:"callback_ref"`
	Status         string   `json:"status"`
	Summary        string   `json:"summary"`
	Error          string   `json:"error,omitempty"`
	SessionKey     string   `json:"session_key"`
	FinishedAt     string   `json:"finished_at"`
	PolicyDecision Decision `json:"policy_decision"`
	PolicyReason   string   `json:"policy_reason,omitempty"`
}

// NewCallbackPayload assembles the callback body, classifying the result.
func NewCallbackPayload(ev PingEvent, res CallbackResult) CallbackPayload {
	policy := ClassifyPolicy(res.Summary, res.Error)
	return CallbackPayload{
		RunID:          res.RunID,
		UpdateID:       ev.UpdateID,
		TenantID:       ev.TenantID,
		CallbackRef:    ev.CallbackRef,
		Status:         res.Status,
		Summary:        res.Summary,
		Error:          res.Error,
		SessionKey:     res.SessionKey,
		FinishedAt:     res.FinishedAt,
		PolicyDecision: policy.Decision,
		PolicyReason:   policy.Reason,
	}
}

// CallbackPoster posts ping outcomes. Delivery is a single attempt and Post
// never reports failure to its caller.
type CallbackPoster struct {
	client  *http.Client
	hub     *events.Hub
	metrics Metrics
	logger  *slog.Logger
}

// NewCallbackPoster returns a poster using client, or http.DefaultClient when nil.
func NewCallbackPoster(client *http.Client, hub *events.Hub, metrics Metrics, logger *slog.Logger) *CallbackPoster {
	if client == nil {
		client = http.DefaultClient
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &CallbackPoster{
		client:  client,
		hub:     hub,
		metrics: metrics,
		logger:  logger,
	}
}

// Post sends one POST to ev.Callback.URL describing res.
func (p *CallbackPoster) Post(ctx context.Context, ev PingEvent, res CallbackResult) {
	logger := p.logger.With("run_id", res.RunID, "callback_ref", ev.CallbackRef)
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("hook ping callback error", "error", fmt.Sprint(r))
			p.record(ev, res, CallbackTransportError, 0)
		}
	}()

	body, err := json.Marshal(NewCallbackPayload(ev, res))
	if err != nil {
		logger.Warn("hook ping callback error", "error", err)
		p.record(ev, res, CallbackTransportError, 0)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ev.Callback.URL, bytes.NewReader(body))
	if err != nil {
		logger.Warn("hook ping callback error", "error", err)
		p.record(ev, res, CallbackTransportError, 0)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if ev.Callback.Token != "" {
		req.Header.Set("Authorization", "Bearer "+ev.Callback.Token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		logger.Warn("hook ping callback error", "error", err)
		p.record(ev, res, CallbackTransportError, 0)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn("hook ping callback failed", "status", resp.StatusCode)
		p.record(ev, res, CallbackHTTPError, resp.StatusCode)
		return
	}

	logger.Debug("hook ping callback delivered", "status", resp.StatusCode)
	p.record(ev, res, CallbackOK, resp.StatusCode)
}

func (p *CallbackPoster) record(ev PingEvent, res CallbackResult, result string, httpStatus int) {
	p.metrics.CallbackDelivered(result)
	p.hub.Publish(events.TypeHookCallback, map[string]any{
		"run_id":       res.RunID,
		"callback_ref": ev.CallbackRef,
		"status":       res.Status,
		"result":       result,
		"http_status":  httpStatus,
	})
}

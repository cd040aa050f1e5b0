package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mattjoyce/hookgw/internal/api"
	"github.com/mattjoyce/hookgw/internal/config"
	"github.com/mattjoyce/hookgw/internal/hooks"
	"github.com/mattjoyce/hookgw/internal/webhook"
)

const clientTimeout = 10 * time.Second

func runHookSend(action string, args []string) int {
	fs := flag.NewFlagSet("hook "+action, flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Print the raw gateway response")

	text := fs.String("text", "", "System event text (wake)")
	mode := fs.String("mode", "", "Wake mode: now or next-heartbeat (wake)")

	message := fs.String("message", "", "Agent prompt (agent, ping)")
	name := fs.String("name", "", "Hook name used in summaries (agent)")
	agentID := fs.String("agent", "", "Target agent id (agent, ping)")
	sessionKey := fs.String("session-key", "", "Session key for the isolated turn (agent)")
	wakeMode := fs.String("wake-mode", "", "Wake mode for the summary (agent)")
	timeout := fs.Int("timeout", 0, "Turn timeout in seconds (agent)")
	noDeliver := fs.Bool("no-deliver", false, "Ask the agent not to deliver the reply itself (agent)")

	tenant := fs.String("tenant", "", "Tenant id (ping)")
	update := fs.String("update", "", "Update id (ping)")
	callbackURL := fs.String("callback-url", "", "Callback URL (ping)")
	callbackToken := fs.String("callback-token", "", "Bearer token sent to the callback (ping)")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	var payload any
	switch action {
	case "wake":
		payload = hooks.WakeEvent{Text: *text, Mode: hooks.WakeMode(*mode)}
	case "agent":
		ev := hooks.AgentEvent{
			AgentID:    *agentID,
			Name:       *name,
			SessionKey: *sessionKey,
			Message:    *message,
			WakeMode:   hooks.WakeMode(*wakeMode),
		}
		if *timeout > 0 {
			ev.TimeoutSeconds = timeout
		}
		if *noDeliver {
			deliver := false
			ev.Deliver = &deliver
		}
		payload = ev
	case "ping":
		payload = hooks.PingEvent{
			UpdateID: *update,
			TenantID: *tenant,
			AgentID:  *agentID,
			Message:  *message,
			Callback: hooks.PingCallback{URL: *callbackURL, Token: *callbackToken},
		}
	}

	cfg, err := loadClientConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if !cfg.Hooks.Enabled {
		fmt.Fprintln(os.Stderr, "hooks.enabled is false in this config; the gateway will not accept hooks")
		return 1
	}

	body, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode hook: %v\n", err)
		return 1
	}

	status, respBody, err := postHook(context.Background(), cfg, action, body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Hook request failed: %v\n", err)
		return 1
	}

	if *jsonOut {
		fmt.Println(strings.TrimSpace(string(respBody)))
		if status >= 300 {
			return 1
		}
		return 0
	}

	if status >= 300 {
		var errResp webhook.ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			fmt.Fprintf(os.Stderr, "Gateway rejected hook (%d): %s\n", status, errResp.Error)
		} else {
			fmt.Fprintf(os.Stderr, "Gateway rejected hook (%d)\n", status)
		}
		return 1
	}

	if action == "wake" {
		var resp webhook.WakeResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			fmt.Fprintf(os.Stderr, "Unexpected gateway response: %v\n", err)
			return 1
		}
		fmt.Printf("wake accepted (mode: %s)\n", resp.Mode)
		return 0
	}

	var resp webhook.RunResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Unexpected gateway response: %v\n", err)
		return 1
	}
	fmt.Printf("%s accepted\nrun_id: %s\n", action, resp.RunID)
	return 0
}

// postHook sends body to the hook endpoint of kind, authenticating and
// signing it the way the gateway described by cfg expects.
func postHook(ctx context.Context, cfg *config.Config, kind string, body []byte) (int, []byte, error) {
	hookCfg, err := webhook.FromGlobalConfig(cfg)
	if err != nil {
		return 0, nil, err
	}
	target := localURL(hookCfg.Listen) + strings.TrimSuffix(hookCfg.BasePath, "/") + "/" + kind

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if hookCfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+hookCfg.Token)
	}
	if hookCfg.SigningSecret != "" {
		req.Header.Set(hookCfg.SignatureHeader, webhook.SignBody(body, hookCfg.SigningSecret))
	}

	client := &http.Client{Timeout: clientTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func runSystemStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output status as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadClientConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if !cfg.API.Enabled {
		fmt.Fprintln(os.Stderr, "api.enabled is false in this config; status is served by the ops API")
		return 1
	}

	health, err := fetchHealth(context.Background(), localURL(cfg.API.Listen))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Gateway unreachable: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, err := json.MarshalIndent(health, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render status JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
	} else {
		fmt.Printf("status: %s\n", health.Status)
		fmt.Printf("uptime: %s\n", time.Duration(health.UptimeSeconds)*time.Second)
		fmt.Printf("in_flight: %d\n", health.InFlight)
		if health.ConfigFingerprint != "" {
			fmt.Printf("config_fingerprint: %s\n", health.ConfigFingerprint)
			if cfg.Fingerprint != "" && cfg.Fingerprint != health.ConfigFingerprint {
				fmt.Println("warning: running gateway has not picked up the config on disk yet")
			}
		}
	}

	if health.Status != "ok" {
		return 1
	}
	return 0
}

func fetchHealth(ctx context.Context, baseURL string) (*api.HealthzResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/healthz", nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: clientTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("healthz returned %d", resp.StatusCode)
	}
	var health api.HealthzResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("decode healthz: %w", err)
	}
	return &health, nil
}

func loadClientConfig(configPath string) (*config.Config, error) {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

// localURL turns a listen address into a base URL reachable from this host.
// Wildcard hosts are replaced with the loopback address.
func localURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

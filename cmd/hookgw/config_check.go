package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mattjoyce/hookgw/internal/config"
)

type configCheckResult struct {
	Valid       bool     `json:"valid"`
	Path        string   `json:"path"`
	Fingerprint string   `json:"fingerprint,omitempty"`
	Error       string   `json:"error,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("config check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	path, err := resolveConfigPath(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
		return 1
	}

	result := checkConfig(path)

	if *jsonOut {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
	} else if result.Valid {
		fmt.Printf("Configuration valid: %s\n", result.Path)
		fmt.Printf("fingerprint: %s\n", result.Fingerprint)
		for _, w := range result.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
	} else {
		fmt.Fprintf(os.Stderr, "Configuration invalid: %s\n", result.Error)
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func checkConfig(path string) configCheckResult {
	result := configCheckResult{Path: path}
	cfg, err := config.Load(path)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Valid = true
	result.Fingerprint = cfg.Fingerprint
	result.Warnings = configWarnings(cfg)
	return result
}

// configWarnings flags settings that load fine but leave the gateway unable
// to do useful work.
func configWarnings(cfg *config.Config) []string {
	var warnings []string
	if strings.TrimSpace(cfg.Agent.Command) == "" {
		warnings = append(warnings, "agent.command is empty; agent and ping hooks will fail")
	}
	if !cfg.Hooks.Enabled {
		warnings = append(warnings, "hooks.enabled is false; no hook endpoint will be served")
	}
	if cfg.API.Enabled && cfg.API.Token == "" {
		warnings = append(warnings, "api.token is empty; /events and /runs are unauthenticated")
	}
	return warnings
}

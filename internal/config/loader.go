package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, interpolates, defaults and validates the configuration file at configPath.
// A directory path is resolved to config.yaml inside it.
func Load(configPath string) (*Config, error) {
	absPath, err := resolvePath(configPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", absPath, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	cfg.Fingerprint = Fingerprint(data)
	return cfg, nil
}

// Parse decodes YAML bytes into a validated Config with defaults applied.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg = applyConfigDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func resolvePath(configPath string) (string, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}
	return absPath, nil
}

// DiscoverConfigPath finds the config file by checking standard locations.
// Priority order: $HOOKGW_CONFIG, ~/.config/hookgw/config.yaml, /etc/hookgw/config.yaml, ./config.yaml
func DiscoverConfigPath() (string, error) {
	if p := os.Getenv("HOOKGW_CONFIG"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	candidates := []string{}
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "hookgw", "config.yaml"))
	}
	candidates = append(candidates, "/etc/hookgw/config.yaml", "./config.yaml")

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config found (checked: $HOOKGW_CONFIG, ~/.config/hookgw, /etc/hookgw, ./config.yaml)")
}

// applyConfigDefaults merges default values into config where not explicitly set.
func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	cfg.Service.LogLevel = strings.ToLower(cfg.Service.LogLevel)
	if cfg.Service.DrainTimeout == 0 {
		cfg.Service.DrainTimeout = defaults.Service.DrainTimeout
	}

	if cfg.State.Path == "" {
		cfg.State.Path = defaults.State.Path
	}

	if cfg.Session.Scope == "" {
		cfg.Session.Scope = defaults.Session.Scope
	}
	if strings.TrimSpace(cfg.Session.MainKey) == "" {
		cfg.Session.MainKey = defaults.Session.MainKey
	}
	if strings.TrimSpace(cfg.Session.DefaultAgent) == "" {
		cfg.Session.DefaultAgent = defaults.Session.DefaultAgent
	}

	if cfg.Hooks.Listen == "" {
		cfg.Hooks.Listen = defaults.Hooks.Listen
	}
	if cfg.Hooks.BasePath == "" {
		cfg.Hooks.BasePath = defaults.Hooks.BasePath
	}
	cfg.Hooks.BasePath = "/" + strings.Trim(cfg.Hooks.BasePath, "/")
	if cfg.Hooks.SignatureHeader == "" {
		cfg.Hooks.SignatureHeader = defaults.Hooks.SignatureHeader
	}
	if cfg.Hooks.MaxBodySize == "" {
		cfg.Hooks.MaxBodySize = defaults.Hooks.MaxBodySize
	}

	if cfg.Heartbeat.Coalesce == 0 {
		cfg.Heartbeat.Coalesce = defaults.Heartbeat.Coalesce
	}

	if cfg.Agent.Timeout == 0 {
		cfg.Agent.Timeout = defaults.Agent.Timeout
	}

	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}

	return cfg
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Left in place; validate reports it if the field is required.
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.DrainTimeout < 0 {
		return fmt.Errorf("service.drain_timeout must not be negative")
	}

	if cfg.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}

	if cfg.Session.Scope != "per-sender" && cfg.Session.Scope != "global" {
		return fmt.Errorf("session.scope must be one of: per-sender, global (got %q)", cfg.Session.Scope)
	}

	if cfg.Hooks.Enabled {
		if err := checkResolved("hooks.token", cfg.Hooks.Token); err != nil {
			return err
		}
		if strings.TrimSpace(cfg.Hooks.Token) == "" {
			return fmt.Errorf("hooks.token is required when hooks.enabled is true")
		}
		if err := checkResolved("hooks.signing_secret", cfg.Hooks.SigningSecret); err != nil {
			return err
		}
		if cfg.Hooks.BasePath == "/" {
			return fmt.Errorf("hooks.base_path must not be '/'")
		}
		if _, err := ParseByteSize(cfg.Hooks.MaxBodySize); err != nil {
			return fmt.Errorf("hooks.max_body_size: %w", err)
		}
		if strings.TrimSpace(cfg.Agent.Command) == "" {
			return fmt.Errorf("agent.command is required when hooks.enabled is true")
		}
	}
	if cfg.Hooks.CallbackTimeout < 0 {
		return fmt.Errorf("hooks.callback_timeout must not be negative")
	}
	if cfg.Hooks.PingDedupeWindow < 0 {
		return fmt.Errorf("hooks.ping_dedupe_window must not be negative")
	}

	if cfg.Heartbeat.Every < 0 {
		return fmt.Errorf("heartbeat.every must not be negative")
	}
	if cfg.Heartbeat.Coalesce < 0 {
		return fmt.Errorf("heartbeat.coalesce must not be negative")
	}

	if cfg.Agent.Timeout < 0 {
		return fmt.Errorf("agent.timeout must not be negative")
	}

	if err := checkResolved("api.token", cfg.API.Token); err != nil {
		return err
	}
	return nil
}

// checkResolved reports a ${VAR} placeholder that the environment did not satisfy.
func checkResolved(field, value string) error {
	if !envVarPattern.MatchString(value) {
		return nil
	}
	matches := envVarPattern.FindStringSubmatch(value)
	if len(matches) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, matches[1])
	}
	return fmt.Errorf("%s: unresolved environment variable", field)
}

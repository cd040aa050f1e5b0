package webhook

import (
	"fmt"
	"strings"

	"github.com/mattjoyce/hookgw/internal/config"
)

// FromGlobalConfig converts the hooks section of cfg to a webhook.Config.
func FromGlobalConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("config is nil")
	}
	hc := cfg.Hooks

	token := strings.TrimSpace(hc.Token)
	if token == "" {
		return Config{}, fmt.Errorf("hooks.token is required")
	}

	maxBody := int64(DefaultMaxBodySize)
	if hc.MaxBodySize != "" {
		n, err := config.ParseByteSize(hc.MaxBodySize)
		if err != nil {
			return Config{}, fmt.Errorf("hooks.max_body_size %q: %w", hc.MaxBodySize, err)
		}
		maxBody = n
	}

	basePath := "/" + strings.Trim(strings.TrimSpace(hc.BasePath), "/")
	if basePath == "/" {
		basePath = DefaultBasePath
	}

	header := hc.SignatureHeader
	if header == "" {
		header = DefaultSignatureHeader
	}

	return Config{
		Listen:                     hc.Listen,
		BasePath:                   basePath,
		Token:                      token,
		SigningSecret:              hc.SigningSecret,
		SignatureHeader:            header,
		MaxBodySize:                maxBody,
		DefaultAgent:               cfg.Session.DefaultAgent,
		AllowUnsafeExternalContent: hc.AllowUnsafeExternalContent,
		PingDedupeWindow:           hc.PingDedupeWindow,
	}, nil
}

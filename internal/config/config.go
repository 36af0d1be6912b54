// Package config loads purviewgate configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr     = ":27780"
	defaultGraphBaseURL   = "https://graph.microsoft.com/v1.0"
	defaultRequestTimeout = 30 * time.Second
)

// Config holds service runtime configuration.
type Config struct {
	ListenAddr string
	LogLevel   string

	GraphBaseURL   string
	BackendBaseURL string

	// PolicyMode is the content gate enforcement mode: strict or lenient.
	PolicyMode string

	// OAuth2 client-credentials settings. When TokenURL is empty the service
	// falls back to static token resolution.
	TokenURL     string
	ClientID     string
	ClientSecret string

	GraphScopes   []string
	BackendScopes []string

	RequestTimeout time.Duration

	AllowConfigFileToken bool
	TokenConfigPath      string

	LabelResolutionEnabled bool
	DevMode                bool
}

// Load returns configuration parsed from environment variables.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:             envOrDefault("PURVIEWGATE_LISTEN_ADDR", defaultListenAddr),
		LogLevel:               strings.ToLower(strings.TrimSpace(envOrDefault("PURVIEWGATE_LOG_LEVEL", "info"))),
		GraphBaseURL:           envOrDefault("PURVIEWGATE_GRAPH_BASE_URL", defaultGraphBaseURL),
		BackendBaseURL:         envOrDefault("PURVIEWGATE_BACKEND_BASE_URL", ""),
		PolicyMode:             strings.ToLower(strings.TrimSpace(envOrDefault("PURVIEWGATE_POLICY_MODE", "strict"))),
		TokenURL:               envOrDefault("PURVIEWGATE_TOKEN_URL", ""),
		ClientID:               envOrDefault("PURVIEWGATE_CLIENT_ID", ""),
		ClientSecret:           envOrDefault("PURVIEWGATE_CLIENT_SECRET", ""),
		GraphScopes:            envList("PURVIEWGATE_GRAPH_SCOPES", []string{"https://graph.microsoft.com/.default"}),
		BackendScopes:          envList("PURVIEWGATE_BACKEND_SCOPES", nil),
		RequestTimeout:         envPositiveDuration("PURVIEWGATE_REQUEST_TIMEOUT", defaultRequestTimeout),
		AllowConfigFileToken:   envBool("PURVIEWGATE_ALLOW_CONFIG_FILE_TOKEN", false),
		TokenConfigPath:        envOrDefault("PURVIEWGATE_TOKEN_CONFIG_PATH", ""),
		LabelResolutionEnabled: envBool("PURVIEWGATE_LABEL_RESOLUTION_ENABLED", true),
		DevMode:                envBool("PURVIEWGATE_DEV_MODE", false),
	}

	switch cfg.PolicyMode {
	case "strict", "lenient":
	default:
		return Config{}, fmt.Errorf("invalid PURVIEWGATE_POLICY_MODE %q (allowed: strict|lenient)", cfg.PolicyMode)
	}

	if strings.TrimSpace(cfg.GraphBaseURL) == "" {
		return Config{}, fmt.Errorf("PURVIEWGATE_GRAPH_BASE_URL is required")
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if cfg.TokenURL != "" && strings.TrimSpace(cfg.ClientID) == "" {
		return Config{}, fmt.Errorf("PURVIEWGATE_CLIENT_ID is required when PURVIEWGATE_TOKEN_URL is set")
	}

	return cfg, nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultVal
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		switch strings.ToLower(value) {
		case "yes", "on":
			return true
		case "no", "off":
			return false
		default:
			return defaultVal
		}
	}
	return parsed
}

func envList(key string, defaultVal []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultVal
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return defaultVal
	}
	return result
}

func envPositiveDuration(key string, defaultVal time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultVal
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return defaultVal
	}
	return parsed
}

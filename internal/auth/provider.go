// Package auth resolves bearer credentials for the backend API and the
// Microsoft Graph data-security surface.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
	"gopkg.in/yaml.v3"

	"github.com/mattgotteiner/purviewgate/internal/session"
)

// TokenProvider acquires a bearer credential for a set of permission scopes.
type TokenProvider interface {
	Acquire(ctx context.Context, scopes []string) (session.Credential, error)
}

// ClientCredentialsProvider acquires tokens from an OAuth2 token endpoint
// using the client-credentials grant.
type ClientCredentialsProvider struct {
	tokenURL     string
	clientID     string
	clientSecret string
	displayName  string
}

// NewClientCredentialsProvider creates an OAuth2 provider.
func NewClientCredentialsProvider(tokenURL, clientID, clientSecret, displayName string) (*ClientCredentialsProvider, error) {
	if strings.TrimSpace(tokenURL) == "" {
		return nil, fmt.Errorf("auth: token URL is required")
	}
	if strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("auth: client id is required")
	}
	return &ClientCredentialsProvider{
		tokenURL:     strings.TrimSpace(tokenURL),
		clientID:     strings.TrimSpace(clientID),
		clientSecret: clientSecret,
		displayName:  displayName,
	}, nil
}

// Acquire requests a token scoped to the given permission scopes.
func (p *ClientCredentialsProvider) Acquire(ctx context.Context, scopes []string) (session.Credential, error) {
	cfg := clientcredentials.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		TokenURL:     p.tokenURL,
		Scopes:       normalizeScopes(scopes),
	}

	token, err := cfg.Token(ctx)
	if err != nil {
		return session.Credential{}, fmt.Errorf("auth: acquiring token: %w", err)
	}

	return session.Credential{
		Token:       token.AccessToken,
		DisplayName: p.displayName,
		AcquiredAt:  time.Now().UTC(),
		ExpiresAt:   token.Expiry,
	}, nil
}

// StaticTokenSource identifies where a static token was resolved from.
type StaticTokenSource string

const (
	// StaticSourceEnv is the provider-specific environment variable.
	StaticSourceEnv StaticTokenSource = "env"
	// StaticSourceSharedEnv is the shared PURVIEWGATE_TOKEN variable.
	StaticSourceSharedEnv StaticTokenSource = "shared_env"
	// StaticSourceConfigFile is the YAML config file auth.token field.
	StaticSourceConfigFile StaticTokenSource = "config_file"
)

// StaticOptions controls static token resolution.
type StaticOptions struct {
	// EnvVar is the provider-specific environment variable, checked first.
	EnvVar string
	// SharedEnvVar is the shared fallback variable, checked second.
	SharedEnvVar string
	// AllowConfigFile enables the YAML config file fallback.
	AllowConfigFile bool
	// ConfigPath overrides the default ~/.purviewgate/config.yaml location.
	ConfigPath string
	// DisplayName is attached to resolved credentials.
	DisplayName string
}

type configFile struct {
	Auth struct {
		Token string `yaml:"token"`
	} `yaml:"auth"`
}

// StaticProvider resolves a pre-issued token using deterministic precedence:
// provider env var, shared env var, then (when enabled) the config file.
// Scopes are ignored; a static token is already bound to its audience.
type StaticProvider struct {
	opts StaticOptions
}

// NewStaticProvider creates a static token provider.
func NewStaticProvider(opts StaticOptions) *StaticProvider {
	return &StaticProvider{opts: opts}
}

// Acquire resolves the static token. A missing token yields an empty
// credential with no error; malformed config degrades the same way.
func (p *StaticProvider) Acquire(_ context.Context, _ []string) (session.Credential, error) {
	resolution, err := p.resolve()
	if err != nil {
		return session.Credential{}, err
	}
	if resolution.Token == "" {
		return session.Credential{}, nil
	}
	return session.Credential{
		Token:       resolution.Token,
		DisplayName: p.opts.DisplayName,
		AcquiredAt:  time.Now().UTC(),
	}, nil
}

// StaticResolution contains a resolved static token and its source.
type StaticResolution struct {
	Token  string
	Source StaticTokenSource
}

func (p *StaticProvider) resolve() (StaticResolution, error) {
	if p.opts.EnvVar != "" {
		if token := strings.TrimSpace(os.Getenv(p.opts.EnvVar)); token != "" {
			return StaticResolution{Token: token, Source: StaticSourceEnv}, nil
		}
	}
	if p.opts.SharedEnvVar != "" {
		if token := strings.TrimSpace(os.Getenv(p.opts.SharedEnvVar)); token != "" {
			return StaticResolution{Token: token, Source: StaticSourceSharedEnv}, nil
		}
	}

	if !p.opts.AllowConfigFile {
		return StaticResolution{}, nil
	}

	configPath := expandPath(defaultIfEmpty(strings.TrimSpace(p.opts.ConfigPath), "~/.purviewgate/config.yaml"))
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		return StaticResolution{}, nil
	default:
		return StaticResolution{}, fmt.Errorf("auth: reading config file token source: %w", err)
	}

	var cfg configFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		// Malformed config degrades to "no token" rather than failing login.
		return StaticResolution{}, nil
	}

	token := strings.TrimSpace(cfg.Auth.Token)
	if token == "" {
		return StaticResolution{}, nil
	}
	return StaticResolution{Token: token, Source: StaticSourceConfigFile}, nil
}

func normalizeScopes(scopes []string) []string {
	seen := make(map[string]struct{}, len(scopes))
	result := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		trimmed := strings.TrimSpace(scope)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

func defaultIfEmpty(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/"))
	}
	return filepath.Clean(path)
}

// Package main is the entry point for the purviewgate service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mattgotteiner/purviewgate/internal/audit"
	"github.com/mattgotteiner/purviewgate/internal/auth"
	"github.com/mattgotteiner/purviewgate/internal/backend"
	"github.com/mattgotteiner/purviewgate/internal/config"
	"github.com/mattgotteiner/purviewgate/internal/gate"
	"github.com/mattgotteiner/purviewgate/internal/labels"
	"github.com/mattgotteiner/purviewgate/internal/policy"
	"github.com/mattgotteiner/purviewgate/internal/scope"
	"github.com/mattgotteiner/purviewgate/internal/server"
	"github.com/mattgotteiner/purviewgate/internal/session"
	"github.com/mattgotteiner/purviewgate/pkg/graph"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("service", "purviewgate").Str("version", version).Logger()

	logger := log.With().Str("component", "main").Logger()

	policyMode, err := policy.ParseMode(cfg.PolicyMode)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid policy mode configuration")
	}

	store := session.NewStore()

	graphAuth, backendAuth, err := buildProviders(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build token providers")
	}

	graphClient, err := graph.New(graph.Config{
		BaseURL: cfg.GraphBaseURL,
		Timeout: cfg.RequestTimeout,
		TokenRefresh: func(ctx context.Context) (string, error) {
			cred, ok := store.Credential(session.AudienceGraph)
			if !ok {
				return "", errors.New("no valid Graph credential in session")
			}
			return cred.Token, nil
		},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build Graph client")
	}

	if cfg.BackendBaseURL == "" {
		logger.Fatal().Msg("PURVIEWGATE_BACKEND_BASE_URL is required")
	}
	chatClient, err := backend.New(backend.Config{
		BaseURL: cfg.BackendBaseURL,
		TokenRefresh: func(ctx context.Context) (string, error) {
			cred, ok := store.Credential(session.AudienceBackend)
			if !ok {
				// The backend may run unauthenticated in dev mode.
				return "", nil
			}
			return cred.Token, nil
		},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build backend client")
	}

	auditLog := audit.NewLogger(log.Logger)
	scopeCache := scope.New(graphClient, store, log.Logger)
	contentGate := gate.New(graphClient, store, auditLog, gate.Config{
		Mode:       policyMode,
		AppName:    "purviewgate",
		AppVersion: version,
	}, log.Logger)
	labelResolver := labels.NewResolver(graphClient, cfg.LabelResolutionEnabled, log.Logger)

	logger.Info().
		Str("policy_mode", string(policyMode)).
		Str("graph_base_url", cfg.GraphBaseURL).
		Bool("label_resolution", cfg.LabelResolutionEnabled).
		Msg("content gate initialized")

	gateway := server.New(cfg, version, commit, buildDate, server.Deps{
		Store:       store,
		Scopes:      scopeCache,
		Gate:        contentGate,
		Chat:        chatClient,
		Labels:      labelResolver,
		BackendAuth: backendAuth,
		GraphAuth:   graphAuth,
	}, log.Logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           gateway.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if serveErr := srv.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			errCh <- serveErr
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case serveErr := <-errCh:
		logger.Error().Err(serveErr).Msg("HTTP server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error().Err(shutdownErr).Msg("HTTP server shutdown error")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped gracefully")
}

// buildProviders selects OAuth2 client-credentials providers when a token
// endpoint is configured, and the static resolution chain otherwise.
func buildProviders(cfg config.Config) (graphAuth, backendAuth auth.TokenProvider, err error) {
	if cfg.TokenURL != "" {
		provider, err := auth.NewClientCredentialsProvider(cfg.TokenURL, cfg.ClientID, cfg.ClientSecret, "")
		if err != nil {
			return nil, nil, err
		}
		return provider, provider, nil
	}

	graphAuth = auth.NewStaticProvider(auth.StaticOptions{
		EnvVar:          "PURVIEWGATE_GRAPH_TOKEN",
		SharedEnvVar:    "PURVIEWGATE_TOKEN",
		AllowConfigFile: cfg.AllowConfigFileToken,
		ConfigPath:      cfg.TokenConfigPath,
	})
	backendAuth = auth.NewStaticProvider(auth.StaticOptions{
		EnvVar:          "PURVIEWGATE_BACKEND_TOKEN",
		SharedEnvVar:    "PURVIEWGATE_TOKEN",
		AllowConfigFile: cfg.AllowConfigFileToken,
		ConfigPath:      cfg.TokenConfigPath,
	})
	return graphAuth, backendAuth, nil
}

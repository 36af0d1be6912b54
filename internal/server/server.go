// Package server exposes the chat gateway HTTP surface: session login and
// logout, and the DLP-gated chat route.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/mattgotteiner/purviewgate/internal/auth"
	"github.com/mattgotteiner/purviewgate/internal/backend"
	"github.com/mattgotteiner/purviewgate/internal/config"
	"github.com/mattgotteiner/purviewgate/internal/gate"
	"github.com/mattgotteiner/purviewgate/internal/labels"
	"github.com/mattgotteiner/purviewgate/internal/scope"
	"github.com/mattgotteiner/purviewgate/internal/session"
)

// ChatBackend is the slice of the backend client the gateway consumes.
type ChatBackend interface {
	Chat(ctx context.Context, req backend.ChatRequest) (*backend.ChatResponse, error)
}

// Server wraps chat gateway routing state.
type Server struct {
	cfg     config.Config
	version string
	commit  string
	build   string

	store       *session.Store
	scopes      *scope.Cache
	gate        *gate.Gate
	chat        ChatBackend
	labels      *labels.Resolver
	backendAuth auth.TokenProvider
	graphAuth   auth.TokenProvider

	logger zerolog.Logger
}

// Deps carries the collaborators the gateway routes over.
type Deps struct {
	Store       *session.Store
	Scopes      *scope.Cache
	Gate        *gate.Gate
	Chat        ChatBackend
	Labels      *labels.Resolver
	BackendAuth auth.TokenProvider
	GraphAuth   auth.TokenProvider
}

// New creates a chat gateway server.
func New(cfg config.Config, version, commit, buildDate string, deps Deps, logger zerolog.Logger) *Server {
	return &Server{
		cfg:         cfg,
		version:     version,
		commit:      commit,
		build:       buildDate,
		store:       deps.Store,
		scopes:      deps.Scopes,
		gate:        deps.Gate,
		chat:        deps.Chat,
		labels:      deps.Labels,
		backendAuth: deps.BackendAuth,
		graphAuth:   deps.GraphAuth,
		logger:      logger.With().Str("component", "server").Logger(),
	}
}

// Router builds the gateway HTTP router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/version", s.handleVersion)

	r.Post("/session/login", s.handleLogin)
	r.Post("/session/logout", s.handleLogout)
	r.Post("/api/chat", s.handleChat)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"service": "purviewgate",
		"version": s.version,
		"commit":  s.commit,
		"build":   s.build,
	})
}

// requestLogger emits one structured entry per request.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("request_id", middleware.GetReqID(r.Context())).
				Int("status", ww.Status()).
				Dur("duration", time.Since(started)).
				Msg("request completed")
		})
	}
}

// Package server provides the HTTP API for Agent Lee.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/leeway/agentlee/internal/config"
	"github.com/leeway/agentlee/internal/ensemble"
	"github.com/leeway/agentlee/internal/evidence"
	"github.com/leeway/agentlee/internal/prefs"
	"github.com/leeway/agentlee/internal/speech"
)

// Server is the HTTP server for the Agent Lee API.
type Server struct {
	orchestrator *ensemble.Orchestrator
	index        *evidence.Handle
	speaker      *speech.Selector
	prefs        *prefs.Store
	config       *config.Config
	logger       *zap.Logger
	server       *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	orch *ensemble.Orchestrator,
	index *evidence.Handle,
	speaker *speech.Selector,
	store *prefs.Store,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		orchestrator: orch,
		index:        index,
		speaker:      speaker,
		prefs:        store,
		config:       cfg,
		logger:       logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/ask", s.handleAsk)
	r.Post("/api/v1/explain", s.handleExplain)
	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/speak", s.handleSpeak)
	r.Post("/api/v1/speak/stop", s.handleSpeakStop)
	r.Get("/api/v1/engine", s.handleGetEngine)
	r.Put("/api/v1/engine", s.handleSetEngine)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/prefs/voice", s.handleGetVoice)
	r.Put("/api/v1/prefs/voice", s.handleSetVoice)
	r.Get("/api/v1/prefs/consent", s.handleGetConsent)
	r.Put("/api/v1/prefs/consent", s.handleSetConsent)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.speaker != nil {
		s.speaker.Stop()
	}
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

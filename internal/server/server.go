// Package server provides the HTTP server setup and wiring.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	analysisDomain "github.com/pendergraft/contractlens/internal/analysis/domain"
	analysisTransport "github.com/pendergraft/contractlens/internal/analysis/transport"
	"github.com/pendergraft/contractlens/internal/auth"
	"github.com/pendergraft/contractlens/internal/config"
	contractsTransport "github.com/pendergraft/contractlens/internal/contracts/transport"
	"github.com/pendergraft/contractlens/internal/middleware/logging"
	"github.com/pendergraft/contractlens/internal/middleware/ratelimit"
	"github.com/pendergraft/contractlens/internal/middleware/realip"
	"github.com/pendergraft/contractlens/internal/middleware/security"
	"github.com/pendergraft/contractlens/internal/observability/metrics"
	"github.com/pendergraft/contractlens/internal/relay"
	"github.com/pendergraft/contractlens/internal/storage"
)

// Server is the HTTP server
type Server struct {
	cfg      *config.Config
	store    storage.Store
	pipeline *Pipeline
	logger   *slog.Logger
	router   *chi.Mux

	relay    *relay.Relay
	analysis analysisDomain.Service
}

// Option configures a Server
type Option func(*Server)

// WithChatClient replaces the OpenAI-compatible client used for analysis
func WithChatClient(c analysisDomain.ChatClient) Option {
	return func(s *Server) {
		s.analysis = newAnalysis(s.cfg, s.pipeline, c, s.store, s.logger)
	}
}

// New creates a new server on top of a built pipeline
func New(cfg *config.Config, store storage.Store, pipeline *Pipeline, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		store:    store,
		pipeline: pipeline,
		logger:   logger,
		router:   chi.NewRouter(),
		relay:    relay.New(RelayHosts(cfg, pipeline.Registry), cfg.Relay, logger.With("component", "relay")),
	}
	s.analysis = newAnalysis(cfg, pipeline, analysisDomain.NewOpenAIClient(&http.Client{}), store, logger)
	for _, opt := range opts {
		opt(s)
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func newAnalysis(cfg *config.Config, p *Pipeline, client analysisDomain.ChatClient, store storage.Store, logger *slog.Logger) analysisDomain.Service {
	svc := analysisDomain.NewService(p.Contracts, client, store, cfg.Analysis, logger.With("component", "analysis"))
	return analysisDomain.LoggingMiddleware(logger)(svc)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	// realip runs first so every later middleware sees the client address
	s.router.Use(realip.Middleware(realip.Config{
		TrustProxy:     s.cfg.Proxy.TrustProxy,
		TrustedProxies: s.cfg.Proxy.TrustedProxies,
	}))
	s.router.Use(security.FilterMiddleware(s.cfg.Security.FilterEnabled))
	s.router.Use(security.MaxBodySizeMiddleware(s.cfg.Security.MaxBodySizeMB))
	s.router.Use(ratelimit.Middleware(ratelimit.Config{
		Enabled:        s.cfg.RateLimit.Enabled,
		RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
		BurstSize:      s.cfg.RateLimit.BurstSize,
		CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
	}))

	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-API-Key")
			w.Header().Set("Access-Control-Expose-Headers", "X-Snapshot, Retry-After")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleHealth)
	if s.cfg.Metrics.Enabled {
		s.router.Handle("/metrics", metrics.Handler())
	}

	contractsHandler := contractsTransport.NewHandler(s.pipeline.Contracts)
	relayHandler := relay.NewHandler(s.relay)
	analysisHandler := analysisTransport.NewHandler(s.analysis)

	// analysis is guarded by API keys and a stricter per-client limit
	analyzeMW := []func(http.Handler) http.Handler{
		auth.ForConfig(s.cfg.Auth, s.store, writeError),
		ratelimit.Middleware(ratelimit.Config{
			Enabled:        s.cfg.RateLimit.Enabled && s.cfg.RateLimit.AnalyzePerMin > 0,
			RequestsPerMin: s.cfg.RateLimit.AnalyzePerMin,
			BurstSize:      max(s.cfg.RateLimit.AnalyzePerMin/3, 1),
			CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
		}),
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.cfg.Server.RequestTimeout > 0 {
				r.Use(middleware.Timeout(time.Duration(s.cfg.Server.RequestTimeout) * time.Second))
			}
			contractsHandler.RegisterRoutes(r)
			relayHandler.RegisterRoutes(r)
		})
		analysisHandler.RegisterRoutes(r, analyzeMW...)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"chains": len(s.pipeline.Registry.IDs()),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": message, "code": code})
}

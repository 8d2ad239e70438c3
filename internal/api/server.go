// Package api serves the TaleForge REST API: huma operations mounted on a chi
// router with CORS, request logging, optional bearer authentication and a per-IP
// rate limit on the credential endpoints.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/taleforge/taleforge/internal/config"
	"github.com/taleforge/taleforge/internal/http/response"
	"github.com/taleforge/taleforge/internal/logger"
	"github.com/taleforge/taleforge/internal/ratelimit"
	"github.com/taleforge/taleforge/internal/sse"
	"github.com/taleforge/taleforge/internal/store"
)

// defaultLoginRate applies when the config leaves the credential rate limit unset.
const defaultLoginRate = 20

// Server holds dependencies for HTTP handlers.
type Server struct {
	store           *store.Store
	services        *Services
	router          *chi.Mux
	api             huma.API
	logger          *slog.Logger
	authRateLimiter *ratelimit.KeyedRateLimiter
	startedAt       time.Time
}

// NewServer creates the HTTP handler with all routes configured.
func NewServer(st *store.Store, services *Services, cfg config.ServerConfig, log *slog.Logger) *Server {
	rate := cfg.LoginRatePerMinute
	if rate <= 0 {
		rate = defaultLoginRate
	}

	s := &Server{
		store:           st,
		services:        services,
		router:          chi.NewRouter(),
		logger:          logger.OrDiscard(log),
		authRateLimiter: ratelimit.PerInterval(rate, time.Minute, rate),
		startedAt:       time.Now(),
	}

	// chi requires middleware before the first route, and humachi registers the
	// OpenAPI routes as soon as it is created.
	s.setupMiddleware(cfg.AllowedOrigins)

	humaConfig := huma.DefaultConfig("TaleForge API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerStoryRoutes()
	s.registerLikeRoutes()
	s.registerCommentRoutes()
	if services.Events != nil {
		s.router.Get("/events", sse.NewHandler(services.Events, s.logger).ServeHTTP)
	}

	s.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.NotFound(w, "route not found", s.logger)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.MethodNotAllowed(w, s.logger)
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops the rate limiter's cleanup goroutine.
func (s *Server) Close() {
	s.authRateLimiter.Stop()
}

func (s *Server) setupMiddleware(origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:         300,
	}))
	s.router.Use(limitPaths(s.authRateLimiter, s.logger, "/auth/login", "/auth/register"))
	s.router.Use(authMiddleware(s.services.Auth))
}

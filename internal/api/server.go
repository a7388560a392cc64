// Package api provides the HTTP API: huma operations on a chi router, plus
// the SSE stream of session messages.
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

	"github.com/curatorapp/curator-server/internal/ratelimit"
	"github.com/curatorapp/curator-server/internal/realtime"
	"github.com/curatorapp/curator-server/internal/service"
	"github.com/curatorapp/curator-server/internal/session"
	"github.com/curatorapp/curator-server/internal/store"
	"github.com/curatorapp/curator-server/internal/validation"
)

// Services are the collaborators behind the handlers.
type Services struct {
	Auth     *service.AuthService
	Analysis *service.AnalysisService
	Sessions *session.Manager
	Store    store.Store
}

// Options configures the server.
type Options struct {
	Title       string
	Version     string
	CORSOrigins []string
	// AuthRPS and AuthBurst limit register and login per client IP.
	AuthRPS   float64
	AuthBurst int
	Heartbeat time.Duration
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = "Curator API"
	}
	if o.Version == "" {
		o.Version = "1.0.0"
	}
	if len(o.CORSOrigins) == 0 {
		o.CORSOrigins = []string{"*"}
	}
	if o.AuthRPS <= 0 {
		o.AuthRPS = 1
	}
	if o.AuthBurst <= 0 {
		o.AuthBurst = 5
	}
	return o
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services    *Services
	router      *chi.Mux
	api         huma.API
	authLimiter *ratelimit.KeyedRateLimiter
	validator   *validation.Validator
	logger      *slog.Logger
}

// NewServer creates a server with all routes registered.
func NewServer(services *Services, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	router.Use(authMiddleware(services.Auth))

	humaConfig := huma.DefaultConfig(opts.Title, opts.Version)
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	api := humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s := &Server{
		services:    services,
		router:      router,
		api:         api,
		authLimiter: ratelimit.New(opts.AuthRPS, opts.AuthBurst),
		validator:   validation.New(),
		logger:      logger,
	}

	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerCategoryRoutes()
	s.registerSearchRoutes()
	s.registerAnalysisRoutes()

	// SSE bypasses huma; it writes its own framing.
	stream := realtime.NewStreamHandler(services.Sessions, s.streamAuthenticator, logger, opts.Heartbeat)
	router.Method(http.MethodGet, "/api/v1/stream", stream)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, e.g. for OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources.
func (s *Server) Close() {
	s.authLimiter.Stop()
}

// requestLogger logs one line per request at info level, debug for health
// checks.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			level := slog.LevelInfo
			if r.URL.Path == "/health" {
				level = slog.LevelDebug
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// Package api provides the HTTP API for Tidewatch.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/tidewatch/tidewatch/internal/api/handler"
	"github.com/tidewatch/tidewatch/internal/api/middleware"
	"github.com/tidewatch/tidewatch/internal/api/response"
	"github.com/tidewatch/tidewatch/internal/auth"
)

// Scheduler is the part of the refresh loop the API drives and reports on.
type Scheduler interface {
	handler.Controller
	handler.StatusSource
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// Tokens guards control endpoints; nil or keyless leaves them open.
	Tokens middleware.TokenValidator

	Board     handler.ViewSource
	Scheduler Scheduler
	Providers handler.ProviderHealthSource

	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "tidewatch"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement behind a proxy
	r.Use(middleware.RequireJSON)                // JSON request bodies only

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route for "+r.URL.Path)
	})

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Scheduler, cfg.Providers)

	readRateLimit := middleware.RateLimitByIP(middleware.ReadRateLimit)

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(middleware.ControlAuth(cfg.Tokens, "")).Get("/status", opsHandler.SystemStatus)
		})

		if cfg.Board == nil || cfg.Scheduler == nil {
			return
		}
		dashboardHandler := handler.NewDashboardHandler(cfg.Board, cfg.Scheduler, cfg.Logger)

		r.Route("/dashboard", func(r chi.Router) {
			r.With(readRateLimit).Get("/", dashboardHandler.GetView)
			r.With(readRateLimit).Get("/snapshot", dashboardHandler.GetSnapshot)

			// Control endpoints fan out to every provider.
			r.With(
				middleware.ControlAuth(cfg.Tokens, auth.ScopeRefresh),
				middleware.RateLimitBySubject(middleware.ControlRateLimit),
			).Post("/refresh", dashboardHandler.Refresh)
			r.With(
				middleware.ControlAuth(cfg.Tokens, auth.ScopeVisibility),
				middleware.RateLimitBySubject(middleware.ControlRateLimit),
			).Post("/visibility", dashboardHandler.SetVisibility)
		})
	})

	return r
}

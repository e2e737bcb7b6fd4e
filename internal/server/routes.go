package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/cortexai/cortexbi/internal/config"
	"github.com/cortexai/cortexbi/internal/handler"
	"github.com/cortexai/cortexbi/internal/middleware"
)

// newRouter mounts the API of app under cfg.APIPrefix.
func newRouter(cfg *config.Config, app *App) http.Handler {
	if cfg.EnableAuth && len(cfg.APIKeys) == 0 {
		log.Warn().Msg("WARNING: auth enabled but no API keys configured - all API requests will be rejected")
	}

	// ─── Handlers ────────────────────────────────────────────────────────────────
	healthH := handler.NewHealthHandler(map[string]handler.HealthChecker{
		app.Backend.Name(): app.Backend,
	})
	queryH := handler.NewQueryHandler(app.Executor)
	schemaH := handler.NewSchemaHandler(app.Analyst, app.Backend.Name())
	convH := handler.NewConversationHandler(app.Conversations, app.PIIDetector, app.PromptVal, app.AuditLogger)

	// ─── Router ──────────────────────────────────────────────────────────────────
	r := chi.NewRouter()

	// Core middleware. Recovery sits inside Logging so a panic is logged
	// with the request id and still produces an access line.
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
	r.Use(chiMiddleware.RealIP)

	// Public routes
	r.Get("/health", healthH.Health)
	r.Get("/", healthH.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute))
		if cfg.EnableAuth {
			r.Use(middleware.Auth(cfg.APIKeys, cfg.APIKeyHeader))
		}

		r.Route(cfg.APIPrefix, func(r chi.Router) {
			r.Post("/query", queryH.Execute)
			r.Get("/schema", schemaH.Get)
			r.Post("/schema/refresh", schemaH.Refresh)
			r.Route("/conversations", convH.Routes)
		})
	})

	return r
}

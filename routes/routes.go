package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/pipebridge/app"
	"github.com/upb/pipebridge/internal/observability"
	"github.com/upb/pipebridge/middleware"
	"github.com/upb/pipebridge/models"
	"github.com/upb/pipebridge/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger, deps.Metrics))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.SignatureHeader},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", deps.HealthHandler.HandleRoot)

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", observability.Handler(deps.Registry))
	}

	r.Route("/api", func(r chi.Router) {
		// Health check endpoints
		r.Get("/health", deps.HealthHandler.HandleHealth)
		r.Get("/health/ready", deps.HealthHandler.HandleReadiness)

		// Password auth against the identity service
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", deps.AuthHandler.HandleLogin)
			r.Post("/register", deps.AuthHandler.HandleRegister)
		})

		// Pipefy webhooks and the event log
		r.Route("/webhook/pipefy", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(deps.RateLimiter.Middleware)
				r.Use(deps.SignatureVerifier.Middleware)
				r.Post("/", deps.WebhookHandler.HandleCardEvent)
				r.Post("/receive", deps.WebhookHandler.HandlePhaseTransition)
			})
			r.Get("/events/card/{card_id}", deps.WebhookHandler.HandleListByCard)
			r.Get("/events/{organization_id}", deps.WebhookHandler.HandleListByOrganization)
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Get("/user/me", deps.AuthHandler.HandleMe)
			r.Get("/protected", deps.AuthHandler.HandleProtected)
			r.Get("/main/reports/{organization_id}", deps.WebhookHandler.HandleReports)

			r.With(deps.AuthMiddleware.RequireRole(models.RoleAdmin)).
				Post("/create/organization", deps.OrganizationHandler.HandleCreate)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}

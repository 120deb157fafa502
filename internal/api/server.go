// Package api wires the chi router: health, metrics, the admin alert
// trigger, trial scheduling and email unsubscribe.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"

	"github.com/albapepper/kickoff-alerts/internal/api/handler"
	"github.com/albapepper/kickoff-alerts/internal/config"
	"github.com/albapepper/kickoff-alerts/internal/metrics"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(deps handler.Deps, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(TimingMiddleware)
	r.Use(metrics.Middleware)

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Admin-Secret"},
		ExposedHeaders:   []string{"X-Process-Time"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Handler dependencies ---
	if deps.SiteURL == "" {
		deps.SiteURL = cfg.SiteURL
	}
	h := handler.New(deps)
	admin := AdminSecretMiddleware(cfg.AdminSecret, cfg.IsProduction())

	// --- Routes ---

	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
	})

	r.Handle("/metrics", metrics.Handler())

	// Admin
	r.With(admin).Get("/api/admin/alert", h.RunAlerts)
	r.With(admin).Post("/api/admin/alert", h.RunAlerts)
	r.With(admin).Post("/internal/trial/flow", h.ScheduleTrialFlow)

	// Email
	r.Route("/api/email", func(r chi.Router) {
		r.Get("/unsubscribe", h.UnsubscribeEmail)
		r.Post("/unsubscribe", h.UnsubscribeEmailJSON)
	})

	return r
}

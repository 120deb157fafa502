// Package handler provides HTTP handlers for the health, admin and email
// endpoints. Handlers depend on small interfaces so they can be exercised
// without Postgres or redis.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/albapepper/kickoff-alerts/internal/api/respond"
	"github.com/albapepper/kickoff-alerts/internal/notifications"
	"github.com/albapepper/kickoff-alerts/internal/trial"
)

// Pinger checks database connectivity.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// AlertRunner runs one alert tick.
type AlertRunner interface {
	Tick(ctx context.Context) (*notifications.TickResult, error)
}

// TrialScheduler schedules the trial follow-up jobs for a phone.
type TrialScheduler interface {
	ScheduleFlow(ctx context.Context, phone string) ([]trial.Job, error)
}

// Unsubscriber disables email alerts for an unsubscribe token.
type Unsubscriber interface {
	Unsubscribe(ctx context.Context, token string) error
}

// Deps are the handler collaborators. Nil collaborators answer 503.
type Deps struct {
	DB           Pinger
	Alerts       AlertRunner
	Trials       TrialScheduler
	Unsubscriber Unsubscriber
	SiteURL      string
	Logger       *slog.Logger
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	db      Pinger
	alerts  AlertRunner
	trials  TrialScheduler
	unsub   Unsubscriber
	siteURL string
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Handler with shared dependencies.
func New(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		db:      d.DB,
		alerts:  d.Alerts,
		trials:  d.Trials,
		unsub:   d.Unsubscriber,
		siteURL: d.SiteURL,
		logger:  logger,
		now:     time.Now,
	}
}

func (h *Handler) timestamp() string {
	return h.now().UTC().Format(time.RFC3339)
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name and status.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"name":   "Kickoff Alerts API",
		"status": "running",
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": h.timestamp(),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Description Runs the health_check prepared statement against the pool.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} respond.ErrorResponse
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if h.db == nil || h.db.HealthCheck(r.Context()) != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": h.timestamp(),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": h.timestamp(),
	})
}

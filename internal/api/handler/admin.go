package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/albapepper/kickoff-alerts/internal/api/respond"
)

// RunAlerts runs one alert tick and reports its counts.
// @Summary Trigger an alert tick
// @Description Scans today's matches and sends every alert that is due right now. Requires X-Admin-Secret in production.
// @Tags admin
// @Produce json
// @Param X-Admin-Secret header string false "Admin secret"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /api/admin/alert [post]
func (h *Handler) RunAlerts(w http.ResponseWriter, r *http.Request) {
	if h.alerts == nil {
		respond.WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Alert scheduler not configured")
		return
	}
	result, err := h.alerts.Tick(r.Context())
	if err != nil {
		h.logger.Error("Manual alert tick failed", "error", err)
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "TICK_FAILED", "Alert tick failed", err.Error())
		return
	}
	h.logger.Info("Manual alert tick complete", "summary", result.Summary())
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"success":           true,
		"matches_scanned":   result.MatchesScanned,
		"matches_fired":     result.MatchesFired,
		"users_notified":    result.UsersNotified,
		"users_skipped":     result.UsersSkipped,
		"users_failed":      result.UsersFailed,
		"deliveries":        result.Deliveries,
		"delivery_failures": result.DeliveryFailures,
		"fallbacks":         result.Fallbacks,
		"errors":            result.Errors,
		"timestamp":         h.timestamp(),
	})
}

type trialFlowRequest struct {
	Phone string `json:"phone"`
}

// ScheduleTrialFlow schedules the nudge and expiry jobs for a phone.
// @Summary Schedule trial follow-ups
// @Description Enqueues the 30 minute nudge and the 12 hour expiry for a trial phone.
// @Tags admin
// @Accept json
// @Produce json
// @Param body body trialFlowRequest true "Trial phone"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 401 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /internal/trial/flow [post]
func (h *Handler) ScheduleTrialFlow(w http.ResponseWriter, r *http.Request) {
	if h.trials == nil {
		respond.WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Trial queue not configured")
		return
	}
	var req trialFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be JSON")
		return
	}
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_PHONE", "phone is required")
		return
	}

	jobs, err := h.trials.ScheduleFlow(r.Context(), phone)
	if err != nil {
		h.logger.Error("Schedule trial flow failed", "phone", phone, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "SCHEDULE_FAILED", "Could not schedule trial jobs")
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"ok":   true,
		"jobs": jobs,
	})
}

package handler

import (
	"encoding/json"
	"errors"
	"html"
	"net/http"
	"strconv"
	"strings"

	"github.com/albapepper/kickoff-alerts/internal/api/respond"
	"github.com/albapepper/kickoff-alerts/internal/email"
)

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{title}} - IPTV SMARTERS PRO</title>
<style>
body{font-family:'Segoe UI',Tahoma,sans-serif;background:#f4f5fb;display:flex;align-items:center;justify-content:center;min-height:100vh;margin:0;padding:20px}
.box{background:#fff;border-radius:16px;max-width:520px;width:100%;padding:40px;text-align:center;box-shadow:0 10px 30px rgba(0,0,0,.08)}
h1{font-size:26px;color:#333}
p{color:#666;line-height:1.6}
a.button{display:inline-block;background:#667eea;color:#fff;padding:14px 28px;border-radius:40px;text-decoration:none;font-weight:bold;margin:8px}
footer{margin-top:30px;font-size:12px;color:#999}
</style>
</head>
<body>
<div class="box">
<div style="font-size:64px">{{icon}}</div>
<h1>{{title}}</h1>
<p>{{message}}</p>
{{actions}}
<footer>&copy; {{year}} IPTV SMARTERS PRO. All rights reserved.</footer>
</div>
</body>
</html>`

type unsubscribeRequest struct {
	Token string `json:"token"`
}

// UnsubscribeEmail handles the one-click GET link from alert emails and
// answers with an HTML page.
// @Summary Unsubscribe from email alerts (link)
// @Tags email
// @Produce html
// @Param token query string true "Unsubscribe token"
// @Success 200 {string} string "HTML confirmation page"
// @Failure 400 {string} string "HTML error page"
// @Failure 404 {string} string "HTML error page"
// @Router /api/email/unsubscribe [get]
func (h *Handler) UnsubscribeEmail(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	status, msg := h.unsubscribe(r, token)
	if status != http.StatusOK {
		respond.WriteHTML(w, status, h.errorPage(msg))
		return
	}
	respond.WriteHTML(w, http.StatusOK, h.successPage())
}

// UnsubscribeEmailJSON handles POST {token} and answers with JSON.
// @Summary Unsubscribe from email alerts
// @Tags email
// @Accept json
// @Produce json
// @Param body body unsubscribeRequest true "Unsubscribe token"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /api/email/unsubscribe [post]
func (h *Handler) UnsubscribeEmailJSON(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be JSON")
		return
	}
	status, msg := h.unsubscribe(r, strings.TrimSpace(req.Token))
	if status != http.StatusOK {
		respond.WriteError(w, status, "UNSUBSCRIBE_FAILED", msg)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Successfully unsubscribed from email notifications",
	})
}

// unsubscribe returns the HTTP status and, on failure, a user-facing message.
func (h *Handler) unsubscribe(r *http.Request, token string) (int, string) {
	if h.unsub == nil {
		return http.StatusServiceUnavailable, "Unsubscribe is temporarily unavailable"
	}
	if token == "" {
		return http.StatusBadRequest, "Invalid unsubscribe token"
	}
	err := h.unsub.Unsubscribe(r.Context(), token)
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, email.ErrInvalidToken):
		return http.StatusNotFound, "Invalid unsubscribe token"
	default:
		h.logger.Error("Unsubscribe failed", "error", err)
		return http.StatusInternalServerError, "Failed to unsubscribe"
	}
}

func (h *Handler) successPage() string {
	actions := `<a class="button" href="` + html.EscapeString(h.siteURL+"/settings") + `">Manage Notification Preferences</a>` +
		`<a class="button" href="` + html.EscapeString(h.siteURL) + `">Return to Homepage</a>`
	return h.page("✅", "Successfully Unsubscribed",
		"You will no longer receive match alert emails. Push and Telegram alerts are unaffected.", actions)
}

func (h *Handler) errorPage(message string) string {
	actions := `<a class="button" href="` + html.EscapeString(h.siteURL) + `">Return to Homepage</a>`
	return h.page("❌", "Unsubscribe Error", html.EscapeString(message), actions)
}

func (h *Handler) page(icon, title, message, actions string) string {
	return strings.NewReplacer(
		"{{icon}}", icon,
		"{{title}}", title,
		"{{message}}", message,
		"{{actions}}", actions,
		"{{year}}", strconv.Itoa(h.now().Year()),
	).Replace(pageTemplate)
}

// Package email sends match alerts from database-stored templates over SMTP
// and records every outcome.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrSkipped is returned when a recipient cannot or must not be mailed.
var ErrSkipped = errors.New("email skipped")

// Recipient is the addressee of one alert.
type Recipient struct {
	ID               string
	Email            string
	Name             string
	UnsubscribeToken string
	Enabled          bool
}

// MatchData is the alert payload exposed to templates.
type MatchData struct {
	HomeTeam        string
	AwayTeam        string
	League          string
	KickoffTime     string
	MinutesLeft     int
	MatchSlug       string
	PaymentLink     string
	MatchLink       string
	ViewerCount     int
	UserSegment     string
	MatchImportance string
	Urgency         string
	UTMParams       string
}

// Service renders and sends alert emails.
type Service struct {
	store   Store
	mailer  Mailer
	from    string
	baseURL string
	now     func() time.Time
	logger  *slog.Logger
}

// NewService creates a service. baseURL prefixes unsubscribe links.
func NewService(store Store, mailer Mailer, from, baseURL string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		mailer:  mailer,
		from:    from,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
		logger:  logger,
	}
}

// Variables builds the template variable set for one recipient.
func (s *Service) Variables(r Recipient, d MatchData) map[string]string {
	name := r.Name
	if name == "" {
		name = "Sports Fan"
	}
	dateTime := d.KickoffTime
	if dateTime == "" {
		dateTime = "Soon"
	}
	league := d.League
	if league == "" {
		league = "Premier League"
	}

	return map[string]string{
		"homeTeam":        d.HomeTeam,
		"awayTeam":        d.AwayTeam,
		"league":          d.League,
		"kickoffTime":     d.KickoffTime,
		"minutesLeft":     strconv.Itoa(d.MinutesLeft),
		"matchSlug":       d.MatchSlug,
		"paymentLink":     d.PaymentLink,
		"matchLink":       d.MatchLink,
		"viewerCount":     strconv.Itoa(d.ViewerCount),
		"userSegment":     d.UserSegment,
		"matchImportance": d.MatchImportance,
		"urgencyLevel":    d.Urgency,
		"utmParams":       d.UTMParams,

		"userName":        name,
		"userEmail":       r.Email,
		"unsubscribeLink": s.baseURL + "/api/email/unsubscribe?token=" + r.UnsubscribeToken,
		"baseUrl":         s.baseURL,
		"currentYear":     strconv.Itoa(s.now().Year()),
		"urgencyText":     UrgencyText(d.MinutesLeft),
		"ctaText":         CTAText(d.MinutesLeft),
		"socialProofText": SocialProofText(d.ViewerCount),
		"matchDateTime":   dateTime,
		"leagueName":      league,
	}
}

// SendMatchAlert renders templateID for r and sends it. Disabled or invalid
// addresses return ErrSkipped. Every attempt past that point is recorded.
func (s *Service) SendMatchAlert(ctx context.Context, r Recipient, d MatchData, templateID string) error {
	if !r.Enabled {
		s.logger.Debug("Email notifications disabled", "user_id", r.ID)
		return ErrSkipped
	}
	if !ValidAddress(r.Email) {
		s.logger.Debug("Invalid email address", "user_id", r.ID)
		return ErrSkipped
	}

	track := Tracking{
		ID:          uuid.NewString(),
		UserID:      r.ID,
		TemplateID:  templateID,
		Urgency:     d.Urgency,
		ViewerCount: d.ViewerCount,
		Segment:     d.UserSegment,
		Importance:  d.MatchImportance,
	}

	tmpl, err := s.store.TemplateByID(ctx, templateID)
	if err != nil {
		s.track(ctx, track, err)
		return err
	}

	out := Render(tmpl, s.Variables(r, d))
	err = s.mailer.Send(ctx, Message{
		From:    s.from,
		To:      r.Email,
		Subject: out.Subject,
		HTML:    out.HTML,
		Text:    out.Text,
		Headers: map[string]string{
			"X-Template-ID": templateID,
			"X-User-ID":     r.ID,
			"X-Match-Slug":  d.MatchSlug,
		},
	})
	s.track(ctx, track, err)
	if err != nil {
		return fmt.Errorf("send %s: %w", templateID, err)
	}
	s.logger.Info("Email sent", "user_id", r.ID, "template", templateID, "match", d.MatchSlug)
	return nil
}

// track records the outcome. Recording failures are logged, never returned.
func (s *Service) track(ctx context.Context, tr Tracking, sendErr error) {
	tr.Status = StatusSent
	if sendErr != nil {
		tr.Status = StatusFailed
		tr.Error = sendErr.Error()
	}
	if err := s.store.RecordSend(ctx, tr); err != nil {
		s.logger.Warn("Email tracking failed", "user_id", tr.UserID, "template", tr.TemplateID, "error", err)
	}
}

// Unsubscribe disables email notifications for token's owner.
func (s *Service) Unsubscribe(ctx context.Context, token string) error {
	return s.store.Unsubscribe(ctx, token)
}

// SeedTemplates upserts the built-in templates and returns how many were written.
func (s *Service) SeedTemplates(ctx context.Context) (int, error) {
	templates, err := BuiltinTemplates()
	if err != nil {
		return 0, err
	}
	for i, t := range templates {
		if err := s.store.UpsertTemplate(ctx, t); err != nil {
			return i, err
		}
		s.logger.Info("Seeded email template", "id", t.ID)
	}
	return len(templates), nil
}

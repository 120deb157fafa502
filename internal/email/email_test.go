package email

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/kickoff-alerts/internal/notifications"
)

type fakeStore struct {
	mu        sync.Mutex
	templates map[string]Template
	tracked   []Tracking
	upserted  []Template
	tokens    map[string]bool
}

func newFakeStore(ts ...Template) *fakeStore {
	s := &fakeStore{templates: map[string]Template{}, tokens: map[string]bool{}}
	for _, t := range ts {
		s.templates[t.ID] = t
	}
	return s
}

func (s *fakeStore) TemplateByID(_ context.Context, id string) (Template, error) {
	t, ok := s.templates[id]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return t, nil
}

func (s *fakeStore) UpsertTemplate(_ context.Context, t Template) error {
	s.upserted = append(s.upserted, t)
	return nil
}

func (s *fakeStore) RecordSend(_ context.Context, tr Tracking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracked = append(s.tracked, tr)
	return nil
}

func (s *fakeStore) Unsubscribe(_ context.Context, token string) error {
	if !s.tokens[token] {
		return ErrInvalidToken
	}
	delete(s.tokens, token)
	return nil
}

type fakeMailer struct {
	sent []Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

var alertTemplate = Template{
	ID:      "match_alert_30min",
	Subject: "⚡ URGENT: {{homeTeam}} vs {{awayTeam}} in 30 Minutes!",
	HTML:    `<p>{{socialProofText}}</p><a href="{{matchLink}}?{{utmParams}}">{{ctaText}}</a><a href="{{unsubscribeLink}}">x</a>`,
	Text:    "{{homeTeam}} {{mystery}} {{currentYear}}",
}

func newTestService(store Store, mailer Mailer) *Service {
	s := NewService(store, mailer, "Alerts <alerts@example.com>", "https://site.example/",
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return time.Date(2026, 10, 14, 18, 0, 0, 0, time.UTC) }
	return s
}

func fan() Recipient {
	return Recipient{ID: "u1", Email: "fan@example.com", UnsubscribeToken: "tok", Enabled: true}
}

func matchData() MatchData {
	return MatchData{
		HomeTeam: "Arsenal", AwayTeam: "Chelsea", MinutesLeft: 30, MatchSlug: "arsenal-vs-chelsea",
		MatchLink: "https://site.example/match/arsenal-vs-chelsea", ViewerCount: 12500,
		UserSegment: "new", MatchImportance: "high", Urgency: "high", UTMParams: "utm_source=notification",
	}
}

func TestReplaceVariables(t *testing.T) {
	got := ReplaceVariables("{{a}}-{{b}}-{{ a }}-{{missing}}", map[string]string{"a": "1", "b": ""})
	assert.Equal(t, "1--{{ a }}-{{missing}}", got)
}

func TestHTMLToText(t *testing.T) {
	html := "<html><style>p { color: red; }</style><body><p>Hello&nbsp;&amp;\n\n  <b>welcome</b></p><script>x()</script></body></html>"
	assert.Equal(t, "Hello & welcome", HTMLToText(html))
}

func TestRender_TextFallsBackToHTML(t *testing.T) {
	out := Render(Template{Subject: "{{x}}", HTML: "<h1>{{x}}</h1>"}, map[string]string{"x": "Goal"})
	assert.Equal(t, "Goal", out.Subject)
	assert.Equal(t, "<h1>Goal</h1>", out.HTML)
	assert.Equal(t, "Goal", out.Text)
}

func TestCopyHelpers(t *testing.T) {
	assert.Equal(t, "🚨 STARTING NOW", UrgencyText(5))
	assert.Equal(t, "⚡ URGENT", UrgencyText(30))
	assert.Equal(t, "🔥 SOON", UrgencyText(60))
	assert.Equal(t, "📅 UPCOMING", UrgencyText(61))

	assert.Equal(t, "Watch Live NOW", CTAText(0))
	assert.Equal(t, "Get Ready to Watch", CTAText(30))
	assert.Equal(t, "Set Reminder & Watch", CTAText(60))

	assert.Equal(t, "Over 12K fans watching", SocialProofText(12500))
	assert.Equal(t, "3400+ fans getting ready", SocialProofText(3456))
	assert.Equal(t, "900 sports fans preparing to watch", SocialProofText(900))
}

func TestValidAddress(t *testing.T) {
	assert.True(t, ValidAddress("a@b.co"))
	assert.False(t, ValidAddress("a@b"))
	assert.False(t, ValidAddress("a b@c.de"))
	assert.False(t, ValidAddress(""))
}

func TestSendMatchAlert(t *testing.T) {
	store := newFakeStore(alertTemplate)
	mailer := &fakeMailer{}
	svc := newTestService(store, mailer)

	require.NoError(t, svc.SendMatchAlert(context.Background(), fan(), matchData(), "match_alert_30min"))

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "fan@example.com", msg.To)
	assert.Equal(t, "Alerts <alerts@example.com>", msg.From)
	assert.Equal(t, "⚡ URGENT: Arsenal vs Chelsea in 30 Minutes!", msg.Subject)
	assert.Contains(t, msg.HTML, "Over 12K fans watching")
	assert.Contains(t, msg.HTML, "https://site.example/match/arsenal-vs-chelsea?utm_source=notification")
	assert.Contains(t, msg.HTML, "https://site.example/api/email/unsubscribe?token=tok")
	assert.Contains(t, msg.HTML, "Get Ready to Watch")
	assert.Equal(t, "Arsenal {{mystery}} 2026", msg.Text)
	assert.Equal(t, map[string]string{
		"X-Template-ID": "match_alert_30min",
		"X-User-ID":     "u1",
		"X-Match-Slug":  "arsenal-vs-chelsea",
	}, msg.Headers)

	require.Len(t, store.tracked, 1)
	assert.Equal(t, StatusSent, store.tracked[0].Status)
	assert.Equal(t, "u1", store.tracked[0].UserID)
	assert.Equal(t, 12500, store.tracked[0].ViewerCount)
	assert.NotEmpty(t, store.tracked[0].ID)
}

func TestSendMatchAlert_Skips(t *testing.T) {
	store := newFakeStore(alertTemplate)
	mailer := &fakeMailer{}
	svc := newTestService(store, mailer)

	disabled := fan()
	disabled.Enabled = false
	assert.ErrorIs(t, svc.SendMatchAlert(context.Background(), disabled, matchData(), "match_alert_30min"), ErrSkipped)

	invalid := fan()
	invalid.Email = "not-an-email"
	assert.ErrorIs(t, svc.SendMatchAlert(context.Background(), invalid, matchData(), "match_alert_30min"), ErrSkipped)

	assert.Empty(t, mailer.sent)
	assert.Empty(t, store.tracked)
}

func TestSendMatchAlert_MissingTemplate(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeMailer{})

	err := svc.SendMatchAlert(context.Background(), fan(), matchData(), "nope")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	require.Len(t, store.tracked, 1)
	assert.Equal(t, StatusFailed, store.tracked[0].Status)
	assert.Contains(t, store.tracked[0].Error, "nope")
}

func TestSendMatchAlert_MailerFailure(t *testing.T) {
	store := newFakeStore(alertTemplate)
	svc := newTestService(store, &fakeMailer{err: errors.New("554 rejected")})

	err := svc.SendMatchAlert(context.Background(), fan(), matchData(), "match_alert_30min")
	require.Error(t, err)
	require.Len(t, store.tracked, 1)
	assert.Equal(t, StatusFailed, store.tracked[0].Status)
	assert.Equal(t, "554 rejected", store.tracked[0].Error)
}

func TestVariables_Defaults(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeMailer{})
	vars := svc.Variables(Recipient{Email: "a@b.co"}, MatchData{})

	assert.Equal(t, "Sports Fan", vars["userName"])
	assert.Equal(t, "Soon", vars["matchDateTime"])
	assert.Equal(t, "Premier League", vars["leagueName"])
	assert.Equal(t, "https://site.example", vars["baseUrl"])
	assert.Equal(t, "2026", vars["currentYear"])
}

func TestBuiltinTemplates(t *testing.T) {
	templates, err := BuiltinTemplates()
	require.NoError(t, err)
	require.Len(t, templates, 4)

	ids := make([]string, 0, len(templates))
	for _, tmpl := range templates {
		ids = append(ids, tmpl.ID)
		assert.Contains(t, tmpl.Subject, "{{homeTeam}}")
		assert.Contains(t, tmpl.HTML, "{{unsubscribeLink}}")
		assert.Contains(t, tmpl.HTML, "{{matchLink}}?{{utmParams}}")
		assert.Contains(t, tmpl.Text, "{{unsubscribeLink}}")
	}
	assert.Equal(t, []string{"match_alert_60min", "match_alert_30min", "match_alert_5min", "match_halftime"}, ids)
}

func TestSeedTemplates(t *testing.T) {
	store := newFakeStore()
	n, err := newTestService(store, &fakeMailer{}).SeedTemplates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Len(t, store.upserted, 4)
}

func TestUnsubscribe(t *testing.T) {
	store := newFakeStore()
	store.tokens["tok"] = true
	svc := newTestService(store, &fakeMailer{})

	require.NoError(t, svc.Unsubscribe(context.Background(), "tok"))
	assert.ErrorIs(t, svc.Unsubscribe(context.Background(), "tok"), ErrInvalidToken)
	assert.ErrorIs(t, NewPGStore(nil).Unsubscribe(context.Background(), ""), ErrInvalidToken)
}

func TestBuildMessage_Headers(t *testing.T) {
	m := buildMessage(Message{
		From: "a@example.com", To: "b@example.com", Subject: "Hi", Text: "t", HTML: "<b>t</b>",
		Headers: map[string]string{"X-Template-ID": "match_halftime"},
	})
	assert.Equal(t, []string{"match_halftime"}, m.GetHeader("X-Template-ID"))
	assert.Equal(t, []string{"b@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Hi"}, m.GetHeader("Subject"))
}

func TestChannel(t *testing.T) {
	store := newFakeStore(
		Template{ID: "match_alert_5min", Subject: "{{homeTeam}}", HTML: "<a href=\"{{paymentLink}}\">{{matchDateTime}}</a>"},
	)
	mailer := &fakeMailer{}
	ch := NewChannel(newTestService(store, mailer))

	assert.Equal(t, "email", ch.Name())
	assert.True(t, ch.Supports(notifications.User{Email: "a@b.co", EmailVerified: true, EmailEnabled: true}))
	assert.False(t, ch.Supports(notifications.User{Email: "a@b.co", EmailVerified: true}))
	assert.False(t, ch.Supports(notifications.User{EmailVerified: true, EmailEnabled: true}))
	// A Telegram user is eligible on their own; an unverified address is not mailed.
	assert.False(t, ch.Supports(notifications.User{TelegramID: "111", Email: "a@b.co", EmailEnabled: true}))

	d := notifications.Delivery{
		Channel: "email",
		User:    notifications.User{ID: "u1", Email: "fan@example.com", EmailVerified: true, EmailEnabled: true},
		Match:   notifications.Match{Kickoff: time.Date(2026, 10, 14, 18, 5, 0, 0, time.UTC)},
		Bucket:  notifications.Bucket5,
		Data: notifications.Data{
			HomeTeam: "Arsenal", AwayTeam: "Chelsea", MinutesLeft: 5,
			PaymentLink: "https://pay.example/x?utm_medium=email",
		},
		Params: url.Values{"utm_medium": {"email"}},
	}
	require.NoError(t, ch.Deliver(context.Background(), d))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Arsenal", mailer.sent[0].Subject)
	assert.Equal(t, "match_alert_5min", mailer.sent[0].Headers["X-Template-ID"])
	assert.True(t, strings.Contains(mailer.sent[0].HTML, "https://pay.example/x?utm_medium=email"))
	assert.Contains(t, mailer.sent[0].HTML, "Wednesday, October 14, 2026 at 06:05 PM UTC")

	d.User.Email = "broken"
	assert.ErrorIs(t, ch.Deliver(context.Background(), d), notifications.ErrSkipped)
}

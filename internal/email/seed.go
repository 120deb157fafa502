package email

import (
	"embed"
	"fmt"
)

//go:embed templates/*.html templates/*.txt
var builtinFS embed.FS

var builtinVariables = []string{
	"homeTeam", "awayTeam", "leagueName", "matchDateTime", "matchImportance",
	"matchLink", "utmParams", "socialProofText", "ctaText", "urgencyText",
	"unsubscribeLink", "currentYear",
}

var builtins = []struct {
	id, name, subject string
}{
	{"match_alert_60min", "Match Alert - 60 Minutes", "🔥 {{homeTeam}} vs {{awayTeam}} Starting in 1 Hour - Get Ready!"},
	{"match_alert_30min", "Match Alert - 30 Minutes", "⚡ URGENT: {{homeTeam}} vs {{awayTeam}} in 30 Minutes!"},
	{"match_alert_5min", "Match Alert - 5 Minutes", "🚨 FINAL CALL: {{homeTeam}} vs {{awayTeam}} Starting NOW!"},
	{"match_halftime", "Halftime Alert", "⚽ Halftime: {{homeTeam}} vs {{awayTeam}} - Second Half Coming Up!"},
}

// BuiltinTemplates returns the shipped alert templates, one per timing bucket.
func BuiltinTemplates() ([]Template, error) {
	out := make([]Template, 0, len(builtins))
	for _, b := range builtins {
		html, err := builtinFS.ReadFile("templates/" + b.id + ".html")
		if err != nil {
			return nil, fmt.Errorf("read %s html: %w", b.id, err)
		}
		text, err := builtinFS.ReadFile("templates/" + b.id + ".txt")
		if err != nil {
			return nil, fmt.Errorf("read %s text: %w", b.id, err)
		}
		out = append(out, Template{
			ID:        b.id,
			Name:      b.name,
			Subject:   b.subject,
			HTML:      string(html),
			Text:      string(text),
			Variables: builtinVariables,
		})
	}
	return out, nil
}

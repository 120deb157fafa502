package email

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	placeholder = regexp.MustCompile(`\{\{(\w+)\}\}`)
	styleBlock  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	scriptBlock = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	anyTag      = regexp.MustCompile(`<[^>]+>`)
	spaceRun    = regexp.MustCompile(`\s+`)
	validEmail  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

var entities = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
)

// Rendered is a template with every known variable substituted.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// ReplaceVariables substitutes {{name}} placeholders. Unknown names are left
// as written.
func ReplaceVariables(s string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		if v, ok := vars[m[2:len(m)-2]]; ok {
			return v
		}
		return m
	})
}

// Render renders subject, HTML and text. A template without a text body
// falls back to the tag-stripped HTML.
func Render(t Template, vars map[string]string) Rendered {
	html := ReplaceVariables(t.HTML, vars)
	text := t.Text
	if text == "" {
		text = HTMLToText(html)
	}
	return Rendered{
		Subject: ReplaceVariables(t.Subject, vars),
		HTML:    html,
		Text:    ReplaceVariables(text, vars),
	}
}

// HTMLToText strips markup for the plain-text alternative.
func HTMLToText(html string) string {
	s := styleBlock.ReplaceAllString(html, "")
	s = scriptBlock.ReplaceAllString(s, "")
	s = anyTag.ReplaceAllString(s, "")
	s = spaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(entities.Replace(s))
}

// ValidAddress is a loose local@domain.tld check.
func ValidAddress(addr string) bool {
	return validEmail.MatchString(addr)
}

// --------------------------------------------------------------------------
// Copy helpers
// --------------------------------------------------------------------------

// UrgencyText is the banner copy for the time to kickoff.
func UrgencyText(minutesLeft int) string {
	switch {
	case minutesLeft <= 5:
		return "🚨 STARTING NOW"
	case minutesLeft <= 30:
		return "⚡ URGENT"
	case minutesLeft <= 60:
		return "🔥 SOON"
	default:
		return "📅 UPCOMING"
	}
}

// CTAText is the call-to-action label for the time to kickoff.
func CTAText(minutesLeft int) string {
	switch {
	case minutesLeft <= 5:
		return "Watch Live NOW"
	case minutesLeft <= 30:
		return "Get Ready to Watch"
	default:
		return "Set Reminder & Watch"
	}
}

// SocialProofText phrases a viewer count.
func SocialProofText(viewers int) string {
	switch {
	case viewers > 10000:
		return "Over " + strconv.Itoa(viewers/1000) + "K fans watching"
	case viewers > 1000:
		return strconv.Itoa(viewers/100*100) + "+ fans getting ready"
	default:
		return strconv.Itoa(viewers) + " sports fans preparing to watch"
	}
}

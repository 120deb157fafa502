package notifications

import (
	"slices"
	"strings"
)

// Rule is one literal rewrite. When When matches, the first occurrence of Find
// becomes Replace, or Rewrite transforms the whole text if set.
type Rule struct {
	Name    string
	When    func(p Profile, d Data) bool
	Find    string
	Replace string
	Rewrite func(string) string
}

// Apply runs the rule against text.
func (r Rule) Apply(text string, p Profile, d Data) string {
	if r.When != nil && !r.When(p, d) {
		return text
	}
	if r.Rewrite != nil {
		return r.Rewrite(text)
	}
	if r.Find == "" {
		return text
	}
	return strings.Replace(text, r.Find, r.Replace, 1)
}

// Personalizer applies an ordered rule list to rendered messages.
type Personalizer struct {
	rules []Rule
}

// NewPersonalizer creates a personalizer. With no rules it uses DefaultRules.
func NewPersonalizer(rules ...Rule) *Personalizer {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Personalizer{rules: rules}
}

// Apply runs every rule in order.
func (p *Personalizer) Apply(text string, prof Profile, d Data) string {
	for _, r := range p.rules {
		text = r.Apply(text, prof, d)
	}
	return text
}

// Rules returns the names of the rules that match prof and d.
func (p *Personalizer) Rules(prof Profile, d Data) []string {
	var names []string
	for _, r := range p.rules {
		if r.When == nil || r.When(prof, d) {
			names = append(names, r.Name)
		}
	}
	return names
}

// --------------------------------------------------------------------------
// Built-in rules
// --------------------------------------------------------------------------

func favouriteTeam(p Profile, d Data) bool {
	return slices.Contains(p.PreferredTeams, d.HomeTeam) || slices.Contains(p.PreferredTeams, d.AwayTeam)
}

func inSegment(seg Segment) func(Profile, Data) bool {
	return func(p Profile, _ Data) bool { return p.Segment == seg }
}

func prefers(pref Preference) func(Profile, Data) bool {
	return func(p Profile, _ Data) bool { return p.Preference == pref }
}

var minimalEmoji = strings.NewReplacer("🔥", "", "⚡", "", "🚨", "", "💎", "")

// minimalRewrite strips loud emoji and keeps the first paragraph.
func minimalRewrite(text string) string {
	text = minimalEmoji.Replace(text)
	first, _, _ := strings.Cut(text, "\n\n")
	return first + "\n\n👆 WATCH NOW"
}

// DefaultRules returns the production personalization rules in order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "team_emoji", When: favouriteTeam, Find: "🔥", Replace: "⭐ YOUR TEAM:"},
		{Name: "team_alert", When: favouriteTeam, Find: "PREMIUM ALERT:", Replace: "YOUR TEAM ALERT:"},

		{Name: "vip_welcome", When: inSegment(SegmentVIP), Find: "Join 75,000+", Replace: "Welcome back, VIP Member!"},
		{Name: "vip_priority", When: inSegment(SegmentVIP), Find: "Limited", Replace: "VIP Priority"},
		{Name: "new_discovering", When: inSegment(SegmentNew), Find: "fans already streaming", Replace: "new fans discovering premium quality"},
		{Name: "new_free_trial", When: inSegment(SegmentNew), Find: "💎 4K Quality", Replace: "💎 Try 4K Quality FREE"},
		{Name: "returning_welcome", When: inSegment(SegmentReturning), Find: "INSTANT ACCESS", Replace: "WELCOME BACK - INSTANT ACCESS"},

		{Name: "minimal", When: prefers(PreferenceMinimal), Rewrite: minimalRewrite},
		{Name: "aggressive_now", When: prefers(PreferenceAggressive), Find: "STARTING NOW!", Replace: "STARTING NOW! ⏰ DON'T MISS OUT!"},
		{Name: "aggressive_limited", When: prefers(PreferenceAggressive), Find: "LIMITED", Replace: "🚨 EXTREMELY LIMITED"},
	}
}

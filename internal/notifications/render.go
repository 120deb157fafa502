package notifications

import (
	"strconv"
	"strings"
)

// Static brand tokens available to every template.
var brandTokens = []string{
	"{brandName}", "IPTV SMARTERS PRO",
	"{brandTagline}", "IPTV SMARTERS PRO | N°1 en France",
	"{brandDescription}", "Le Meilleur Service IPTV Premium avec +15000 chaînes HD/4K",
	"{brandUrl}", "https://www.iptv.shopping/pricing",
	"{qualityBadge}", "💎 4K Quality",
	"{channelCount}", "+15000 chaînes HD/4K",
	"{instantAccess}", "⚡ Instant Access",
	"{zeroBuff}", "🎯 Zero Buffering Guarantee",
}

// Render substitutes every known {token} in the template body. Unknown tokens
// are left as written.
func Render(t Template, d Data) string {
	return RenderString(t.Body, d)
}

// RenderString is Render over an arbitrary body.
func RenderString(body string, d Data) string {
	pairs := make([]string, 0, 20+len(brandTokens))
	pairs = append(pairs,
		"{homeTeam}", d.HomeTeam,
		"{awayTeam}", d.AwayTeam,
		"{minutesLeft}", strconv.Itoa(max(d.MinutesLeft, 0)),
		"{viewerCount}", FormatCount(d.ViewerCount),
		"{matchLink}", d.MatchLink,
		"{paymentLink}", d.PaymentLink,
		"{matchSlug}", d.MatchSlug,
		"{userSegment}", string(d.Segment),
		"{matchImportance}", string(d.Importance),
		"{kickoffTime}", d.KickoffTime,
	)
	pairs = append(pairs, brandTokens...)
	return strings.NewReplacer(pairs...).Replace(body)
}

package notifications

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderString_KnownAndUnknownTokens(t *testing.T) {
	d := Data{HomeTeam: "Arsenal", AwayTeam: "Chelsea", MinutesLeft: 30}

	got := RenderString("{homeTeam} vs {awayTeam} {unknownToken}", d)
	assert.Equal(t, "Arsenal vs Chelsea {unknownToken}", got)
}

func TestRenderString_AllFields(t *testing.T) {
	d := Data{
		HomeTeam:    "Arsenal",
		AwayTeam:    "Chelsea",
		MinutesLeft: 5,
		MatchSlug:   "arsenal-vs-chelsea",
		PaymentLink: "https://pay.example/x?a=1",
		MatchLink:   "https://site.example/match/arsenal-vs-chelsea",
		ViewerCount: 27431,
		Segment:     SegmentVIP,
		Importance:  ImportanceHigh,
		KickoffTime: "2026-10-14T18:30:00Z",
	}
	body := "{minutesLeft}|{viewerCount}|{matchSlug}|{paymentLink}|{matchLink}|{userSegment}|{matchImportance}|{kickoffTime}"

	got := RenderString(body, d)
	assert.Equal(t,
		"5|27,431|arsenal-vs-chelsea|https://pay.example/x?a=1|https://site.example/match/arsenal-vs-chelsea|vip|high|2026-10-14T18:30:00Z",
		got)
}

func TestRenderString_ClampsNegativeMinutes(t *testing.T) {
	assert.Equal(t, "0 min", RenderString("{minutesLeft} min", Data{MinutesLeft: -12}))
}

func TestRenderString_BrandTokens(t *testing.T) {
	got := RenderString("{brandName} {channelCount} {brandUrl}", Data{})
	assert.Equal(t, "IPTV SMARTERS PRO +15000 chaînes HD/4K https://www.iptv.shopping/pricing", got)
}

func TestRender_RepeatedTokens(t *testing.T) {
	tmpl, err := DefaultRegistry().Get("social_proof_60_b")
	assert.NoError(t, err)

	got := Render(tmpl, Data{HomeTeam: "A", AwayTeam: "B", MinutesLeft: 60, ViewerCount: 3000, PaymentLink: "L"})
	assert.Contains(t, got, "Kickoff in 60 — A vs B.")
	assert.Contains(t, got, "3,000 fans already watching live")
	assert.Contains(t, got, "Only 60 minutes to secure your spot")
	assert.Contains(t, got, "[Get IPTV SMARTERS PRO](L)")
	assert.NotContains(t, got, "{")
}

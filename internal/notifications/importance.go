package notifications

import (
	"math"
	"slices"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var premiumLeagues = []string{
	"Premier League", "Champions League", "La Liga", "Serie A", "Bundesliga",
}

var bigClubs = []string{
	"Manchester United", "Liverpool", "Arsenal", "Chelsea", "Manchester City",
	"Real Madrid", "Barcelona", "Bayern Munich", "Juventus", "AC Milan",
}

// MatchImportance classifies a fixture by league and club name. Missing
// names simply fail the membership checks.
func MatchImportance(league, home, away string) Importance {
	if !slices.Contains(premiumLeagues, league) {
		return ImportanceLow
	}
	if slices.Contains(bigClubs, home) || slices.Contains(bigClubs, away) {
		return ImportanceHigh
	}
	return ImportanceMedium
}

// --------------------------------------------------------------------------
// Viewer counts
// --------------------------------------------------------------------------

func viewerBase(imp Importance) float64 {
	switch imp {
	case ImportanceHigh:
		return 15000
	case ImportanceMedium:
		return 8000
	default:
		return 3000
	}
}

func urgencyMultiplier(minutesLeft int) float64 {
	switch {
	case minutesLeft <= 5:
		return 1.8
	case minutesLeft <= 30:
		return 1.4
	default:
		return 1.0
	}
}

// ViewerBounds returns the inclusive range ViewerCount can produce.
func ViewerBounds(minutesLeft int, imp Importance) (lo, hi int) {
	v := viewerBase(imp) * urgencyMultiplier(minutesLeft)
	return int(math.Floor(v * 0.8)), int(math.Floor(v * 1.2))
}

// ViewerCount produces the social-proof figure shown in alert copy:
// base × urgency × uniform[0.8, 1.2), floored.
func ViewerCount(minutesLeft int, imp Importance, rng *Rand) int {
	variation := 0.8 + rng.Float64()*0.4
	return int(math.Floor(viewerBase(imp) * urgencyMultiplier(minutesLeft) * variation))
}

// FormatCount renders n with English thousands separators.
func FormatCount(n int) string {
	return message.NewPrinter(language.English).Sprintf("%d", n)
}

package notifications

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// Stats summarises a user's recent notification history.
type Stats struct {
	Total        int
	Clicked      int
	Conversions  int
	LastActivity time.Time
}

// StatsReader loads history aggregates for segmentation.
type StatsReader interface {
	Stats(ctx context.Context, userID string, since time.Time) (Stats, error)
}

// Segmenter classifies users from their last 30 days of history.
type Segmenter struct {
	history StatsReader
	rng     *Rand
	now     func() time.Time
	logger  *slog.Logger
}

// NewSegmenter creates a segmenter. now and logger may be nil.
func NewSegmenter(history StatsReader, rng *Rand, now func() time.Time, logger *slog.Logger) *Segmenter {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Segmenter{history: history, rng: rng, now: now, logger: logger}
}

// Segment returns the user's segment. Anonymous users get a random
// 40/40/20 new/engaged/returning draw; lookup failures yield engaged.
func (s *Segmenter) Segment(ctx context.Context, userID string) Segment {
	if userID == "" {
		switch r := s.rng.Float64(); {
		case r < 0.4:
			return SegmentNew
		case r < 0.8:
			return SegmentEngaged
		default:
			return SegmentReturning
		}
	}

	now := s.now()
	st, err := s.history.Stats(ctx, userID, now.Add(-historyWindow))
	if err != nil {
		s.logger.Warn("Segment lookup failed, defaulting to engaged", "user_id", userID, "error", err)
		return SegmentEngaged
	}
	return Classify(st, now)
}

// Classify applies the segment thresholds to a history snapshot.
func Classify(st Stats, now time.Time) Segment {
	if st.Total == 0 {
		return SegmentNew
	}
	clickRate := float64(st.Clicked) / float64(st.Total)
	days := int(math.Floor(now.Sub(st.LastActivity).Hours() / 24))

	switch {
	case st.Conversions > 0 && clickRate > 0.6:
		return SegmentVIP
	case clickRate > 0.3 && days < 7:
		return SegmentEngaged
	case days < 14:
		return SegmentReturning
	default:
		return SegmentNew
	}
}

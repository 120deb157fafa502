package notifications

import "fmt"

// Selector draws a template for a timing window, weighted by segment affinity.
type Selector struct {
	registry *Registry
	rng      *Rand
}

// NewSelector creates a selector over registry.
func NewSelector(registry *Registry, rng *Rand) *Selector {
	return &Selector{registry: registry, rng: rng}
}

// Select filters the catalog to the timing bucket, reweights by segment and
// performs a weighted draw. An empty bucket returns ErrNoTemplate.
func (s *Selector) Select(minutesLeft int, halftime bool, p Profile) (Template, error) {
	bucket := BucketFor(minutesLeft, halftime)
	candidates := s.registry.InBucket(bucket)
	if len(candidates) == 0 {
		return Template{}, fmt.Errorf("%w: %s", ErrNoTemplate, bucket)
	}

	total := 0.0
	for i := range candidates {
		candidates[i].Weight = AdjustedWeight(candidates[i], p.Segment)
		total += candidates[i].Weight
	}

	r := s.rng.Float64() * total
	for _, t := range candidates {
		r -= t.Weight
		if r <= 0 {
			return t, nil
		}
	}
	return candidates[0], nil
}

// AdjustedWeight applies the segment multiplier to a template's base weight.
func AdjustedWeight(t Template, seg Segment) float64 {
	w := t.Weight
	switch seg {
	case SegmentVIP:
		if t.HasTrigger(TriggerExclusivity, TriggerPremiumPositioning) {
			w *= 2
		}
	case SegmentNew:
		if t.HasTrigger(TriggerSocialProof) {
			w *= 1.5
		}
	case SegmentEngaged:
		if t.HasTrigger(TriggerUrgency, TriggerFOMO) {
			w *= 1.3
		}
	}
	return w
}

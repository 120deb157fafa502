package notifications

import (
	"fmt"
	"slices"
)

// Psychology triggers referenced by selection weighting.
const (
	TriggerUrgency            = "urgency"
	TriggerMaximumUrgency     = "maximum_urgency"
	TriggerFOMO               = "fomo"
	TriggerScarcity           = "scarcity"
	TriggerSocialProof        = "social_proof"
	TriggerExclusivity        = "exclusivity"
	TriggerPremiumPositioning = "premium_positioning"
	TriggerInstantAccess      = "instant_access"
	TriggerEngagement         = "engagement"
	TriggerContinuation       = "continuation"
)

// Template is one catalog entry. Body placeholders use {name} syntax.
type Template struct {
	ID       string
	Name     string
	Bucket   Bucket
	Urgency  Urgency
	Triggers []string
	Body     string
	Weight   float64
}

// HasTrigger reports whether the template carries any of the given triggers.
func (t Template) HasTrigger(triggers ...string) bool {
	for _, tr := range triggers {
		if slices.Contains(t.Triggers, tr) {
			return true
		}
	}
	return false
}

// Registry is an immutable template catalog keyed by id.
type Registry struct {
	templates []Template
	byID      map[string]int
}

// NewRegistry validates and indexes a catalog. Catalog order is preserved and
// drives the weighted draw.
func NewRegistry(templates ...Template) (*Registry, error) {
	r := &Registry{
		templates: make([]Template, 0, len(templates)),
		byID:      make(map[string]int, len(templates)),
	}
	for _, t := range templates {
		if t.ID == "" {
			return nil, fmt.Errorf("template without id")
		}
		if _, dup := r.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate template %q", t.ID)
		}
		if t.Bucket == "" {
			return nil, fmt.Errorf("template %q: missing bucket", t.ID)
		}
		if t.Weight <= 0 {
			return nil, fmt.Errorf("template %q: weight must be positive", t.ID)
		}
		t.Triggers = slices.Clone(t.Triggers)
		r.byID[t.ID] = len(r.templates)
		r.templates = append(r.templates, t)
	}
	return r, nil
}

// DefaultRegistry returns the built-in catalog.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultTemplates()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns a template by id.
func (r *Registry) Get(id string) (Template, error) {
	i, ok := r.byID[id]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, id)
	}
	return r.copyAt(i), nil
}

// InBucket returns copies of the templates in a timing bucket, in catalog order.
func (r *Registry) InBucket(b Bucket) []Template {
	var out []Template
	for i, t := range r.templates {
		if t.Bucket == b {
			out = append(out, r.copyAt(i))
		}
	}
	return out
}

// All returns copies of every template, in catalog order.
func (r *Registry) All() []Template {
	out := make([]Template, len(r.templates))
	for i := range r.templates {
		out[i] = r.copyAt(i)
	}
	return out
}

func (r *Registry) copyAt(i int) Template {
	t := r.templates[i]
	t.Triggers = slices.Clone(t.Triggers)
	return t
}

// --------------------------------------------------------------------------
// Built-in catalog
// --------------------------------------------------------------------------

const (
	brandFooter = "\n\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n" +
		"🔥 IPTV SMARTERS PRO\n" +
		"IPTV SMARTERS PRO | N°1 en France\n" +
		"Le Meilleur Service IPTV Premium avec +15000 chaînes HD/4K\n\n" +
		"[Get IPTV SMARTERS PRO]({paymentLink})"

	kickoffHeader  = "Kickoff in {minutesLeft} — {homeTeam} vs {awayTeam}. Watch legally. Buy:\n[Watch Match]({paymentLink})\n\n"
	halftimeHeader = "Halftime — {homeTeam} vs {awayTeam}. Watch legally. Buy:\n[Watch Match]({paymentLink})\n\n"
)

// DefaultTemplates returns the production catalog.
func DefaultTemplates() []Template {
	return []Template{
		{
			ID:       "premium_60_a",
			Name:     "Premium Alert - Urgency + Premium Positioning",
			Bucket:   Bucket60,
			Urgency:  UrgencyMedium,
			Triggers: []string{TriggerUrgency, TriggerPremiumPositioning, TriggerInstantAccess},
			Body: kickoffHeader +
				"⚡ INSTANT 4K ACCESS - No Waiting\n" +
				"🏆 Join 75,000+ Premium Members\n" +
				"💎 Professional Commentary + Multi-Angle Views" +
				brandFooter,
			Weight: 30,
		},
		{
			ID:       "social_proof_60_b",
			Name:     "Social Proof + Scarcity",
			Bucket:   Bucket60,
			Urgency:  UrgencyMedium,
			Triggers: []string{TriggerSocialProof, TriggerScarcity, TriggerFOMO},
			Body: kickoffHeader +
				"📊 {viewerCount} fans already watching live\n" +
				"⏰ Only {minutesLeft} minutes to secure your spot\n" +
				"🎯 Limited 4K streams available" +
				brandFooter,
			Weight: 25,
		},
		{
			ID:       "urgency_30_a",
			Name:     "Escalated Urgency + FOMO",
			Bucket:   Bucket30,
			Urgency:  UrgencyHigh,
			Triggers: []string{TriggerUrgency, TriggerFOMO, TriggerScarcity},
			Body: kickoffHeader +
				"🔥 {viewerCount}+ fans streaming now\n" +
				"⏰ Limited spots remaining\n" +
				"💎 4K Quality guaranteed" +
				brandFooter,
			Weight: 35,
		},
		{
			ID:       "final_call_5_a",
			Name:     "Maximum Urgency + FOMO",
			Bucket:   Bucket5,
			Urgency:  UrgencyCritical,
			Triggers: []string{TriggerMaximumUrgency, TriggerFOMO, TriggerInstantAccess},
			Body: kickoffHeader +
				"⚡ LAST {minutesLeft} MINUTES - Don't Miss Kickoff!\n" +
				"🔥 {viewerCount} fans already streaming\n" +
				"💎 4K Quality + Instant Access" +
				brandFooter,
			Weight: 40,
		},
		{
			ID:       "exclusive_5_b",
			Name:     "Exclusive Access",
			Bucket:   Bucket5,
			Urgency:  UrgencyCritical,
			Triggers: []string{TriggerExclusivity, TriggerPremiumPositioning, TriggerUrgency},
			Body: kickoffHeader +
				"VIP ACCESS AVAILABLE:\n" +
				"🏆 Professional Commentary\n" +
				"📱 Multi-Device Streaming\n" +
				"🎯 Zero Buffering Guarantee" +
				brandFooter,
			Weight: 30,
		},
		{
			ID:       "halftime_engagement",
			Name:     "Halftime Engagement + Urgency",
			Bucket:   BucketHalftime,
			Urgency:  UrgencyHigh,
			Triggers: []string{TriggerEngagement, TriggerUrgency, TriggerContinuation},
			Body: halftimeHeader +
				"🔥 Second half starting soon!\n" +
				"📊 Don't miss the comeback\n" +
				"⚡ Instant access - No interruption" +
				brandFooter,
			Weight: 100,
		},
	}
}

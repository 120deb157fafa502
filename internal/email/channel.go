package email

import (
	"context"
	"errors"

	"github.com/albapepper/kickoff-alerts/internal/notifications"
)

// kickoffLayout matches the long US-English date the templates were written for.
const kickoffLayout = "Monday, January 2, 2006 at 03:04 PM MST"

// Channel adapts Service to the alert scheduler.
type Channel struct {
	svc *Service
}

// NewChannel wraps svc as a notifications.Channel.
func NewChannel(svc *Service) *Channel {
	return &Channel{svc: svc}
}

func (c *Channel) Name() string { return "email" }

// Supports requires a verified address with notifications enabled.
func (c *Channel) Supports(u notifications.User) bool {
	return u.Email != "" && u.EmailVerified && u.EmailEnabled
}

// Deliver sends the bucket's email template. The tracked payment link and
// the same attribution parameters ride along.
func (c *Channel) Deliver(ctx context.Context, d notifications.Delivery) error {
	name := d.User.Phone
	if name == "" {
		name = "Sports Fan"
	}
	r := Recipient{
		ID:               d.User.ID,
		Email:            d.User.Email,
		Name:             name,
		UnsubscribeToken: d.User.UnsubscribeToken,
		Enabled:          d.User.EmailEnabled,
	}
	data := MatchData{
		HomeTeam:        d.Data.HomeTeam,
		AwayTeam:        d.Data.AwayTeam,
		League:          d.Data.League,
		KickoffTime:     d.Match.Kickoff.UTC().Format(kickoffLayout),
		MinutesLeft:     d.Data.MinutesLeft,
		MatchSlug:       d.Data.MatchSlug,
		PaymentLink:     d.Data.PaymentLink,
		MatchLink:       d.Data.MatchLink,
		ViewerCount:     d.Data.ViewerCount,
		UserSegment:     string(d.Data.Segment),
		MatchImportance: string(d.Data.Importance),
		Urgency:         string(d.Template.Urgency),
		UTMParams:       d.Params.Encode(),
	}

	err := c.svc.SendMatchAlert(ctx, r, data, notifications.EmailTemplateID(d.Bucket))
	if errors.Is(err, ErrSkipped) {
		return notifications.ErrSkipped
	}
	return err
}

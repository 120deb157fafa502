package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/albapepper/kickoff-alerts/internal/metrics"
)

// --------------------------------------------------------------------------
// Collaborators
// --------------------------------------------------------------------------

// MatchStore loads the matches kicking off on a calendar day.
type MatchStore interface {
	TodayMatches(ctx context.Context, day time.Time) ([]Match, error)
}

// UserStore loads every user with a usable contact channel.
type UserStore interface {
	EligibleUsers(ctx context.Context) ([]User, error)
}

// HistoryStore appends send records and aggregates them for segmentation.
type HistoryStore interface {
	StatsReader
	Insert(ctx context.Context, rec Record) error
}

// Record is one row of user notification history.
type Record struct {
	ID               string
	UserID           string
	MatchID          string
	TemplateID       string
	Triggers         []string
	Urgency          Urgency
	ViewerCount      int
	Segment          Segment
	Importance       Importance
	Channels         []string
	SessionID        string
	NotificationType string
	Variant          string
	MatchTeams       string
	Kickoff          time.Time
	AlertTiming      int
	DayOfWeek        int
	Params           url.Values
	CreatedAt        time.Time
}

// --------------------------------------------------------------------------
// Result
// --------------------------------------------------------------------------

// TickResult tracks the outcome of one alert cycle.
type TickResult struct {
	mu sync.Mutex

	MatchesScanned   int
	MatchesFired     int
	UsersNotified    int
	UsersSkipped     int
	UsersFailed      int
	Deliveries       int
	DeliveryFailures int
	Fallbacks        int
	Duration         time.Duration
	Errors           []string
}

// Summary returns a human-readable summary.
func (r *TickResult) Summary() string {
	return fmt.Sprintf(
		"matches=%d fired=%d notified=%d skipped=%d failed=%d deliveries=%d delivery_failures=%d fallbacks=%d dur=%s",
		r.MatchesScanned, r.MatchesFired, r.UsersNotified, r.UsersSkipped,
		r.UsersFailed, r.Deliveries, r.DeliveryFailures, r.Fallbacks,
		r.Duration.Round(time.Millisecond))
}

func (r *TickResult) addError(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// defaultMedium tags the history row of a user no channel could reach.
const defaultMedium = "telegram"

type userStatus int

const (
	userNotified userStatus = iota
	userSkipped
	userFailed
)

type userOutcome struct {
	status     userStatus
	deliveries int
	failures   int
}

func (r *TickResult) record(o userOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch o.status {
	case userNotified:
		r.UsersNotified++
	case userSkipped:
		r.UsersSkipped++
	case userFailed:
		r.UsersFailed++
	}
	r.Deliveries += o.deliveries
	r.DeliveryFailures += o.failures
}

// --------------------------------------------------------------------------
// Scheduler
// --------------------------------------------------------------------------

// Options configures a Scheduler. Zero values fall back to production defaults.
type Options struct {
	Registry     *Registry
	Personalizer *Personalizer
	Rand         *Rand
	Now          func() time.Time
	Channels     []Channel

	// Zero-eligible-users fallback targets. Either may be nil.
	AdminSender MessageSender
	AdminChatID string
	Push        Broadcaster

	SiteURL         string
	CheckoutURL     string
	Workers         int
	DeliveryTimeout time.Duration
	Logger          *slog.Logger
}

// Scheduler runs the alert cycle for today's matches.
type Scheduler struct {
	matches MatchStore
	users   UserStore
	history HistoryStore

	segmenter    *Segmenter
	selector     *Selector
	personalizer *Personalizer
	tracker      *Tracker
	rng          *Rand
	now          func() time.Time
	channels     []Channel

	adminSender MessageSender
	adminChatID string
	push        Broadcaster

	siteURL     string
	checkoutURL string
	workers     int
	timeout     time.Duration
	logger      *slog.Logger
}

// NewScheduler wires the pipeline around its stores.
func NewScheduler(matches MatchStore, users UserStore, history HistoryStore, opts Options) *Scheduler {
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry()
	}
	if opts.Personalizer == nil {
		opts.Personalizer = NewPersonalizer()
	}
	if opts.Rand == nil {
		opts.Rand = NewRand(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	return &Scheduler{
		matches:      matches,
		users:        users,
		history:      history,
		segmenter:    NewSegmenter(history, opts.Rand, opts.Now, opts.Logger),
		selector:     NewSelector(opts.Registry, opts.Rand),
		personalizer: opts.Personalizer,
		tracker:      NewTracker(opts.Rand, opts.Now),
		rng:          opts.Rand,
		now:          opts.Now,
		channels:     opts.Channels,
		adminSender:  opts.AdminSender,
		adminChatID:  opts.AdminChatID,
		push:         opts.Push,
		siteURL:      strings.TrimRight(opts.SiteURL, "/"),
		checkoutURL:  opts.CheckoutURL,
		workers:      opts.Workers,
		timeout:      opts.DeliveryTimeout,
		logger:       opts.Logger,
	}
}

// fireContext is the per-match state shared by every user send.
type fireContext struct {
	match      Match
	minutes    int
	halftime   bool
	bucket     Bucket
	importance Importance
	viewers    int
}

// Tick runs one alert cycle. Only loading the match list can fail the tick;
// per-match and per-user failures are logged and counted.
func (s *Scheduler) Tick(ctx context.Context) (*TickResult, error) {
	wall := time.Now()
	now := s.now()
	result := &TickResult{}

	matches, err := s.matches.TodayMatches(ctx, now)
	if err != nil {
		metrics.AlertTicks.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load today's matches: %w", err)
	}
	result.MatchesScanned = len(matches)

	for _, m := range matches {
		if ctx.Err() != nil {
			result.addError("tick cancelled: %v", ctx.Err())
			break
		}
		mins := MinutesLeft(m.Kickoff, now)
		if !ShouldFire(mins, m.Status) {
			continue
		}
		result.MatchesFired++
		s.fireMatch(ctx, m, mins, result)
	}

	result.Duration = time.Since(wall)
	metrics.AlertTicks.WithLabelValues("ok").Inc()
	metrics.AlertTickDuration.Observe(result.Duration.Seconds())
	s.logger.Info("Alert tick complete", "summary", result.Summary())
	return result, nil
}

func (s *Scheduler) fireMatch(ctx context.Context, m Match, mins int, result *TickResult) {
	halftime := m.Status == StatusHalftime
	imp := MatchImportance(m.League, m.HomeTeam, m.AwayTeam)
	fc := fireContext{
		match:      m,
		minutes:    mins,
		halftime:   halftime,
		bucket:     BucketFor(mins, halftime),
		importance: imp,
		viewers:    ViewerCount(mins, imp, s.rng),
	}
	metrics.MatchesFired.WithLabelValues(string(fc.bucket)).Inc()

	users, err := s.users.EligibleUsers(ctx)
	if err != nil {
		s.logger.Error("Load eligible users failed", "match", m.Slug, "error", err)
		result.addError("match %s: load users: %v", m.Slug, err)
		return
	}

	if len(users) == 0 {
		s.fallback(ctx, fc, result)
		return
	}

	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, u := range users {
		g.Go(func() error {
			result.record(s.notifyUser(ctx, fc, u))
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("Processed match alerts",
		"match", m.Slug, "users", len(users),
		"bucket", fc.bucket, "importance", imp, "viewers", fc.viewers)
}

// notifyUser runs segmentation through delivery for one user. Nothing it
// does can fail the match loop.
func (s *Scheduler) notifyUser(ctx context.Context, fc fireContext, u User) userOutcome {
	var out userOutcome

	prof := ProfileFor(u, s.segmenter.Segment(ctx, u.ID))
	tmpl, err := s.selector.Select(fc.minutes, fc.halftime, prof)
	if err != nil {
		s.logger.Warn("Template selection failed", "match", fc.match.Slug, "user_id", u.ID, "error", err)
		out.status = userFailed
		return out
	}
	metrics.TemplatesSelected.WithLabelValues(tmpl.ID).Inc()

	var delivered []string
	var params url.Values
	attempted := 0
	for _, ch := range s.channels {
		if !ch.Supports(u) {
			continue
		}
		d := s.buildDelivery(fc, tmpl, prof, u, ch.Name())
		if params == nil {
			params = d.Params
		}
		err := s.deliver(ctx, ch, d)
		switch {
		case errors.Is(err, ErrSkipped):
			metrics.Deliveries.WithLabelValues(ch.Name(), "skipped").Inc()
			continue
		case err != nil:
			attempted++
			out.failures++
			metrics.Deliveries.WithLabelValues(ch.Name(), "failed").Inc()
			s.logger.Warn("Delivery failed",
				"channel", ch.Name(), "match", fc.match.Slug, "user_id", u.ID, "error", err)
			continue
		}
		attempted++
		out.deliveries++
		metrics.Deliveries.WithLabelValues(ch.Name(), "sent").Inc()
		delivered = append(delivered, ch.Name())
	}
	if params == nil {
		params = s.buildDelivery(fc, tmpl, prof, u, defaultMedium).Params
	}

	// Every user with a selected template gets a history row, delivered or not.
	rec := s.historyRecord(fc, tmpl, prof, delivered, params)
	if err := s.history.Insert(ctx, rec); err != nil {
		metrics.HistoryWrites.WithLabelValues("error").Inc()
		s.logger.Warn("History insert failed", "match", fc.match.Slug, "user_id", u.ID, "error", err)
	} else {
		metrics.HistoryWrites.WithLabelValues("ok").Inc()
	}

	switch {
	case attempted == 0:
		out.status = userSkipped
		return out
	case len(delivered) == 0:
		out.status = userFailed
		return out
	}

	s.logger.Debug("User notified",
		"user_id", u.ID, "segment", prof.Segment, "template", tmpl.ID,
		"channels", strings.Join(delivered, ","), "preference", prof.Preference)
	out.status = userNotified
	return out
}

func (s *Scheduler) deliver(ctx context.Context, ch Channel, d Delivery) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return ch.Deliver(ctx, d)
}

// fallback sends one broadcast for a match no user is eligible for: the admin
// chat over Telegram plus a web-push broadcast.
func (s *Scheduler) fallback(ctx context.Context, fc fireContext, result *TickResult) {
	prof := Profile{
		UserID:     fallbackUserID,
		Segment:    s.segmenter.Segment(ctx, ""),
		Preference: PreferenceStandard,
	}
	tmpl, err := s.selector.Select(fc.minutes, fc.halftime, prof)
	if err != nil {
		s.logger.Warn("Fallback template selection failed", "match", fc.match.Slug, "error", err)
		result.addError("match %s: fallback: %v", fc.match.Slug, err)
		return
	}

	result.mu.Lock()
	result.Fallbacks++
	result.mu.Unlock()

	if s.adminSender != nil && s.adminChatID != "" {
		d := s.buildDelivery(fc, tmpl, prof, User{}, "telegram")
		tctx, cancel := s.withTimeout(ctx)
		err := s.adminSender.SendMessage(tctx, s.adminChatID, d.Text)
		cancel()
		if err != nil {
			metrics.Deliveries.WithLabelValues("telegram_admin", "failed").Inc()
			s.logger.Warn("Fallback Telegram send failed", "match", fc.match.Slug, "error", err)
		} else {
			metrics.Deliveries.WithLabelValues("telegram_admin", "sent").Inc()
		}
	}

	if s.push != nil {
		d := s.buildDelivery(fc, tmpl, prof, User{}, "push")
		title := PushTitle(tmpl.Urgency, fc.match.HomeTeam, fc.match.AwayTeam, fc.minutes)
		pctx, cancel := s.withTimeout(ctx)
		err := s.push.Broadcast(pctx, title, d.Text, d.Data.PaymentLink)
		cancel()
		if err != nil {
			metrics.Deliveries.WithLabelValues("push", "failed").Inc()
			s.logger.Warn("Fallback push enqueue failed", "match", fc.match.Slug, "error", err)
		} else {
			metrics.Deliveries.WithLabelValues("push", "sent").Inc()
		}
	}

	s.logger.Info("Sent fallback alert",
		"match", fc.match.Slug, "template", tmpl.ID, "segment", prof.Segment,
		"importance", fc.importance, "viewers", fc.viewers)
}

func (s *Scheduler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// buildDelivery tracks the payment link for channel, then renders and
// personalizes the template with it.
func (s *Scheduler) buildDelivery(fc fireContext, tmpl Template, prof Profile, u User, channel string) Delivery {
	m := fc.match
	data := Data{
		HomeTeam:    m.HomeTeam,
		AwayTeam:    m.AwayTeam,
		League:      m.League,
		MinutesLeft: fc.minutes,
		MatchSlug:   m.Slug,
		MatchLink:   s.siteURL + "/match/" + m.Slug,
		ViewerCount: fc.viewers,
		Segment:     prof.Segment,
		Importance:  fc.importance,
		IsHalftime:  fc.halftime,
		Channel:     channel,
		KickoffTime: m.Kickoff.UTC().Format(time.RFC3339),
	}

	link := m.PaymentLink
	if link == "" {
		link = s.checkoutURL
	}
	params := s.tracker.Params(tmpl, data, u.ID)
	data.PaymentLink = TrackedLink(link, params)

	text := s.personalizer.Apply(Render(tmpl, data), prof, data)
	return Delivery{
		Channel:  channel,
		User:     u,
		Profile:  prof,
		Match:    m,
		Template: tmpl,
		Bucket:   fc.bucket,
		Data:     data,
		Params:   params,
		Text:     text,
	}
}

func (s *Scheduler) historyRecord(fc fireContext, tmpl Template, prof Profile, channels []string, params url.Values) Record {
	now := s.now()
	return Record{
		ID:               uuid.NewString(),
		UserID:           prof.UserID,
		MatchID:          fc.match.ID,
		TemplateID:       tmpl.ID,
		Triggers:         tmpl.Triggers,
		Urgency:          tmpl.Urgency,
		ViewerCount:      fc.viewers,
		Segment:          prof.Segment,
		Importance:       fc.importance,
		Channels:         channels,
		SessionID:        params.Get("session_id"),
		NotificationType: params.Get("notification_type"),
		Variant:          params.Get("variant"),
		MatchTeams:       params.Get("match_teams"),
		Kickoff:          fc.match.Kickoff,
		AlertTiming:      fc.minutes,
		DayOfWeek:        int(now.Weekday()),
		Params:           params,
		CreatedAt:        now,
	}
}


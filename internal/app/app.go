// Package app builds the component graph shared by cmd/worker, cmd/alerts
// and cmd/api from a loaded config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	"github.com/albapepper/kickoff-alerts/internal/config"
	"github.com/albapepper/kickoff-alerts/internal/db"
	"github.com/albapepper/kickoff-alerts/internal/email"
	"github.com/albapepper/kickoff-alerts/internal/fixture"
	"github.com/albapepper/kickoff-alerts/internal/live"
	"github.com/albapepper/kickoff-alerts/internal/maintenance"
	"github.com/albapepper/kickoff-alerts/internal/notifications"
	"github.com/albapepper/kickoff-alerts/internal/provider"
	"github.com/albapepper/kickoff-alerts/internal/push"
	"github.com/albapepper/kickoff-alerts/internal/telegram"
	"github.com/albapepper/kickoff-alerts/internal/trial"
)

// Outbound request budgets per upstream.
const (
	scoreRequestsPerMinute   = 60
	fixtureRequestsPerMinute = 120
	upstreamTimeout          = 10 * time.Second
)

// Querier is the pgx surface shared by every Postgres store.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// App holds every wired component. Optional components are nil when their
// configuration is absent.
type App struct {
	Config *config.Config
	Pool   *db.Pool
	Redis  *redis.Client

	Telegram     *telegram.Client
	Email        *email.Service
	Push         *push.Queue
	PushConsumer *push.Consumer
	Trials       *trial.Queue
	Alerts       *notifications.Scheduler
	Live         *live.Poller
	Fixtures     *fixture.Importer

	logger *slog.Logger
}

// New connects to Postgres and redis and wires the components.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	a := Wire(cfg, pool, rdb, logger)
	a.Pool = pool
	return a, nil
}

// Wire builds the components over already-open connections. q backs every
// Postgres store.
func Wire(cfg *config.Config, q Querier, rdb *redis.Client, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Redis: rdb, logger: logger}

	a.Telegram = telegram.NewClient("", cfg.TelegramBotToken, logger)
	a.Push = push.NewQueue(rdb)
	if cfg.PushSendURL != "" {
		a.PushConsumer = push.NewConsumer(a.Push, push.NewSender(cfg.PushSendURL, cfg.PushAPISecret), logger)
	}
	a.Trials = trial.NewQueue(rdb, q, a.Push, cfg.CheckoutURL, logger)

	var mailer email.Mailer
	if cfg.SMTPEnabled() {
		mailer = email.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	}
	a.Email = email.NewService(email.NewPGStore(q), mailer, cfg.EmailFrom, cfg.SiteURL, logger)

	a.Alerts = a.buildScheduler(q, mailer != nil)
	a.Live = a.buildPoller(q)
	a.Fixtures = fixture.NewImporter(
		fixture.NewClient(provider.NewClient(cfg.FixtureAPIURL, fixtureRequestsPerMinute, upstreamTimeout, logger), cfg.HighlightsURL),
		fixture.NewPGStore(q),
		cfg.CheckoutURL,
		cfg.SiteLink("/api/trial/start"),
		logger,
	)
	return a
}

func (a *App) buildScheduler(q Querier, emailEnabled bool) *notifications.Scheduler {
	cfg := a.Config
	store := notifications.NewPGStore(q)

	var channels []notifications.Channel
	var admin notifications.MessageSender
	if a.Telegram.Enabled() {
		channels = append(channels, notifications.NewTelegramChannel(a.Telegram))
		admin = a.Telegram
	}
	if emailEnabled {
		channels = append(channels, email.NewChannel(a.Email))
	}

	return notifications.NewScheduler(store, store, store, notifications.Options{
		Channels:        channels,
		AdminSender:     admin,
		AdminChatID:     cfg.TelegramChatID,
		Push:            a.Push,
		SiteURL:         cfg.SiteURL,
		CheckoutURL:     cfg.CheckoutURL,
		Workers:         cfg.AlertWorkers,
		DeliveryTimeout: cfg.DeliveryTimeout,
		Logger:          a.logger,
	})
}

func (a *App) buildPoller(q Querier) *live.Poller {
	cfg := a.Config
	scores := live.NewScoreClient(provider.NewClient(cfg.ScoreAPIURL, scoreRequestsPerMinute, upstreamTimeout, a.logger))

	var notifier live.GoalNotifier
	if a.Telegram.Enabled() {
		notifier = a.Telegram
	}
	return live.NewPoller(live.NewPGStore(q), scores, notifier, cfg.TelegramChatID, cfg.SiteLink, a.logger)
}

// Jobs returns the worker's periodic jobs. Fixture ingestion is disabled
// without a fixtures API URL.
func (a *App) Jobs() []maintenance.Job {
	cfg := a.Config
	fixtureInterval := cfg.FixtureInterval
	if cfg.FixtureAPIURL == "" {
		fixtureInterval = 0
	}

	return []maintenance.Job{
		{
			Name:     "alerts",
			Interval: cfg.AlertInterval,
			Align:    true,
			Run: func(ctx context.Context) error {
				_, err := a.Alerts.Tick(ctx)
				return err
			},
		},
		{
			Name:     "live",
			Interval: cfg.LiveInterval,
			Run: func(ctx context.Context) error {
				_, err := a.Live.Poll(ctx)
				return err
			},
		},
		{
			Name:       "fixtures",
			Interval:   fixtureInterval,
			Align:      true,
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				result := a.Fixtures.Import(ctx, cfg.FixtureDays)
				if result.Upserted == 0 && len(result.Errors) > 0 {
					return fmt.Errorf("fixture import: %s", result.Errors[0])
				}
				return nil
			},
		},
		{
			Name:     "trial",
			Interval: cfg.TrialPollInterval,
			Run: func(ctx context.Context) error {
				result, err := a.Trials.Poll(ctx, time.Now())
				if err == nil && result.Claimed > 0 {
					a.logger.Info("Trial jobs processed", "summary", result.Summary())
				}
				return err
			},
		},
	}
}

// Close releases the connections.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}

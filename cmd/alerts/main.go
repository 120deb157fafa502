// Command alerts runs single kickoff-alerts operations on demand.
//
// Usage:
//
//	kickoff-alerts tick
//	kickoff-alerts live poll
//	kickoff-alerts fixtures import --days 7
//	kickoff-alerts email seed-templates
//	kickoff-alerts trial schedule --phone +33600000000
//	kickoff-alerts trial poll
//	kickoff-alerts push send --title "Hi" --body "Kickoff soon" --url https://...
//	kickoff-alerts push drain
//	kickoff-alerts db migrate
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/kickoff-alerts/internal/app"
	"github.com/albapepper/kickoff-alerts/internal/config"
	"github.com/albapepper/kickoff-alerts/internal/db"
	"github.com/albapepper/kickoff-alerts/internal/push"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "kickoff-alerts",
		Short: "Kickoff alert pipeline CLI",
	}

	root.AddCommand(tickCmd())
	root.AddCommand(liveCmd())
	root.AddCommand(fixturesCmd())
	root.AddCommand(emailCmd())
	root.AddCommand(trialCmd())
	root.AddCommand(pushCmd())
	root.AddCommand(dbCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// tick / live
// --------------------------------------------------------------------------

func tickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one alert cycle over today's matches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, a *app.App) error {
				result, err := a.Alerts.Tick(ctx)
				if err != nil {
					return err
				}
				logger.Info("Tick finished", "summary", result.Summary())
				logErrors(result.Errors)
				return nil
			})
		},
	}
}

func liveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Live-score operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "poll",
		Short: "Poll in-play matches once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, a *app.App) error {
				result, err := a.Live.Poll(ctx)
				if err != nil {
					return err
				}
				logger.Info("Live poll finished", "summary", result.Summary())
				logErrors(result.Errors)
				return nil
			})
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// fixtures
// --------------------------------------------------------------------------

func fixturesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixtures",
		Short: "Fixture ingestion",
	}

	var days int
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import upcoming fixtures from the scheduled-events API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, a *app.App) error {
				if a.Config.FixtureAPIURL == "" {
					return fmt.Errorf("FIXTURE_API_URL is required")
				}
				if days == 0 {
					days = a.Config.FixtureDays
				}
				result := a.Fixtures.Import(ctx, days)
				logger.Info("Fixture import finished", "summary", result.Summary())
				for _, tc := range result.Filtered() {
					logger.Info("Filtered tournament", "name", tc.Name, "events", tc.Count)
				}
				logErrors(result.Errors)
				return nil
			})
		},
	}
	importCmd.Flags().IntVar(&days, "days", 0, "Days to import starting today (default FIXTURE_DAYS)")
	cmd.AddCommand(importCmd)
	return cmd
}

// --------------------------------------------------------------------------
// email
// --------------------------------------------------------------------------

func emailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "email",
		Short: "Email template management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "seed-templates",
		Short: "Upsert the built-in email templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, a *app.App) error {
				n, err := a.Email.SeedTemplates(ctx)
				if err != nil {
					return err
				}
				logger.Info("Email templates seeded", "count", n)
				return nil
			})
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// trial
// --------------------------------------------------------------------------

func trialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trial",
		Short: "Trial follow-up jobs",
	}

	var phone string
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule the nudge and expiry jobs for a phone",
		RunE: func(cmd *cobra.Command, args []string) error {
			if phone == "" {
				return fmt.Errorf("--phone is required")
			}
			return run(func(ctx context.Context, a *app.App) error {
				jobs, err := a.Trials.ScheduleFlow(ctx, phone)
				if err != nil {
					return err
				}
				for _, j := range jobs {
					logger.Info("Trial job scheduled", "job", j.Name, "id", j.ID, "due", j.DueAt.Format(time.RFC3339))
				}
				return nil
			})
		},
	}
	scheduleCmd.Flags().StringVar(&phone, "phone", "", "Trial phone number")
	cmd.AddCommand(scheduleCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "poll",
		Short: "Run every trial job that is due now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, a *app.App) error {
				result, err := a.Trials.Poll(ctx, time.Now())
				if err != nil {
					return err
				}
				logger.Info("Trial poll finished", "summary", result.Summary())
				logErrors(result.Errors)
				return nil
			})
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// push
// --------------------------------------------------------------------------

func pushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push broadcast queue",
	}

	var title, body, link string
	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Enqueue a push broadcast",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" {
				return fmt.Errorf("--title is required")
			}
			return run(func(ctx context.Context, a *app.App) error {
				if err := a.Push.Enqueue(ctx, push.Message{Title: title, Body: body, URL: link}); err != nil {
					return err
				}
				n, _ := a.Push.Len(ctx)
				logger.Info("Push broadcast enqueued", "pending", n)
				return nil
			})
		},
	}
	sendCmd.Flags().StringVar(&title, "title", "", "Notification title")
	sendCmd.Flags().StringVar(&body, "body", "", "Notification body")
	sendCmd.Flags().StringVar(&link, "url", "", "Click-through URL")
	cmd.AddCommand(sendCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "drain",
		Short: "Deliver every queued push broadcast and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, a *app.App) error {
				if a.PushConsumer == nil {
					return fmt.Errorf("PUSH_SEND_URL is required")
				}
				sent, dropped, err := a.PushConsumer.Drain(ctx)
				logger.Info("Push queue drained", "sent", sent, "dropped", dropped)
				return err
			})
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// db
// --------------------------------------------------------------------------

func dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := db.EnsureSchema(ctx, cfg); err != nil {
				return err
			}
			logger.Info("Schema applied")
			return nil
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// run handles config loading, connections, and context cancellation.
func run(fn func(ctx context.Context, a *app.App) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func logErrors(errs []string) {
	for _, e := range errs {
		logger.Error("run error", "error", e)
	}
}

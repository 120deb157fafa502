// Command worker is the long-running kickoff-alerts background process. It
// runs the alert tick, live-score poll, fixture ingestion and trial job poll
// on tickers, and consumes the push broadcast queue.
//
// Usage:
//
//	kickoff-worker
//	ALERT_INTERVAL=1m kickoff-worker
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/albapepper/kickoff-alerts/internal/app"
	"github.com/albapepper/kickoff-alerts/internal/config"
	"github.com/albapepper/kickoff-alerts/internal/db"
	"github.com/albapepper/kickoff-alerts/internal/maintenance"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := db.EnsureSchema(ctx, cfg); err != nil {
		logger.Error("Failed to apply schema", "error", err)
		os.Exit(1)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()
	logger.Info("Worker connected",
		"environment", cfg.Environment,
		"telegram", a.Telegram.Enabled(),
		"email", cfg.SMTPEnabled(),
		"push", a.PushConsumer != nil)

	if a.PushConsumer != nil {
		go a.PushConsumer.Run(ctx)
	} else {
		logger.Info("Push consumer disabled (no PUSH_SEND_URL)")
	}

	maintenance.Start(ctx, a.Jobs(), logger)
	logger.Info("Worker stopped")
}

// Package maintenance runs the worker's periodic jobs as Go tickers: the
// alert tick, the live-score poll, fixture ingestion and the trial job poll.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/albapepper/kickoff-alerts/internal/metrics"
)

// Job is one periodic task. A zero Interval disables it.
//
// An aligned job runs on wall-clock multiples of Interval (every 5m means
// :00, :05, :10) instead of every Interval counted from Start.
type Job struct {
	Name       string
	Interval   time.Duration
	Align      bool
	RunOnStart bool
	Run        func(ctx context.Context) error
}

// NextRun returns the first run time after now.
func NextRun(now time.Time, interval time.Duration, align bool) time.Time {
	if !align {
		return now.Add(interval)
	}
	return now.Truncate(interval).Add(interval)
}

// Start launches a loop per enabled job. Blocks until ctx is cancelled.
// Runs of one job never overlap; a run that overlaps the next slot skips it.
func Start(ctx context.Context, jobs []Job, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	for _, j := range jobs {
		if j.Interval <= 0 || j.Run == nil {
			logger.Info("Job disabled", "job", j.Name)
			continue
		}
		logger.Info("Job scheduled", "job", j.Name, "interval", j.Interval, "aligned", j.Align,
			"next", NextRun(time.Now(), j.Interval, j.Align).Format(time.RFC3339))
		go runLoop(ctx, j, logger)
	}

	<-ctx.Done()
	logger.Info("Maintenance loops stopped")
}

func runLoop(ctx context.Context, j Job, logger *slog.Logger) {
	if j.RunOnStart {
		_ = RunOnce(ctx, j, logger)
	}

	if !j.Align {
		t := time.NewTicker(j.Interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				_ = RunOnce(ctx, j, logger)
			case <-ctx.Done():
				return
			}
		}
	}

	timer := time.NewTimer(time.Until(NextRun(time.Now(), j.Interval, true)))
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			_ = RunOnce(ctx, j, logger)
			timer.Reset(time.Until(NextRun(time.Now(), j.Interval, true)))
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce runs j a single time, logging and counting the outcome.
func RunOnce(ctx context.Context, j Job, logger *slog.Logger) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	start := time.Now()
	err := j.Run(ctx)
	dur := time.Since(start).Round(time.Millisecond)
	metrics.JobRuns.WithLabelValues(j.Name, metrics.Result(err)).Inc()

	if err != nil {
		logger.Warn("Job failed", "job", j.Name, "duration", dur, "error", err)
		return err
	}
	logger.Debug("Job complete", "job", j.Name, "duration", dur)
	return nil
}

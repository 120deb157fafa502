// Package trial schedules the follow-up jobs for a free-trial session: a
// push nudge after 30 minutes and session expiry after 12 hours.
package trial

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	"github.com/albapepper/kickoff-alerts/internal/metrics"
)

// QueueKey is the redis sorted set of pending jobs scored by due time.
const QueueKey = "trial-provision"

const (
	JobNudge  = "nudge"
	JobExpire = "expire"

	nudgeDelay  = 30 * time.Minute
	expireDelay = 12 * time.Hour
	pollBatch   = 100
)

// ErrUnknownJob is returned for a job name with no handler.
var ErrUnknownJob = errors.New("unknown trial job")

// Job is one delayed action for a trial phone number.
type Job struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Phone string    `json:"phone"`
	DueAt time.Time `json:"due_at"`
}

// Broadcaster enqueues a web-push broadcast.
type Broadcaster interface {
	Broadcast(ctx context.Context, title, body, link string) error
}

// Execer runs the expiry statement.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PollResult tracks one poll of the job set.
type PollResult struct {
	Due      int
	Claimed  int
	Executed int
	Failed   int
	Errors   []string
}

// Summary returns a human-readable summary.
func (r *PollResult) Summary() string {
	return fmt.Sprintf("due=%d claimed=%d executed=%d failed=%d",
		r.Due, r.Claimed, r.Executed, r.Failed)
}

// Queue stores and runs trial jobs.
type Queue struct {
	rdb         *redis.Client
	db          Execer
	push        Broadcaster
	checkoutURL string
	now         func() time.Time
	logger      *slog.Logger
}

// NewQueue creates a queue. db and push may be nil for a schedule-only queue.
func NewQueue(rdb *redis.Client, db Execer, push Broadcaster, checkoutURL string, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		rdb:         rdb,
		db:          db,
		push:        push,
		checkoutURL: checkoutURL,
		now:         time.Now,
		logger:      logger,
	}
}

// ScheduleFlow enqueues the nudge and expiry jobs for phone.
func (q *Queue) ScheduleFlow(ctx context.Context, phone string) ([]Job, error) {
	if phone == "" {
		return nil, errors.New("phone is required")
	}
	now := q.now()
	jobs := []Job{
		{ID: uuid.NewString(), Name: JobNudge, Phone: phone, DueAt: now.Add(nudgeDelay)},
		{ID: uuid.NewString(), Name: JobExpire, Phone: phone, DueAt: now.Add(expireDelay)},
	}
	for _, j := range jobs {
		if err := q.Schedule(ctx, j); err != nil {
			return nil, err
		}
	}
	q.logger.Info("Trial flow scheduled", "phone", phone)
	return jobs, nil
}

// Schedule adds one job.
func (q *Queue) Schedule(ctx context.Context, j Job) error {
	payload, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encode trial job: %w", err)
	}
	z := redis.Z{Score: float64(j.DueAt.UnixMilli()), Member: string(payload)}
	if err := q.rdb.ZAdd(ctx, QueueKey, z).Err(); err != nil {
		return fmt.Errorf("schedule trial job: %w", err)
	}
	metrics.QueueEvents.WithLabelValues(QueueKey, "enqueued").Inc()
	return nil
}

// Pending returns the number of scheduled jobs.
func (q *Queue) Pending(ctx context.Context) (int64, error) {
	return q.rdb.ZCard(ctx, QueueKey).Result()
}

// Poll runs every job due at now. Removing a member claims it, so racing
// pollers never run a job twice. Jobs are removed whether or not they
// succeed.
func (q *Queue) Poll(ctx context.Context, now time.Time) (*PollResult, error) {
	members, err := q.rdb.ZRangeByScore(ctx, QueueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: pollBatch,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("load due trial jobs: %w", err)
	}

	result := &PollResult{Due: len(members)}
	for _, m := range members {
		removed, err := q.rdb.ZRem(ctx, QueueKey, m).Result()
		if err != nil {
			return result, fmt.Errorf("claim trial job: %w", err)
		}
		if removed == 0 {
			continue
		}
		result.Claimed++

		var j Job
		if err := json.Unmarshal([]byte(m), &j); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("decode: %v", err))
			metrics.QueueEvents.WithLabelValues(QueueKey, "dropped").Inc()
			continue
		}
		if err := q.Run(ctx, j); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s %s: %v", j.Name, j.ID, err))
			metrics.QueueEvents.WithLabelValues(QueueKey, "dropped").Inc()
			q.logger.Warn("Trial job failed", "job", j.Name, "id", j.ID, "error", err)
			continue
		}
		result.Executed++
		metrics.QueueEvents.WithLabelValues(QueueKey, "delivered").Inc()
	}
	return result, nil
}

// Run executes one job.
func (q *Queue) Run(ctx context.Context, j Job) error {
	switch j.Name {
	case JobNudge:
		if q.push == nil {
			return errors.New("no push broadcaster configured")
		}
		link := q.checkoutURL + "?utm_source=pmm&utm_medium=push&utm_campaign=trial_nudge"
		if err := q.push.Broadcast(ctx, "Trial running", "👍 Working? Get full access now.", link); err != nil {
			return fmt.Errorf("nudge: %w", err)
		}
		q.logger.Info("Trial nudge sent", "phone", j.Phone)
		return nil

	case JobExpire:
		if q.db == nil {
			return errors.New("no database configured")
		}
		tag, err := q.db.Exec(ctx, "trial_expire", j.Phone)
		if err != nil {
			return fmt.Errorf("expire: %w", err)
		}
		q.logger.Info("Trial expired", "phone", j.Phone, "sessions", tag.RowsAffected())
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, j.Name)
	}
}

// Package push queues web-push broadcasts on redis and forwards them to the
// site's push-send endpoint.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/albapepper/kickoff-alerts/internal/metrics"
)

// QueueKey is the redis list holding pending broadcasts.
const QueueKey = "push-broadcast"

// Message is one broadcast to every push subscriber.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

// --------------------------------------------------------------------------
// Queue
// --------------------------------------------------------------------------

// Queue is a FIFO of broadcasts on a redis list.
type Queue struct {
	rdb *redis.Client
	key string
}

// NewQueue creates a queue on QueueKey.
func NewQueue(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb, key: QueueKey}
}

// Enqueue appends a broadcast.
func (q *Queue) Enqueue(ctx context.Context, m Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode push message: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue push message: %w", err)
	}
	metrics.QueueEvents.WithLabelValues(q.key, "enqueued").Inc()
	return nil
}

// Broadcast enqueues a broadcast. It satisfies notifications.Broadcaster.
func (q *Queue) Broadcast(ctx context.Context, title, body, link string) error {
	return q.Enqueue(ctx, Message{Title: title, Body: body, URL: link})
}

// Len returns the number of pending broadcasts.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}

// errEmpty signals a pop that found nothing within its wait.
var errEmpty = errors.New("queue empty")

// pop removes the oldest raw payload, waiting up to wait. A zero wait
// does not block.
func (q *Queue) pop(ctx context.Context, wait time.Duration) (string, error) {
	var (
		raw string
		err error
	)
	if wait <= 0 {
		raw, err = q.rdb.RPop(ctx, q.key).Result()
	} else {
		var res []string
		res, err = q.rdb.BRPop(ctx, wait, q.key).Result()
		if err == nil {
			raw = res[1]
		}
	}
	if errors.Is(err, redis.Nil) {
		return "", errEmpty
	}
	return raw, err
}

// --------------------------------------------------------------------------
// Sender
// --------------------------------------------------------------------------

// Sender posts broadcasts to the push-send endpoint.
type Sender struct {
	httpClient *http.Client
	url        string
	secret     string
}

// NewSender creates a sender for endpoint, authenticated by secret.
func NewSender(endpoint, secret string) *Sender {
	return &Sender{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		url:        endpoint,
		secret:     secret,
	}
}

type sendRequest struct {
	Secret string `json:"secret"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	URL    string `json:"url,omitempty"`
}

// Send posts one broadcast. Any non-2xx status is an error.
func (s *Sender) Send(ctx context.Context, m Message) error {
	body, err := json.Marshal(sendRequest{Secret: s.secret, Title: m.Title, Body: m.Body, URL: m.URL})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post push broadcast: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("push send returned %s", resp.Status)
	}
	return nil
}

// --------------------------------------------------------------------------
// Consumer
// --------------------------------------------------------------------------

// Consumer forwards queued broadcasts to a Sender. Failed sends are logged
// and dropped.
type Consumer struct {
	queue  *Queue
	sender *Sender
	wait   time.Duration
	logger *slog.Logger
}

// NewConsumer creates a consumer that polls with a blocking pop.
func NewConsumer(queue *Queue, sender *Sender, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{queue: queue, sender: sender, wait: 5 * time.Second, logger: logger}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("Push consumer started", "queue", c.queue.key)
	for ctx.Err() == nil {
		if _, err := c.next(ctx, c.wait); err != nil && !errors.Is(err, errEmpty) {
			if ctx.Err() != nil {
				break
			}
			c.logger.Error("Push queue pop failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
	c.logger.Info("Push consumer stopped")
}

// Drain sends everything currently queued without blocking and returns how
// many were delivered and dropped.
func (c *Consumer) Drain(ctx context.Context) (sent, dropped int, err error) {
	for {
		ok, err := c.next(ctx, 0)
		switch {
		case errors.Is(err, errEmpty):
			return sent, dropped, nil
		case err != nil:
			return sent, dropped, err
		case ok:
			sent++
		default:
			dropped++
		}
	}
}

// next handles one message. It reports whether the message was delivered;
// a pop error means nothing was consumed.
func (c *Consumer) next(ctx context.Context, wait time.Duration) (bool, error) {
	raw, err := c.queue.pop(ctx, wait)
	if err != nil {
		return false, err
	}

	var m Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		metrics.QueueEvents.WithLabelValues(c.queue.key, "dropped").Inc()
		c.logger.Warn("Dropping malformed push message", "error", err)
		return false, nil
	}
	if err := c.sender.Send(ctx, m); err != nil {
		metrics.QueueEvents.WithLabelValues(c.queue.key, "dropped").Inc()
		c.logger.Warn("Push broadcast failed", "title", m.Title, "error", err)
		return false, nil
	}
	metrics.QueueEvents.WithLabelValues(c.queue.key, "delivered").Inc()
	c.logger.Info("Push broadcast sent", "title", m.Title)
	return true, nil
}

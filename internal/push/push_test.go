package push

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewQueue(rdb), mr
}

type pushEndpoint struct {
	mu       sync.Mutex
	received []sendRequest
	status   int
}

func (p *pushEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	p.mu.Lock()
	p.received = append(p.received, req)
	status := p.status
	p.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQueue_EnqueueIsFIFO(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Message{Title: "first"}))
	require.NoError(t, q.Broadcast(ctx, "second", "body", "https://x.example"))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	raw, err := q.pop(ctx, 0)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"first","body":""}`, raw)

	raw, err = q.pop(ctx, 0)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"second","body":"body","url":"https://x.example"}`, raw)

	_, err = q.pop(ctx, 0)
	assert.ErrorIs(t, err, errEmpty)
}

func TestConsumer_Drain(t *testing.T) {
	q, mr := newTestQueue(t)
	endpoint := &pushEndpoint{}
	srv := httptest.NewServer(endpoint)
	defer srv.Close()
	ctx := context.Background()

	require.NoError(t, q.Broadcast(ctx, "⚡ A vs B - 30 MIN WARNING", "text", "https://pay.example?utm_medium=push"))
	_, err := mr.Lpush(QueueKey, "{not json")
	require.NoError(t, err)

	c := NewConsumer(q, NewSender(srv.URL, "s3cret"), quietLogger())
	sent, dropped, err := c.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, dropped)

	require.Len(t, endpoint.received, 1)
	assert.Equal(t, sendRequest{
		Secret: "s3cret",
		Title:  "⚡ A vs B - 30 MIN WARNING",
		Body:   "text",
		URL:    "https://pay.example?utm_medium=push",
	}, endpoint.received[0])
}

func TestConsumer_DropsOnSendFailure(t *testing.T) {
	q, _ := newTestQueue(t)
	endpoint := &pushEndpoint{status: http.StatusUnauthorized}
	srv := httptest.NewServer(endpoint)
	defer srv.Close()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Message{Title: "t"}))

	sent, dropped, err := NewConsumer(q, NewSender(srv.URL, "wrong"), quietLogger()).Drain(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Equal(t, 1, dropped)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConsumer_RunStopsOnCancel(t *testing.T) {
	q, _ := newTestQueue(t)
	endpoint := &pushEndpoint{}
	srv := httptest.NewServer(endpoint)
	defer srv.Close()

	c := NewConsumer(q, NewSender(srv.URL, ""), quietLogger())
	c.wait = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.NoError(t, q.Enqueue(context.Background(), Message{Title: "live"}))
	assert.Eventually(t, func() bool {
		endpoint.mu.Lock()
		defer endpoint.mu.Unlock()
		return len(endpoint.received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestSender_RejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(&pushEndpoint{status: http.StatusInternalServerError})
	defer srv.Close()

	err := NewSender(srv.URL, "s").Send(context.Background(), Message{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

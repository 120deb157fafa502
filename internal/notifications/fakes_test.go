package notifications

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"
)

var testNow = time.Date(2026, 10, 14, 18, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// constSource is a rand.Source that always yields the same value.
type constSource uint64

func (c constSource) Uint64() uint64 { return uint64(c) }

func lowRand() *Rand  { return NewRand(constSource(0)) }
func highRand() *Rand { return NewRand(constSource(math.MaxUint64)) }

type fakeMatches struct {
	matches []Match
	err     error
}

func (f *fakeMatches) TodayMatches(_ context.Context, _ time.Time) ([]Match, error) {
	return f.matches, f.err
}

type fakeUsers struct {
	users []User
	err   error
}

func (f *fakeUsers) EligibleUsers(_ context.Context) ([]User, error) {
	return f.users, f.err
}

type fakeHistory struct {
	mu        sync.Mutex
	stats     map[string]Stats
	statsErr  error
	insertErr error
	records   []Record
}

func (f *fakeHistory) Stats(_ context.Context, userID string, _ time.Time) (Stats, error) {
	if f.statsErr != nil {
		return Stats{}, f.statsErr
	}
	return f.stats[userID], nil
}

func (f *fakeHistory) Insert(_ context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.records = append(f.records, rec)
	return nil
}

type sentMessage struct {
	ChatID string
	Text   string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	fail map[string]error
}

func (f *fakeSender) SendMessage(_ context.Context, chatID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[chatID]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

type broadcast struct {
	Title, Body, Link string
}

type fakeBroadcaster struct {
	mu   sync.Mutex
	sent []broadcast
	err  error
}

func (f *fakeBroadcaster) Broadcast(_ context.Context, title, body, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, broadcast{title, body, link})
	return nil
}

// fakeChannel records deliveries and returns err for every send.
type fakeChannel struct {
	name     string
	supports func(User) bool
	err      error

	mu        sync.Mutex
	delivered []Delivery
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Supports(u User) bool {
	return f.supports == nil || f.supports(u)
}

func (f *fakeChannel) Deliver(_ context.Context, d Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.delivered = append(f.delivered, d)
	return nil
}

// Package telegram is a minimal Bot API client for Markdown messages and
// goal-alert broadcasts.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	broadcastLimit = 8
)

// ErrNoToken is returned by every send when no bot token is configured.
var ErrNoToken = errors.New("telegram bot token not configured")

// Client sends messages through the Telegram Bot API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger
}

// NewClient creates a client. An empty baseURL uses the public Bot API.
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		logger:     logger,
	}
}

// Enabled reports whether a bot token is configured.
func (c *Client) Enabled() bool { return c.token != "" }

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage posts a Markdown message to chatID.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	if c.token == "" {
		return ErrNoToken
	}

	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text, ParseMode: "Markdown"})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/bot" + c.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr apiResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Description != "" {
			return fmt.Errorf("telegram API error %d: %s", resp.StatusCode, apiErr.Description)
		}
		return fmt.Errorf("telegram API error: %s", resp.Status)
	}
	return nil
}

// --------------------------------------------------------------------------
// Goal alerts
// --------------------------------------------------------------------------

// Goal describes a score change worth broadcasting.
type Goal struct {
	MatchSlug   string
	HomeTeam    string
	AwayTeam    string
	ScoringTeam string
	Minute      int
	Link        string
}

var spaces = regexp.MustCompile(`\s+`)

// GoalMessage renders the Markdown goal alert.
func GoalMessage(g Goal) string {
	emoji := "🥅⚽️"
	if g.ScoringTeam == g.HomeTeam {
		emoji = "⚽️🥅"
	}

	var b strings.Builder
	b.WriteString(emoji + " **GOAL! " + g.ScoringTeam + "**\n\n")
	b.WriteString("⏱ " + strconv.Itoa(g.Minute) + "'\n")
	b.WriteString("🏟 " + g.HomeTeam + " vs " + g.AwayTeam + "\n\n")
	b.WriteString("🔴 **WATCH REPLAY HD:**\n")
	b.WriteString("[Click to Watch Goal](" + g.Link + ")\n\n")
	b.WriteString("#" + spaces.ReplaceAllString(g.HomeTeam, "") +
		" #" + spaces.ReplaceAllString(g.AwayTeam, "") + " #Live")
	return b.String()
}

// BroadcastGoalAlert sends the goal alert to every recipient in parallel. It
// returns the number delivered and the joined per-recipient failures.
func (c *Client) BroadcastGoalAlert(ctx context.Context, g Goal, recipients []string) (int, error) {
	if c.token == "" {
		return 0, ErrNoToken
	}
	text := GoalMessage(g)
	c.logger.Info("Broadcasting goal alert", "match", g.MatchSlug, "team", g.ScoringTeam,
		"minute", g.Minute, "recipients", len(recipients))

	var (
		mu   sync.Mutex
		sent int
		errs []error
	)
	var eg errgroup.Group
	eg.SetLimit(broadcastLimit)
	for _, chatID := range recipients {
		eg.Go(func() error {
			err := c.SendMessage(ctx, chatID, text)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("chat %s: %w", chatID, err))
				return nil
			}
			sent++
			return nil
		})
	}
	_ = eg.Wait()
	return sent, errors.Join(errs...)
}

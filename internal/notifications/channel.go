package notifications

import (
	"context"
	"errors"
	"net/url"
)

// ErrSkipped is returned by a channel that chose not to send, e.g. an
// address that fails validation. It is neither a delivery nor a failure.
var ErrSkipped = errors.New("delivery skipped")

// Delivery is one rendered alert for one user on one channel.
type Delivery struct {
	Channel  string
	User     User
	Profile  Profile
	Match    Match
	Template Template
	Bucket   Bucket
	// Data.PaymentLink is already the tracked link.
	Data   Data
	Params url.Values
	Text   string
}

// Channel delivers alerts over one transport. Supports is evaluated per user.
type Channel interface {
	Name() string
	Supports(u User) bool
	Deliver(ctx context.Context, d Delivery) error
}

// MessageSender posts a Markdown message to a Telegram chat.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// Broadcaster enqueues a web-push broadcast to every subscriber.
type Broadcaster interface {
	Broadcast(ctx context.Context, title, body, link string) error
}

// --------------------------------------------------------------------------
// Telegram
// --------------------------------------------------------------------------

// TelegramChannel sends the rendered text to the user's Telegram chat.
type TelegramChannel struct {
	sender MessageSender
}

// NewTelegramChannel wraps a Telegram sender.
func NewTelegramChannel(sender MessageSender) *TelegramChannel {
	return &TelegramChannel{sender: sender}
}

func (c *TelegramChannel) Name() string { return "telegram" }

func (c *TelegramChannel) Supports(u User) bool {
	return u.TelegramID != ""
}

func (c *TelegramChannel) Deliver(ctx context.Context, d Delivery) error {
	return c.sender.SendMessage(ctx, d.User.TelegramID, d.Text)
}

package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrTemplateNotFound is returned when no email template has the id.
	ErrTemplateNotFound = errors.New("email template not found")
	// ErrInvalidToken is returned when an unsubscribe token matches no user.
	ErrInvalidToken = errors.New("invalid unsubscribe token")
)

// Template is one row of email_templates.
type Template struct {
	ID      string
	Name    string
	Subject string
	HTML    string
	Text    string
	// Variables documents the placeholders the template expects.
	Variables []string
}

// Status values written to email_notification_history.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Tracking is one row of email_notification_history.
type Tracking struct {
	ID          string
	UserID      string
	TemplateID  string
	Urgency     string
	ViewerCount int
	Segment     string
	Importance  string
	Status      string
	Error       string
}

// Querier is the subset of pgxpool.Pool the store uses.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the email persistence the service depends on.
type Store interface {
	TemplateByID(ctx context.Context, id string) (Template, error)
	UpsertTemplate(ctx context.Context, t Template) error
	RecordSend(ctx context.Context, tr Tracking) error
	Unsubscribe(ctx context.Context, token string) error
}

// PGStore implements Store over the prepared statements registered in
// internal/db.
type PGStore struct {
	q Querier
}

// NewPGStore creates a store over a pool.
func NewPGStore(q Querier) *PGStore {
	return &PGStore{q: q}
}

// TemplateByID loads a template, returning ErrTemplateNotFound if absent.
func (s *PGStore) TemplateByID(ctx context.Context, id string) (Template, error) {
	var t Template
	err := s.q.QueryRow(ctx, "email_template_by_id", id).
		Scan(&t.ID, &t.Name, &t.Subject, &t.HTML, &t.Text)
	if errors.Is(err, pgx.ErrNoRows) {
		return Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	if err != nil {
		return Template{}, fmt.Errorf("query email template %s: %w", id, err)
	}
	return t, nil
}

// UpsertTemplate inserts or replaces a template by id.
func (s *PGStore) UpsertTemplate(ctx context.Context, t Template) error {
	vars, err := json.Marshal(t.Variables)
	if err != nil {
		return fmt.Errorf("encode variables: %w", err)
	}
	if _, err := s.q.Exec(ctx, "email_upsert_template",
		t.ID, t.Name, t.Subject, t.HTML, t.Text, string(vars)); err != nil {
		return fmt.Errorf("upsert email template %s: %w", t.ID, err)
	}
	return nil
}

// RecordSend appends a delivery outcome.
func (s *PGStore) RecordSend(ctx context.Context, tr Tracking) error {
	_, err := s.q.Exec(ctx, "email_insert_history",
		tr.ID, tr.UserID, tr.TemplateID, tr.Urgency, tr.ViewerCount,
		tr.Segment, tr.Importance, tr.Status, tr.Error)
	if err != nil {
		return fmt.Errorf("insert email history: %w", err)
	}
	return nil
}

// Unsubscribe disables email notifications for the token's owner.
func (s *PGStore) Unsubscribe(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	tag, err := s.q.Exec(ctx, "email_unsubscribe", token)
	if err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidToken
	}
	return nil
}

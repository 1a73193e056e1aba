// Package storage persists users, daily paper batches and the inbound
// message log in a single SQLite file.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/antoniofrancaib/alan/internal/domain"
)

// ErrNotFound is returned when a lookup matches nothing. Callers treat it as
// a normal state (e.g. "no papers for today"), not a failure.
var ErrNotFound = errors.New("storage: not found")

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default (5s)
}

// InboundMessage is one webhook delivery we acted on, kept for audit.
type InboundMessage struct {
	ID          string
	PhoneNumber string
	Kind        string // "text", "image", ...
	Body        string
	ReceivedAt  time.Time
	Replied     bool
}

// Store is the persistence API used by the notification run, the paper
// fetcher and the webhook handler.
type Store interface {
	// Users. The subscription flow owns writes; UpsertUser exists for the
	// webhook's first-contact registration and for tests.
	UpsertUser(ctx context.Context, u *domain.User) error
	GetUserByPhone(ctx context.Context, phone string) (*domain.User, error)
	TouchInteraction(ctx context.Context, phone string, at time.Time) error
	// ListNotifiable returns subscribed users whose last interaction is
	// after cutoff (the 24h recency gate).
	ListNotifiable(ctx context.Context, cutoff time.Time) ([]domain.User, error)

	// Daily papers, keyed by domain.DateKey. Upsert is idempotent per date.
	GetDailyPapers(ctx context.Context, dateKey string) (*domain.ContentBatch, error)
	HasDailyPapers(ctx context.Context, dateKey string) (bool, error)
	UpsertDailyPapers(ctx context.Context, dateKey string, papers []domain.Paper) error

	AppendInbound(ctx context.Context, m InboundMessage) error

	Close() error
}

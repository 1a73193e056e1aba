// Package notify runs the daily notification: pick today's batch, find users
// whose delivery window is open right now, and fan the rendered message out
// through the rate-limited dispatcher.
//
// A run is stateless and idempotent only at the batch level: there is no
// per-user-per-day "sent" marker, so overlapping runs inside one eligibility
// window can re-notify a user. Accepted limitation; the poll cadence is kept
// at the window size so at most one run sees each user as due.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/antoniofrancaib/alan/internal/dispatch"
	"github.com/antoniofrancaib/alan/internal/domain"
	"github.com/antoniofrancaib/alan/internal/storage"
	logx "github.com/antoniofrancaib/alan/pkg/logx"
)

// Outcome is the terminal state of a run. NoPapers and NoUsers are normal,
// not failures.
type Outcome string

const (
	OutcomeSent     Outcome = "sent"
	OutcomeNoPapers Outcome = "no_papers"
	OutcomeNoUsers  Outcome = "no_users"
)

// Summary aggregates one run. Skipped counts candidates outside their window
// or with malformed timezone/time data (fail-closed, logged, never fatal).
type Summary struct {
	Outcome Outcome
	Sent    int
	Skipped int
	Failed  int
}

func (s Summary) String() string {
	return fmt.Sprintf("outcome=%s sent=%d skipped=%d failed=%d", s.Outcome, s.Sent, s.Skipped, s.Failed)
}

// Store is the slice of storage this run reads.
type Store interface {
	GetDailyPapers(ctx context.Context, dateKey string) (*domain.ContentBatch, error)
	ListNotifiable(ctx context.Context, cutoff time.Time) ([]domain.User, error)
}

// Sender is the channel send primitive (implemented by whatsapp.Client).
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// Config tunes a run. Zero values fall back to the standard defaults
// (5-minute window, 24h recency, batches of 60 spaced 1s apart).
type Config struct {
	WindowMinutes int
	RecencyWindow time.Duration
	BatchSize     int
	BatchDelay    time.Duration
	Sleep         dispatch.Sleeper // injected in tests
}

func (c Config) withDefaults() Config {
	if c.WindowMinutes <= 0 {
		c.WindowMinutes = domain.WindowMinutes
	}
	if c.RecencyWindow <= 0 {
		c.RecencyWindow = 24 * time.Hour
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 60
	}
	if c.BatchDelay <= 0 {
		c.BatchDelay = time.Second
	}
	return c
}

type Service struct {
	cfg    Config
	store  Store
	sender Sender
	log    logx.Logger
}

func New(cfg Config, store Store, sender Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg.withDefaults(), store: store, sender: sender, log: log}
}

// Apply swaps run tuning at runtime (config hot reload). The store and
// sender handles are fixed for the service lifetime.
func (s *Service) Apply(cfg Config) { s.cfg = cfg.withDefaults() }

// Run executes one notification pass for nowUTC.
//
// Failures fetching papers or users are fatal to the run and returned; the
// scheduler simply tries again next tick. Per-recipient send failures are
// isolated and only counted in the Summary.
func (s *Service) Run(ctx context.Context, nowUTC time.Time) (Summary, error) {
	cfg := s.cfg
	runID := uuid.NewString()
	log := s.log.With(logx.String("run", runID))
	start := time.Now()
	defer func() { runDurationHist.Observe(time.Since(start).Seconds()) }()

	dateKey := domain.DateKey(nowUTC)

	batch, err := s.store.GetDailyPapers(ctx, dateKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return Summary{}, fmt.Errorf("fetch papers %s: %w", dateKey, err)
	}
	if batch == nil || batch.Empty() {
		log.Info("no papers to send", logx.String("date", dateKey))
		runsCounter.WithLabelValues(string(OutcomeNoPapers)).Inc()
		return Summary{Outcome: OutcomeNoPapers}, nil
	}

	body := RenderMessage(nowUTC, batch.Papers)

	cutoff := nowUTC.Add(-cfg.RecencyWindow)
	candidates, err := s.store.ListNotifiable(ctx, cutoff)
	if err != nil {
		return Summary{}, fmt.Errorf("list users: %w", err)
	}

	var (
		due     []domain.User
		skipped int
	)
	for _, u := range candidates {
		ok, err := domain.EligibleWithin(u, nowUTC, cfg.WindowMinutes)
		if err != nil {
			// Fail closed: a user with broken timezone/time data is skipped,
			// never allowed to abort the whole run.
			log.Warn("user excluded: bad schedule data",
				logx.String("user", u.ID), logx.Err(err))
			skipped++
			continue
		}
		if !ok {
			skipped++
			continue
		}
		due = append(due, u)
	}

	if len(due) == 0 {
		log.Info("no users to notify", logx.String("date", dateKey), logx.Int("candidates", len(candidates)))
		runsCounter.WithLabelValues(string(OutcomeNoUsers)).Inc()
		return Summary{Outcome: OutcomeNoUsers, Skipped: skipped}, nil
	}

	log.Info("dispatching daily papers",
		logx.String("date", dateKey),
		logx.Int("recipients", len(due)),
		logx.Int("batches", dispatch.Batches(len(due), cfg.BatchSize)),
	)

	results := dispatch.Dispatch(ctx, due, dispatch.Options{
		BatchSize: cfg.BatchSize,
		Delay:     cfg.BatchDelay,
		Sleep:     cfg.Sleep,
	}, func(ctx context.Context, u domain.User) error {
		return s.sender.Send(ctx, u.PhoneNumber, body)
	})

	sum := Summary{Outcome: OutcomeSent, Skipped: skipped}
	for _, r := range results {
		if r.Err != nil {
			sum.Failed++
			sendsCounter.WithLabelValues("failed").Inc()
			log.Warn("send failed",
				logx.String("user", r.Recipient.ID), logx.Err(r.Err))
			continue
		}
		sum.Sent++
		sendsCounter.WithLabelValues("ok").Inc()
	}

	runsCounter.WithLabelValues(string(OutcomeSent)).Inc()
	log.Info("notification run finished",
		logx.String("date", dateKey),
		logx.Int("sent", sum.Sent),
		logx.Int("skipped", sum.Skipped),
		logx.Int("failed", sum.Failed),
		logx.Duration("dur", time.Since(start)),
	)
	return sum, nil
}

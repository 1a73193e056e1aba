package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/antoniofrancaib/alan/internal/domain"
	logx "github.com/antoniofrancaib/alan/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open opens (creating if needed) the SQLite database at cfg.Path and runs
// migrations.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- users ----

func (s *sqliteStore) UpsertUser(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id, phone_number, subscribed, preferred_time, timezone, last_interaction, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?)
		 ON CONFLICT(phone_number) DO UPDATE SET
		   subscribed = excluded.subscribed,
		   preferred_time = excluded.preferred_time,
		   timezone = excluded.timezone,
		   last_interaction = excluded.last_interaction,
		   updated_at = excluded.updated_at`,
		u.ID, u.PhoneNumber, boolInt(u.Subscribed), u.PreferredTime, u.Timezone,
		nullUnix(u.LastInteraction), u.CreatedAt.Unix(), u.UpdatedAt.Unix(),
	)
	return err
}

func (s *sqliteStore) GetUserByPhone(ctx context.Context, phone string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, phone_number, subscribed, preferred_time, timezone, last_interaction, created_at, updated_at
		   FROM users WHERE phone_number = ?`, phone)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func (s *sqliteStore) TouchInteraction(ctx context.Context, phone string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_interaction = ?, updated_at = ? WHERE phone_number = ?`,
		at.UTC().Unix(), time.Now().UTC().Unix(), phone)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) ListNotifiable(ctx context.Context, cutoff time.Time) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, phone_number, subscribed, preferred_time, timezone, last_interaction, created_at, updated_at
		   FROM users
		  WHERE subscribed = 1 AND last_interaction IS NOT NULL AND last_interaction > ?
		  ORDER BY phone_number`,
		cutoff.UTC().Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(r rowScanner) (*domain.User, error) {
	var (
		u          domain.User
		subscribed int64
		lastInter  sql.NullInt64
		createdAt  int64
		updatedAt  int64
	)
	err := r.Scan(&u.ID, &u.PhoneNumber, &subscribed, &u.PreferredTime, &u.Timezone,
		&lastInter, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	u.Subscribed = subscribed != 0
	if lastInter.Valid {
		u.LastInteraction = time.Unix(lastInter.Int64, 0).UTC()
	}
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	u.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &u, nil
}

// ---- daily papers ----

func (s *sqliteStore) GetDailyPapers(ctx context.Context, dateKey string) (*domain.ContentBatch, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT papers FROM daily_papers WHERE date = ?`, dateKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var papers []domain.Paper
	if err := json.Unmarshal([]byte(raw), &papers); err != nil {
		return nil, fmt.Errorf("daily_papers %s: decode: %w", dateKey, err)
	}
	return &domain.ContentBatch{Date: dateKey, Papers: papers}, nil
}

func (s *sqliteStore) HasDailyPapers(ctx context.Context, dateKey string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM daily_papers WHERE date = ?`, dateKey).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) UpsertDailyPapers(ctx context.Context, dateKey string, papers []domain.Paper) error {
	raw, err := json.Marshal(papers)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Unix()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO daily_papers(date, papers, created_at, updated_at)
		 VALUES(?,?,?,?)
		 ON CONFLICT(date) DO UPDATE SET papers = excluded.papers, updated_at = excluded.updated_at`,
		dateKey, string(raw), now, now)
	return err
}

// ---- inbound log ----

func (s *sqliteStore) AppendInbound(ctx context.Context, m InboundMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.ReceivedAt.IsZero() {
		m.ReceivedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO inbound_messages(id, phone_number, kind, body, received_at, replied)
		 VALUES(?,?,?,?,?,?)`,
		m.ID, m.PhoneNumber, m.Kind, m.Body, m.ReceivedAt.UTC().Unix(), boolInt(m.Replied))
	return err
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func nullUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().Unix(), Valid: true}
}

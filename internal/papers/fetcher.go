// Package papers keeps the daily_papers table filled: it scrapes the latest
// papers listing and upserts a batch per date key.
package papers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/antoniofrancaib/alan/internal/domain"
	"github.com/antoniofrancaib/alan/internal/storage"
	logx "github.com/antoniofrancaib/alan/pkg/logx"
)

const (
	DefaultSourceURL = "https://paperswithcode.com/latest"
	DefaultMaxPapers = 3

	userAgent = "Mozilla/5.0 (compatible; AlanMLBot/1.0)"
)

type Config struct {
	SourceURL string
	MaxPapers int
}

// Fetcher fills missing daily batches. It looks one day back and one day
// ahead of "today" so late or early runs around midnight still leave a batch
// for every date the notifier may ask for.
type Fetcher struct {
	cfg        Config
	store      storage.Store
	httpClient *http.Client
	log        logx.Logger
}

func NewFetcher(cfg Config, store storage.Store, httpClient *http.Client, log logx.Logger) *Fetcher {
	if cfg.SourceURL == "" {
		cfg.SourceURL = DefaultSourceURL
	}
	if cfg.MaxPapers <= 0 {
		cfg.MaxPapers = DefaultMaxPapers
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Fetcher{cfg: cfg, store: store, httpClient: httpClient, log: log}
}

// Run checks yesterday/today/tomorrow and stores a batch for each date that
// has none. Upserts are idempotent by date, so overlapping runs are harmless.
// A failure on one date is logged and does not abort the others; Run reports
// how many dates were filled.
func (f *Fetcher) Run(ctx context.Context, nowUTC time.Time) (int, error) {
	dates := []string{
		domain.DateKey(nowUTC.Add(-24 * time.Hour)),
		domain.DateKey(nowUTC),
		domain.DateKey(nowUTC.Add(24 * time.Hour)),
	}

	// The listing page is not date-addressable: fetch it once and stamp the
	// same top entries onto every missing date.
	var (
		fetched []domain.Paper
		haveAll bool
	)

	filled := 0
	var firstErr error
	for _, date := range dates {
		has, err := f.store.HasDailyPapers(ctx, date)
		if err != nil {
			return filled, fmt.Errorf("check daily papers %s: %w", date, err)
		}
		if has {
			continue
		}

		if !haveAll {
			fetched, err = f.fetchLatest(ctx)
			if err != nil {
				f.log.Error("paper fetch failed", logx.String("date", date), logx.Err(err))
				if firstErr == nil {
					firstErr = err
				}
				break // the page won't differ for the other dates
			}
			haveAll = true
		}

		batch := make([]domain.Paper, len(fetched))
		copy(batch, fetched)
		for i := range batch {
			batch[i].Date = date
		}

		if err := f.store.UpsertDailyPapers(ctx, date, batch); err != nil {
			f.log.Error("paper store failed", logx.String("date", date), logx.Err(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		filled++
		f.log.Info("daily papers stored", logx.String("date", date), logx.Int("count", len(batch)))
	}
	return filled, firstErr
}

func (f *Fetcher) fetchLatest(ctx context.Context) ([]domain.Paper, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.SourceURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", f.cfg.SourceURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: status %d", f.cfg.SourceURL, resp.StatusCode)
	}

	return Parse(resp.Body, f.siteRoot(), f.cfg.MaxPapers)
}

func (f *Fetcher) siteRoot() string {
	u, err := url.Parse(f.cfg.SourceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

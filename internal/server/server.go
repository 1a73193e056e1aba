// Package server exposes the HTTP surface: job triggers, the WhatsApp
// webhook, health and metrics. The /jobs endpoints are the canonical entry
// points: an external scheduler (or the built-in cron) POSTs them on a fixed
// cadence and reads back a coarse plain-text status.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/antoniofrancaib/alan/internal/notify"
	logx "github.com/antoniofrancaib/alan/pkg/logx"
)

// Notifier runs one notification pass (notify.Service).
type Notifier interface {
	Run(ctx context.Context, nowUTC time.Time) (notify.Summary, error)
}

// Fetcher fills missing daily batches (papers.Fetcher).
type Fetcher interface {
	Run(ctx context.Context, nowUTC time.Time) (int, error)
}

// WebhookHandler is the pair of channel callback handlers.
type WebhookHandler interface {
	Verify(w http.ResponseWriter, r *http.Request)
	Receive(w http.ResponseWriter, r *http.Request)
}

type Server struct {
	httpSrv  *http.Server
	notifier Notifier
	fetcher  Fetcher
	log      logx.Logger
	now      func() time.Time
}

func New(addr string, notifier Notifier, fetcher Fetcher, wh WebhookHandler, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{
		notifier: notifier,
		fetcher:  fetcher,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/jobs/send-daily-papers", s.handleSend)
	r.Post("/jobs/fetch-daily-papers", s.handleFetch)

	r.Get("/webhook", wh.Verify)
	r.Post("/webhook", wh.Receive)

	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // a full send run answers synchronously
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("http server listening", logx.String("addr", s.httpSrv.Addr))
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// handleSend maps the run outcome onto the small status-code contract:
// 200 success or normal-empty, 207 partial send failures, 500 hard failure.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	sum, err := s.notifier.Run(r.Context(), s.now())
	if err != nil {
		s.log.Error("notification run failed", logx.Err(err))
		http.Error(w, "Failed to send papers: "+err.Error(), http.StatusInternalServerError)
		return
	}

	switch {
	case sum.Outcome == notify.OutcomeNoPapers:
		writeText(w, http.StatusOK, "No papers to send")
	case sum.Outcome == notify.OutcomeNoUsers:
		writeText(w, http.StatusOK, "No users to notify")
	case sum.Failed > 0:
		writeText(w, http.StatusMultiStatus, fmt.Sprintf("Papers sent with failures (%s)", sum))
	default:
		writeText(w, http.StatusOK, fmt.Sprintf("Papers sent successfully (%s)", sum))
	}
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	filled, err := s.fetcher.Run(r.Context(), s.now())
	if err != nil {
		s.log.Error("paper fetch run failed", logx.Err(err))
		http.Error(w, "Failed to check papers: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeText(w, http.StatusOK, fmt.Sprintf("Papers check completed (%d dates filled)", filled))
}

func writeText(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(msg))
}

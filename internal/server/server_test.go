package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniofrancaib/alan/internal/notify"
	logx "github.com/antoniofrancaib/alan/pkg/logx"
)

type stubNotifier struct {
	sum notify.Summary
	err error
}

func (s stubNotifier) Run(context.Context, time.Time) (notify.Summary, error) { return s.sum, s.err }

type stubFetcher struct {
	filled int
	err    error
}

func (s stubFetcher) Run(context.Context, time.Time) (int, error) { return s.filled, s.err }

type stubWebhook struct{}

func (stubWebhook) Verify(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("verified"))
}

func (stubWebhook) Receive(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("received"))
}

func newTestServer(n Notifier, f Fetcher) *httptest.Server {
	s := New(":0", n, f, stubWebhook{}, logx.Nop())
	return httptest.NewServer(s.httpSrv.Handler)
}

func TestHandleSendStatuses(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		notifier   stubNotifier
		wantStatus int
		wantBody   string
	}{
		{
			"success",
			stubNotifier{sum: notify.Summary{Outcome: notify.OutcomeSent, Sent: 3}},
			http.StatusOK, "Papers sent successfully",
		},
		{
			"no papers",
			stubNotifier{sum: notify.Summary{Outcome: notify.OutcomeNoPapers}},
			http.StatusOK, "No papers to send",
		},
		{
			"no users",
			stubNotifier{sum: notify.Summary{Outcome: notify.OutcomeNoUsers}},
			http.StatusOK, "No users to notify",
		},
		{
			"partial failures",
			stubNotifier{sum: notify.Summary{Outcome: notify.OutcomeSent, Sent: 2, Failed: 1}},
			http.StatusMultiStatus, "Papers sent with failures",
		},
		{
			"hard failure",
			stubNotifier{err: errors.New("db gone")},
			http.StatusInternalServerError, "Failed to send papers",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := newTestServer(tc.notifier, stubFetcher{})
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/jobs/send-daily-papers", "", nil)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tc.wantStatus, resp.StatusCode)
			body := make([]byte, 256)
			n, _ := resp.Body.Read(body)
			assert.Contains(t, string(body[:n]), tc.wantBody)
		})
	}
}

func TestHandleFetch(t *testing.T) {
	t.Parallel()

	srv := newTestServer(stubNotifier{}, stubFetcher{filled: 2})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/jobs/fetch-daily-papers", "", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := make([]byte, 256)
	n, _ := resp.Body.Read(body)
	assert.Contains(t, string(body[:n]), "2 dates filled")
}

func TestHandleFetchFailure(t *testing.T) {
	t.Parallel()

	srv := newTestServer(stubNotifier{}, stubFetcher{err: errors.New("source down")})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/jobs/fetch-daily-papers", "", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestRoutes(t *testing.T) {
	t.Parallel()

	srv := newTestServer(stubNotifier{}, stubFetcher{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/webhook")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/webhook", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

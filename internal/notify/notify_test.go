package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/antoniofrancaib/alan/internal/dispatch"
	"github.com/antoniofrancaib/alan/internal/domain"
	"github.com/antoniofrancaib/alan/internal/storage"
	logx "github.com/antoniofrancaib/alan/pkg/logx"
)

type fakeStore struct {
	batch    *domain.ContentBatch
	batchErr error

	users    []domain.User
	usersErr error

	gotDateKey string
	gotCutoff  time.Time
}

func (f *fakeStore) GetDailyPapers(_ context.Context, dateKey string) (*domain.ContentBatch, error) {
	f.gotDateKey = dateKey
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	return f.batch, nil
}

func (f *fakeStore) ListNotifiable(_ context.Context, cutoff time.Time) ([]domain.User, error) {
	f.gotCutoff = cutoff
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	return f.users, nil
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []string
	bodies  []string
	failFor map[string]error
}

func (f *fakeSender) Send(_ context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[to]; ok {
		return err
	}
	f.sent = append(f.sent, to)
	f.bodies = append(f.bodies, body)
	return nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func dueUser(id, phone string) domain.User {
	return domain.User{
		ID: id, PhoneNumber: phone, Subscribed: true,
		Timezone: "UTC", PreferredTime: "09:00:00",
	}
}

// Two minutes before the 09:00 preference of dueUser: inside the window.
var testNow = time.Date(2026, 8, 31, 8, 58, 0, 0, time.UTC)

func testBatch() *domain.ContentBatch {
	return &domain.ContentBatch{
		Date: "2026-08-31",
		Papers: []domain.Paper{{
			Title:       "Scaling Laws Revisited",
			Link:        "https://example.org/p/1",
			Description: "A fresh look at compute-optimal training.",
			Authors:     []string{"A. Author", "B. Author"},
			Date:        "2026-08-31",
		}},
	}
}

func newTestService(store *fakeStore, sender *fakeSender, cfg Config) *Service {
	if cfg.Sleep == nil {
		cfg.Sleep = noSleep
	}
	return New(cfg, store, sender, logx.Nop())
}

func TestRunNoPapersIsNormal(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		store *fakeStore
	}{
		{"missing batch", &fakeStore{batchErr: storage.ErrNotFound}},
		{"empty batch", &fakeStore{batch: &domain.ContentBatch{Date: "2026-08-31"}}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			sender := &fakeSender{}
			svc := newTestService(tc.store, sender, Config{})

			sum, err := svc.Run(context.Background(), testNow)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if sum.Outcome != OutcomeNoPapers {
				t.Fatalf("outcome = %s, want no_papers", sum.Outcome)
			}
			if len(sender.sent) != 0 {
				t.Fatal("nothing should be sent without papers")
			}
		})
	}
}

func TestRunStoreFailureIsFatal(t *testing.T) {
	t.Parallel()

	boom := errors.New("db locked")
	t.Run("papers lookup", func(t *testing.T) {
		t.Parallel()
		svc := newTestService(&fakeStore{batchErr: boom}, &fakeSender{}, Config{})
		if _, err := svc.Run(context.Background(), testNow); !errors.Is(err, boom) {
			t.Fatalf("err = %v, want wrapped boom", err)
		}
	})
	t.Run("user listing", func(t *testing.T) {
		t.Parallel()
		svc := newTestService(&fakeStore{batch: testBatch(), usersErr: boom}, &fakeSender{}, Config{})
		if _, err := svc.Run(context.Background(), testNow); !errors.Is(err, boom) {
			t.Fatalf("err = %v, want wrapped boom", err)
		}
	})
}

func TestRunNoUsersDue(t *testing.T) {
	t.Parallel()

	outside := dueUser("u1", "111")
	outside.PreferredTime = "20:00:00"
	badTZ := dueUser("u2", "222")
	badTZ.Timezone = "Mars/Olympus"

	store := &fakeStore{batch: testBatch(), users: []domain.User{outside, badTZ}}
	sender := &fakeSender{}
	svc := newTestService(store, sender, Config{})

	sum, err := svc.Run(context.Background(), testNow)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Outcome != OutcomeNoUsers {
		t.Fatalf("outcome = %s, want no_users", sum.Outcome)
	}
	if sum.Skipped != 2 {
		t.Fatalf("skipped = %d, want 2", sum.Skipped)
	}
	if len(sender.sent) != 0 {
		t.Fatal("nothing should be sent")
	}
}

func TestRunSendsToDueUsers(t *testing.T) {
	t.Parallel()

	notDue := dueUser("u3", "333")
	notDue.PreferredTime = "15:00:00"

	store := &fakeStore{
		batch: testBatch(),
		users: []domain.User{dueUser("u1", "111"), dueUser("u2", "222"), notDue},
	}
	sender := &fakeSender{}
	svc := newTestService(store, sender, Config{RecencyWindow: 24 * time.Hour})

	sum, err := svc.Run(context.Background(), testNow)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Outcome != OutcomeSent {
		t.Fatalf("outcome = %s, want sent", sum.Outcome)
	}
	if sum.Sent != 2 || sum.Skipped != 1 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}

	if store.gotDateKey != "2026-08-31" {
		t.Fatalf("date key = %q", store.gotDateKey)
	}
	wantCutoff := testNow.Add(-24 * time.Hour)
	if !store.gotCutoff.Equal(wantCutoff) {
		t.Fatalf("cutoff = %s, want %s", store.gotCutoff, wantCutoff)
	}

	want := RenderMessage(testNow, testBatch().Papers)
	for i, body := range sender.bodies {
		if body != want {
			t.Fatalf("body[%d] differs from rendered message", i)
		}
	}
}

func TestRunNotifiesExactlyTheUserInWindow(t *testing.T) {
	t.Parallel()

	// 13:58 UTC is 08:58 in New York: two minutes before that user's
	// preference. The second user's preferred minute has just passed, the
	// third has a broken timezone; both are skipped, one send goes out.
	now := time.Date(2026, 8, 31, 13, 58, 0, 0, time.UTC)

	inWindow := dueUser("u1", "111")
	inWindow.Timezone = "America/New_York"

	justPassed := dueUser("u2", "222")
	justPassed.PreferredTime = "13:55:00"

	badTZ := dueUser("u3", "333")
	badTZ.Timezone = "Mars/Olympus"

	store := &fakeStore{batch: testBatch(), users: []domain.User{inWindow, justPassed, badTZ}}
	sender := &fakeSender{}
	svc := newTestService(store, sender, Config{})

	sum, err := svc.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Outcome != OutcomeSent {
		t.Fatalf("outcome = %s, want sent", sum.Outcome)
	}
	if sum.Sent != 1 || sum.Skipped != 2 || sum.Failed != 0 {
		t.Fatalf("summary = %+v, want exactly one send", sum)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "111" {
		t.Fatalf("sent to %v, want only 111", sender.sent)
	}
}

func TestRunCountsSendFailures(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		batch: testBatch(),
		users: []domain.User{dueUser("u1", "111"), dueUser("u2", "222"), dueUser("u3", "333")},
	}
	sender := &fakeSender{failFor: map[string]error{"222": errors.New("status 500")}}
	svc := newTestService(store, sender, Config{})

	sum, err := svc.Run(context.Background(), testNow)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Sent != 2 || sum.Failed != 1 {
		t.Fatalf("summary = %+v, want 2 sent 1 failed", sum)
	}
}

func TestRunBatchesWithInjectedSleep(t *testing.T) {
	t.Parallel()

	users := make([]domain.User, 5)
	for i := range users {
		users[i] = dueUser("u", "100")
	}
	store := &fakeStore{batch: testBatch(), users: users}

	var (
		mu     sync.Mutex
		sleeps int
	)
	sleep := dispatch.Sleeper(func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		sleeps++
		mu.Unlock()
		return nil
	})
	svc := New(Config{BatchSize: 2, BatchDelay: time.Second, Sleep: sleep}, store, &fakeSender{}, logx.Nop())

	if _, err := svc.Run(context.Background(), testNow); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 5 recipients in batches of 2: pauses after batch 1 and 2 only.
	if sleeps != 2 {
		t.Fatalf("sleeps = %d, want 2", sleeps)
	}
}

func TestApplySwapsTuning(t *testing.T) {
	t.Parallel()

	svc := newTestService(&fakeStore{}, &fakeSender{}, Config{})
	svc.Apply(Config{WindowMinutes: 10, BatchSize: 5})
	if svc.cfg.WindowMinutes != 10 || svc.cfg.BatchSize != 5 {
		t.Fatalf("cfg = %+v", svc.cfg)
	}
	// Defaults still fill the rest.
	if svc.cfg.RecencyWindow != 24*time.Hour || svc.cfg.BatchDelay != time.Second {
		t.Fatalf("cfg defaults = %+v", svc.cfg)
	}
}

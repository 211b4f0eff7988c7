package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/warp/debt-ledger/ledger"
	"github.com/warp/debt-ledger/ledger/store"
	"github.com/warp/debt-ledger/mail"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testEnv struct {
	clock   *ledger.ManualClock
	repo    *store.Memory
	mailer  *mail.LogMailer
	handler *Handler
	metrics *Metrics
	router  http.Handler
}

// newTestEnv wires the API on an in-memory store with the clock at noon UTC
// on today.
func newTestEnv(t *testing.T, today string) *testEnv {
	t.Helper()
	repo := store.NewMemory()
	clock := ledger.ClockAt(ledger.MustParseDate(today))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mailer := mail.NewLogMailer(logger)
	metrics := NewMetrics()

	l := ledger.NewLedger(repo, clock)
	l.Audit = repo
	l.Logger = logger

	s := ledger.NewReminderScheduler(repo, clock, mailer, "billing@vendor.test")
	s.Audit = repo
	s.Logger = logger
	s.Metrics = metrics

	h := NewHandler(l, s, ledger.NewReporter(repo, clock))
	h.Store = repo
	h.Logger = logger

	return &testEnv{
		clock:   clock,
		repo:    repo,
		mailer:  mailer,
		handler: h,
		metrics: metrics,
		router:  NewRouter(h, metrics),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) createClient(t *testing.T, name, email string) ClientDTO {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/clients", map[string]string{"name": name, "email": email})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[ClientDTO](t, rec)
}

func (e *testEnv) createDebt(t *testing.T, c ClientDTO, amount, date, deadline string) DebtDTO {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/debts", map[string]any{
		"client":      c.ID,
		"amount":      amount,
		"description": "Invoice for " + c.Name,
		"date":        date,
		"deadline":    deadline,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[DebtDTO](t, rec)
}

func (e *testEnv) pay(t *testing.T, d DebtDTO, amount string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, http.MethodPost, "/api/payments", map[string]any{
		"client": d.ClientID,
		"debt":   d.ID,
		"amount": amount,
	})
}

// failingMailer rejects every message.
type failingMailer struct{}

func (failingMailer) Send(context.Context, string, string, string, string) error {
	return errors.New("smtp: 550 mailbox unavailable")
}

// brokenListStore fails the list queries that start a batch.
type brokenListStore struct {
	*store.Memory
}

func (brokenListStore) ListDebts(context.Context, ledger.DebtFilter) ([]ledger.Debt, error) {
	return nil, errors.New("database is locked")
}

func (brokenListStore) ListNotifications(context.Context, ledger.NotificationFilter) ([]ledger.Notification, error) {
	return nil, errors.New("database is locked")
}

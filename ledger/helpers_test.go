package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/warp/debt-ledger/ledger"
	"github.com/warp/debt-ledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testSender = "billing@vendor.test"

type fixture struct {
	ctx       context.Context
	repo      *store.Memory
	clock     *ledger.ManualClock
	ledger    *ledger.Ledger
	scheduler *ledger.ReminderScheduler
	reporter  *ledger.Reporter
	mailer    *fakeMailer
}

// newFixture builds an engine on an in-memory store with the clock at noon
// UTC on today.
func newFixture(t *testing.T, today string) *fixture {
	t.Helper()
	repo := store.NewMemory()
	clock := ledger.ClockAt(ledger.MustParseDate(today))
	mailer := &fakeMailer{}

	l := ledger.NewLedger(repo, clock)
	l.Audit = repo

	s := ledger.NewReminderScheduler(repo, clock, mailer, testSender)
	s.Audit = repo

	return &fixture{
		ctx:       context.Background(),
		repo:      repo,
		clock:     clock,
		ledger:    l,
		scheduler: s,
		reporter:  ledger.NewReporter(repo, clock),
		mailer:    mailer,
	}
}

func (f *fixture) setToday(date string) {
	f.clock.Set(ledger.ClockAt(ledger.MustParseDate(date)).Now())
}

func (f *fixture) today() ledger.Date { return ledger.Today(f.clock) }

func (f *fixture) client(t *testing.T, name, email string) ledger.Client {
	t.Helper()
	c, err := f.ledger.CreateClient(f.ctx, ledger.ClientInput{Name: name, Email: email})
	require.NoError(t, err)
	return c
}

func (f *fixture) debt(t *testing.T, c ledger.Client, amount, date, deadline string) ledger.Debt {
	t.Helper()
	d, err := f.ledger.CreateDebt(f.ctx, ledger.DebtInput{
		ClientID:    c.ID,
		Amount:      ledger.MustParseMoney(amount),
		Description: "Invoice for " + c.Name,
		Date:        ledger.MustParseDate(date),
		Deadline:    ledger.MustParseDate(deadline),
	})
	require.NoError(t, err)
	return d
}

func (f *fixture) pay(d ledger.Debt, amount string) (ledger.PaymentReceipt, error) {
	return f.ledger.RecordPayment(f.ctx, ledger.PaymentInput{
		ClientID: d.ClientID,
		DebtID:   d.ID,
		Amount:   ledger.MustParseMoney(amount),
	})
}

func (f *fixture) mustPay(t *testing.T, d ledger.Debt, amount string) ledger.PaymentReceipt {
	t.Helper()
	r, err := f.pay(d, amount)
	require.NoError(t, err)
	return r
}

func (f *fixture) getDebt(t *testing.T, id ledger.DebtID) ledger.Debt {
	t.Helper()
	d, err := f.ledger.GetDebt(f.ctx, id)
	require.NoError(t, err)
	return d
}

func money(s string) ledger.Money { return ledger.MustParseMoney(s) }

func date(s string) ledger.Date { return ledger.MustParseDate(s) }

// =============================================================================
// FAKE MAILER
// =============================================================================

type sentMail struct {
	From, To, Subject, Body string
}

type fakeMailer struct {
	mu      sync.Mutex
	sent    []sentMail
	calls   int
	failFor map[string]error // recipient -> error
	block   bool             // wait for ctx to end
}

func (m *fakeMailer) Send(ctx context.Context, from, to, subject, body string) error {
	m.mu.Lock()
	m.calls++
	block := m.block
	err := m.failFor[to]
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{From: from, To: to, Subject: subject, Body: body})
	return nil
}

func (m *fakeMailer) failTo(recipient string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor == nil {
		m.failFor = make(map[string]error)
	}
	m.failFor[recipient] = errors.New("smtp: 550 mailbox unavailable")
}

func (m *fakeMailer) heal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFor = nil
	m.block = false
}

func (m *fakeMailer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *fakeMailer) sentMails() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

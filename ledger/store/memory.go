// Package store provides in-process Repository implementations.
package store

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/warp/debt-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements ledger.TxRepository, ledger.AuditLog and ledger.Resetter.
// WithTx holds the write lock for the whole transaction, which makes every
// transaction serializable and LockDebt a plain read.
type Memory struct {
	mu sync.RWMutex
	d  *tables

	auditMu sync.Mutex
	audit   []ledger.AuditEntry
}

func NewMemory() *Memory {
	return &Memory{d: newTables()}
}

type tables struct {
	clients       map[ledger.ClientID]ledger.Client
	emails        map[string]ledger.ClientID
	debts         map[ledger.DebtID]ledger.Debt
	payments      map[ledger.PaymentID]ledger.Payment
	notifications map[ledger.NotificationID]ledger.Notification
}

func newTables() *tables {
	return &tables{
		clients:       make(map[ledger.ClientID]ledger.Client),
		emails:        make(map[string]ledger.ClientID),
		debts:         make(map[ledger.DebtID]ledger.Debt),
		payments:      make(map[ledger.PaymentID]ledger.Payment),
		notifications: make(map[ledger.NotificationID]ledger.Notification),
	}
}

// clone copies the maps. Values are copied by assignment; the only pointer
// field (Notification.SentAt) is never mutated in place.
func (t *tables) clone() *tables {
	return &tables{
		clients:       maps.Clone(t.clients),
		emails:        maps.Clone(t.emails),
		debts:         maps.Clone(t.debts),
		payments:      maps.Clone(t.payments),
		notifications: maps.Clone(t.notifications),
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.d.clone()
	if err := fn(m.d); err != nil {
		m.d = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		m.d = snapshot
		return err
	}
	return nil
}

// Reset drops all data including the audit log.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	m.d = newTables()
	m.mu.Unlock()

	m.auditMu.Lock()
	m.audit = nil
	m.auditMu.Unlock()
	return nil
}

func (m *Memory) read(fn func(t *tables)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(m.d)
}

func (m *Memory) write(fn func(t *tables) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.d)
}

// =============================================================================
// LOCKED WRAPPERS - Non-transactional access
// =============================================================================

func (m *Memory) CreateClient(ctx context.Context, c ledger.Client) error {
	return m.write(func(t *tables) error { return t.CreateClient(ctx, c) })
}

func (m *Memory) GetClient(ctx context.Context, id ledger.ClientID) (c ledger.Client, err error) {
	m.read(func(t *tables) { c, err = t.GetClient(ctx, id) })
	return
}

func (m *Memory) ListClients(ctx context.Context) (cs []ledger.Client, err error) {
	m.read(func(t *tables) { cs, err = t.ListClients(ctx) })
	return
}

func (m *Memory) DeleteClient(ctx context.Context, id ledger.ClientID) error {
	return m.write(func(t *tables) error { return t.DeleteClient(ctx, id) })
}

func (m *Memory) CreateDebt(ctx context.Context, d ledger.Debt) error {
	return m.write(func(t *tables) error { return t.CreateDebt(ctx, d) })
}

func (m *Memory) GetDebt(ctx context.Context, id ledger.DebtID) (d ledger.Debt, err error) {
	m.read(func(t *tables) { d, err = t.GetDebt(ctx, id) })
	return
}

func (m *Memory) LockDebt(ctx context.Context, id ledger.DebtID) (ledger.Debt, error) {
	return m.GetDebt(ctx, id)
}

func (m *Memory) UpdateDebt(ctx context.Context, d ledger.Debt) error {
	return m.write(func(t *tables) error { return t.UpdateDebt(ctx, d) })
}

func (m *Memory) ListDebts(ctx context.Context, f ledger.DebtFilter) (ds []ledger.Debt, err error) {
	m.read(func(t *tables) { ds, err = t.ListDebts(ctx, f) })
	return
}

func (m *Memory) CreatePayment(ctx context.Context, p ledger.Payment) error {
	return m.write(func(t *tables) error { return t.CreatePayment(ctx, p) })
}

func (m *Memory) GetPayment(ctx context.Context, id ledger.PaymentID) (p ledger.Payment, err error) {
	m.read(func(t *tables) { p, err = t.GetPayment(ctx, id) })
	return
}

func (m *Memory) ListPayments(ctx context.Context, f ledger.PaymentFilter) (ps []ledger.Payment, err error) {
	m.read(func(t *tables) { ps, err = t.ListPayments(ctx, f) })
	return
}

func (m *Memory) SumPayments(ctx context.Context, debtID ledger.DebtID) (sum ledger.Money, err error) {
	m.read(func(t *tables) { sum, err = t.SumPayments(ctx, debtID) })
	return
}

func (m *Memory) CreateNotification(ctx context.Context, n ledger.Notification) error {
	return m.write(func(t *tables) error { return t.CreateNotification(ctx, n) })
}

func (m *Memory) GetNotification(ctx context.Context, id ledger.NotificationID) (n ledger.Notification, err error) {
	m.read(func(t *tables) { n, err = t.GetNotification(ctx, id) })
	return
}

func (m *Memory) UpdateNotification(ctx context.Context, n ledger.Notification) error {
	return m.write(func(t *tables) error { return t.UpdateNotification(ctx, n) })
}

func (m *Memory) ListNotifications(ctx context.Context, f ledger.NotificationFilter) (ns []ledger.Notification, err error) {
	m.read(func(t *tables) { ns, err = t.ListNotifications(ctx, f) })
	return
}

func (m *Memory) HasActiveReminder(ctx context.Context, debtID ledger.DebtID) (ok bool, err error) {
	m.read(func(t *tables) { ok, err = t.HasActiveReminder(ctx, debtID) })
	return
}

func (m *Memory) ClaimNotification(ctx context.Context, id ledger.NotificationID, from ...ledger.NotificationStatus) (n ledger.Notification, err error) {
	err = m.write(func(t *tables) error {
		n, err = t.ClaimNotification(ctx, id, from...)
		return err
	})
	return
}

// =============================================================================
// TABLES - Unlocked Repository used directly inside WithTx
// =============================================================================

func (t *tables) CreateClient(_ context.Context, c ledger.Client) error {
	email := ledger.NormalizeEmail(c.Email)
	if _, taken := t.emails[email]; taken {
		return fmt.Errorf("%w: %s", ledger.ErrDuplicateEmail, email)
	}
	c.Email = email
	t.clients[c.ID] = c
	t.emails[email] = c.ID
	return nil
}

func (t *tables) GetClient(_ context.Context, id ledger.ClientID) (ledger.Client, error) {
	c, ok := t.clients[id]
	if !ok {
		return ledger.Client{}, &ledger.NotFoundError{Kind: "client", ID: string(id)}
	}
	return c, nil
}

func (t *tables) ListClients(_ context.Context) ([]ledger.Client, error) {
	out := slices.AppendSeq(make([]ledger.Client, 0, len(t.clients)), maps.Values(t.clients))
	slices.SortFunc(out, func(a, b ledger.Client) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (t *tables) DeleteClient(_ context.Context, id ledger.ClientID) error {
	c, ok := t.clients[id]
	if !ok {
		return &ledger.NotFoundError{Kind: "client", ID: string(id)}
	}
	maps.DeleteFunc(t.debts, func(_ ledger.DebtID, d ledger.Debt) bool { return d.ClientID == id })
	maps.DeleteFunc(t.payments, func(_ ledger.PaymentID, p ledger.Payment) bool { return p.ClientID == id })
	maps.DeleteFunc(t.notifications, func(_ ledger.NotificationID, n ledger.Notification) bool { return n.ClientID == id })
	delete(t.emails, c.Email)
	delete(t.clients, id)
	return nil
}

func (t *tables) CreateDebt(_ context.Context, d ledger.Debt) error {
	if _, ok := t.clients[d.ClientID]; !ok {
		return &ledger.NotFoundError{Kind: "client", ID: string(d.ClientID)}
	}
	t.debts[d.ID] = d
	return nil
}

func (t *tables) GetDebt(_ context.Context, id ledger.DebtID) (ledger.Debt, error) {
	d, ok := t.debts[id]
	if !ok {
		return ledger.Debt{}, &ledger.NotFoundError{Kind: "debt", ID: string(id)}
	}
	return d, nil
}

func (t *tables) LockDebt(ctx context.Context, id ledger.DebtID) (ledger.Debt, error) {
	return t.GetDebt(ctx, id)
}

func (t *tables) UpdateDebt(_ context.Context, d ledger.Debt) error {
	if _, ok := t.debts[d.ID]; !ok {
		return &ledger.NotFoundError{Kind: "debt", ID: string(d.ID)}
	}
	t.debts[d.ID] = d
	return nil
}

func (t *tables) ListDebts(_ context.Context, f ledger.DebtFilter) ([]ledger.Debt, error) {
	out := []ledger.Debt{}
	for _, d := range t.debts {
		if f.Matches(d) {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b ledger.Debt) int {
		return cmp.Or(
			a.Deadline.Time().Compare(b.Deadline.Time()),
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return out, nil
}

func (t *tables) CreatePayment(_ context.Context, p ledger.Payment) error {
	if _, ok := t.debts[p.DebtID]; !ok {
		return &ledger.NotFoundError{Kind: "debt", ID: string(p.DebtID)}
	}
	t.payments[p.ID] = p
	return nil
}

func (t *tables) GetPayment(_ context.Context, id ledger.PaymentID) (ledger.Payment, error) {
	p, ok := t.payments[id]
	if !ok {
		return ledger.Payment{}, &ledger.NotFoundError{Kind: "payment", ID: string(id)}
	}
	return p, nil
}

func (t *tables) ListPayments(_ context.Context, f ledger.PaymentFilter) ([]ledger.Payment, error) {
	out := []ledger.Payment{}
	for _, p := range t.payments {
		if f.Matches(p) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b ledger.Payment) int {
		return cmp.Or(
			b.Date.Time().Compare(a.Date.Time()),
			b.CreatedAt.Compare(a.CreatedAt),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return out, nil
}

func (t *tables) SumPayments(_ context.Context, debtID ledger.DebtID) (ledger.Money, error) {
	var sum ledger.Money
	for _, p := range t.payments {
		if p.DebtID == debtID {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (t *tables) CreateNotification(_ context.Context, n ledger.Notification) error {
	if _, ok := t.clients[n.ClientID]; !ok {
		return &ledger.NotFoundError{Kind: "client", ID: string(n.ClientID)}
	}
	if n.DebtID != "" && n.Status.Active() && t.hasActive(n.DebtID, "") {
		return fmt.Errorf("%w: debt %s", ledger.ErrDuplicateReminder, n.DebtID)
	}
	t.notifications[n.ID] = n
	return nil
}

func (t *tables) GetNotification(_ context.Context, id ledger.NotificationID) (ledger.Notification, error) {
	n, ok := t.notifications[id]
	if !ok {
		return ledger.Notification{}, &ledger.NotFoundError{Kind: "notification", ID: string(id)}
	}
	return n, nil
}

func (t *tables) UpdateNotification(_ context.Context, n ledger.Notification) error {
	if _, ok := t.notifications[n.ID]; !ok {
		return &ledger.NotFoundError{Kind: "notification", ID: string(n.ID)}
	}
	t.notifications[n.ID] = n
	return nil
}

func (t *tables) ListNotifications(_ context.Context, f ledger.NotificationFilter) ([]ledger.Notification, error) {
	out := []ledger.Notification{}
	for _, n := range t.notifications {
		if f.Matches(n) {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b ledger.Notification) int {
		return cmp.Or(
			a.ScheduledFor.Compare(b.ScheduledFor),
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return out, nil
}

func (t *tables) HasActiveReminder(_ context.Context, debtID ledger.DebtID) (bool, error) {
	return t.hasActive(debtID, ""), nil
}

func (t *tables) hasActive(debtID ledger.DebtID, except ledger.NotificationID) bool {
	for _, n := range t.notifications {
		if n.DebtID == debtID && n.ID != except && n.Status.Active() {
			return true
		}
	}
	return false
}

func (t *tables) ClaimNotification(_ context.Context, id ledger.NotificationID, from ...ledger.NotificationStatus) (ledger.Notification, error) {
	n, ok := t.notifications[id]
	if !ok {
		return ledger.Notification{}, &ledger.NotFoundError{Kind: "notification", ID: string(id)}
	}
	if !slices.Contains(from, n.Status) {
		return ledger.Notification{}, ledger.ClaimConflict(n)
	}
	// A FAILED notification becomes active again when claimed.
	if n.DebtID != "" && !n.Status.Active() && t.hasActive(n.DebtID, n.ID) {
		return ledger.Notification{}, fmt.Errorf("%w: debt %s", ledger.ErrDuplicateReminder, n.DebtID)
	}
	n.Status = ledger.NotificationSending
	t.notifications[id] = n
	return n, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (m *Memory) Append(_ context.Context, e ledger.AuditEntry) error {
	m.auditMu.Lock()
	defer m.auditMu.Unlock()
	m.audit = append(m.audit, e)
	return nil
}

func (m *Memory) Query(_ context.Context, f ledger.AuditFilter) ([]ledger.AuditEntry, error) {
	m.auditMu.Lock()
	defer m.auditMu.Unlock()

	out := []ledger.AuditEntry{}
	for i := len(m.audit) - 1; i >= 0; i-- {
		if f.Matches(m.audit[i]) {
			out = append(out, m.audit[i])
			if f.Limit > 0 && len(out) == f.Limit {
				break
			}
		}
	}
	return out, nil
}

var (
	_ ledger.TxRepository = (*Memory)(nil)
	_ ledger.AuditLog     = (*Memory)(nil)
	_ ledger.Resetter     = (*Memory)(nil)
	_ ledger.Repository   = (*tables)(nil)
)

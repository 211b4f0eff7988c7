/*
store.go - Persistence interface for clients, debts, payments and notifications

PURPOSE:
  Defines the interface between the engine and the database. Relationship
  traversal (a client's debts, a debt's payments) is expressed as explicit
  query methods so the engine never depends on an ORM.

KEY INTERFACES:
  Repository:   Entity CRUD and filtered queries
  TxRepository: Repository plus WithTx (atomic multi-row writes)
  AuditLog:     Append-only record of state-changing operations
  Mailer:       External delivery of reminder emails
  Metrics:      Counters for reminder outcomes

LOCKING CONTRACT:
  LockDebt must be called inside WithTx. It returns the current debt row and
  holds it until the transaction ends, so that "sum payments, check, insert"
  in RecordPayment cannot interleave with another writer on the same debt.

CLAIM CONTRACT:
  ClaimNotification atomically moves a notification from one of the given
  states to SENDING. Exactly one concurrent caller wins; losers get
  AlreadySentError, ErrNotificationInFlight or ErrNotClaimable.

IMPLEMENTATIONS:
  - ledger/store/memory.go: In-memory for tests and demos
  - store/sqlite/sqlite.go: SQLite
  - store/postgres/postgres.go: PostgreSQL

SEE ALSO:
  - payment.go: WithTx + LockDebt usage
  - reminder.go: ClaimNotification usage
*/
package ledger

import (
	"context"
	"slices"
	"time"
)

// =============================================================================
// REPOSITORY
// =============================================================================

type ClientStore interface {
	// CreateClient returns ErrDuplicateEmail when the normalized email exists.
	CreateClient(ctx context.Context, c Client) error
	GetClient(ctx context.Context, id ClientID) (Client, error)
	ListClients(ctx context.Context) ([]Client, error)
	// DeleteClient removes the client and everything it owns.
	DeleteClient(ctx context.Context, id ClientID) error
}

type DebtStore interface {
	CreateDebt(ctx context.Context, d Debt) error
	GetDebt(ctx context.Context, id DebtID) (Debt, error)
	// LockDebt is GetDebt plus a row lock held until the transaction ends.
	LockDebt(ctx context.Context, id DebtID) (Debt, error)
	UpdateDebt(ctx context.Context, d Debt) error
	// ListDebts returns matching debts ordered by deadline, then creation.
	ListDebts(ctx context.Context, f DebtFilter) ([]Debt, error)
}

type PaymentStore interface {
	CreatePayment(ctx context.Context, p Payment) error
	GetPayment(ctx context.Context, id PaymentID) (Payment, error)
	// ListPayments returns matching payments, newest date first.
	ListPayments(ctx context.Context, f PaymentFilter) ([]Payment, error)
	SumPayments(ctx context.Context, debtID DebtID) (Money, error)
}

type NotificationStore interface {
	// CreateNotification returns ErrDuplicateReminder when n is tied to a
	// debt that already has an active reminder.
	CreateNotification(ctx context.Context, n Notification) error
	GetNotification(ctx context.Context, id NotificationID) (Notification, error)
	UpdateNotification(ctx context.Context, n Notification) error
	// ListNotifications returns matching notifications ordered by
	// scheduled_for, then creation.
	ListNotifications(ctx context.Context, f NotificationFilter) ([]Notification, error)
	// HasActiveReminder reports whether the debt has a PENDING, SENDING or
	// SENT notification.
	HasActiveReminder(ctx context.Context, debtID DebtID) (bool, error)
	// ClaimNotification moves the notification from one of from to SENDING
	// and returns the claimed row.
	ClaimNotification(ctx context.Context, id NotificationID, from ...NotificationStatus) (Notification, error)
}

// Repository is the full data-access surface used by the engine.
type Repository interface {
	ClientStore
	DebtStore
	PaymentStore
	NotificationStore
}

// TxRepository wraps Repository with transaction support.
type TxRepository interface {
	Repository

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Repository) error) error
}

// Resetter is implemented by stores that can wipe all data (demo scenarios).
type Resetter interface {
	Reset(ctx context.Context) error
}

// =============================================================================
// AUDIT LOG - Separate from the ledger tables, tracks what changed when
// =============================================================================

type AuditAction string

const (
	AuditPaymentRecorded    AuditAction = "payment_recorded"
	AuditDebtMarkedPaid     AuditAction = "debt_marked_paid"
	AuditDebtStatusChanged  AuditAction = "debt_status_changed"
	AuditReminderCreated    AuditAction = "reminder_created"
	AuditNotificationSent   AuditAction = "notification_sent"
	AuditNotificationFailed AuditAction = "notification_failed"
	AuditClientDeleted      AuditAction = "client_deleted"
)

// AuditEntry records one state-changing operation.
type AuditEntry struct {
	ID             string            `json:"id" bson:"_id"`
	At             time.Time         `json:"at" bson:"at"`
	Action         AuditAction       `json:"action" bson:"action"`
	ClientID       ClientID          `json:"client_id,omitempty" bson:"client_id,omitempty"`
	DebtID         DebtID            `json:"debt_id,omitempty" bson:"debt_id,omitempty"`
	PaymentID      PaymentID         `json:"payment_id,omitempty" bson:"payment_id,omitempty"`
	NotificationID NotificationID    `json:"notification_id,omitempty" bson:"notification_id,omitempty"`
	Detail         map[string]string `json:"detail,omitempty" bson:"detail,omitempty"`
}

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	Append(ctx context.Context, entry AuditEntry) error
	// Query returns matching entries, newest first.
	Query(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

type AuditFilter struct {
	ClientID ClientID
	DebtID   DebtID
	Actions  []AuditAction
	From     *time.Time // inclusive
	To       *time.Time // inclusive
	Limit    int        // 0 = no limit
}

func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.ClientID != "" && e.ClientID != f.ClientID {
		return false
	}
	if f.DebtID != "" && e.DebtID != f.DebtID {
		return false
	}
	if len(f.Actions) > 0 && !slices.Contains(f.Actions, e.Action) {
		return false
	}
	if f.From != nil && e.At.Before(*f.From) {
		return false
	}
	if f.To != nil && e.At.After(*f.To) {
		return false
	}
	return true
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// Mailer delivers one email. Implementations must honour ctx cancellation.
type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// Metrics receives reminder outcome events.
type Metrics interface {
	ReminderCreated()
	NotificationSent()
	NotificationFailed()
}

// NopMetrics discards all events.
type NopMetrics struct{}

func (NopMetrics) ReminderCreated()    {}
func (NopMetrics) NotificationSent()   {}
func (NopMetrics) NotificationFailed() {}

// ListDebtsAsOf lists debts with EffectiveStatus applied for today. A
// status filter matches on the effective status, so asking for OVERDUE
// also returns stale PENDING rows past their deadline.
func ListDebtsAsOf(ctx context.Context, repo DebtStore, f DebtFilter, today Date) ([]Debt, error) {
	want := f.Statuses
	if slices.Contains(want, StatusOverdue) && !slices.Contains(want, StatusPending) {
		f.Statuses = append(slices.Clone(want), StatusPending)
	}
	debts, err := repo.ListDebts(ctx, f)
	if err != nil {
		return nil, err
	}
	out := debts[:0]
	for _, d := range debts {
		d.Status = EffectiveStatus(d, today)
		if len(want) == 0 || slices.Contains(want, d.Status) {
			out = append(out, d)
		}
	}
	return out, nil
}

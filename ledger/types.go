/*
Package ledger provides the debt-ledger consistency engine.

PURPOSE:
  Tracks client debts, payments against those debts and scheduled email
  reminders. The engine keeps a debt's status consistent with its payment
  history and deadline, refuses payments that would overdraw a debt, and
  decides deterministically when a reminder is created and sent.

KEY CONCEPTS IN THIS FILE (types.go):
  - Client:       Root entity. Owns debts, payments and notifications.
  - Debt:         An amount owed by a client, due on a deadline.
  - Payment:      Immutable money received against one debt.
  - Notification: An email reminder, scheduled then sent exactly once.

DESIGN PRINCIPLES:
  1. Derived status: Debt.Status always equals ComputeStatus(...) except
     after an explicit MarkPaid override, which is flagged and audited.
  2. Precision: Money is integer cents, never float.
  3. Injected time: nothing reads the wall clock; a Clock is passed in.
  4. Explicit data access: engines receive a Repository, never globals.

COMPONENTS:
  status.go:   Debt Status Engine (pure functions)
  payment.go:  Payment Engine (RecordPayment)
  ledger.go:   Client/debt lifecycle, MarkPaid, status refresh
  reminder.go: Reminder Scheduler (scan, send, retry)
  report.go:   Read-only rollups

SEE ALSO:
  - store.go: Repository interfaces
  - errors.go: Error taxonomy
  - store/memory.go: In-memory repository for tests
*/
package ledger

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ClientID string
type DebtID string
type PaymentID string
type NotificationID string

// NewID returns a fresh random identifier.
func NewID() string { return uuid.NewString() }

// =============================================================================
// CLIENT
// =============================================================================

type Client struct {
	ID        ClientID
	Name      string
	Email     string
	Phone     string
	Address   string
	CreatedAt time.Time
}

// NormalizeEmail lower-cases and trims an address. Uniqueness is checked on
// the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// =============================================================================
// DEBT
// =============================================================================

type DebtStatus string

const (
	StatusPending DebtStatus = "PENDING"
	StatusOverdue DebtStatus = "OVERDUE"
	StatusPaid    DebtStatus = "PAID"
)

// ParseDebtStatus accepts any letter case.
func ParseDebtStatus(s string) (DebtStatus, bool) {
	switch DebtStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, true
	case StatusOverdue:
		return StatusOverdue, true
	case StatusPaid:
		return StatusPaid, true
	}
	return "", false
}

type Debt struct {
	ID          DebtID
	ClientID    ClientID
	Amount      Money
	Description string
	Date        Date // origination, immutable
	Deadline    Date
	Status      DebtStatus

	// PaidOverride is set when MarkPaid forced PAID while payments did not
	// cover Amount.
	PaidOverride bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// PAYMENT
// =============================================================================

type Payment struct {
	ID              PaymentID
	ClientID        ClientID
	DebtID          DebtID
	Amount          Money
	Date            Date
	ReferenceNumber string
	Notes           string
	CreatedAt       time.Time
}

// =============================================================================
// NOTIFICATION
// =============================================================================

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "PENDING"
	NotificationSending NotificationStatus = "SENDING" // claimed by a sender, mailer call in flight
	NotificationSent    NotificationStatus = "SENT"
	NotificationFailed  NotificationStatus = "FAILED"
)

// ParseNotificationStatus accepts any letter case.
func ParseNotificationStatus(s string) (NotificationStatus, bool) {
	switch NotificationStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case NotificationPending:
		return NotificationPending, true
	case NotificationSending:
		return NotificationSending, true
	case NotificationSent:
		return NotificationSent, true
	case NotificationFailed:
		return NotificationFailed, true
	}
	return "", false
}

// ActiveReminderStatuses block a new reminder for the same debt.
var ActiveReminderStatuses = []NotificationStatus{
	NotificationPending,
	NotificationSending,
	NotificationSent,
}

// Active reports whether s blocks a new reminder for the same debt.
func (s NotificationStatus) Active() bool {
	return slices.Contains(ActiveReminderStatuses, s)
}

type Notification struct {
	ID             NotificationID
	ClientID       ClientID
	DebtID         DebtID // empty for notifications not tied to a debt
	RecipientEmail string
	SenderEmail    string
	Subject        string
	Message        string
	ScheduledFor   time.Time
	SentAt         *time.Time
	Status         NotificationStatus
	ErrorMessage   string
	CreatedAt      time.Time
}

// =============================================================================
// FILTERS - Repository query parameters. Zero values mean "any".
// =============================================================================

type DebtFilter struct {
	ClientID     ClientID
	Statuses     []DebtStatus
	DeadlineFrom *Date // inclusive
	DeadlineTo   *Date // inclusive
}

type PaymentFilter struct {
	ClientID ClientID
	DebtID   DebtID
	From     *Date // inclusive
	To       *Date // inclusive
}

type NotificationFilter struct {
	ClientID        ClientID
	DebtID          DebtID
	Statuses        []NotificationStatus
	ScheduledBefore *time.Time // inclusive
}

// Matches reports whether d passes the filter. Stores without a query
// language use it directly.
func (f DebtFilter) Matches(d Debt) bool {
	if f.ClientID != "" && d.ClientID != f.ClientID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, d.Status) {
		return false
	}
	if f.DeadlineFrom != nil && d.Deadline.Before(*f.DeadlineFrom) {
		return false
	}
	if f.DeadlineTo != nil && d.Deadline.After(*f.DeadlineTo) {
		return false
	}
	return true
}

func (f PaymentFilter) Matches(p Payment) bool {
	if f.ClientID != "" && p.ClientID != f.ClientID {
		return false
	}
	if f.DebtID != "" && p.DebtID != f.DebtID {
		return false
	}
	if f.From != nil && p.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && p.Date.After(*f.To) {
		return false
	}
	return true
}

func (f NotificationFilter) Matches(n Notification) bool {
	if f.ClientID != "" && n.ClientID != f.ClientID {
		return false
	}
	if f.DebtID != "" && n.DebtID != f.DebtID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, n.Status) {
		return false
	}
	if f.ScheduledBefore != nil && n.ScheduledFor.After(*f.ScheduledBefore) {
		return false
	}
	return true
}

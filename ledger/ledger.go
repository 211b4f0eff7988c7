/*
ledger.go - Client and debt lifecycle

PURPOSE:
  The Ledger is the write-side entry point for callers (API, jobs). It
  validates input, keeps every debt's status equal to ComputeStatus, and
  writes an audit entry for each state-changing operation.

TRANSACTIONS:
  Every operation that reads a debt and writes it back (MarkPaid,
  UpdateDebt, RecomputeStatus, RecordPayment) runs inside Repo.WithTx with
  the debt locked via LockDebt.

AUDIT:
  Audit entries are written after the transaction commits. A failing audit
  sink is logged and does not fail the operation.

SEE ALSO:
  - payment.go: RecordPayment
  - status.go: ComputeStatus
*/
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
)

// UpcomingWindowDays is the default horizon of UpcomingDebts.
const UpcomingWindowDays = 7

// Ledger applies client, debt and payment operations to a repository.
type Ledger struct {
	Repo   TxRepository
	Clock  Clock
	Audit  AuditLog     // optional
	Logger *slog.Logger // optional, defaults to slog.Default()
}

func NewLedger(repo TxRepository, clock Clock) *Ledger {
	return &Ledger{Repo: repo, Clock: clock}
}

func (l *Ledger) today() Date { return Today(l.Clock) }

func (l *Ledger) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func (l *Ledger) audit(ctx context.Context, e AuditEntry) {
	recordAudit(ctx, l.Audit, l.logger(), l.Clock, e)
}

// recordAudit is shared by Ledger and ReminderScheduler.
func recordAudit(ctx context.Context, log AuditLog, logger *slog.Logger, clock Clock, e AuditEntry) {
	if log == nil {
		return
	}
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.At.IsZero() {
		e.At = clock.Now()
	}
	if err := log.Append(context.WithoutCancel(ctx), e); err != nil {
		logger.Warn("audit append failed", "action", e.Action, "error", err)
	}
}

// =============================================================================
// CLIENTS
// =============================================================================

type ClientInput struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

func (l *Ledger) CreateClient(ctx context.Context, in ClientInput) (Client, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Client{}, invalid("name", ReasonRequired, "")
	}
	email := NormalizeEmail(in.Email)
	if email == "" {
		return Client{}, invalid("email", ReasonRequired, "")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return Client{}, invalid("email", ReasonInvalid, email)
	}

	c := Client{
		ID:        ClientID(NewID()),
		Name:      name,
		Email:     email,
		Phone:     strings.TrimSpace(in.Phone),
		Address:   strings.TrimSpace(in.Address),
		CreatedAt: l.Clock.Now(),
	}
	if err := l.Repo.CreateClient(ctx, c); err != nil {
		return Client{}, fmt.Errorf("create client: %w", err)
	}
	return c, nil
}

func (l *Ledger) GetClient(ctx context.Context, id ClientID) (Client, error) {
	return l.Repo.GetClient(ctx, id)
}

func (l *Ledger) ListClients(ctx context.Context) ([]Client, error) {
	return l.Repo.ListClients(ctx)
}

// DeleteClient removes the client with its debts, payments and notifications.
func (l *Ledger) DeleteClient(ctx context.Context, id ClientID) error {
	err := l.Repo.WithTx(ctx, func(r Repository) error {
		if _, err := r.GetClient(ctx, id); err != nil {
			return err
		}
		return r.DeleteClient(ctx, id)
	})
	if err != nil {
		return err
	}
	l.audit(ctx, AuditEntry{Action: AuditClientDeleted, ClientID: id})
	return nil
}

// =============================================================================
// DEBTS
// =============================================================================

type DebtInput struct {
	ClientID    ClientID
	Amount      Money
	Description string
	Date        Date // zero = today
	Deadline    Date
}

// DebtUpdate carries the mutable debt fields. Nil means unchanged.
type DebtUpdate struct {
	Description *string
	Deadline    *Date
}

func (l *Ledger) CreateDebt(ctx context.Context, in DebtInput) (Debt, error) {
	if in.ClientID == "" {
		return Debt{}, invalid("client", ReasonRequired, "")
	}
	if !in.Amount.IsPositive() {
		return Debt{}, invalid("amount", ReasonNonPositiveAmount, in.Amount.String())
	}
	if in.Amount.GreaterThan(MaxAmount) {
		return Debt{}, invalid("amount", ReasonAmountTooLarge,
			fmt.Sprintf("%s > %s", in.Amount, MaxAmount))
	}
	if in.Deadline.IsZero() {
		return Debt{}, invalid("deadline", ReasonRequired, "")
	}

	today := l.today()
	date := in.Date
	if date.IsZero() {
		date = today
	}
	if in.Deadline.Before(date) {
		return Debt{}, invalid("deadline", ReasonDeadlineBeforeDate,
			fmt.Sprintf("deadline %s, date %s", in.Deadline, date))
	}

	now := l.Clock.Now()
	d := Debt{
		ID:          DebtID(NewID()),
		ClientID:    in.ClientID,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		Date:        date,
		Deadline:    in.Deadline,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	d.Status = ComputeStatus(d, Zero, today)

	err := l.Repo.WithTx(ctx, func(r Repository) error {
		if _, err := r.GetClient(ctx, in.ClientID); err != nil {
			return err
		}
		return r.CreateDebt(ctx, d)
	})
	if err != nil {
		return Debt{}, err
	}
	return d, nil
}

// GetDebt returns the debt with its status as of today.
func (l *Ledger) GetDebt(ctx context.Context, id DebtID) (Debt, error) {
	d, err := l.Repo.GetDebt(ctx, id)
	if err != nil {
		return Debt{}, err
	}
	d.Status = EffectiveStatus(d, l.today())
	return d, nil
}

// ListDebts filters on the status as of today, see ListDebtsAsOf.
func (l *Ledger) ListDebts(ctx context.Context, f DebtFilter) ([]Debt, error) {
	return ListDebtsAsOf(ctx, l.Repo, f, l.today())
}

// UpdateDebt changes description and/or deadline. Amount and origination
// date are immutable. The status is recomputed, so extending the deadline
// of an OVERDUE debt makes it PENDING again.
func (l *Ledger) UpdateDebt(ctx context.Context, id DebtID, upd DebtUpdate) (Debt, error) {
	var (
		updated Debt
		before  DebtStatus
	)
	err := l.Repo.WithTx(ctx, func(r Repository) error {
		d, err := r.LockDebt(ctx, id)
		if err != nil {
			return err
		}
		before = d.Status

		if upd.Description != nil {
			d.Description = strings.TrimSpace(*upd.Description)
		}
		if upd.Deadline != nil {
			if upd.Deadline.IsZero() {
				return invalid("deadline", ReasonRequired, "")
			}
			if upd.Deadline.Before(d.Date) {
				return invalid("deadline", ReasonDeadlineBeforeDate,
					fmt.Sprintf("deadline %s, date %s", *upd.Deadline, d.Date))
			}
			d.Deadline = *upd.Deadline
		}

		paid, err := r.SumPayments(ctx, id)
		if err != nil {
			return err
		}
		d.Status = ComputeStatus(d, paid, l.today())
		d.UpdatedAt = l.Clock.Now()
		updated = d
		return r.UpdateDebt(ctx, d)
	})
	if err != nil {
		return Debt{}, err
	}
	l.auditStatusChange(ctx, updated, before)
	return updated, nil
}

// MarkPaid forces a debt to PAID. When the payments do not cover the amount
// the debt is flagged with PaidOverride. Marking a PAID debt is a no-op.
func (l *Ledger) MarkPaid(ctx context.Context, id DebtID) (Debt, error) {
	var (
		result  Debt
		changed bool
		paid    Money
	)
	err := l.Repo.WithTx(ctx, func(r Repository) error {
		d, err := r.LockDebt(ctx, id)
		if err != nil {
			return err
		}
		if d.Status == StatusPaid {
			result = d
			return nil
		}
		paid, err = r.SumPayments(ctx, id)
		if err != nil {
			return err
		}
		d.PaidOverride = paid.LessThan(d.Amount)
		d.Status = StatusPaid
		d.UpdatedAt = l.Clock.Now()
		if err := r.UpdateDebt(ctx, d); err != nil {
			return err
		}
		result, changed = d, true
		return nil
	})
	if err != nil {
		return Debt{}, err
	}
	if changed {
		l.logger().Info("debt marked paid", "debt_id", id, "override", result.PaidOverride)
		l.audit(ctx, AuditEntry{
			Action:   AuditDebtMarkedPaid,
			ClientID: result.ClientID,
			DebtID:   result.ID,
			Detail: map[string]string{
				"paid":      paid.String(),
				"amount":    result.Amount.String(),
				"remaining": RemainingBalance(result, paid).String(),
				"override":  fmt.Sprint(result.PaidOverride),
			},
		})
	}
	return result, nil
}

// RecomputeStatus re-derives one debt's status against today.
func (l *Ledger) RecomputeStatus(ctx context.Context, id DebtID) (Debt, error) {
	d, _, err := l.recompute(ctx, id)
	return d, err
}

// RefreshStatuses recomputes every non-PAID debt and returns how many
// changed status. Failures on one debt do not stop the others.
func (l *Ledger) RefreshStatuses(ctx context.Context) (int, error) {
	debts, err := l.Repo.ListDebts(ctx, DebtFilter{Statuses: []DebtStatus{StatusPending, StatusOverdue}})
	if err != nil {
		return 0, fmt.Errorf("list debts: %w", err)
	}
	changed := 0
	var errs []error
	for _, d := range debts {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		_, ok, err := l.recompute(ctx, d.ID)
		if err != nil {
			l.logger().Error("recompute status failed", "debt_id", d.ID, "error", err)
			errs = append(errs, fmt.Errorf("debt %s: %w", d.ID, err))
			continue
		}
		if ok {
			changed++
		}
	}
	return changed, joinErrors(errs)
}

func (l *Ledger) recompute(ctx context.Context, id DebtID) (Debt, bool, error) {
	var (
		result Debt
		before DebtStatus
	)
	err := l.Repo.WithTx(ctx, func(r Repository) error {
		d, err := r.LockDebt(ctx, id)
		if err != nil {
			return err
		}
		before = d.Status
		paid, err := r.SumPayments(ctx, id)
		if err != nil {
			return err
		}
		d.Status = ComputeStatus(d, paid, l.today())
		result = d
		if d.Status == before {
			return nil
		}
		d.UpdatedAt = l.Clock.Now()
		result = d
		return r.UpdateDebt(ctx, d)
	})
	if err != nil {
		return Debt{}, false, err
	}
	l.auditStatusChange(ctx, result, before)
	return result, result.Status != before, nil
}

func (l *Ledger) auditStatusChange(ctx context.Context, d Debt, before DebtStatus) {
	if d.Status == before {
		return
	}
	l.logger().Info("debt status changed", "debt_id", d.ID, "from", before, "to", d.Status)
	l.audit(ctx, AuditEntry{
		Action:   AuditDebtStatusChanged,
		ClientID: d.ClientID,
		DebtID:   d.ID,
		Detail:   map[string]string{"from": string(before), "to": string(d.Status)},
	})
}

// =============================================================================
// LISTINGS
// =============================================================================

func (l *Ledger) OverdueDebts(ctx context.Context) ([]Debt, error) {
	return l.ListDebts(ctx, DebtFilter{Statuses: []DebtStatus{StatusOverdue}})
}

func (l *Ledger) PendingDebts(ctx context.Context) ([]Debt, error) {
	return l.ListDebts(ctx, DebtFilter{Statuses: []DebtStatus{StatusPending}})
}

// UpcomingDebts returns PENDING debts whose deadline falls within the next
// days days, today included.
func (l *Ledger) UpcomingDebts(ctx context.Context, days int) ([]Debt, error) {
	if days <= 0 {
		days = UpcomingWindowDays
	}
	from := l.today()
	to := from.AddDays(days)
	return l.ListDebts(ctx, DebtFilter{
		Statuses:     []DebtStatus{StatusPending},
		DeadlineFrom: &from,
		DeadlineTo:   &to,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// joinErrors wraps per-item batch failures in a *PartialError.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &PartialError{Errs: errs}
}

// midnight returns the start of d in the clock's location.
func midnight(d Date, c Clock) time.Time {
	return d.Midnight(c.Now().Location())
}

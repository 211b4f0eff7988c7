/*
payment.go - Payment Engine

PURPOSE:
  Validates and applies a payment, rewriting the debt's status in the same
  transaction.

VALIDATION ORDER:
  1. amount > 0                     -> ValidationError(non-positive amount)
  2. debt and client exist          -> NotFoundError
  3. client == debt.client          -> ValidationError(client mismatch)
  4. amount <= amount - sum(paid)   -> ValidationError(overpayment)

CONCURRENCY:
  The debt row is locked before the payment sum is read, so two concurrent
  payments on one debt serialize and the second sees the first's effect.
  Either the payment and the debt update both commit or neither does.

EXAMPLE:
  debt 100.00, paid 60.00 -> remaining 40.00
  RecordPayment(40.00)    -> PAID, remaining 0.00
  RecordPayment(0.01)     -> ValidationError(overpayment)

SEE ALSO:
  - status.go: ComputeStatus
  - store.go: LockDebt, SumPayments
*/
package ledger

import (
	"context"
	"fmt"
	"strings"
)

// RecentPaymentsDays is the window of RecentPayments.
const RecentPaymentsDays = 30

type PaymentInput struct {
	ClientID        ClientID
	DebtID          DebtID
	Amount          Money
	Date            Date // zero = today
	ReferenceNumber string
	Notes           string
}

// PaymentReceipt is the committed payment together with the debt state it
// produced.
type PaymentReceipt struct {
	Payment   Payment
	Debt      Debt
	Paid      Money
	Remaining Money
}

// RecordPayment validates and applies a payment atomically.
func (l *Ledger) RecordPayment(ctx context.Context, in PaymentInput) (PaymentReceipt, error) {
	if !in.Amount.IsPositive() {
		return PaymentReceipt{}, invalid("amount", ReasonNonPositiveAmount, in.Amount.String())
	}
	if in.DebtID == "" {
		return PaymentReceipt{}, invalid("debt", ReasonRequired, "")
	}
	if in.ClientID == "" {
		return PaymentReceipt{}, invalid("client", ReasonRequired, "")
	}

	today := l.today()
	date := in.Date
	if date.IsZero() {
		date = today
	}

	var (
		receipt PaymentReceipt
		before  DebtStatus
	)
	err := l.Repo.WithTx(ctx, func(r Repository) error {
		debt, err := r.LockDebt(ctx, in.DebtID)
		if err != nil {
			return err
		}
		if _, err := r.GetClient(ctx, in.ClientID); err != nil {
			return err
		}
		if debt.ClientID != in.ClientID {
			return invalid("client", ReasonClientMismatch,
				fmt.Sprintf("debt %s belongs to client %s", debt.ID, debt.ClientID))
		}

		paid, err := r.SumPayments(ctx, debt.ID)
		if err != nil {
			return err
		}
		remaining := RemainingBalance(debt, paid)
		if in.Amount.GreaterThan(remaining) {
			return invalid("amount", ReasonOverpayment,
				fmt.Sprintf("amount %s exceeds remaining balance %s", in.Amount, remaining))
		}

		now := l.Clock.Now()
		p := Payment{
			ID:              PaymentID(NewID()),
			ClientID:        in.ClientID,
			DebtID:          debt.ID,
			Amount:          in.Amount,
			Date:            date,
			ReferenceNumber: strings.TrimSpace(in.ReferenceNumber),
			Notes:           strings.TrimSpace(in.Notes),
			CreatedAt:       now,
		}
		if err := r.CreatePayment(ctx, p); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		before = debt.Status
		paid = paid.Add(p.Amount)
		debt.Status = ComputeStatus(debt, paid, today)
		debt.UpdatedAt = now
		if err := r.UpdateDebt(ctx, debt); err != nil {
			return fmt.Errorf("update debt: %w", err)
		}

		receipt = PaymentReceipt{
			Payment:   p,
			Debt:      debt,
			Paid:      paid,
			Remaining: RemainingBalance(debt, paid),
		}
		return nil
	})
	if err != nil {
		return PaymentReceipt{}, err
	}

	l.logger().Info("payment recorded",
		"payment_id", receipt.Payment.ID,
		"debt_id", receipt.Debt.ID,
		"amount", receipt.Payment.Amount.String(),
		"remaining", receipt.Remaining.String(),
		"status", receipt.Debt.Status)
	l.audit(ctx, AuditEntry{
		Action:    AuditPaymentRecorded,
		ClientID:  receipt.Payment.ClientID,
		DebtID:    receipt.Debt.ID,
		PaymentID: receipt.Payment.ID,
		Detail: map[string]string{
			"amount":    receipt.Payment.Amount.String(),
			"remaining": receipt.Remaining.String(),
		},
	})
	l.auditStatusChange(ctx, receipt.Debt, before)
	return receipt, nil
}

func (l *Ledger) GetPayment(ctx context.Context, id PaymentID) (Payment, error) {
	return l.Repo.GetPayment(ctx, id)
}

func (l *Ledger) ListPayments(ctx context.Context, f PaymentFilter) ([]Payment, error) {
	return l.Repo.ListPayments(ctx, f)
}

// RecentPayments returns payments dated within the last RecentPaymentsDays.
func (l *Ledger) RecentPayments(ctx context.Context) ([]Payment, error) {
	from := l.today().AddDays(-RecentPaymentsDays)
	return l.Repo.ListPayments(ctx, PaymentFilter{From: &from})
}

// DebtBalance returns the payment sum and remaining balance of one debt.
func (l *Ledger) DebtBalance(ctx context.Context, id DebtID) (paid, remaining Money, err error) {
	d, err := l.Repo.GetDebt(ctx, id)
	if err != nil {
		return Zero, Zero, err
	}
	paid, err = l.Repo.SumPayments(ctx, id)
	if err != nil {
		return Zero, Zero, err
	}
	return paid, RemainingBalance(d, paid), nil
}

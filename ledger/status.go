/*
status.go - Debt Status Engine

PURPOSE:
  Pure functions that derive a debt's status from facts: the sum of its
  payments, its deadline and today's date. Nothing here touches storage.

STATE MACHINE:
  PENDING --(deadline passes, unpaid)--> OVERDUE
  PENDING --(paid in full / MarkPaid)--> PAID
  OVERDUE --(paid in full / MarkPaid)--> PAID
  OVERDUE --(deadline extended)-------> PENDING
  PAID is terminal.

REMINDER WINDOW:
  NeedsReminder is true on exactly one calendar day per debt: the day on
  which DaysUntilDeadline == 2. A scan that misses that day never fires.

SEE ALSO:
  - payment.go: recompute after RecordPayment
  - ledger.go: MarkPaid override, RefreshStatuses
*/
package ledger

// ReminderLeadDays is how many days before the deadline a reminder fires.
const ReminderLeadDays = 2

// ComputeStatus returns the status a debt must have given the sum of its
// payments and today's date.
func ComputeStatus(debt Debt, paid Money, today Date) DebtStatus {
	if debt.Status == StatusPaid {
		return StatusPaid
	}
	if paid.GreaterThanOrEqual(debt.Amount) {
		return StatusPaid
	}
	if today.After(debt.Deadline) {
		return StatusOverdue
	}
	return StatusPending
}

// EffectiveStatus is the status a stored debt has as of today without a
// payment lookup. A PENDING row whose deadline passed before the last
// RefreshStatuses run reads as OVERDUE.
func EffectiveStatus(debt Debt, today Date) DebtStatus {
	if debt.Status == StatusPending && today.After(debt.Deadline) {
		return StatusOverdue
	}
	return debt.Status
}

// CanTransition reports whether a debt may move from one status to another.
// Staying in the same status is always allowed.
func CanTransition(from, to DebtStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusOverdue || to == StatusPaid
	case StatusOverdue:
		return to == StatusPaid || to == StatusPending
	}
	return false
}

// RemainingBalance is amount minus paid.
func RemainingBalance(debt Debt, paid Money) Money {
	return debt.Amount.Sub(paid)
}

// DaysUntilDeadline is deadline minus today in days. Negative once overdue.
func DaysUntilDeadline(debt Debt, today Date) int {
	return DaysBetween(today, debt.Deadline)
}

// IsOverdue is true when the deadline has passed and the debt is not PAID.
func IsOverdue(debt Debt, today Date) bool {
	return today.After(debt.Deadline) && debt.Status != StatusPaid
}

// NeedsReminder is true only on the day exactly ReminderLeadDays before the
// deadline, and only while the debt is PENDING.
func NeedsReminder(debt Debt, today Date) bool {
	return debt.Status == StatusPending && DaysUntilDeadline(debt, today) == ReminderLeadDays
}

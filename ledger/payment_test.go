package ledger_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/debt-ledger/ledger"
)

// =============================================================================
// PAYMENT ENGINE
// =============================================================================

func TestRecordPayment_PartialThenFullThenOverpayment(t *testing.T) {
	// GIVEN: Debt of 100.00 dated 2024-01-01, due 2024-01-10
	// WHEN: Paying 60.00 on 01-05, 40.00 on 01-06, then 0.01
	// THEN: PENDING with 40.00 left, then PAID with 0.00, then overpayment

	f := newFixture(t, "2024-01-01")
	c := f.client(t, "Ada", "ada@example.com")
	d := f.debt(t, c, "100.00", "2024-01-01", "2024-01-10")
	assert.Equal(t, ledger.StatusPending, d.Status)

	f.setToday("2024-01-05")
	r := f.mustPay(t, d, "60.00")
	assert.Equal(t, ledger.StatusPending, r.Debt.Status)
	assert.Equal(t, "40.00", r.Remaining.String())
	assert.Equal(t, "2024-01-05", r.Payment.Date.String())

	f.setToday("2024-01-06")
	r = f.mustPay(t, d, "40.00")
	assert.Equal(t, ledger.StatusPaid, r.Debt.Status)
	assert.Equal(t, "0.00", r.Remaining.String())
	assert.False(t, r.Debt.PaidOverride)

	_, err := f.pay(d, "0.01")
	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ledger.ReasonOverpayment, verr.Reason)
	assert.True(t, ledger.IsClientError(err))

	payments, err := f.ledger.ListPayments(f.ctx, ledger.PaymentFilter{DebtID: d.ID})
	require.NoError(t, err)
	assert.Len(t, payments, 2)
	assert.Equal(t, ledger.StatusPaid, f.getDebt(t, d.ID).Status)
}

func TestRecordPayment_NonPositiveAmountNeverWrites(t *testing.T) {
	f := newFixture(t, "2024-01-01")
	c := f.client(t, "Ada", "ada@example.com")
	d := f.debt(t, c, "100.00", "2024-01-01", "2024-01-10")

	for _, amount := range []string{"0.00", "-5.00"} {
		_, err := f.pay(d, amount)
		var verr *ledger.ValidationError
		require.ErrorAs(t, err, &verr, amount)
		assert.Equal(t, ledger.ReasonNonPositiveAmount, verr.Reason)
	}

	payments, err := f.ledger.ListPayments(f.ctx, ledger.PaymentFilter{})
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestRecordPayment_ClientMismatch(t *testing.T) {
	// GIVEN: A debt owned by Ada
	// WHEN: Bob pays against it
	// THEN: Rejected as a client mismatch, nothing written

	f := newFixture(t, "2024-01-01")
	ada := f.client(t, "Ada", "ada@example.com")
	bob := f.client(t, "Bob", "bob@example.com")
	d := f.debt(t, ada, "100.00", "2024-01-01", "2024-01-10")

	_, err := f.ledger.RecordPayment(f.ctx, ledger.PaymentInput{
		ClientID: bob.ID,
		DebtID:   d.ID,
		Amount:   money("10.00"),
	})
	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ledger.ReasonClientMismatch, verr.Reason)

	paid, remaining, err := f.ledger.DebtBalance(f.ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, paid.IsZero())
	assert.Equal(t, "100.00", remaining.String())
}

func TestRecordPayment_UnknownDebtOrClient(t *testing.T) {
	f := newFixture(t, "2024-01-01")
	c := f.client(t, "Ada", "ada@example.com")
	d := f.debt(t, c, "100.00", "2024-01-01", "2024-01-10")

	_, err := f.ledger.RecordPayment(f.ctx, ledger.PaymentInput{ClientID: c.ID, DebtID: "nope", Amount: money("1.00")})
	assert.True(t, ledger.IsNotFound(err))

	_, err = f.ledger.RecordPayment(f.ctx, ledger.PaymentInput{ClientID: "nope", DebtID: d.ID, Amount: money("1.00")})
	var nf *ledger.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "client", nf.Kind)
}

func TestRecordPayment_ConcurrentPaymentsNeverOverdraw(t *testing.T) {
	// GIVEN: Debt of 100.00
	// WHEN: Ten concurrent payments of 20.00
	// THEN: Exactly five succeed, the rest are overpayments, balance is 0.00

	f := newFixture(t, "2024-01-01")
	c := f.client(t, "Ada", "ada@example.com")
	d := f.debt(t, c, "100.00", "2024-01-01", "2024-01-10")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.pay(d, "20.00")
			mu.Lock()
			defer mu.Unlock()
			var verr *ledger.ValidationError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &verr) && verr.Reason == ledger.ReasonOverpayment:
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 5, rejected)

	paid, remaining, err := f.ledger.DebtBalance(f.ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", paid.String())
	assert.True(t, remaining.IsZero())
	assert.Equal(t, ledger.StatusPaid, f.getDebt(t, d.ID).Status)
}

func TestRecordPayment_LatePaymentMovesOverdueToPaid(t *testing.T) {
	f := newFixture(t, "2024-01-01")
	c := f.client(t, "Ada", "ada@example.com")
	d := f.debt(t, c, "100.00", "2024-01-01", "2024-01-10")

	f.setToday("2024-01-15")
	d, err := f.ledger.RecomputeStatus(f.ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusOverdue, d.Status)

	r := f.mustPay(t, d, "30.00")
	assert.Equal(t, ledger.StatusOverdue, r.Debt.Status)

	r = f.mustPay(t, d, "70.00")
	assert.Equal(t, ledger.StatusPaid, r.Debt.Status)
}

func TestRecordPayment_WritesAudit(t *testing.T) {
	f := newFixture(t, "2024-01-01")
	c := f.client(t, "Ada", "ada@example.com")
	d := f.debt(t, c, "100.00", "2024-01-01", "2024-01-10")
	r := f.mustPay(t, d, "100.00")

	entries, err := f.repo.Query(f.ctx, ledger.AuditFilter{DebtID: d.ID})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// newest first
	assert.Equal(t, ledger.AuditDebtStatusChanged, entries[0].Action)
	assert.Equal(t, "PAID", entries[0].Detail["to"])
	assert.Equal(t, ledger.AuditPaymentRecorded, entries[1].Action)
	assert.Equal(t, r.Payment.ID, entries[1].PaymentID)
}

// =============================================================================
// DEBT LIFECYCLE
// =============================================================================

func TestRecomputeStatus_OverdueAfterDeadline(t *testing.T) {
	// GIVEN: Debt due 2024-01-10 with no payments
	// WHEN: The clock moves to 2024-01-11 and status is recomputed
	// THEN: OVERDUE

	f := newFixture(t, "2024-01-01")
	c := f.client(t, "Ada", "ada@example.com")
	d := f.debt(t, c, "100.00", "2024-01-01", "2024-01-10")

	f.setToday("2024-01-11")
	d, err := f.ledger.RecomputeStatus(f.ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusOverdue, d.Status)
}

func TestRefreshStatuses_CountsChanges(t *testing.T) {
	f := newFixture(t, "2024-01-01")
	c := f.client(t, "Ada", "ada@example.com")
	f.debt(t, c, "100.00", "2024-01-01", "2024-01-10")
	f.debt(t, c, "50.00", "2024-01-01", "2024-01-20")
	paid := f.debt(t, c, "10.00", "2024-01-01", "2024-01-05")
	f.mustPay(t, paid, "10.00")

	f.setToday("2024-01-12")
	changed, err := f.ledger.RefreshStatuses(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	overdue, err := f.ledger.OverdueDebts(f.ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "100.00", overdue[0].Amount.String())

	changed, err = f.ledger.RefreshStatuses(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestReadPaths_StalePendingReadsAsOverdue(t *testing.T) {
	// GIVEN: An unpaid debt whose deadline passed with no refresh since
	f := newFixture(t, "2024-01-01")
	c := f.client(t, "Ada", "ada@example.com")
	d := f.debt(t, c, "100.00", "2024-01-01", "2024-01-10")
	f.debt(t, c, "50.00", "2024-01-01", "2024-01-20")
	f.setToday("2024-01-12")

	// THEN: The stored row is still PENDING
	stored, err := f.repo.GetDebt(f.ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, ledger.StatusPending, stored.Status)

	// AND: Every read path reports it as OVERDUE
	assert.Equal(t, ledger.StatusOverdue, f.getDebt(t, d.ID).Status)

	overdue, err := f.ledger.OverdueDebts(f.ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, d.ID, overdue[0].ID)

	pending, err := f.ledger.PendingDebts(f.ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "50.00", pending[0].Amount.String())

	rep, err := f.reporter.Overdue(f.ctx)
	require.NoError(t, err)
	require.Len(t, rep.Debts, 1)
	assert.Equal(t, 2, rep.Debts[0].DaysOverdue)

	dash, err := f.reporter.Dashboard(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dash.Debts.Overdue)
	assert.Equal(t, 1, dash.Debts.Pending)

	bal, err := f.reporter.ClientBalance(f.ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, bal.HasOverdueDebts)
}

func TestPaidNeverReverts(t *testing.T) {
	// GIVEN: A fully paid debt
	// WHEN: Time passes the deadline, statuses refresh and reminders scan
	// THEN: It stays PAID

	f := newFixture(t, "2024-01-01")
	c := f.client(t, "Ada", "ada@example.com")
	d := f.debt(t, c, "100.00", "2024-01-01", "2024-01-10")
	f.mustPay(t, d, "100.00")

	f.setToday("2024-01-08")
	created, err := f.scheduler.ScanForReminders(f.ctx, f.today(), "")
	require.NoError(t, err)
	assert.Empty(t, created)

	f.setToday("2024-03-01")
	_, err = f.ledger.RefreshStatuses(f.ctx)
	require.NoError(t, err)
	d, err = f.ledger.RecomputeStatus(f.ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPaid, d.Status)
}

func TestMarkPaid_OverrideIsFlaggedAndAudited(t *testing.T) {
	f := newFixture(t, "2024-01-01")
	c := f.client(t, "Ada", "ada@example.com")
	d := f.debt(t, c, "100.00", "2024-01-01", "2024-01-10")
	f.mustPay(t, d, "25.00")

	d, err := f.ledger.MarkPaid(f.ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPaid, d.Status)
	assert.True(t, d.PaidOverride)

	entries, err := f.repo.Query(f.ctx, ledger.AuditFilter{Actions: []ledger.AuditAction{ledger.AuditDebtMarkedPaid}})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "true", entries[0].Detail["override"])
	assert.Equal(t, "75.00", entries[0].Detail["remaining"])

	// second call is a no-op
	again, err := f.ledger.MarkPaid(f.ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d, again)
	entries, err = f.repo.Query(f.ctx, ledger.AuditFilter{Actions: []ledger.AuditAction{ledger.AuditDebtMarkedPaid}})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// override blocks further payments only through the balance check
	_, err = f.pay(d, "75.00")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPaid, f.getDebt(t, d.ID).Status)
}

func TestCreateDebt_Validation(t *testing.T) {
	f := newFixture(t, "2024-01-05")
	c := f.client(t, "Ada", "ada@example.com")

	_, err := f.ledger.CreateDebt(f.ctx, ledger.DebtInput{
		ClientID: c.ID, Amount: money("0.00"), Deadline: date("2024-01-10"),
	})
	assert.True(t, ledger.IsClientError(err))

	_, err = f.ledger.CreateDebt(f.ctx, ledger.DebtInput{
		ClientID: c.ID, Amount: money("10.00"), Date: date("2024-01-10"), Deadline: date("2024-01-09"),
	})
	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ledger.ReasonDeadlineBeforeDate, verr.Reason)

	_, err = f.ledger.CreateDebt(f.ctx, ledger.DebtInput{
		ClientID: "ghost", Amount: money("10.00"), Deadline: date("2024-01-09"),
	})
	assert.True(t, ledger.IsNotFound(err))

	d, err := f.ledger.CreateDebt(f.ctx, ledger.DebtInput{
		ClientID: c.ID, Amount: money("10.00"), Deadline: date("2024-01-09"),
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-05", d.Date.String(), "date defaults to today")
}

func TestCreateDebt_RejectsAmountAboveMaximum(t *testing.T) {
	// GIVEN: A client
	f := newFixture(t, "2024-01-05")
	c := f.client(t, "Ada", "ada@example.com")

	// WHEN: Creating a debt one cent above the maximum
	_, err := f.ledger.CreateDebt(f.ctx, ledger.DebtInput{
		ClientID: c.ID, Amount: money("100000000.00"), Deadline: date("2024-01-09"),
	})

	// THEN: Rejected as a validation error, nothing stored
	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ledger.ReasonAmountTooLarge, verr.Reason)
	debts, err := f.ledger.ListDebts(f.ctx, ledger.DebtFilter{})
	require.NoError(t, err)
	assert.Empty(t, debts)

	// AND: The maximum itself is accepted
	d := f.debt(t, c, "99999999.99", "2024-01-05", "2024-01-09")
	assert.True(t, d.Amount.Equal(ledger.MaxAmount))
}

func TestCreateDebt_PastDeadlineStartsOverdue(t *testing.T) {
	f := newFixture(t, "2024-02-01")
	c := f.client(t, "Ada", "ada@example.com")
	d := f.debt(t, c, "100.00", "2024-01-01", "2024-01-10")
	assert.Equal(t, ledger.StatusOverdue, d.Status)
}

func TestUpdateDebt_ExtendingDeadlineClearsOverdue(t *testing.T) {
	f := newFixture(t, "2024-01-01")
	c := f.client(t, "Ada", "ada@example.com")
	d := f.debt(t, c, "100.00", "2024-01-01", "2024-01-10")

	f.setToday("2024-01-12")
	_, err := f.ledger.RefreshStatuses(f.ctx)
	require.NoError(t, err)
	require.Equal(t, ledger.StatusOverdue, f.getDebt(t, d.ID).Status)

	newDeadline := date("2024-01-31")
	desc := "rescheduled"
	d, err = f.ledger.UpdateDebt(f.ctx, d.ID, ledger.DebtUpdate{Deadline: &newDeadline, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, d.Status)
	assert.Equal(t, "rescheduled", d.Description)

	early := date("2023-12-31")
	_, err = f.ledger.UpdateDebt(f.ctx, d.ID, ledger.DebtUpdate{Deadline: &early})
	assert.True(t, ledger.IsClientError(err))
}

func TestUpcomingDebts(t *testing.T) {
	f := newFixture(t, "2024-01-01")
	c := f.client(t, "Ada", "ada@example.com")
	f.debt(t, c, "10.00", "2024-01-01", "2024-01-01")
	f.debt(t, c, "20.00", "2024-01-01", "2024-01-08")
	f.debt(t, c, "30.00", "2024-01-01", "2024-01-09")

	upcoming, err := f.ledger.UpcomingDebts(f.ctx, 0)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, "10.00", upcoming[0].Amount.String())
	assert.Equal(t, "20.00", upcoming[1].Amount.String())
}

// =============================================================================
// CLIENTS
// =============================================================================

func TestCreateClient_EmailUniqueCaseInsensitive(t *testing.T) {
	f := newFixture(t, "2024-01-01")
	c := f.client(t, "Ada", "  Ada@Example.com ")
	assert.Equal(t, "ada@example.com", c.Email)

	_, err := f.ledger.CreateClient(f.ctx, ledger.ClientInput{Name: "Other Ada", Email: "ADA@example.com"})
	assert.ErrorIs(t, err, ledger.ErrDuplicateEmail)
	assert.True(t, ledger.IsConflict(err))

	_, err = f.ledger.CreateClient(f.ctx, ledger.ClientInput{Name: "No Mail"})
	assert.True(t, ledger.IsClientError(err))

	_, err = f.ledger.CreateClient(f.ctx, ledger.ClientInput{Name: "Bad", Email: "not-an-email"})
	assert.True(t, ledger.IsClientError(err))
}

func TestDeleteClient_Cascades(t *testing.T) {
	f := newFixture(t, "2024-01-06")
	c := f.client(t, "Ada", "ada@example.com")
	d := f.debt(t, c, "100.00", "2024-01-01", "2024-01-08")
	f.mustPay(t, d, "10.00")
	_, err := f.scheduler.ScanForReminders(f.ctx, f.today(), "")
	require.NoError(t, err)

	require.NoError(t, f.ledger.DeleteClient(f.ctx, c.ID))

	_, err = f.ledger.GetDebt(f.ctx, d.ID)
	assert.True(t, ledger.IsNotFound(err))
	payments, err := f.ledger.ListPayments(f.ctx, ledger.PaymentFilter{ClientID: c.ID})
	require.NoError(t, err)
	assert.Empty(t, payments)
	notes, err := f.scheduler.ListNotifications(f.ctx, ledger.NotificationFilter{ClientID: c.ID})
	require.NoError(t, err)
	assert.Empty(t, notes)

	// the email is free again
	f.client(t, "Ada", "ada@example.com")

	assert.True(t, ledger.IsNotFound(f.ledger.DeleteClient(f.ctx, c.ID)))
}

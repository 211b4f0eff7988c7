package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/debt-ledger/ledger"
)

func TestDashboard_EmptyCollectionRateIsZero(t *testing.T) {
	f := newFixture(t, "2024-01-01")

	dash, err := f.reporter.Dashboard(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, dash.Financial.CollectionRate)
	assert.Zero(t, dash.Debts.TotalCount)
	assert.True(t, dash.Financial.OutstandingBalance.IsZero())
}

func TestCollectionRate(t *testing.T) {
	assert.Equal(t, 0.0, ledger.CollectionRate(money("10.00"), ledger.Zero))
	assert.Equal(t, 50.0, ledger.CollectionRate(money("50.00"), money("100.00")))
	assert.Equal(t, 33.33, ledger.CollectionRate(money("1.00"), money("3.00")))
}

// seedReport builds:
//
//	Ada: 100.00 due 01-10 (paid 60.00), 50.00 due 01-03 (overdue)
//	Bob: 300.00 due 01-20 (unpaid)
//	Cy:  20.00 due 01-05 (paid in full)
//	Dee: no debts
func seedReport(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, "2024-01-01")
	ada := f.client(t, "Ada", "ada@example.com")
	bob := f.client(t, "Bob", "bob@example.com")
	cy := f.client(t, "Cy", "cy@example.com")
	f.client(t, "Dee", "dee@example.com")

	adaMain := f.debt(t, ada, "100.00", "2024-01-01", "2024-01-10")
	f.debt(t, ada, "50.00", "2024-01-01", "2024-01-03")
	f.debt(t, bob, "300.00", "2024-01-01", "2024-01-20")
	cyDebt := f.debt(t, cy, "20.00", "2024-01-01", "2024-01-05")

	f.mustPay(t, adaMain, "60.00")
	f.mustPay(t, cyDebt, "20.00")

	f.setToday("2024-01-06")
	_, err := f.ledger.RefreshStatuses(f.ctx)
	require.NoError(t, err)
	return f
}

func TestOutstanding_SortedByBalance(t *testing.T) {
	f := seedReport(t)

	rep, err := f.reporter.Outstanding(f.ctx)
	require.NoError(t, err)

	require.Equal(t, 2, rep.TotalClients)
	assert.Equal(t, "390.00", rep.TotalOutstanding.String())

	assert.Equal(t, "Bob", rep.Clients[0].Name)
	assert.Equal(t, "300.00", rep.Clients[0].Balance.String())
	assert.Equal(t, 1, rep.Clients[0].ActiveDebts)

	ada := rep.Clients[1]
	assert.Equal(t, "Ada", ada.Name)
	assert.Equal(t, "150.00", ada.TotalDebt.String())
	assert.Equal(t, "60.00", ada.TotalPaid.String())
	assert.Equal(t, "90.00", ada.Balance.String())
	assert.Equal(t, 1, ada.ActiveDebts)
	assert.Equal(t, 1, ada.OverdueDebts)
}

func TestOverdueReport(t *testing.T) {
	f := seedReport(t)

	rep, err := f.reporter.Overdue(f.ctx)
	require.NoError(t, err)
	require.Equal(t, 1, rep.TotalDebts)

	row := rep.Debts[0]
	assert.Equal(t, "Ada", row.ClientName)
	assert.Equal(t, "50.00", row.Remaining.String())
	assert.Equal(t, 3, row.DaysOverdue)
	assert.Equal(t, "50.00", rep.TotalAmount.String())
}

func TestDashboard(t *testing.T) {
	f := seedReport(t)

	dash, err := f.reporter.Dashboard(f.ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, dash.Clients.Total)
	assert.Equal(t, 3, dash.Clients.WithDebt)

	assert.Equal(t, 4, dash.Debts.TotalCount)
	assert.Equal(t, "470.00", dash.Debts.TotalAmount.String())
	assert.Equal(t, 2, dash.Debts.Pending)
	assert.Equal(t, 1, dash.Debts.Overdue)
	assert.Equal(t, 1, dash.Debts.Paid)
	assert.Equal(t, 1, dash.Debts.Upcoming) // Ada's 01-10; Bob's 01-20 is beyond 7 days

	assert.Equal(t, 2, dash.Payments.TotalCount)
	assert.Equal(t, "80.00", dash.Payments.TotalAmount.String())
	assert.Equal(t, 2, dash.Payments.RecentWeek)

	assert.Equal(t, "390.00", dash.Financial.OutstandingBalance.String())
	assert.Equal(t, 17.02, dash.Financial.CollectionRate)
}

func TestClientBalance(t *testing.T) {
	f := seedReport(t)
	clients, err := f.ledger.ListClients(f.ctx)
	require.NoError(t, err)
	ada := clients[0]
	require.Equal(t, "Ada", ada.Name)

	bal, err := f.reporter.ClientBalance(f.ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, "90.00", bal.Balance.String())
	assert.True(t, bal.HasOverdueDebts)
	assert.Equal(t, 1, bal.ActiveDebts)

	_, err = f.reporter.ClientBalance(f.ctx, "ghost")
	assert.True(t, ledger.IsNotFound(err))
}

func TestPaymentSummary(t *testing.T) {
	f := seedReport(t)

	sum, err := f.reporter.PaymentSummary(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TotalCount)
	assert.Equal(t, "80.00", sum.TotalAmount.String())

	recent, err := f.ledger.RecentPayments(f.ctx)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestReports_OverflowingTotalsFailInsteadOfWrapping(t *testing.T) {
	// GIVEN: Two stored debts whose sum does not fit in int64 cents
	// (rows that predate the per-debt maximum)
	f := newFixture(t, "2024-01-01")
	c := f.client(t, "Ada", "ada@example.com")
	for i := 0; i < 2; i++ {
		require.NoError(t, f.repo.CreateDebt(f.ctx, ledger.Debt{
			ID:       ledger.DebtID(ledger.NewID()),
			ClientID: c.ID,
			Amount:   money("60000000000000000.00"),
			Date:     date("2024-01-01"),
			Deadline: date("2024-02-01"),
			Status:   ledger.StatusPending,
		}))
	}

	// WHEN: Building the reports
	_, errDash := f.reporter.Dashboard(f.ctx)
	_, errOut := f.reporter.Outstanding(f.ctx)
	_, errBal := f.reporter.ClientBalance(f.ctx, c.ID)

	// THEN: Each reports the overflow instead of a negative total
	assert.ErrorIs(t, errDash, ledger.ErrMoneyOverflow)
	assert.ErrorIs(t, errOut, ledger.ErrMoneyOverflow)
	assert.ErrorIs(t, errBal, ledger.ErrMoneyOverflow)
}

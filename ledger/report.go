/*
report.go - Read-only rollups

PURPOSE:
  Outstanding balances, overdue lists and dashboard statistics computed on
  demand from the repository. Nothing here writes.

BALANCE:
  A client's balance is total debt minus total paid. Debts marked PAID via
  override still contribute their unpaid part to the balance; reports show
  money owed, not status.

SEE ALSO:
  - status.go: RemainingBalance, DaysUntilDeadline
  - export/: XLSX rendering of these reports
*/
package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

const (
	DashboardUpcomingDays = 7
	DashboardRecentDays   = 7
)

type Reporter struct {
	Repo  Repository
	Clock Clock
}

func NewReporter(repo Repository, clock Clock) *Reporter {
	return &Reporter{Repo: repo, Clock: clock}
}

// =============================================================================
// REPORT TYPES
// =============================================================================

type OutstandingRow struct {
	ClientID     ClientID `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Phone        string   `json:"phone"`
	TotalDebt    Money    `json:"total_debt"`
	TotalPaid    Money    `json:"total_paid"`
	Balance      Money    `json:"balance"`
	ActiveDebts  int      `json:"active_debts"`
	OverdueDebts int      `json:"overdue_debts"`
}

type OutstandingReport struct {
	TotalClients     int              `json:"total_clients"`
	TotalOutstanding Money            `json:"total_outstanding"`
	Clients          []OutstandingRow `json:"clients"`
}

type OverdueRow struct {
	DebtID      DebtID   `json:"id"`
	ClientID    ClientID `json:"client_id"`
	ClientName  string   `json:"client_name"`
	ClientEmail string   `json:"client_email"`
	Amount      Money    `json:"amount"`
	Paid        Money    `json:"paid"`
	Remaining   Money    `json:"remaining"`
	Deadline    Date     `json:"deadline"`
	DaysOverdue int      `json:"days_overdue"`
	Description string   `json:"description"`
}

type OverdueReport struct {
	TotalDebts  int          `json:"total_debts"`
	TotalAmount Money        `json:"total_amount"`
	Debts       []OverdueRow `json:"debts"`
}

type Dashboard struct {
	Clients struct {
		Total    int `json:"total"`
		WithDebt int `json:"with_debt"`
	} `json:"clients"`
	Debts struct {
		TotalCount  int   `json:"total_count"`
		TotalAmount Money `json:"total_amount"`
		Pending     int   `json:"pending"`
		Overdue     int   `json:"overdue"`
		Paid        int   `json:"paid"`
		Upcoming    int   `json:"upcoming"`
	} `json:"debts"`
	Payments struct {
		TotalCount  int   `json:"total_count"`
		TotalAmount Money `json:"total_amount"`
		RecentWeek  int   `json:"recent_week"`
	} `json:"payments"`
	Financial struct {
		OutstandingBalance Money   `json:"outstanding_balance"`
		CollectionRate     float64 `json:"collection_rate"`
	} `json:"financial"`
}

type ClientBalance struct {
	ClientID        ClientID `json:"id"`
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	TotalDebt       Money    `json:"total_debt"`
	TotalPaid       Money    `json:"total_paid"`
	Balance         Money    `json:"balance"`
	ActiveDebts     int      `json:"active_debts_count"`
	OverdueDebts    int      `json:"overdue_debts_count"`
	HasOverdueDebts bool     `json:"has_overdue_debts"`
}

type PaymentSummary struct {
	TotalAmount Money `json:"total_amount"`
	TotalCount  int   `json:"total_count"`
}

// =============================================================================
// SNAPSHOT - One consistent read of everything a report needs
// =============================================================================

type snapshot struct {
	clients  []Client
	debts    []Debt
	payments []Payment
}

func (r *Reporter) load(ctx context.Context, clientID ClientID) (snapshot, error) {
	var s snapshot
	var err error
	if s.clients, err = r.Repo.ListClients(ctx); err != nil {
		return s, fmt.Errorf("list clients: %w", err)
	}
	if s.debts, err = ListDebtsAsOf(ctx, r.Repo, DebtFilter{ClientID: clientID}, Today(r.Clock)); err != nil {
		return s, fmt.Errorf("list debts: %w", err)
	}
	if s.payments, err = r.Repo.ListPayments(ctx, PaymentFilter{ClientID: clientID}); err != nil {
		return s, fmt.Errorf("list payments: %w", err)
	}
	return s, nil
}

type clientTotals struct {
	debt, paid      Money
	active, overdue int
	debts           int
}

// totalsByClient fails with ErrMoneyOverflow rather than wrap a total.
func (s snapshot) totalsByClient() (map[ClientID]*clientTotals, error) {
	out := make(map[ClientID]*clientTotals, len(s.clients))
	get := func(id ClientID) *clientTotals {
		t, ok := out[id]
		if !ok {
			t = &clientTotals{}
			out[id] = t
		}
		return t
	}
	var err error
	for _, d := range s.debts {
		t := get(d.ClientID)
		if t.debt, err = t.debt.CheckedAdd(d.Amount); err != nil {
			return nil, fmt.Errorf("client %s debt total: %w", d.ClientID, err)
		}
		t.debts++
		switch d.Status {
		case StatusPending:
			t.active++
		case StatusOverdue:
			t.overdue++
		}
	}
	for _, p := range s.payments {
		t := get(p.ClientID)
		if t.paid, err = t.paid.CheckedAdd(p.Amount); err != nil {
			return nil, fmt.Errorf("client %s payment total: %w", p.ClientID, err)
		}
	}
	return out, nil
}

// =============================================================================
// REPORTS
// =============================================================================

// Outstanding lists clients with a positive balance, highest first.
func (r *Reporter) Outstanding(ctx context.Context) (OutstandingReport, error) {
	s, err := r.load(ctx, "")
	if err != nil {
		return OutstandingReport{}, err
	}
	totals, err := s.totalsByClient()
	if err != nil {
		return OutstandingReport{}, err
	}

	rep := OutstandingReport{Clients: []OutstandingRow{}}
	for _, c := range s.clients {
		t, ok := totals[c.ID]
		if !ok {
			continue
		}
		balance, err := t.debt.CheckedSub(t.paid)
		if err != nil {
			return OutstandingReport{}, fmt.Errorf("client %s balance: %w", c.ID, err)
		}
		if !balance.IsPositive() {
			continue
		}
		rep.Clients = append(rep.Clients, OutstandingRow{
			ClientID:     c.ID,
			Name:         c.Name,
			Email:        c.Email,
			Phone:        c.Phone,
			TotalDebt:    t.debt,
			TotalPaid:    t.paid,
			Balance:      balance,
			ActiveDebts:  t.active,
			OverdueDebts: t.overdue,
		})
		if rep.TotalOutstanding, err = rep.TotalOutstanding.CheckedAdd(balance); err != nil {
			return OutstandingReport{}, fmt.Errorf("total outstanding: %w", err)
		}
	}
	sort.SliceStable(rep.Clients, func(i, j int) bool {
		return rep.Clients[i].Balance.GreaterThan(rep.Clients[j].Balance)
	})
	rep.TotalClients = len(rep.Clients)
	return rep, nil
}

// Overdue lists OVERDUE debts with their remaining balance.
func (r *Reporter) Overdue(ctx context.Context) (OverdueReport, error) {
	clients, err := r.Repo.ListClients(ctx)
	if err != nil {
		return OverdueReport{}, fmt.Errorf("list clients: %w", err)
	}
	byID := make(map[ClientID]Client, len(clients))
	for _, c := range clients {
		byID[c.ID] = c
	}
	today := Today(r.Clock)
	debts, err := ListDebtsAsOf(ctx, r.Repo, DebtFilter{Statuses: []DebtStatus{StatusOverdue}}, today)
	if err != nil {
		return OverdueReport{}, fmt.Errorf("list overdue debts: %w", err)
	}

	rep := OverdueReport{Debts: []OverdueRow{}}
	for _, d := range debts {
		paid, err := r.Repo.SumPayments(ctx, d.ID)
		if err != nil {
			return OverdueReport{}, fmt.Errorf("sum payments for debt %s: %w", d.ID, err)
		}
		c := byID[d.ClientID]
		row := OverdueRow{
			DebtID:      d.ID,
			ClientID:    d.ClientID,
			ClientName:  c.Name,
			ClientEmail: c.Email,
			Amount:      d.Amount,
			Paid:        paid,
			Remaining:   RemainingBalance(d, paid),
			Deadline:    d.Deadline,
			DaysOverdue: -DaysUntilDeadline(d, today),
			Description: d.Description,
		}
		rep.Debts = append(rep.Debts, row)
		if rep.TotalAmount, err = rep.TotalAmount.CheckedAdd(row.Remaining); err != nil {
			return OverdueReport{}, fmt.Errorf("total overdue: %w", err)
		}
	}
	rep.TotalDebts = len(rep.Debts)
	return rep, nil
}

// Dashboard computes the overview counters.
func (r *Reporter) Dashboard(ctx context.Context) (Dashboard, error) {
	s, err := r.load(ctx, "")
	if err != nil {
		return Dashboard{}, err
	}
	today := Today(r.Clock)
	upcomingTo := today.AddDays(DashboardUpcomingDays)
	recentFrom := today.AddDays(-DashboardRecentDays)

	var dash Dashboard
	dash.Clients.Total = len(s.clients)

	for _, d := range s.debts {
		dash.Debts.TotalCount++
		if dash.Debts.TotalAmount, err = dash.Debts.TotalAmount.CheckedAdd(d.Amount); err != nil {
			return Dashboard{}, fmt.Errorf("total debt: %w", err)
		}
		switch d.Status {
		case StatusPending:
			dash.Debts.Pending++
			if d.Deadline.AfterOrEqual(today) && d.Deadline.BeforeOrEqual(upcomingTo) {
				dash.Debts.Upcoming++
			}
		case StatusOverdue:
			dash.Debts.Overdue++
		case StatusPaid:
			dash.Debts.Paid++
		}
	}
	for _, p := range s.payments {
		dash.Payments.TotalCount++
		if dash.Payments.TotalAmount, err = dash.Payments.TotalAmount.CheckedAdd(p.Amount); err != nil {
			return Dashboard{}, fmt.Errorf("total paid: %w", err)
		}
		if p.Date.AfterOrEqual(recentFrom) {
			dash.Payments.RecentWeek++
		}
	}

	totals, err := s.totalsByClient()
	if err != nil {
		return Dashboard{}, err
	}
	for _, c := range s.clients {
		t, ok := totals[c.ID]
		if !ok {
			continue
		}
		if t.debts > 0 {
			dash.Clients.WithDebt++
		}
		balance, err := t.debt.CheckedSub(t.paid)
		if err != nil {
			return Dashboard{}, fmt.Errorf("client %s balance: %w", c.ID, err)
		}
		if dash.Financial.OutstandingBalance, err = dash.Financial.OutstandingBalance.CheckedAdd(balance); err != nil {
			return Dashboard{}, fmt.Errorf("outstanding balance: %w", err)
		}
	}
	dash.Financial.CollectionRate = CollectionRate(dash.Payments.TotalAmount, dash.Debts.TotalAmount)
	return dash, nil
}

// CollectionRate is paid / debt * 100 rounded to two places, 0 when there is
// no debt.
func CollectionRate(paid, debt Money) float64 {
	if !debt.IsPositive() {
		return 0
	}
	rate := paid.Decimal().Div(debt.Decimal()).Mul(decimal.NewFromInt(100)).Round(2)
	f, _ := rate.Float64()
	return f
}

// ClientBalance summarizes one client's debts and payments.
func (r *Reporter) ClientBalance(ctx context.Context, id ClientID) (ClientBalance, error) {
	c, err := r.Repo.GetClient(ctx, id)
	if err != nil {
		return ClientBalance{}, err
	}
	s, err := r.load(ctx, id)
	if err != nil {
		return ClientBalance{}, err
	}
	totals, err := s.totalsByClient()
	if err != nil {
		return ClientBalance{}, err
	}
	t := totals[id]
	if t == nil {
		t = &clientTotals{}
	}
	balance, err := t.debt.CheckedSub(t.paid)
	if err != nil {
		return ClientBalance{}, fmt.Errorf("client %s balance: %w", id, err)
	}
	return ClientBalance{
		ClientID:        c.ID,
		Name:            c.Name,
		Email:           c.Email,
		TotalDebt:       t.debt,
		TotalPaid:       t.paid,
		Balance:         balance,
		ActiveDebts:     t.active,
		OverdueDebts:    t.overdue,
		HasOverdueDebts: t.overdue > 0,
	}, nil
}

// PaymentSummary totals every payment.
func (r *Reporter) PaymentSummary(ctx context.Context) (PaymentSummary, error) {
	payments, err := r.Repo.ListPayments(ctx, PaymentFilter{})
	if err != nil {
		return PaymentSummary{}, fmt.Errorf("list payments: %w", err)
	}
	var sum PaymentSummary
	for _, p := range payments {
		if sum.TotalAmount, err = sum.TotalAmount.CheckedAdd(p.Amount); err != nil {
			return PaymentSummary{}, fmt.Errorf("total paid: %w", err)
		}
		sum.TotalCount++
	}
	return sum, nil
}

package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/debt-ledger/ledger"
)

func loadScenario(t *testing.T, e *testEnv, id string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestScenarios_AllLoad(t *testing.T) {
	e := newTestEnv(t, "2024-03-15")

	rec := e.do(t, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]ScenarioDTO](t, rec)
	require.Len(t, list, 4)

	for _, s := range list {
		t.Run(s.ID, func(t *testing.T) {
			loadScenario(t, e, s.ID)

			rec := e.do(t, http.MethodGet, "/api/scenarios/current", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, s.ID, decode[ScenarioDTO](t, rec).ID)
		})
	}
}

func TestScenario_LoadResetsPreviousData(t *testing.T) {
	e := newTestEnv(t, "2024-03-15")

	// GIVEN: A client created by hand
	e.createClient(t, "Zed", "zed@example.com")

	// WHEN: Loading a scenario
	loadScenario(t, e, "on-track")

	// THEN: Only the scenario's client remains
	rec := e.do(t, http.MethodGet, "/api/clients", nil)
	clients := decode[[]ClientDTO](t, rec)
	require.Len(t, clients, 1)
	assert.Equal(t, "alice@example.com", clients[0].Email)
}

func TestScenario_DueSoonFeedsReminders(t *testing.T) {
	e := newTestEnv(t, "2024-03-15")
	loadScenario(t, e, "due-soon")

	rec := e.do(t, http.MethodPost, "/api/notifications/create_reminders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[CreateRemindersResponse](t, rec).Created)
}

func TestScenario_OverdueReport(t *testing.T) {
	e := newTestEnv(t, "2024-03-15")
	loadScenario(t, e, "overdue")

	rec := e.do(t, http.MethodGet, "/api/reports/overdue", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rep := decode[ledger.OverdueReport](t, rec)
	require.Len(t, rep.Debts, 2)

	rec = e.do(t, http.MethodGet, "/api/reports/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode[ledger.Dashboard](t, rec)
	assert.Equal(t, 2, dash.Debts.Overdue)
	assert.Equal(t, "1200.00", dash.Payments.TotalAmount.String())
}

func TestScenario_MixedPortfolioBalances(t *testing.T) {
	e := newTestEnv(t, "2024-03-15")
	loadScenario(t, e, "mixed-portfolio")

	rec := e.do(t, http.MethodGet, "/api/debts?status=paid", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]DebtDTO](t, rec), 2)

	rec = e.do(t, http.MethodGet, "/api/clients", nil)
	for _, c := range decode[[]ClientDTO](t, rec) {
		rec := e.do(t, http.MethodGet, "/api/clients/"+string(c.ID)+"/balance", nil)
		require.Equal(t, http.StatusOK, rec.Code, c.Name)
	}

	rec = e.do(t, http.MethodGet, "/api/payments/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decode[ledger.PaymentSummary](t, rec)
	assert.Equal(t, 4, sum.TotalCount)
	assert.Equal(t, "693.33", sum.TotalAmount.String())
}

func TestScenario_Unknown(t *testing.T) {
	e := newTestEnv(t, "2024-03-15")
	rec := e.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

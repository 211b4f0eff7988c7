/*
handlers_test.go - HTTP tests for the ledger API

Tests for:
- Client creation and error mapping (400, 404, 409)
- Debt lifecycle through payments, overrides and deadline changes
- Reminder creation and delivery over HTTP
- Reports, export, audit, health and metrics endpoints
*/
package api

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/debt-ledger/ledger"
)

// =============================================================================
// CLIENTS
// =============================================================================

func TestCreateClient_ErrorMapping(t *testing.T) {
	e := newTestEnv(t, "2024-01-08")

	// GIVEN: An existing client
	c := e.createClient(t, "Ada", "Ada@Example.com")
	assert.Equal(t, "ada@example.com", c.Email)

	// WHEN/THEN: Same email in another case conflicts
	rec := e.do(t, http.MethodPost, "/api/clients", map[string]string{"name": "Ada 2", "email": "ADA@example.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Invalid email is a validation error
	rec = e.do(t, http.MethodPost, "/api/clients", map[string]string{"name": "Bob", "email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Malformed body
	rec = e.do(t, http.MethodPost, "/api/clients", "{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown id
	rec = e.do(t, http.MethodGet, "/api/clients/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
}

func TestDeleteClient_RemovesDebts(t *testing.T) {
	e := newTestEnv(t, "2024-01-08")
	c := e.createClient(t, "Ada", "ada@example.com")
	d := e.createDebt(t, c, "100.00", "2024-01-01", "2024-01-31")

	rec := e.do(t, http.MethodDelete, "/api/clients/"+string(c.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/debts/"+string(d.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// DEBTS AND PAYMENTS
// =============================================================================

func TestRecordPayment_PartialThenFull(t *testing.T) {
	e := newTestEnv(t, "2024-01-08")

	// GIVEN: A debt of 100.00
	c := e.createClient(t, "Ada", "ada@example.com")
	d := e.createDebt(t, c, "100.00", "2024-01-01", "2024-01-31")
	assert.Equal(t, ledger.StatusPending, d.Status)
	assert.Equal(t, 23, d.DaysUntilDeadline)

	// WHEN: Paying 40.00
	rec := e.pay(t, d, "40.00")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[PaymentResponse](t, rec)

	// THEN: 60.00 remains and the debt stays PENDING
	assert.Equal(t, "60.00", resp.Remaining.String())
	assert.Equal(t, ledger.StatusPending, resp.Debt.Status)
	assert.Equal(t, "40.00", resp.Debt.TotalPaid.String())

	// Overpayment is rejected without side effects
	rec = e.pay(t, d, "60.01")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Paying the rest settles the debt
	rec = e.pay(t, d, "60.00")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, ledger.StatusPaid, decode[PaymentResponse](t, rec).Debt.Status)

	rec = e.do(t, http.MethodGet, "/api/debts/"+string(d.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[DebtDTO](t, rec)
	assert.Equal(t, "100.00", got.TotalPaid.String())
	assert.True(t, got.RemainingBalance.IsZero())

	rec = e.do(t, http.MethodGet, "/api/payments?debt="+string(d.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]PaymentDTO](t, rec), 2)
}

func TestRecordPayment_NonPositiveAmount(t *testing.T) {
	e := newTestEnv(t, "2024-01-08")
	c := e.createClient(t, "Ada", "ada@example.com")
	d := e.createDebt(t, c, "100.00", "2024-01-01", "2024-01-31")

	assert.Equal(t, http.StatusBadRequest, e.pay(t, d, "0").Code)
	assert.Equal(t, http.StatusBadRequest, e.pay(t, d, "-5.00").Code)
}

func TestListDebts_Filters(t *testing.T) {
	e := newTestEnv(t, "2024-01-08")

	// GIVEN: One overdue and one pending debt
	c := e.createClient(t, "Ada", "ada@example.com")
	overdue := e.createDebt(t, c, "50.00", "2024-01-01", "2024-01-05")
	e.createDebt(t, c, "70.00", "2024-01-01", "2024-01-20")
	assert.Equal(t, ledger.StatusOverdue, overdue.Status)
	assert.True(t, overdue.IsOverdue)

	// THEN: Filters select the right debts
	rec := e.do(t, http.MethodGet, "/api/debts?overdue=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]DebtDTO](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, overdue.ID, got[0].ID)

	rec = e.do(t, http.MethodGet, "/api/debts?status=pending&client="+string(c.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]DebtDTO](t, rec), 1)

	rec = e.do(t, http.MethodGet, "/api/debts/overdue", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]DebtDTO](t, rec), 1)

	rec = e.do(t, http.MethodGet, "/api/debts/upcoming?days=14", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]DebtDTO](t, rec), 1)

	rec = e.do(t, http.MethodGet, "/api/debts?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDebts_OverdueIncludesUnrefreshedRows(t *testing.T) {
	// GIVEN: A pending debt whose deadline passes without a refresh
	e := newTestEnv(t, "2024-01-08")
	c := e.createClient(t, "Ada", "ada@example.com")
	d := e.createDebt(t, c, "100.00", "2024-01-01", "2024-01-10")
	e.clock.AdvanceDays(3)

	// WHEN: Filtering on overdue
	rec := e.do(t, http.MethodGet, "/api/debts?overdue=true", nil)

	// THEN: The debt is listed as OVERDUE
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]DebtDTO](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, d.ID, got[0].ID)
	assert.Equal(t, ledger.StatusOverdue, got[0].Status)

	rec = e.do(t, http.MethodGet, "/api/debts?status=pending", nil)
	assert.Empty(t, decode[[]DebtDTO](t, rec))
}

func TestUpdateDebt_ExtendingDeadlineReopens(t *testing.T) {
	e := newTestEnv(t, "2024-01-08")
	c := e.createClient(t, "Ada", "ada@example.com")
	d := e.createDebt(t, c, "50.00", "2024-01-01", "2024-01-05")
	require.Equal(t, ledger.StatusOverdue, d.Status)

	// WHEN: Moving the deadline into the future
	rec := e.do(t, http.MethodPatch, "/api/debts/"+string(d.ID), map[string]string{"deadline": "2024-02-01"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: The debt is PENDING again
	got := decode[DebtDTO](t, rec)
	assert.Equal(t, ledger.StatusPending, got.Status)
	assert.Equal(t, "2024-02-01", got.Deadline.String())
}

func TestMarkPaid_OverrideIsAudited(t *testing.T) {
	e := newTestEnv(t, "2024-01-08")
	c := e.createClient(t, "Ada", "ada@example.com")
	d := e.createDebt(t, c, "100.00", "2024-01-01", "2024-01-31")
	require.Equal(t, http.StatusCreated, e.pay(t, d, "30.00").Code)

	// WHEN: Forcing PAID with 70.00 outstanding
	rec := e.do(t, http.MethodPost, "/api/debts/"+string(d.ID)+"/mark_paid", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: PAID with the override flag, and the audit log has it
	got := decode[DebtDTO](t, rec)
	assert.Equal(t, ledger.StatusPaid, got.Status)
	assert.True(t, got.PaidOverride)

	rec = e.do(t, http.MethodGet, "/api/audit?action=debt_marked_paid&debt="+string(d.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]ledger.AuditEntry](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.AuditDebtMarkedPaid, entries[0].Action)
}

func TestRefreshDebts_MovesPastDeadlineToOverdue(t *testing.T) {
	e := newTestEnv(t, "2024-01-08")
	c := e.createClient(t, "Ada", "ada@example.com")
	d := e.createDebt(t, c, "100.00", "2024-01-01", "2024-01-10")

	// WHEN: Time passes the deadline
	e.clock.AdvanceDays(3)
	rec := e.do(t, http.MethodPost, "/api/debts/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[map[string]int](t, rec)["updated"])

	rec = e.do(t, http.MethodGet, "/api/debts/"+string(d.ID), nil)
	assert.Equal(t, ledger.StatusOverdue, decode[DebtDTO](t, rec).Status)
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func TestReminders_CreateAndSend(t *testing.T) {
	e := newTestEnv(t, "2024-01-08")

	// GIVEN: A debt due in exactly two days
	c := e.createClient(t, "Ada", "ada@example.com")
	d := e.createDebt(t, c, "100.00", "2024-01-01", "2024-01-10")

	// WHEN: Running the scan twice
	rec := e.do(t, http.MethodPost, "/api/notifications/create_reminders", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[CreateRemindersResponse](t, rec)

	rec = e.do(t, http.MethodPost, "/api/notifications/create_reminders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[CreateRemindersResponse](t, rec)

	// THEN: Exactly one reminder exists
	require.Equal(t, 1, first.Created)
	assert.Equal(t, 0, second.Created)
	n := first.Notifications[0]
	assert.Equal(t, d.ID, n.DebtID)
	assert.Equal(t, "ada@example.com", n.RecipientEmail)
	assert.Equal(t, ledger.NotificationPending, n.Status)

	// WHEN: Sending due notifications
	rec = e.do(t, http.MethodPost, "/api/notifications/send_pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sent := decode[SendPendingResponse](t, rec)
	assert.Equal(t, 1, sent.Sent)
	assert.Equal(t, 1, sent.Processed)

	// THEN: The mailer got it and a manual resend conflicts
	require.Len(t, e.mailer.Outbox(), 1)
	assert.Equal(t, "billing@vendor.test", e.mailer.Outbox()[0].From)

	rec = e.do(t, http.MethodPost, "/api/notifications/"+string(n.ID)+"/send", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/notifications/"+string(n.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[NotificationDTO](t, rec)
	assert.Equal(t, ledger.NotificationSent, got.Status)
	assert.NotNil(t, got.SentAt)
	assert.Len(t, e.mailer.Outbox(), 1)
}

func TestSendNotification_MailerFailureIs502(t *testing.T) {
	e := newTestEnv(t, "2024-01-08")
	e.handler.Scheduler.Mailer = failingMailer{}

	c := e.createClient(t, "Ada", "ada@example.com")
	e.createDebt(t, c, "100.00", "2024-01-01", "2024-01-10")
	rec := e.do(t, http.MethodPost, "/api/notifications/create_reminders", nil)
	n := decode[CreateRemindersResponse](t, rec).Notifications[0]

	// WHEN: Sending through a failing mailer
	rec = e.do(t, http.MethodPost, "/api/notifications/"+string(n.ID)+"/send", nil)

	// THEN: 502 with the mailer's message, notification FAILED
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, "550")

	rec = e.do(t, http.MethodGet, "/api/notifications?status=failed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]NotificationDTO](t, rec), 1)
}

func TestBatchEndpoints_StoreFailureIs500(t *testing.T) {
	// GIVEN: A scheduler whose store cannot list debts or notifications
	e := newTestEnv(t, "2024-01-08")
	e.handler.Scheduler.Repo = brokenListStore{Memory: e.repo}

	// WHEN: Running either batch
	scan := e.do(t, http.MethodPost, "/api/notifications/create_reminders", nil)
	send := e.do(t, http.MethodPost, "/api/notifications/send_pending", nil)

	// THEN: 500 instead of a zero-count success
	assert.Equal(t, http.StatusInternalServerError, scan.Code, scan.Body.String())
	assert.Contains(t, decode[ErrorResponse](t, scan).Details, "database is locked")
	assert.Equal(t, http.StatusInternalServerError, send.Code, send.Body.String())
}

func TestCreateNotification_Manual(t *testing.T) {
	e := newTestEnv(t, "2024-01-08")
	c := e.createClient(t, "Ada", "ada@example.com")

	// Scheduled in the past is rejected
	rec := e.do(t, http.MethodPost, "/api/notifications", map[string]any{
		"client":        c.ID,
		"subject":       "Hello",
		"message":       "Thanks for your business",
		"scheduled_for": "2024-01-07T09:00:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/notifications", map[string]any{
		"client":        c.ID,
		"subject":       "Hello",
		"message":       "Thanks for your business",
		"scheduled_for": "2024-01-09T09:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	n := decode[NotificationDTO](t, rec)
	assert.Equal(t, "ada@example.com", n.RecipientEmail)
	assert.Equal(t, "billing@vendor.test", n.SenderEmail)

	rec = e.do(t, http.MethodGet, "/api/notifications/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]NotificationDTO](t, rec), 1)
}

// =============================================================================
// REPORTS, EXPORT, AUDIT
// =============================================================================

func TestExportReports_IsWorkbook(t *testing.T) {
	e := newTestEnv(t, "2024-01-08")
	c := e.createClient(t, "Ada", "ada@example.com")
	d := e.createDebt(t, c, "100.00", "2024-01-01", "2024-01-31")
	require.Equal(t, http.StatusCreated, e.pay(t, d, "25.00").Code)

	rec := e.do(t, http.MethodGet, "/api/reports/export.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "ledger-2024-01-08.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "Outstanding")
}

func TestArchiveReports_NotConfigured(t *testing.T) {
	e := newTestEnv(t, "2024-01-08")
	rec := e.do(t, http.MethodPost, "/api/reports/archive", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAudit_InvalidLimit(t *testing.T) {
	e := newTestEnv(t, "2024-01-08")
	rec := e.do(t, http.MethodGet, "/api/audit?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// HEALTH & METRICS
// =============================================================================

func TestHealthAndMetrics(t *testing.T) {
	e := newTestEnv(t, "2024-01-08")

	rec := e.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	e.createClient(t, "Ada", "ada@example.com")

	rec = e.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `ledger_http_requests_total{code="201",method="POST",route="/api/clients`)
	assert.Contains(t, body, "ledger_reminders_created_total 0")
}

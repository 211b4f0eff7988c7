/*
handlers.go - HTTP API handlers for the debt ledger

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the ledger, reminder scheduler and
  reporter.

ENDPOINTS:
  Clients:
    GET    /api/clients                  List clients
    POST   /api/clients                  Create client
    GET    /api/clients/{id}             Client details
    DELETE /api/clients/{id}             Delete client (cascades)
    GET    /api/clients/{id}/balance     Balance summary

  Debts:
    GET    /api/debts                    List (?client=&status=&overdue=true)
    POST   /api/debts                    Create debt
    GET    /api/debts/{id}               Debt with paid/remaining
    PATCH  /api/debts/{id}               Update description/deadline
    POST   /api/debts/{id}/mark_paid     Force PAID (audited override)
    POST   /api/debts/{id}/recompute     Re-derive status
    GET    /api/debts/overdue|pending|upcoming
    POST   /api/debts/refresh            Re-derive every open debt

  Payments:
    GET    /api/payments                 List (?client=&debt=)
    POST   /api/payments                 Record payment
    GET    /api/payments/{id}
    GET    /api/payments/recent|summary

  Notifications:
    GET    /api/notifications            List (?client=&status=)
    POST   /api/notifications            Schedule manual notification
    GET    /api/notifications/{id}
    GET    /api/notifications/pending
    POST   /api/notifications/{id}/send
    POST   /api/notifications/send_pending
    POST   /api/notifications/create_reminders

  Reports:
    GET    /api/reports/outstanding|overdue|dashboard
    GET    /api/reports/export.xlsx
    POST   /api/reports/archive

  Audit:
    GET    /api/audit                    (?client=&debt=&action=&limit=)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (already sent, send in flight, duplicate email)
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. Callers are assumed authenticated
  upstream.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/warp/debt-ledger/export"
	"github.com/warp/debt-ledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger    *ledger.Ledger
	Scheduler *ledger.ReminderScheduler
	Reporter  *ledger.Reporter
	Clock     ledger.Clock

	// Optional. Nil disables the endpoints that need them.
	Audit   ledger.AuditLog
	Store   ledger.Resetter
	Archive *export.S3Archive
	Logger  *slog.Logger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires a handler around the engine components.
func NewHandler(l *ledger.Ledger, s *ledger.ReminderScheduler, rep *ledger.Reporter) *Handler {
	return &Handler{
		Ledger:    l,
		Scheduler: s,
		Reporter:  rep,
		Clock:     l.Clock,
		Audit:     l.Audit,
	}
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *Handler) today() ledger.Date { return ledger.Today(h.Clock) }

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

// ListClients returns all clients.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Ledger.ListClients(r.Context())
	if err != nil {
		writeLedgerError(w, "Failed to list clients", err)
		return
	}

	dtos := make([]ClientDTO, len(clients))
	for i, c := range clients {
		dtos[i] = toClientDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateClient creates a new client.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	c, err := h.Ledger.CreateClient(r.Context(), ledger.ClientInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		writeLedgerError(w, "Failed to create client", err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientDTO(c))
}

// GetClient returns a single client.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	c, err := h.Ledger.GetClient(r.Context(), ledger.ClientID(chi.URLParam(r, "id")))
	if err != nil {
		writeLedgerError(w, "Failed to get client", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(c))
}

// DeleteClient removes a client and everything it owns.
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := h.Ledger.DeleteClient(r.Context(), ledger.ClientID(chi.URLParam(r, "id"))); err != nil {
		writeLedgerError(w, "Failed to delete client", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetClientBalance returns the client's totals and debt counts.
// GET /api/clients/{id}/balance
func (h *Handler) GetClientBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := h.Reporter.ClientBalance(r.Context(), ledger.ClientID(chi.URLParam(r, "id")))
	if err != nil {
		writeLedgerError(w, "Failed to get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

// =============================================================================
// DEBT HANDLERS
// =============================================================================

// ListDebts returns debts filtered by client, status or overdue=true.
func (h *Handler) ListDebts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ledger.DebtFilter{ClientID: ledger.ClientID(q.Get("client"))}

	if s := q.Get("status"); s != "" {
		status, ok := ledger.ParseDebtStatus(s)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid status", fmt.Errorf("unknown debt status %q", s))
			return
		}
		f.Statuses = []ledger.DebtStatus{status}
	}
	if overdue, _ := strconv.ParseBool(q.Get("overdue")); overdue {
		f.Statuses = []ledger.DebtStatus{ledger.StatusOverdue}
	}

	debts, err := h.Ledger.ListDebts(r.Context(), f)
	if err != nil {
		writeLedgerError(w, "Failed to list debts", err)
		return
	}
	h.writeDebts(w, r.Context(), debts)
}

// CreateDebt creates a new debt.
func (h *Handler) CreateDebt(w http.ResponseWriter, r *http.Request) {
	var req CreateDebtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	d, err := h.Ledger.CreateDebt(r.Context(), ledger.DebtInput{
		ClientID:    req.ClientID,
		Amount:      req.Amount,
		Description: req.Description,
		Date:        req.Date,
		Deadline:    req.Deadline,
	})
	if err != nil {
		writeLedgerError(w, "Failed to create debt", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDebtDTO(d, ledger.Zero, h.today()))
}

// GetDebt returns a debt with its paid and remaining amounts.
func (h *Handler) GetDebt(w http.ResponseWriter, r *http.Request) {
	d, err := h.Ledger.GetDebt(r.Context(), ledger.DebtID(chi.URLParam(r, "id")))
	if err != nil {
		writeLedgerError(w, "Failed to get debt", err)
		return
	}
	h.writeDebt(w, r.Context(), http.StatusOK, d)
}

// UpdateDebt changes description and/or deadline.
// PATCH /api/debts/{id}
func (h *Handler) UpdateDebt(w http.ResponseWriter, r *http.Request) {
	var req UpdateDebtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	d, err := h.Ledger.UpdateDebt(r.Context(), ledger.DebtID(chi.URLParam(r, "id")), ledger.DebtUpdate{
		Description: req.Description,
		Deadline:    req.Deadline,
	})
	if err != nil {
		writeLedgerError(w, "Failed to update debt", err)
		return
	}
	h.writeDebt(w, r.Context(), http.StatusOK, d)
}

// MarkDebtPaid forces a debt to PAID.
// POST /api/debts/{id}/mark_paid
func (h *Handler) MarkDebtPaid(w http.ResponseWriter, r *http.Request) {
	d, err := h.Ledger.MarkPaid(r.Context(), ledger.DebtID(chi.URLParam(r, "id")))
	if err != nil {
		writeLedgerError(w, "Failed to mark debt paid", err)
		return
	}
	h.writeDebt(w, r.Context(), http.StatusOK, d)
}

// RecomputeDebt re-derives one debt's status.
// POST /api/debts/{id}/recompute
func (h *Handler) RecomputeDebt(w http.ResponseWriter, r *http.Request) {
	d, err := h.Ledger.RecomputeStatus(r.Context(), ledger.DebtID(chi.URLParam(r, "id")))
	if err != nil {
		writeLedgerError(w, "Failed to recompute debt", err)
		return
	}
	h.writeDebt(w, r.Context(), http.StatusOK, d)
}

// RefreshDebts re-derives every open debt's status.
// POST /api/debts/refresh
func (h *Handler) RefreshDebts(w http.ResponseWriter, r *http.Request) {
	changed, err := h.Ledger.RefreshStatuses(r.Context())
	if err != nil {
		writeLedgerError(w, "Failed to refresh statuses", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": changed})
}

// ListOverdueDebts returns OVERDUE debts.
func (h *Handler) ListOverdueDebts(w http.ResponseWriter, r *http.Request) {
	debts, err := h.Ledger.OverdueDebts(r.Context())
	if err != nil {
		writeLedgerError(w, "Failed to list overdue debts", err)
		return
	}
	h.writeDebts(w, r.Context(), debts)
}

// ListPendingDebts returns PENDING debts.
func (h *Handler) ListPendingDebts(w http.ResponseWriter, r *http.Request) {
	debts, err := h.Ledger.PendingDebts(r.Context())
	if err != nil {
		writeLedgerError(w, "Failed to list pending debts", err)
		return
	}
	h.writeDebts(w, r.Context(), debts)
}

// ListUpcomingDebts returns PENDING debts due within ?days= (default 7).
func (h *Handler) ListUpcomingDebts(w http.ResponseWriter, r *http.Request) {
	days := ledger.UpcomingWindowDays
	if s := r.URL.Query().Get("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid days", err)
			return
		}
		days = n
	}

	debts, err := h.Ledger.UpcomingDebts(r.Context(), days)
	if err != nil {
		writeLedgerError(w, "Failed to list upcoming debts", err)
		return
	}
	h.writeDebts(w, r.Context(), debts)
}

func (h *Handler) writeDebt(w http.ResponseWriter, ctx context.Context, status int, d ledger.Debt) {
	paid, err := h.Ledger.Repo.SumPayments(ctx, d.ID)
	if err != nil {
		writeLedgerError(w, "Failed to load payments", err)
		return
	}
	writeJSON(w, status, toDebtDTO(d, paid, h.today()))
}

func (h *Handler) writeDebts(w http.ResponseWriter, ctx context.Context, debts []ledger.Debt) {
	today := h.today()
	dtos := make([]DebtDTO, len(debts))
	for i, d := range debts {
		paid, err := h.Ledger.Repo.SumPayments(ctx, d.ID)
		if err != nil {
			writeLedgerError(w, "Failed to load payments", err)
			return
		}
		dtos[i] = toDebtDTO(d, paid, today)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// ListPayments returns payments filtered by client and/or debt.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	payments, err := h.Ledger.ListPayments(r.Context(), ledger.PaymentFilter{
		ClientID: ledger.ClientID(q.Get("client")),
		DebtID:   ledger.DebtID(q.Get("debt")),
	})
	if err != nil {
		writeLedgerError(w, "Failed to list payments", err)
		return
	}
	writePayments(w, payments)
}

// RecordPayment records a payment against a debt.
// POST /api/payments
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	receipt, err := h.Ledger.RecordPayment(r.Context(), ledger.PaymentInput{
		ClientID:        req.ClientID,
		DebtID:          req.DebtID,
		Amount:          req.Amount,
		Date:            req.Date,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
	})
	if err != nil {
		writeLedgerError(w, "Failed to record payment", err)
		return
	}

	writeJSON(w, http.StatusCreated, PaymentResponse{
		Payment:   toPaymentDTO(receipt.Payment),
		Debt:      toDebtDTO(receipt.Debt, receipt.Paid, h.today()),
		Remaining: receipt.Remaining,
	})
}

// GetPayment returns a single payment.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.Ledger.GetPayment(r.Context(), ledger.PaymentID(chi.URLParam(r, "id")))
	if err != nil {
		writeLedgerError(w, "Failed to get payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(p))
}

// ListRecentPayments returns payments from the last 30 days.
func (h *Handler) ListRecentPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Ledger.RecentPayments(r.Context())
	if err != nil {
		writeLedgerError(w, "Failed to list recent payments", err)
		return
	}
	writePayments(w, payments)
}

// GetPaymentSummary returns the total amount and count of payments.
func (h *Handler) GetPaymentSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Reporter.PaymentSummary(r.Context())
	if err != nil {
		writeLedgerError(w, "Failed to summarize payments", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func writePayments(w http.ResponseWriter, payments []ledger.Payment) {
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// NOTIFICATION HANDLERS
// =============================================================================

// ListNotifications returns notifications filtered by client and/or status.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ledger.NotificationFilter{ClientID: ledger.ClientID(q.Get("client"))}
	if s := q.Get("status"); s != "" {
		status, ok := ledger.ParseNotificationStatus(s)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid status", fmt.Errorf("unknown notification status %q", s))
			return
		}
		f.Statuses = []ledger.NotificationStatus{status}
	}

	ns, err := h.Scheduler.ListNotifications(r.Context(), f)
	if err != nil {
		writeLedgerError(w, "Failed to list notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, toNotificationDTOs(ns))
}

// CreateNotification schedules a manual notification.
func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var req CreateNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	n, err := h.Scheduler.CreateNotification(r.Context(), ledger.NotificationInput{
		ClientID:       req.ClientID,
		DebtID:         req.DebtID,
		RecipientEmail: req.RecipientEmail,
		SenderEmail:    req.SenderEmail,
		Subject:        req.Subject,
		Message:        req.Message,
		ScheduledFor:   req.ScheduledFor,
	})
	if err != nil {
		writeLedgerError(w, "Failed to create notification", err)
		return
	}
	writeJSON(w, http.StatusCreated, toNotificationDTO(n))
}

// GetNotification returns a single notification.
func (h *Handler) GetNotification(w http.ResponseWriter, r *http.Request) {
	n, err := h.Scheduler.GetNotification(r.Context(), ledger.NotificationID(chi.URLParam(r, "id")))
	if err != nil {
		writeLedgerError(w, "Failed to get notification", err)
		return
	}
	writeJSON(w, http.StatusOK, toNotificationDTO(n))
}

// ListPendingNotifications returns PENDING notifications.
func (h *Handler) ListPendingNotifications(w http.ResponseWriter, r *http.Request) {
	ns, err := h.Scheduler.PendingNotifications(r.Context())
	if err != nil {
		writeLedgerError(w, "Failed to list pending notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, toNotificationDTOs(ns))
}

// SendNotification delivers one notification now. A mailer failure is
// recorded on the notification and answered with 502.
// POST /api/notifications/{id}/send
func (h *Handler) SendNotification(w http.ResponseWriter, r *http.Request) {
	n, err := h.Scheduler.SendOne(r.Context(), ledger.NotificationID(chi.URLParam(r, "id")), h.Clock.Now())
	if err != nil {
		writeLedgerError(w, "Failed to send notification", err)
		return
	}
	if n.Status == ledger.NotificationFailed {
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "Failed to send notification", Details: n.ErrorMessage})
		return
	}
	writeJSON(w, http.StatusOK, toNotificationDTO(n))
}

// SendPendingNotifications sends every due PENDING notification.
// POST /api/notifications/send_pending
func (h *Handler) SendPendingNotifications(w http.ResponseWriter, r *http.Request) {
	res, err := h.Scheduler.SendDue(r.Context(), h.Clock.Now())
	if err != nil && !ledger.IsPartial(err) {
		writeLedgerError(w, "Failed to send pending notifications", err)
		return
	}
	if err != nil {
		h.logger().Warn("send pending finished with errors", "error", err)
	}
	writeJSON(w, http.StatusOK, SendPendingResponse{SendResult: res, Processed: res.Processed()})
}

// CreateReminders runs the reminder scan for today.
// POST /api/notifications/create_reminders
func (h *Handler) CreateReminders(w http.ResponseWriter, r *http.Request) {
	var req CreateRemindersRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	created, err := h.Scheduler.ScanForReminders(r.Context(), h.today(), req.SenderEmail)
	if err != nil && !ledger.IsPartial(err) {
		writeLedgerError(w, "Failed to create reminders", err)
		return
	}
	if err != nil {
		h.logger().Warn("reminder scan finished with errors", "error", err)
	}
	writeJSON(w, http.StatusOK, CreateRemindersResponse{
		Created:       len(created),
		Notifications: toNotificationDTOs(created),
	})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

func (h *Handler) GetOutstandingReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Reporter.Outstanding(r.Context())
	if err != nil {
		writeLedgerError(w, "Failed to build outstanding report", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) GetOverdueReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Reporter.Overdue(r.Context())
	if err != nil {
		writeLedgerError(w, "Failed to build overdue report", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.Reporter.Dashboard(r.Context())
	if err != nil {
		writeLedgerError(w, "Failed to build dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

// ExportReports streams the reports as an XLSX workbook.
// GET /api/reports/export.xlsx
func (h *Handler) ExportReports(w http.ResponseWriter, r *http.Request) {
	reps, err := export.Collect(r.Context(), h.Reporter, h.Clock.Now())
	if err != nil {
		writeLedgerError(w, "Failed to build reports", err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, reps); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render workbook", err)
		return
	}

	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="ledger-%s.xlsx"`, h.today()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ArchiveReports uploads the workbook to object storage.
// POST /api/reports/archive
func (h *Handler) ArchiveReports(w http.ResponseWriter, r *http.Request) {
	if h.Archive == nil {
		writeError(w, http.StatusServiceUnavailable, "Report archive not configured", nil)
		return
	}
	reps, err := export.Collect(r.Context(), h.Reporter, h.Clock.Now())
	if err != nil {
		writeLedgerError(w, "Failed to build reports", err)
		return
	}
	key, err := h.Archive.Archive(r.Context(), reps)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to archive reports", err)
		return
	}
	writeJSON(w, http.StatusCreated, ArchiveResponse{Key: key})
}

// =============================================================================
// AUDIT
// =============================================================================

// ListAudit returns audit entries, newest first.
// GET /api/audit?client=&debt=&action=&limit=
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.Audit == nil {
		writeError(w, http.StatusServiceUnavailable, "Audit log not configured", nil)
		return
	}

	q := r.URL.Query()
	f := ledger.AuditFilter{
		ClientID: ledger.ClientID(q.Get("client")),
		DebtID:   ledger.DebtID(q.Get("debt")),
		Limit:    100,
	}
	for _, a := range q["action"] {
		f.Actions = append(f.Actions, ledger.AuditAction(a))
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		f.Limit = n
	}

	entries, err := h.Audit.Query(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query audit log", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// =============================================================================
// HEALTH & RESET
// =============================================================================

// Health reports liveness and, when the store supports it, database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Database unreachable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ResetDatabase clears all data (development only).
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "Reset not supported", nil)
		return
	}
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeLedgerError picks the status from the ledger error category.
func writeLedgerError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case ledger.IsClientError(err):
		status = http.StatusBadRequest
	case ledger.IsNotFound(err):
		status = http.StatusNotFound
	case ledger.IsConflict(err):
		status = http.StatusConflict
	}
	writeError(w, status, message, err)
}

/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger domain model (which carries no JSON tags) from the external
  API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

FORMATS:
  Money:      JSON number with two fractional digits (ledger.Money)
  Dates:      "YYYY-MM-DD" (ledger.Date)
  Timestamps: RFC 3339

VALIDATION:
  Validation is done by the ledger, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/report.go: Report shapes are returned as-is
*/
package api

import (
	"time"

	"github.com/warp/debt-ledger/ledger"
)

// =============================================================================
// CLIENTS
// =============================================================================

type ClientDTO struct {
	ID        ledger.ClientID `json:"id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Phone     string          `json:"phone"`
	Address   string          `json:"address"`
	CreatedAt string          `json:"created_at"`
}

type CreateClientRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func toClientDTO(c ledger.Client) ClientDTO {
	return ClientDTO{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// DEBTS
// =============================================================================

type DebtDTO struct {
	ID                ledger.DebtID     `json:"id"`
	ClientID          ledger.ClientID   `json:"client"`
	Amount            ledger.Money      `json:"amount"`
	Description       string            `json:"description"`
	Date              ledger.Date       `json:"date"`
	Deadline          ledger.Date       `json:"deadline"`
	Status            ledger.DebtStatus `json:"status"`
	PaidOverride      bool              `json:"paid_override"`
	TotalPaid         ledger.Money      `json:"total_paid"`
	RemainingBalance  ledger.Money      `json:"remaining_balance"`
	DaysUntilDeadline int               `json:"days_until_deadline"`
	IsOverdue         bool              `json:"is_overdue"`
	CreatedAt         string            `json:"created_at"`
	UpdatedAt         string            `json:"updated_at"`
}

type CreateDebtRequest struct {
	ClientID    ledger.ClientID `json:"client"`
	Amount      ledger.Money    `json:"amount"`
	Description string          `json:"description"`
	Date        ledger.Date     `json:"date"`
	Deadline    ledger.Date     `json:"deadline"`
}

// UpdateDebtRequest is a PATCH body. Absent fields are unchanged.
type UpdateDebtRequest struct {
	Description *string      `json:"description"`
	Deadline    *ledger.Date `json:"deadline"`
}

func toDebtDTO(d ledger.Debt, paid ledger.Money, today ledger.Date) DebtDTO {
	return DebtDTO{
		ID:                d.ID,
		ClientID:          d.ClientID,
		Amount:            d.Amount,
		Description:       d.Description,
		Date:              d.Date,
		Deadline:          d.Deadline,
		Status:            d.Status,
		PaidOverride:      d.PaidOverride,
		TotalPaid:         paid,
		RemainingBalance:  ledger.RemainingBalance(d, paid),
		DaysUntilDeadline: ledger.DaysUntilDeadline(d, today),
		IsOverdue:         ledger.IsOverdue(d, today),
		CreatedAt:         d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         d.UpdatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// PAYMENTS
// =============================================================================

type PaymentDTO struct {
	ID              ledger.PaymentID `json:"id"`
	ClientID        ledger.ClientID  `json:"client"`
	DebtID          ledger.DebtID    `json:"debt"`
	Amount          ledger.Money     `json:"amount"`
	Date            ledger.Date      `json:"date"`
	ReferenceNumber string           `json:"reference_number"`
	Notes           string           `json:"notes"`
	CreatedAt       string           `json:"created_at"`
}

type RecordPaymentRequest struct {
	ClientID        ledger.ClientID `json:"client"`
	DebtID          ledger.DebtID   `json:"debt"`
	Amount          ledger.Money    `json:"amount"`
	Date            ledger.Date     `json:"date"`
	ReferenceNumber string          `json:"reference_number"`
	Notes           string          `json:"notes"`
}

// PaymentResponse is returned by POST /api/payments.
type PaymentResponse struct {
	Payment   PaymentDTO   `json:"payment"`
	Debt      DebtDTO      `json:"debt"`
	Remaining ledger.Money `json:"remaining_balance"`
}

func toPaymentDTO(p ledger.Payment) PaymentDTO {
	return PaymentDTO{
		ID:              p.ID,
		ClientID:        p.ClientID,
		DebtID:          p.DebtID,
		Amount:          p.Amount,
		Date:            p.Date,
		ReferenceNumber: p.ReferenceNumber,
		Notes:           p.Notes,
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

type NotificationDTO struct {
	ID             ledger.NotificationID     `json:"id"`
	ClientID       ledger.ClientID           `json:"client"`
	DebtID         ledger.DebtID             `json:"debt,omitempty"`
	RecipientEmail string                    `json:"recipient_email"`
	SenderEmail    string                    `json:"sender_email"`
	Subject        string                    `json:"subject"`
	Message        string                    `json:"message"`
	ScheduledFor   string                    `json:"scheduled_for"`
	SentAt         *string                   `json:"sent_at"`
	Status         ledger.NotificationStatus `json:"status"`
	ErrorMessage   string                    `json:"error_message"`
	CreatedAt      string                    `json:"created_at"`
}

type CreateNotificationRequest struct {
	ClientID       ledger.ClientID `json:"client"`
	DebtID         ledger.DebtID   `json:"debt"`
	RecipientEmail string          `json:"recipient_email"`
	SenderEmail    string          `json:"sender_email"`
	Subject        string          `json:"subject"`
	Message        string          `json:"message"`
	ScheduledFor   time.Time       `json:"scheduled_for"`
}

// CreateRemindersRequest is the optional body of create_reminders.
type CreateRemindersRequest struct {
	SenderEmail string `json:"sender_email"`
}

type CreateRemindersResponse struct {
	Created       int               `json:"created"`
	Notifications []NotificationDTO `json:"notifications"`
}

type SendPendingResponse struct {
	ledger.SendResult
	Processed int `json:"processed"`
}

func toNotificationDTO(n ledger.Notification) NotificationDTO {
	dto := NotificationDTO{
		ID:             n.ID,
		ClientID:       n.ClientID,
		DebtID:         n.DebtID,
		RecipientEmail: n.RecipientEmail,
		SenderEmail:    n.SenderEmail,
		Subject:        n.Subject,
		Message:        n.Message,
		ScheduledFor:   n.ScheduledFor.Format(time.RFC3339),
		Status:         n.Status,
		ErrorMessage:   n.ErrorMessage,
		CreatedAt:      n.CreatedAt.Format(time.RFC3339),
	}
	if n.SentAt != nil {
		s := n.SentAt.Format(time.RFC3339)
		dto.SentAt = &s
	}
	return dto
}

func toNotificationDTOs(ns []ledger.Notification) []NotificationDTO {
	out := make([]NotificationDTO, len(ns))
	for i, n := range ns {
		out[i] = toNotificationDTO(n)
	}
	return out
}

// =============================================================================
// MISC
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

type ArchiveResponse struct {
	Key string `json:"key"`
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (the HTTP layer, jobs) classify errors with errors.Is / errors.As
  or with the Is* helpers at the bottom of this file.

ERROR CATEGORIES:
  1. Validation - bad input, nothing was written (400)
  2. Not found  - unknown id (404)
  3. Conflict   - already sent, send in flight, duplicate email (409)
  4. Mailer     - recorded on the notification, never returned from batches

USAGE:
  _, err := l.RecordPayment(ctx, in)
  var verr *ledger.ValidationError
  if errors.As(err, &verr) && verr.Reason == ledger.ReasonOverpayment {
      // show remaining balance
  }

SEE ALSO:
  - payment.go: Validation errors on payments
  - reminder.go: AlreadySentError, MailerError
*/
package ledger

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is the root of every *NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrAlreadySent is returned when sending a notification that is SENT.
	ErrAlreadySent = errors.New("notification already sent")

	// ErrNotificationInFlight is returned when another sender holds the claim.
	ErrNotificationInFlight = errors.New("notification send already in progress")

	// ErrNotClaimable is returned when a notification left the expected
	// state between listing and claiming (e.g. a concurrent batch failed it).
	ErrNotClaimable = errors.New("notification is not in a claimable state")

	// ErrDuplicateEmail is returned when a client email is already taken.
	ErrDuplicateEmail = errors.New("client email already exists")

	// ErrDuplicateReminder is returned by stores when the at-most-one
	// active reminder per debt constraint rejects an insert.
	ErrDuplicateReminder = errors.New("debt already has an active reminder")

	// ErrMailer is the root of every *MailerError.
	ErrMailer = errors.New("mailer failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// Validation reasons.
const (
	ReasonNonPositiveAmount  = "non-positive amount"
	ReasonAmountTooLarge     = "amount exceeds maximum"
	ReasonClientMismatch     = "client mismatch"
	ReasonOverpayment        = "overpayment"
	ReasonDeadlineBeforeDate = "deadline before origination date"
	ReasonRequired           = "required"
	ReasonInvalid            = "invalid"
	ReasonScheduleInPast     = "scheduled time must be in the future"
)

// ValidationError rejects an operation before any mutation.
type ValidationError struct {
	Field  string
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	msg := e.Reason
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason, detail string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Detail: detail}
}

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind string // "client", "debt", "payment", "notification"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// AlreadySentError signals a no-op send on a terminal notification.
type AlreadySentError struct {
	NotificationID NotificationID
	SentAt         *time.Time
}

func (e *AlreadySentError) Error() string {
	if e.SentAt != nil {
		return fmt.Sprintf("notification %s already sent at %s", e.NotificationID, e.SentAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("notification %s already sent", e.NotificationID)
}

func (e *AlreadySentError) Unwrap() error { return ErrAlreadySent }

// MailerError wraps a delivery failure. It is stored on the notification
// as ErrorMessage.
type MailerError struct {
	NotificationID NotificationID
	Err            error
}

func (e *MailerError) Error() string {
	return fmt.Sprintf("send notification %s: %v", e.NotificationID, e.Err)
}

func (e *MailerError) Unwrap() []error { return []error{ErrMailer, e.Err} }

// PartialError is returned by batch operations that ran over their items
// but failed on some of them. Counts returned alongside it are valid.
type PartialError struct {
	Errs []error
}

func (e *PartialError) Error() string {
	if len(e.Errs) == 1 {
		return e.Errs[0].Error()
	}
	return errors.Join(e.Errs...).Error()
}

func (e *PartialError) Unwrap() []error { return e.Errs }

// ClaimConflict explains why n cannot be claimed. Stores call it after a
// conditional claim matched no row.
func ClaimConflict(n Notification) error {
	switch n.Status {
	case NotificationSent:
		return &AlreadySentError{NotificationID: n.ID, SentAt: n.SentAt}
	case NotificationSending:
		return ErrNotificationInFlight
	}
	return fmt.Errorf("%w: notification %s is %s", ErrNotClaimable, n.ID, n.Status)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsPartial returns true if a batch completed with per-item failures, as
// opposed to failing before any item was processed.
func IsPartial(err error) bool {
	var perr *PartialError
	return errors.As(err, &perr)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the operation clashed with current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadySent) ||
		errors.Is(err, ErrNotificationInFlight) ||
		errors.Is(err, ErrNotClaimable) ||
		errors.Is(err, ErrDuplicateEmail) ||
		errors.Is(err, ErrDuplicateReminder)
}

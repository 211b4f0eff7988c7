/*
reminder.go - Reminder Scheduler

PURPOSE:
  Decides which debts need a reminder, creates at most one active reminder
  per debt, and drives delivery through the Mailer with outcome bookkeeping.

NOTIFICATION LIFECYCLE:
  PENDING --claim--> SENDING --mailer ok--> SENT   (terminal)
                             --mailer err-> FAILED (manual retry via SendOne)

EXACTLY-ONCE SCHEDULING:
  ScanForReminders checks for an active (PENDING/SENDING/SENT) reminder and
  inserts the new one inside a single transaction per debt. SQL stores back
  this with a partial unique index; a rejected insert counts as "already
  scheduled".

EXACTLY-ONCE DELIVERY:
  A notification is claimed (PENDING -> SENDING) before the mailer is
  called. Only the claim winner sends; other callers skip it.

TIMEOUTS:
  Each mailer call is bounded by SendTimeout. A timeout is a failure.
  Outcome bookkeeping uses a context detached from caller cancellation so a
  claimed notification is never left in SENDING because the request ended.

SEE ALSO:
  - status.go: NeedsReminder
  - message.go: reminder templates
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultSendTimeout = 30 * time.Second
	DefaultConcurrency = 4
)

// SendResult counts the outcomes of a SendDue batch.
type SendResult struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"` // claimed by another sender
}

// Processed is Sent + Failed.
func (r SendResult) Processed() int { return r.Sent + r.Failed }

type ReminderScheduler struct {
	Repo          TxRepository
	Clock         Clock
	Mailer        Mailer
	Audit         AuditLog     // optional
	Logger        *slog.Logger // optional
	Metrics       Metrics      // optional
	DefaultSender string
	SendTimeout   time.Duration // 0 = DefaultSendTimeout
	Concurrency   int           // 0 = DefaultConcurrency
}

func NewReminderScheduler(repo TxRepository, clock Clock, mailer Mailer, defaultSender string) *ReminderScheduler {
	return &ReminderScheduler{
		Repo:          repo,
		Clock:         clock,
		Mailer:        mailer,
		DefaultSender: defaultSender,
	}
}

func (s *ReminderScheduler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *ReminderScheduler) metrics() Metrics {
	if s.Metrics != nil {
		return s.Metrics
	}
	return NopMetrics{}
}

func (s *ReminderScheduler) sendTimeout() time.Duration {
	if s.SendTimeout > 0 {
		return s.SendTimeout
	}
	return DefaultSendTimeout
}

func (s *ReminderScheduler) concurrency() int {
	if s.Concurrency > 0 {
		return s.Concurrency
	}
	return DefaultConcurrency
}

func (s *ReminderScheduler) sender(override string) string {
	if v := strings.TrimSpace(override); v != "" {
		return v
	}
	return s.DefaultSender
}

// =============================================================================
// SCAN
// =============================================================================

// ScanForReminders creates a reminder for every PENDING debt whose deadline
// is exactly ReminderLeadDays after today and that has no active reminder.
// It returns the notifications it created. Per-debt failures are logged and
// joined into the returned error; the remaining debts are still processed.
func (s *ReminderScheduler) ScanForReminders(ctx context.Context, today Date, senderEmail string) ([]Notification, error) {
	debts, err := s.Repo.ListDebts(ctx, DebtFilter{Statuses: []DebtStatus{StatusPending}})
	if err != nil {
		return nil, fmt.Errorf("list pending debts: %w", err)
	}

	from := s.sender(senderEmail)
	var (
		created []Notification
		errs    []error
	)
	for _, d := range debts {
		if !NeedsReminder(d, today) {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		n, ok, err := s.scheduleReminder(ctx, d.ID, today, from)
		if err != nil {
			s.logger().Error("schedule reminder failed", "debt_id", d.ID, "error", err)
			errs = append(errs, fmt.Errorf("debt %s: %w", d.ID, err))
			continue
		}
		if !ok {
			continue
		}
		created = append(created, n)
		s.metrics().ReminderCreated()
		s.logger().Info("reminder scheduled",
			"notification_id", n.ID, "debt_id", d.ID, "scheduled_for", n.ScheduledFor)
		recordAudit(ctx, s.Audit, s.logger(), s.Clock, AuditEntry{
			Action:         AuditReminderCreated,
			ClientID:       n.ClientID,
			DebtID:         n.DebtID,
			NotificationID: n.ID,
			Detail:         map[string]string{"scheduled_for": n.ScheduledFor.Format(time.RFC3339)},
		})
	}
	return created, joinErrors(errs)
}

// DueReminders returns the debts ScanForReminders would remind today,
// without creating anything.
func (s *ReminderScheduler) DueReminders(ctx context.Context, today Date) ([]Debt, error) {
	debts, err := s.Repo.ListDebts(ctx, DebtFilter{Statuses: []DebtStatus{StatusPending}})
	if err != nil {
		return nil, fmt.Errorf("list pending debts: %w", err)
	}
	var due []Debt
	for _, d := range debts {
		if !NeedsReminder(d, today) {
			continue
		}
		active, err := s.Repo.HasActiveReminder(ctx, d.ID)
		if err != nil {
			return nil, fmt.Errorf("debt %s: %w", d.ID, err)
		}
		if !active {
			due = append(due, d)
		}
	}
	return due, nil
}

// scheduleReminder runs the check-then-insert for one debt in a transaction.
// ok is false when the debt no longer needs a reminder or already has one.
func (s *ReminderScheduler) scheduleReminder(ctx context.Context, id DebtID, today Date, from string) (Notification, bool, error) {
	var n Notification
	err := s.Repo.WithTx(ctx, func(r Repository) error {
		d, err := r.LockDebt(ctx, id)
		if err != nil {
			return err
		}
		if !NeedsReminder(d, today) {
			return nil
		}
		active, err := r.HasActiveReminder(ctx, id)
		if err != nil {
			return err
		}
		if active {
			return nil
		}

		client, err := r.GetClient(ctx, d.ClientID)
		if err != nil {
			return err
		}
		paid, err := r.SumPayments(ctx, id)
		if err != nil {
			return err
		}
		subject, body, err := RenderReminder(ReminderMessage{
			ClientName:  client.Name,
			Amount:      d.Amount,
			Description: d.Description,
			Deadline:    d.Deadline,
			Remaining:   RemainingBalance(d, paid),
			DaysLeft:    DaysUntilDeadline(d, today),
		})
		if err != nil {
			return err
		}

		candidate := Notification{
			ID:             NotificationID(NewID()),
			ClientID:       d.ClientID,
			DebtID:         d.ID,
			RecipientEmail: client.Email,
			SenderEmail:    from,
			Subject:        subject,
			Message:        body,
			ScheduledFor:   midnight(d.Deadline.AddDays(-ReminderLeadDays), s.Clock),
			Status:         NotificationPending,
			CreatedAt:      s.Clock.Now(),
		}
		if err := r.CreateNotification(ctx, candidate); err != nil {
			return err
		}
		n = candidate
		return nil
	})
	if errors.Is(err, ErrDuplicateReminder) {
		return Notification{}, false, nil
	}
	if err != nil {
		return Notification{}, false, err
	}
	return n, n.ID != "", nil
}

// =============================================================================
// SEND
// =============================================================================

// SendDue delivers every PENDING notification scheduled at or before now.
// Mailer failures are recorded on the notification and counted; they are
// not returned. The error reports store failures only.
func (s *ReminderScheduler) SendDue(ctx context.Context, now time.Time) (SendResult, error) {
	due, err := s.Repo.ListNotifications(ctx, NotificationFilter{
		Statuses:        []NotificationStatus{NotificationPending},
		ScheduledBefore: &now,
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("list due notifications: %w", err)
	}

	var (
		mu     sync.Mutex
		result SendResult
		errs   []error
	)
	var g errgroup.Group
	g.SetLimit(s.concurrency())
	for _, n := range due {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			sent, err := s.deliver(ctx, n.ID, now, NotificationPending)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && sent.Status == NotificationSent:
				result.Sent++
			case err == nil:
				result.Failed++
			case IsConflict(err):
				result.Skipped++
			default:
				errs = append(errs, fmt.Errorf("notification %s: %w", n.ID, err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(due) > 0 {
		s.logger().Info("due notifications processed",
			"sent", result.Sent, "failed", result.Failed, "skipped", result.Skipped)
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return result, joinErrors(errs)
}

// SendOne delivers one notification now. PENDING and FAILED notifications
// may be sent; a SENT one yields *AlreadySentError and a SENDING one
// ErrNotificationInFlight. A mailer failure is recorded on the returned
// notification, not returned as an error.
func (s *ReminderScheduler) SendOne(ctx context.Context, id NotificationID, now time.Time) (Notification, error) {
	return s.deliver(ctx, id, now, NotificationPending, NotificationFailed)
}

func (s *ReminderScheduler) deliver(ctx context.Context, id NotificationID, now time.Time, from ...NotificationStatus) (Notification, error) {
	n, err := s.Repo.ClaimNotification(ctx, id, from...)
	if err != nil {
		return Notification{}, err
	}

	sendErr := s.callMailer(ctx, n)

	if sendErr == nil {
		sentAt := now
		n.Status = NotificationSent
		n.SentAt = &sentAt
		n.ErrorMessage = ""
	} else {
		n.Status = NotificationFailed
		n.SentAt = nil
		n.ErrorMessage = sendErr.Error()
	}

	bookkeeping := context.WithoutCancel(ctx)
	if err := s.Repo.UpdateNotification(bookkeeping, n); err != nil {
		return Notification{}, fmt.Errorf("record send outcome: %w", err)
	}

	entry := AuditEntry{ClientID: n.ClientID, DebtID: n.DebtID, NotificationID: n.ID}
	if sendErr == nil {
		s.metrics().NotificationSent()
		s.logger().Info("notification sent", "notification_id", n.ID, "to", n.RecipientEmail)
		entry.Action = AuditNotificationSent
	} else {
		s.metrics().NotificationFailed()
		s.logger().Warn("notification failed", "notification_id", n.ID, "error", sendErr)
		entry.Action = AuditNotificationFailed
		entry.Detail = map[string]string{"error": n.ErrorMessage}
	}
	recordAudit(bookkeeping, s.Audit, s.logger(), s.Clock, entry)
	return n, nil
}

// callMailer bounds the mailer call by SendTimeout even if the mailer
// ignores its context.
func (s *ReminderScheduler) callMailer(ctx context.Context, n Notification) error {
	if s.Mailer == nil {
		return &MailerError{NotificationID: n.ID, Err: errors.New("no mailer configured")}
	}
	ctx, cancel := context.WithTimeout(ctx, s.sendTimeout())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.Mailer.Send(ctx, n.SenderEmail, n.RecipientEmail, n.Subject, n.Message)
	}()

	select {
	case err := <-done:
		if err != nil {
			return &MailerError{NotificationID: n.ID, Err: err}
		}
		return nil
	case <-ctx.Done():
		return &MailerError{NotificationID: n.ID, Err: fmt.Errorf("mailer timed out: %w", ctx.Err())}
	}
}

// =============================================================================
// MANUAL NOTIFICATIONS AND QUERIES
// =============================================================================

type NotificationInput struct {
	ClientID       ClientID
	DebtID         DebtID // optional
	RecipientEmail string // defaults to the client's email
	SenderEmail    string // defaults to DefaultSender
	Subject        string
	Message        string
	ScheduledFor   time.Time
}

// CreateNotification schedules a manual notification. ScheduledFor must be
// in the future. A notification tied to a debt counts toward that debt's
// single active reminder.
func (s *ReminderScheduler) CreateNotification(ctx context.Context, in NotificationInput) (Notification, error) {
	if in.ClientID == "" {
		return Notification{}, invalid("client", ReasonRequired, "")
	}
	if strings.TrimSpace(in.Subject) == "" {
		return Notification{}, invalid("subject", ReasonRequired, "")
	}
	if strings.TrimSpace(in.Message) == "" {
		return Notification{}, invalid("message", ReasonRequired, "")
	}
	now := s.Clock.Now()
	if !in.ScheduledFor.After(now) {
		return Notification{}, invalid("scheduled_for", ReasonScheduleInPast, in.ScheduledFor.Format(time.RFC3339))
	}

	var n Notification
	err := s.Repo.WithTx(ctx, func(r Repository) error {
		client, err := r.GetClient(ctx, in.ClientID)
		if err != nil {
			return err
		}
		if in.DebtID != "" {
			d, err := r.GetDebt(ctx, in.DebtID)
			if err != nil {
				return err
			}
			if d.ClientID != in.ClientID {
				return invalid("debt", ReasonClientMismatch,
					fmt.Sprintf("debt %s belongs to client %s", d.ID, d.ClientID))
			}
		}
		recipient := NormalizeEmail(in.RecipientEmail)
		if recipient == "" {
			recipient = client.Email
		}
		n = Notification{
			ID:             NotificationID(NewID()),
			ClientID:       in.ClientID,
			DebtID:         in.DebtID,
			RecipientEmail: recipient,
			SenderEmail:    s.sender(in.SenderEmail),
			Subject:        strings.TrimSpace(in.Subject),
			Message:        in.Message,
			ScheduledFor:   in.ScheduledFor,
			Status:         NotificationPending,
			CreatedAt:      now,
		}
		return r.CreateNotification(ctx, n)
	})
	if err != nil {
		return Notification{}, err
	}
	recordAudit(ctx, s.Audit, s.logger(), s.Clock, AuditEntry{
		Action:         AuditReminderCreated,
		ClientID:       n.ClientID,
		DebtID:         n.DebtID,
		NotificationID: n.ID,
		Detail:         map[string]string{"manual": "true"},
	})
	return n, nil
}

func (s *ReminderScheduler) GetNotification(ctx context.Context, id NotificationID) (Notification, error) {
	return s.Repo.GetNotification(ctx, id)
}

func (s *ReminderScheduler) ListNotifications(ctx context.Context, f NotificationFilter) ([]Notification, error) {
	return s.Repo.ListNotifications(ctx, f)
}

func (s *ReminderScheduler) PendingNotifications(ctx context.Context) ([]Notification, error) {
	return s.Repo.ListNotifications(ctx, NotificationFilter{Statuses: []NotificationStatus{NotificationPending}})
}

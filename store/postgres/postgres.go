/*
Package postgres provides a PostgreSQL implementation of the ledger repository.

PURPOSE:
  Implements ledger.TxRepository, ledger.AuditLog and ledger.Resetter over
  a pgx connection pool for multi-instance deployments.

CONCURRENCY:
  LockDebt is SELECT ... FOR UPDATE, so concurrent payments against the
  same debt serialize on the row while other debts proceed in parallel.
  The partial unique index idx_one_active_reminder enforces one active
  reminder per debt across instances.

TYPES:
  Money is BIGINT cents, calendar days are DATE, instants are TIMESTAMPTZ.

USAGE:
  store, err := postgres.New(ctx, os.Getenv("DATABASE_URL"))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - store/sqlite: single-file implementation
  - ledger/store.go: Interface definitions
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/warp/debt-ledger/ledger"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"

	constraintClientEmail    = "clients_email_key"
	constraintActiveReminder = "idx_one_active_reminder"
)

const schema = `
CREATE TABLE IF NOT EXISTS clients (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	phone TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS debts (
	id TEXT PRIMARY KEY,
	client_id TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
	amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
	description TEXT NOT NULL DEFAULT '',
	date DATE NOT NULL,
	deadline DATE NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('PENDING', 'OVERDUE', 'PAID')),
	paid_override BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CHECK (deadline >= date)
);

CREATE INDEX IF NOT EXISTS idx_debts_client ON debts(client_id);
CREATE INDEX IF NOT EXISTS idx_debts_status_deadline ON debts(status, deadline);

CREATE TABLE IF NOT EXISTS payments (
	id TEXT PRIMARY KEY,
	client_id TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
	debt_id TEXT NOT NULL REFERENCES debts(id) ON DELETE CASCADE,
	amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
	date DATE NOT NULL,
	reference_number TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payments_debt ON payments(debt_id);

CREATE TABLE IF NOT EXISTS notifications (
	id TEXT PRIMARY KEY,
	client_id TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
	debt_id TEXT REFERENCES debts(id) ON DELETE CASCADE,
	recipient_email TEXT NOT NULL,
	sender_email TEXT NOT NULL DEFAULT '',
	subject TEXT NOT NULL,
	message TEXT NOT NULL,
	scheduled_for TIMESTAMPTZ NOT NULL,
	sent_at TIMESTAMPTZ,
	status TEXT NOT NULL CHECK (status IN ('PENDING', 'SENDING', 'SENT', 'FAILED')),
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_one_active_reminder
	ON notifications(debt_id)
	WHERE debt_id IS NOT NULL AND status IN ('PENDING', 'SENDING', 'SENT');

CREATE INDEX IF NOT EXISTS idx_notifications_due ON notifications(status, scheduled_for);

CREATE TABLE IF NOT EXISTS audit_log (
	id TEXT PRIMARY KEY,
	at TIMESTAMPTZ NOT NULL,
	action TEXT NOT NULL,
	client_id TEXT NOT NULL DEFAULT '',
	debt_id TEXT NOT NULL DEFAULT '',
	payment_id TEXT NOT NULL DEFAULT '',
	notification_id TEXT NOT NULL DEFAULT '',
	detail JSONB NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_audit_at ON audit_log(at);
`

// Store implements ledger.TxRepository on a pgx pool.
type Store struct {
	repo
	pool *pgxpool.Pool
}

// New connects to dsn, pings and applies the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{repo: repo{q: pool}, pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// WithTx executes fn within a READ COMMITTED transaction. Row locks taken by
// LockDebt are held until commit.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Repository) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(repo{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE notifications, payments, debts, clients, audit_log`)
	return err
}

// =============================================================================
// REPO
// =============================================================================

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repo struct {
	q querier
}

// Clients

const clientColumns = `id, name, email, phone, address, created_at`

func scanClient(row pgx.Row) (ledger.Client, error) {
	var (
		c         ledger.Client
		id, email string
	)
	if err := row.Scan(&id, &c.Name, &email, &c.Phone, &c.Address, &c.CreatedAt); err != nil {
		return ledger.Client{}, err
	}
	c.ID, c.Email = ledger.ClientID(id), email
	return c, nil
}

func (r repo) CreateClient(ctx context.Context, c ledger.Client) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO clients (`+clientColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(c.ID), c.Name, ledger.NormalizeEmail(c.Email), c.Phone, c.Address, c.CreatedAt,
	)
	if isViolation(err, uniqueViolation, constraintClientEmail) {
		return fmt.Errorf("%w: %s", ledger.ErrDuplicateEmail, c.Email)
	}
	if err != nil {
		return fmt.Errorf("failed to insert client: %w", err)
	}
	return nil
}

func (r repo) GetClient(ctx context.Context, id ledger.ClientID) (ledger.Client, error) {
	c, err := scanClient(r.q.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Client{}, &ledger.NotFoundError{Kind: "client", ID: string(id)}
	}
	return c, err
}

func (r repo) ListClients(ctx context.Context) ([]ledger.Client, error) {
	rows, err := r.q.Query(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanClient)
}

func (r repo) DeleteClient(ctx context.Context, id ledger.ClientID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM clients WHERE id = $1`, string(id))
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ledger.NotFoundError{Kind: "client", ID: string(id)}
	}
	return nil
}

// Debts

const debtColumns = `id, client_id, amount_cents, description, date, deadline, status, paid_override, created_at, updated_at`

func scanDebt(row pgx.Row) (ledger.Debt, error) {
	var (
		d                    ledger.Debt
		id, clientID, status string
		cents                int64
		date, deadline       time.Time
	)
	err := row.Scan(&id, &clientID, &cents, &d.Description, &date, &deadline, &status,
		&d.PaidOverride, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return ledger.Debt{}, err
	}
	d.ID, d.ClientID, d.Status = ledger.DebtID(id), ledger.ClientID(clientID), ledger.DebtStatus(status)
	d.Amount = ledger.Cents(cents)
	d.Date, d.Deadline = ledger.DateOf(date), ledger.DateOf(deadline)
	return d, nil
}

func (r repo) CreateDebt(ctx context.Context, d ledger.Debt) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO debts (`+debtColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(d.ID), string(d.ClientID), d.Amount.Cents(), d.Description, d.Date.Time(), d.Deadline.Time(),
		string(d.Status), d.PaidOverride, d.CreatedAt, d.UpdatedAt,
	)
	if isViolation(err, foreignKeyViolation, "") {
		return &ledger.NotFoundError{Kind: "client", ID: string(d.ClientID)}
	}
	if err != nil {
		return fmt.Errorf("failed to insert debt: %w", err)
	}
	return nil
}

func (r repo) GetDebt(ctx context.Context, id ledger.DebtID) (ledger.Debt, error) {
	return r.getDebt(ctx, id, "")
}

func (r repo) LockDebt(ctx context.Context, id ledger.DebtID) (ledger.Debt, error) {
	return r.getDebt(ctx, id, " FOR UPDATE")
}

func (r repo) getDebt(ctx context.Context, id ledger.DebtID, suffix string) (ledger.Debt, error) {
	d, err := scanDebt(r.q.QueryRow(ctx, `SELECT `+debtColumns+` FROM debts WHERE id = $1`+suffix, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Debt{}, &ledger.NotFoundError{Kind: "debt", ID: string(id)}
	}
	return d, err
}

func (r repo) UpdateDebt(ctx context.Context, d ledger.Debt) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE debts
		SET description = $2, deadline = $3, status = $4, paid_override = $5, updated_at = $6
		WHERE id = $1`,
		string(d.ID), d.Description, d.Deadline.Time(), string(d.Status), d.PaidOverride, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update debt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ledger.NotFoundError{Kind: "debt", ID: string(d.ID)}
	}
	return nil
}

func (r repo) ListDebts(ctx context.Context, f ledger.DebtFilter) ([]ledger.Debt, error) {
	var w where
	eq(&w, "client_id", f.ClientID)
	anyOf(&w, "status", f.Statuses)
	if f.DeadlineFrom != nil {
		w.add("deadline >= ?", f.DeadlineFrom.Time())
	}
	if f.DeadlineTo != nil {
		w.add("deadline <= ?", f.DeadlineTo.Time())
	}
	rows, err := r.q.Query(ctx, `SELECT `+debtColumns+` FROM debts`+w.sql()+` ORDER BY deadline, created_at, id`, w.args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanDebt)
}

// Payments

const paymentColumns = `id, client_id, debt_id, amount_cents, date, reference_number, notes, created_at`

func scanPayment(row pgx.Row) (ledger.Payment, error) {
	var (
		p                    ledger.Payment
		id, clientID, debtID string
		cents                int64
		date                 time.Time
	)
	if err := row.Scan(&id, &clientID, &debtID, &cents, &date, &p.ReferenceNumber, &p.Notes, &p.CreatedAt); err != nil {
		return ledger.Payment{}, err
	}
	p.ID, p.ClientID, p.DebtID = ledger.PaymentID(id), ledger.ClientID(clientID), ledger.DebtID(debtID)
	p.Amount = ledger.Cents(cents)
	p.Date = ledger.DateOf(date)
	return p, nil
}

func (r repo) CreatePayment(ctx context.Context, p ledger.Payment) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO payments (`+paymentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(p.ID), string(p.ClientID), string(p.DebtID), p.Amount.Cents(), p.Date.Time(),
		p.ReferenceNumber, p.Notes, p.CreatedAt,
	)
	if isViolation(err, foreignKeyViolation, "") {
		return &ledger.NotFoundError{Kind: "debt", ID: string(p.DebtID)}
	}
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (r repo) GetPayment(ctx context.Context, id ledger.PaymentID) (ledger.Payment, error) {
	p, err := scanPayment(r.q.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Payment{}, &ledger.NotFoundError{Kind: "payment", ID: string(id)}
	}
	return p, err
}

func (r repo) ListPayments(ctx context.Context, f ledger.PaymentFilter) ([]ledger.Payment, error) {
	var w where
	eq(&w, "client_id", f.ClientID)
	eq(&w, "debt_id", f.DebtID)
	if f.From != nil {
		w.add("date >= ?", f.From.Time())
	}
	if f.To != nil {
		w.add("date <= ?", f.To.Time())
	}
	rows, err := r.q.Query(ctx, `SELECT `+paymentColumns+` FROM payments`+w.sql()+` ORDER BY date DESC, created_at DESC, id`, w.args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanPayment)
}

func (r repo) SumPayments(ctx context.Context, debtID ledger.DebtID) (ledger.Money, error) {
	var cents int64
	err := r.q.QueryRow(ctx, `SELECT COALESCE(SUM(amount_cents), 0)::BIGINT FROM payments WHERE debt_id = $1`,
		string(debtID)).Scan(&cents)
	if err != nil {
		return ledger.Zero, fmt.Errorf("failed to sum payments: %w", err)
	}
	return ledger.Cents(cents), nil
}

// Notifications

const notificationColumns = `id, client_id, debt_id, recipient_email, sender_email, subject, message,
	scheduled_for, sent_at, status, error_message, created_at`

func scanNotification(row pgx.Row) (ledger.Notification, error) {
	var (
		n                    ledger.Notification
		id, clientID, status string
		debtID               *string
	)
	err := row.Scan(&id, &clientID, &debtID, &n.RecipientEmail, &n.SenderEmail, &n.Subject, &n.Message,
		&n.ScheduledFor, &n.SentAt, &status, &n.ErrorMessage, &n.CreatedAt)
	if err != nil {
		return ledger.Notification{}, err
	}
	n.ID, n.ClientID, n.Status = ledger.NotificationID(id), ledger.ClientID(clientID), ledger.NotificationStatus(status)
	if debtID != nil {
		n.DebtID = ledger.DebtID(*debtID)
	}
	return n, nil
}

func (r repo) CreateNotification(ctx context.Context, n ledger.Notification) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(n.ID), string(n.ClientID), nullable(string(n.DebtID)), n.RecipientEmail, n.SenderEmail,
		n.Subject, n.Message, n.ScheduledFor, n.SentAt, string(n.Status), n.ErrorMessage, n.CreatedAt,
	)
	if isViolation(err, uniqueViolation, constraintActiveReminder) {
		return fmt.Errorf("%w: debt %s", ledger.ErrDuplicateReminder, n.DebtID)
	}
	if isViolation(err, foreignKeyViolation, "") {
		return &ledger.NotFoundError{Kind: "client", ID: string(n.ClientID)}
	}
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (r repo) GetNotification(ctx context.Context, id ledger.NotificationID) (ledger.Notification, error) {
	n, err := scanNotification(r.q.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Notification{}, &ledger.NotFoundError{Kind: "notification", ID: string(id)}
	}
	return n, err
}

func (r repo) UpdateNotification(ctx context.Context, n ledger.Notification) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE notifications
		SET recipient_email = $2, sender_email = $3, subject = $4, message = $5, scheduled_for = $6,
		    sent_at = $7, status = $8, error_message = $9
		WHERE id = $1`,
		string(n.ID), n.RecipientEmail, n.SenderEmail, n.Subject, n.Message, n.ScheduledFor,
		n.SentAt, string(n.Status), n.ErrorMessage,
	)
	if isViolation(err, uniqueViolation, constraintActiveReminder) {
		return fmt.Errorf("%w: debt %s", ledger.ErrDuplicateReminder, n.DebtID)
	}
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ledger.NotFoundError{Kind: "notification", ID: string(n.ID)}
	}
	return nil
}

func (r repo) ListNotifications(ctx context.Context, f ledger.NotificationFilter) ([]ledger.Notification, error) {
	var w where
	eq(&w, "client_id", f.ClientID)
	eq(&w, "debt_id", f.DebtID)
	anyOf(&w, "status", f.Statuses)
	if f.ScheduledBefore != nil {
		w.add("scheduled_for <= ?", *f.ScheduledBefore)
	}
	rows, err := r.q.Query(ctx,
		`SELECT `+notificationColumns+` FROM notifications`+w.sql()+` ORDER BY scheduled_for, created_at, id`, w.args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanNotification)
}

func (r repo) HasActiveReminder(ctx context.Context, debtID ledger.DebtID) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE debt_id = $1 AND status IN ('PENDING', 'SENDING', 'SENT')
		)`, string(debtID)).Scan(&exists)
	return exists, err
}

func (r repo) ClaimNotification(ctx context.Context, id ledger.NotificationID, from ...ledger.NotificationStatus) (ledger.Notification, error) {
	n, err := scanNotification(r.q.QueryRow(ctx, `
		UPDATE notifications SET status = $1
		WHERE id = $2 AND status = ANY($3)
		RETURNING `+notificationColumns,
		string(ledger.NotificationSending), string(id), strs(from)))
	switch {
	case err == nil:
		return n, nil
	case isViolation(err, uniqueViolation, constraintActiveReminder):
		return ledger.Notification{}, fmt.Errorf("%w: notification %s", ledger.ErrDuplicateReminder, id)
	case !errors.Is(err, pgx.ErrNoRows):
		return ledger.Notification{}, fmt.Errorf("failed to claim notification: %w", err)
	}

	current, err := r.GetNotification(ctx, id)
	if err != nil {
		return ledger.Notification{}, err
	}
	return ledger.Notification{}, ledger.ClaimConflict(current)
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *Store) Append(ctx context.Context, e ledger.AuditEntry) error {
	detail := e.Detail
	if detail == nil {
		detail = map[string]string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (id, at, action, client_id, debt_id, payment_id, notification_id, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.At, string(e.Action), string(e.ClientID), string(e.DebtID), string(e.PaymentID),
		string(e.NotificationID), detail,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, f ledger.AuditFilter) ([]ledger.AuditEntry, error) {
	var w where
	eq(&w, "client_id", f.ClientID)
	eq(&w, "debt_id", f.DebtID)
	anyOf(&w, "action", f.Actions)
	if f.From != nil {
		w.add("at >= ?", *f.From)
	}
	if f.To != nil {
		w.add("at <= ?", *f.To)
	}
	query := `SELECT id, at, action, client_id, debt_id, payment_id, notification_id, detail
		FROM audit_log` + w.sql() + ` ORDER BY at DESC, id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (ledger.AuditEntry, error) {
		var (
			e                                          ledger.AuditEntry
			action, clientID, debtID, paymentID, notID string
		)
		if err := row.Scan(&e.ID, &e.At, &action, &clientID, &debtID, &paymentID, &notID, &e.Detail); err != nil {
			return ledger.AuditEntry{}, err
		}
		e.Action = ledger.AuditAction(action)
		e.ClientID, e.DebtID = ledger.ClientID(clientID), ledger.DebtID(debtID)
		e.PaymentID, e.NotificationID = ledger.PaymentID(paymentID), ledger.NotificationID(notID)
		return e, nil
	})
}

var (
	_ ledger.TxRepository = (*Store)(nil)
	_ ledger.AuditLog     = (*Store)(nil)
	_ ledger.Resetter     = (*Store)(nil)
)

// =============================================================================
// HELPERS
// =============================================================================

// where accumulates AND-ed conditions; each "?" becomes the next $n.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1))
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func eq[T ~string](w *where, col string, v T) {
	if v != "" {
		w.add(col+" = ?", string(v))
	}
}

func anyOf[T ~string](w *where, col string, vs []T) {
	if len(vs) > 0 {
		w.add(col+" = ANY(?)", strs(vs))
	}
}

func strs[T ~string](vs []T) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func isViolation(err error, code, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != code {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

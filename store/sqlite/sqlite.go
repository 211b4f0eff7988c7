/*
Package sqlite provides a SQLite-backed implementation of the ledger repository.

PURPOSE:
  Implements ledger.TxRepository, ledger.AuditLog and ledger.Resetter on a
  single SQLite database file.

KEY TABLES:
  clients:       Root entity, email unique
  debts:         Amount in integer cents, dates as YYYY-MM-DD
  payments:      Immutable, cascade-deleted with their client
  notifications: Email reminders and their delivery outcome
  audit_log:     Append-only operation history

INDEXES:
  - idx_one_active_reminder: at most one PENDING/SENDING/SENT notification
    per debt. A violating insert maps to ledger.ErrDuplicateReminder.
  - idx_debts_status_deadline: status scans (refresh, reminders, reports)
  - idx_notifications_due: SendDue selection

CONCURRENCY:
  The pool is limited to one connection and transactions start with
  BEGIN IMMEDIATE, so a WithTx holds the database write lock from its first
  statement. LockDebt is therefore a plain read.

TIMESTAMPS:
  Stored as fixed-width UTC text so that ORDER BY and range comparisons on
  the column are chronological.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  l := ledger.NewLedger(store, ledger.SystemClock{})

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
  - store/postgres: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/debt-ledger/ledger"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements ledger.TxRepository using SQLite.
type Store struct {
	repo
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{repo: repo{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS debts (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		amount_cents INTEGER NOT NULL CHECK (amount_cents > 0),
		description TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		deadline TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('PENDING', 'OVERDUE', 'PAID')),
		paid_override INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (deadline >= date)
	);

	CREATE INDEX IF NOT EXISTS idx_debts_client ON debts(client_id);
	CREATE INDEX IF NOT EXISTS idx_debts_status_deadline ON debts(status, deadline);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		debt_id TEXT NOT NULL REFERENCES debts(id) ON DELETE CASCADE,
		amount_cents INTEGER NOT NULL CHECK (amount_cents > 0),
		date TEXT NOT NULL,
		reference_number TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_debt ON payments(debt_id);
	CREATE INDEX IF NOT EXISTS idx_payments_client_date ON payments(client_id, date);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		debt_id TEXT REFERENCES debts(id) ON DELETE CASCADE,
		recipient_email TEXT NOT NULL,
		sender_email TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL,
		message TEXT NOT NULL,
		scheduled_for TEXT NOT NULL,
		sent_at TEXT,
		status TEXT NOT NULL CHECK (status IN ('PENDING', 'SENDING', 'SENT', 'FAILED')),
		error_message TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- At most one active reminder per debt
	CREATE UNIQUE INDEX IF NOT EXISTS idx_one_active_reminder
		ON notifications(debt_id)
		WHERE debt_id IS NOT NULL AND status IN ('PENDING', 'SENDING', 'SENT');

	CREATE INDEX IF NOT EXISTS idx_notifications_due ON notifications(status, scheduled_for);
	CREATE INDEX IF NOT EXISTS idx_notifications_client ON notifications(client_id);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		at TEXT NOT NULL,
		action TEXT NOT NULL,
		client_id TEXT NOT NULL DEFAULT '',
		debt_id TEXT NOT NULL DEFAULT '',
		payment_id TEXT NOT NULL DEFAULT '',
		notification_id TEXT NOT NULL DEFAULT '',
		detail_json TEXT NOT NULL DEFAULT '{}'
	);

	CREATE INDEX IF NOT EXISTS idx_audit_at ON audit_log(at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Repository) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(repo{q: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{"notifications", "payments", "debts", "clients", "audit_log"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// REPO - Shared by the pool and by open transactions
// =============================================================================

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type repo struct {
	q queryer
}

type scanner interface {
	Scan(dest ...any) error
}

// Clients

func (r repo) CreateClient(ctx context.Context, c ledger.Client) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO clients (id, name, email, phone, address, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, ledger.NormalizeEmail(c.Email), c.Phone, c.Address, formatTime(c.CreatedAt),
	)
	if isUniqueConstraintError(err, "clients.email") {
		return fmt.Errorf("%w: %s", ledger.ErrDuplicateEmail, c.Email)
	}
	if err != nil {
		return fmt.Errorf("failed to insert client: %w", err)
	}
	return nil
}

const clientColumns = `id, name, email, phone, address, created_at`

func scanClient(row scanner) (ledger.Client, error) {
	var (
		c       ledger.Client
		created string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &created); err != nil {
		return ledger.Client{}, err
	}
	c.CreatedAt = parseTime(created)
	return c, nil
}

func (r repo) GetClient(ctx context.Context, id ledger.ClientID) (ledger.Client, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Client{}, &ledger.NotFoundError{Kind: "client", ID: string(id)}
	}
	return c, err
}

func (r repo) ListClients(ctx context.Context) ([]ledger.Client, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ledger.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r repo) DeleteClient(ctx context.Context, id ledger.ClientID) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Kind: "client", ID: string(id)}
	}
	return nil
}

// Debts

const debtColumns = `id, client_id, amount_cents, description, date, deadline, status, paid_override, created_at, updated_at`

func scanDebt(row scanner) (ledger.Debt, error) {
	var (
		d                ledger.Debt
		cents            int64
		date, deadline   string
		created, updated string
	)
	err := row.Scan(&d.ID, &d.ClientID, &cents, &d.Description, &date, &deadline,
		&d.Status, &d.PaidOverride, &created, &updated)
	if err != nil {
		return ledger.Debt{}, err
	}
	d.Amount = ledger.Cents(cents)
	if d.Date, err = ledger.ParseDate(date); err != nil {
		return ledger.Debt{}, err
	}
	if d.Deadline, err = ledger.ParseDate(deadline); err != nil {
		return ledger.Debt{}, err
	}
	d.CreatedAt = parseTime(created)
	d.UpdatedAt = parseTime(updated)
	return d, nil
}

func (r repo) CreateDebt(ctx context.Context, d ledger.Debt) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO debts (`+debtColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ClientID, d.Amount.Cents(), d.Description, d.Date.String(), d.Deadline.String(),
		d.Status, d.PaidOverride, formatTime(d.CreatedAt), formatTime(d.UpdatedAt),
	)
	if isForeignKeyError(err) {
		return &ledger.NotFoundError{Kind: "client", ID: string(d.ClientID)}
	}
	if err != nil {
		return fmt.Errorf("failed to insert debt: %w", err)
	}
	return nil
}

func (r repo) GetDebt(ctx context.Context, id ledger.DebtID) (ledger.Debt, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+debtColumns+` FROM debts WHERE id = ?`, id)
	d, err := scanDebt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Debt{}, &ledger.NotFoundError{Kind: "debt", ID: string(id)}
	}
	return d, err
}

// LockDebt reads the debt. The surrounding BEGIN IMMEDIATE transaction
// already holds the database write lock.
func (r repo) LockDebt(ctx context.Context, id ledger.DebtID) (ledger.Debt, error) {
	return r.GetDebt(ctx, id)
}

func (r repo) UpdateDebt(ctx context.Context, d ledger.Debt) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE debts
		SET description = ?, deadline = ?, status = ?, paid_override = ?, updated_at = ?
		WHERE id = ?`,
		d.Description, d.Deadline.String(), d.Status, d.PaidOverride, formatTime(d.UpdatedAt), d.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update debt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Kind: "debt", ID: string(d.ID)}
	}
	return nil
}

func (r repo) ListDebts(ctx context.Context, f ledger.DebtFilter) ([]ledger.Debt, error) {
	var w where
	eq(&w, "client_id", f.ClientID)
	in(&w, "status", f.Statuses)
	if f.DeadlineFrom != nil {
		w.add("deadline >= ?", f.DeadlineFrom.String())
	}
	if f.DeadlineTo != nil {
		w.add("deadline <= ?", f.DeadlineTo.String())
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT `+debtColumns+` FROM debts`+w.sql()+` ORDER BY deadline, created_at, id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ledger.Debt{}
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Payments

const paymentColumns = `id, client_id, debt_id, amount_cents, date, reference_number, notes, created_at`

func scanPayment(row scanner) (ledger.Payment, error) {
	var (
		p             ledger.Payment
		cents         int64
		date, created string
	)
	err := row.Scan(&p.ID, &p.ClientID, &p.DebtID, &cents, &date, &p.ReferenceNumber, &p.Notes, &created)
	if err != nil {
		return ledger.Payment{}, err
	}
	p.Amount = ledger.Cents(cents)
	if p.Date, err = ledger.ParseDate(date); err != nil {
		return ledger.Payment{}, err
	}
	p.CreatedAt = parseTime(created)
	return p, nil
}

func (r repo) CreatePayment(ctx context.Context, p ledger.Payment) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ClientID, p.DebtID, p.Amount.Cents(), p.Date.String(), p.ReferenceNumber, p.Notes,
		formatTime(p.CreatedAt),
	)
	if isForeignKeyError(err) {
		return &ledger.NotFoundError{Kind: "debt", ID: string(p.DebtID)}
	}
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (r repo) GetPayment(ctx context.Context, id ledger.PaymentID) (ledger.Payment, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Payment{}, &ledger.NotFoundError{Kind: "payment", ID: string(id)}
	}
	return p, err
}

func (r repo) ListPayments(ctx context.Context, f ledger.PaymentFilter) ([]ledger.Payment, error) {
	var w where
	eq(&w, "client_id", f.ClientID)
	eq(&w, "debt_id", f.DebtID)
	if f.From != nil {
		w.add("date >= ?", f.From.String())
	}
	if f.To != nil {
		w.add("date <= ?", f.To.String())
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments`+w.sql()+` ORDER BY date DESC, created_at DESC, id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ledger.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r repo) SumPayments(ctx context.Context, debtID ledger.DebtID) (ledger.Money, error) {
	var cents int64
	err := r.q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM payments WHERE debt_id = ?`, debtID).Scan(&cents)
	if err != nil {
		return ledger.Zero, fmt.Errorf("failed to sum payments: %w", err)
	}
	return ledger.Cents(cents), nil
}

// Notifications

const notificationColumns = `id, client_id, debt_id, recipient_email, sender_email, subject, message,
	scheduled_for, sent_at, status, error_message, created_at`

func scanNotification(row scanner) (ledger.Notification, error) {
	var (
		n                  ledger.Notification
		debtID, sentAt     sql.NullString
		scheduled, created string
	)
	err := row.Scan(&n.ID, &n.ClientID, &debtID, &n.RecipientEmail, &n.SenderEmail, &n.Subject,
		&n.Message, &scheduled, &sentAt, &n.Status, &n.ErrorMessage, &created)
	if err != nil {
		return ledger.Notification{}, err
	}
	n.DebtID = ledger.DebtID(debtID.String)
	n.ScheduledFor = parseTime(scheduled)
	if sentAt.Valid {
		t := parseTime(sentAt.String)
		n.SentAt = &t
	}
	n.CreatedAt = parseTime(created)
	return n, nil
}

func (r repo) CreateNotification(ctx context.Context, n ledger.Notification) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.ClientID, nullString(string(n.DebtID)), n.RecipientEmail, n.SenderEmail, n.Subject,
		n.Message, formatTime(n.ScheduledFor), nullTime(n.SentAt), n.Status, n.ErrorMessage,
		formatTime(n.CreatedAt),
	)
	if isUniqueConstraintError(err, "notifications.debt_id") {
		return fmt.Errorf("%w: debt %s", ledger.ErrDuplicateReminder, n.DebtID)
	}
	if isForeignKeyError(err) {
		return &ledger.NotFoundError{Kind: "client", ID: string(n.ClientID)}
	}
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (r repo) GetNotification(ctx context.Context, id ledger.NotificationID) (ledger.Notification, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Notification{}, &ledger.NotFoundError{Kind: "notification", ID: string(id)}
	}
	return n, err
}

func (r repo) UpdateNotification(ctx context.Context, n ledger.Notification) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE notifications
		SET recipient_email = ?, sender_email = ?, subject = ?, message = ?, scheduled_for = ?,
		    sent_at = ?, status = ?, error_message = ?
		WHERE id = ?`,
		n.RecipientEmail, n.SenderEmail, n.Subject, n.Message, formatTime(n.ScheduledFor),
		nullTime(n.SentAt), n.Status, n.ErrorMessage, n.ID,
	)
	if isUniqueConstraintError(err, "notifications.debt_id") {
		return fmt.Errorf("%w: debt %s", ledger.ErrDuplicateReminder, n.DebtID)
	}
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	if c, _ := res.RowsAffected(); c == 0 {
		return &ledger.NotFoundError{Kind: "notification", ID: string(n.ID)}
	}
	return nil
}

func (r repo) ListNotifications(ctx context.Context, f ledger.NotificationFilter) ([]ledger.Notification, error) {
	var w where
	eq(&w, "client_id", f.ClientID)
	eq(&w, "debt_id", f.DebtID)
	in(&w, "status", f.Statuses)
	if f.ScheduledBefore != nil {
		w.add("scheduled_for <= ?", formatTime(*f.ScheduledBefore))
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications`+w.sql()+` ORDER BY scheduled_for, created_at, id`,
		w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ledger.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r repo) HasActiveReminder(ctx context.Context, debtID ledger.DebtID) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE debt_id = ? AND status IN ('PENDING', 'SENDING', 'SENT')
		)`, debtID).Scan(&exists)
	return exists, err
}

func (r repo) ClaimNotification(ctx context.Context, id ledger.NotificationID, from ...ledger.NotificationStatus) (ledger.Notification, error) {
	var w where
	eq(&w, "id", id)
	in(&w, "status", from)
	args := append([]any{ledger.NotificationSending}, w.args...)

	row := r.q.QueryRowContext(ctx,
		`UPDATE notifications SET status = ?`+w.sql()+` RETURNING `+notificationColumns, args...)
	n, err := scanNotification(row)
	switch {
	case err == nil:
		return n, nil
	case isUniqueConstraintError(err, "notifications.debt_id"):
		return ledger.Notification{}, fmt.Errorf("%w: notification %s", ledger.ErrDuplicateReminder, id)
	case !errors.Is(err, sql.ErrNoRows):
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
	detail, err := json.Marshal(e.Detail)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, at, action, client_id, debt_id, payment_id, notification_id, detail_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, formatTime(e.At), e.Action, e.ClientID, e.DebtID, e.PaymentID, e.NotificationID, string(detail),
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
	in(&w, "action", f.Actions)
	if f.From != nil {
		w.add("at >= ?", formatTime(*f.From))
	}
	if f.To != nil {
		w.add("at <= ?", formatTime(*f.To))
	}
	query := `SELECT id, at, action, client_id, debt_id, payment_id, notification_id, detail_json
		FROM audit_log` + w.sql() + ` ORDER BY at DESC, rowid DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ledger.AuditEntry{}
	for rows.Next() {
		var (
			e          ledger.AuditEntry
			at, detail string
		)
		if err := rows.Scan(&e.ID, &at, &e.Action, &e.ClientID, &e.DebtID, &e.PaymentID,
			&e.NotificationID, &detail); err != nil {
			return nil, err
		}
		e.At = parseTime(at)
		if err := json.Unmarshal([]byte(detail), &e.Detail); err != nil {
			return nil, fmt.Errorf("decode audit detail: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var (
	_ ledger.TxRepository = (*Store)(nil)
	_ ledger.AuditLog     = (*Store)(nil)
	_ ledger.Resetter     = (*Store)(nil)
)

// =============================================================================
// HELPERS
// =============================================================================

// where accumulates AND-ed conditions.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// eq adds col = v unless v is empty.
func eq[T ~string](w *where, col string, v T) {
	if v != "" {
		w.add(col+" = ?", string(v))
	}
}

// in adds col IN (vs...) unless vs is empty.
func in[T ~string](w *where, col string, vs []T) {
	if len(vs) == 0 {
		return
	}
	args := make([]any, len(vs))
	for i, v := range vs {
		args[i] = string(v)
	}
	w.add(col+" IN ("+strings.TrimSuffix(strings.Repeat("?, ", len(vs)), ", ")+")", args...)
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func isUniqueConstraintError(err error, column string) bool {
	var serr sqlite3.Error
	if !errors.As(err, &serr) || serr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return false
	}
	return column == "" || strings.Contains(serr.Error(), column)
}

func isForeignKeyError(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

// Package mail provides ledger.Mailer implementations. LogMailer writes each
// message to the log instead of delivering it and keeps an outbox for
// inspection.
package mail

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/debt-ledger/ledger"
)

// Message is one accepted email.
type Message struct {
	From    string    `json:"from"`
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	At      time.Time `json:"at"`
}

// LogMailer logs messages and keeps the most recent OutboxSize of them.
type LogMailer struct {
	Logger     *slog.Logger
	OutboxSize int

	mu     sync.Mutex
	outbox []Message
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{Logger: logger, OutboxSize: 100}
}

func (m *LogMailer) Send(ctx context.Context, from, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "email sent", "from", from, "to", to, "subject", subject, "bytes", len(body))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbox = append(m.outbox, Message{From: from, To: to, Subject: subject, Body: body, At: time.Now().UTC()})
	if n := m.OutboxSize; n > 0 && len(m.outbox) > n {
		m.outbox = append([]Message(nil), m.outbox[len(m.outbox)-n:]...)
	}
	return nil
}

// Outbox returns a copy of the retained messages, oldest first.
func (m *LogMailer) Outbox() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.outbox...)
}

var _ ledger.Mailer = (*LogMailer)(nil)

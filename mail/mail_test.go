package mail_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/debt-ledger/mail"
)

func TestLogMailer_SendKeepsBoundedOutbox(t *testing.T) {
	var buf bytes.Buffer
	m := mail.NewLogMailer(slog.New(slog.NewTextHandler(&buf, nil)))
	m.OutboxSize = 2

	ctx := context.Background()
	for _, to := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		require.NoError(t, m.Send(ctx, "billing@vendor.test", to, "Reminder", "Please pay"))
	}

	out := m.Outbox()
	require.Len(t, out, 2)
	assert.Equal(t, "b@example.com", out[0].To)
	assert.Equal(t, "c@example.com", out[1].To)
	assert.Contains(t, buf.String(), "to=c@example.com")
}

func TestLogMailer_CanceledContext(t *testing.T) {
	m := mail.NewLogMailer(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.Send(ctx, "a", "b", "s", "m"), context.Canceled)
	assert.Empty(t, m.Outbox())
}

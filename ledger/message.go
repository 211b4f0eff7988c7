package ledger

import (
	"bytes"
	"fmt"
	"text/template"
)

// ReminderMessage is the data available to reminder templates.
type ReminderMessage struct {
	ClientName  string
	Amount      Money
	Description string
	Deadline    Date
	Remaining   Money
	DaysLeft    int
}

var (
	reminderSubject = template.Must(template.New("subject").Parse(
		`Payment reminder: {{.Remaining}} due {{.Deadline}}`))

	reminderBody = template.Must(template.New("body").Parse(`Dear {{.ClientName}},

This is a reminder that your debt{{if .Description}} "{{.Description}}"{{end}} of {{.Amount}} is due on {{.Deadline}} ({{.DaysLeft}} days from now).

Remaining balance: {{.Remaining}}

Please arrange payment before the deadline.
`))
)

// RenderReminder renders the subject and body of a debt reminder.
func RenderReminder(m ReminderMessage) (subject, body string, err error) {
	var buf bytes.Buffer
	if err := reminderSubject.Execute(&buf, m); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	subject = buf.String()

	buf.Reset()
	if err := reminderBody.Execute(&buf, m); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return subject, buf.String(), nil
}

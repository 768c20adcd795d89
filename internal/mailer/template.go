package mailer

import (
	"bytes"
	"fmt"
	"text/template"
)

// ReminderData is the rendering input for an unread-chat reminder.
// Preview and MessageCount are snapshots taken at schedule time.
type ReminderData struct {
	RecipientName string
	SenderName    string
	Preview       string
	MessageCount  int
}

type reminderTemplate struct {
	subject string
	body    *template.Template
}

var reminderTemplates = map[string]reminderTemplate{
	"en": {
		subject: "You have unread messages from %s",
		body: template.Must(template.New("reminder_en").Parse(
			`Hi {{.RecipientName}},

{{.SenderName}} sent you {{.MessageCount}} message(s) on Pro 24/7 that you haven't read yet:

  "{{.Preview}}"

Reply from your inbox at any time.
`)),
	},
	"es": {
		subject: "Tienes mensajes sin leer de %s",
		body: template.Must(template.New("reminder_es").Parse(
			`Hola {{.RecipientName}},

{{.SenderName}} te ha enviado {{.MessageCount}} mensaje(s) en Pro 24/7 que aún no has leído:

  "{{.Preview}}"

Puedes responder desde tu bandeja de entrada en cualquier momento.
`)),
	},
}

// RenderReminder renders the subject and body for a locale. Unknown
// locales fall back to English.
func RenderReminder(locale string, data ReminderData) (subject, body string, err error) {
	tpl, ok := reminderTemplates[locale]
	if !ok {
		tpl = reminderTemplates["en"]
	}

	var buf bytes.Buffer
	if err := tpl.body.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render reminder: %w", err)
	}
	return fmt.Sprintf(tpl.subject, data.SenderName), buf.String(), nil
}

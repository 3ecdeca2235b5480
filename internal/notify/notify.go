package notify

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// Event describes a record the run changed.
type Event struct {
	RunID        string
	Subdomain    string
	Domain       string
	FQDN         string
	OldValue     string // empty when the record was created
	NewValue     string
	ChangeID     string
	ChangeStatus string
}

type Notifier interface {
	// Notify sends a message about e and returns the provider message id.
	Notify(ctx context.Context, e Event) (string, error)
}

// Message is a rendered notification.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

const textBody = `The address record for {{.FQDN}} was updated.

{{if .OldValue}}Previous address: {{.OldValue}}
{{else}}The record did not exist and was created.
{{end}}New address: {{.NewValue}}
Change: {{.ChangeID}} ({{.ChangeStatus}})
Run: {{.RunID}}
`

const htmlBody = `<html>
<body>
<h1>{{.FQDN}} updated</h1>
<p>The address record for <b>{{.FQDN}}</b> was updated.</p>
<ul>
{{if .OldValue}}<li>Previous address: {{.OldValue}}</li>
{{else}}<li>The record did not exist and was created.</li>
{{end}}<li>New address: {{.NewValue}}</li>
<li>Change: {{.ChangeID}} ({{.ChangeStatus}})</li>
<li>Run: {{.RunID}}</li>
</ul>
</body>
</html>
`

var (
	textTmpl = texttemplate.Must(texttemplate.New("text").Parse(textBody))
	htmlTmpl = htmltemplate.Must(htmltemplate.New("html").Parse(htmlBody))
)

// Render builds the message for e. The subject gets the record name appended.
func Render(subject string, e Event) (Message, error) {
	var text, html bytes.Buffer
	if err := textTmpl.Execute(&text, e); err != nil {
		return Message{}, fmt.Errorf("render text body: %w", err)
	}
	if err := htmlTmpl.Execute(&html, e); err != nil {
		return Message{}, fmt.Errorf("render html body: %w", err)
	}
	return Message{
		Subject: fmt.Sprintf("%s: %s", subject, e.FQDN),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// Noop drops every event. Used when notifications are disabled.
type Noop struct{}

func (Noop) Notify(ctx context.Context, e Event) (string, error) {
	return "", nil
}

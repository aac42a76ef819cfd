package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/familycabin/cabin/internal/application"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type emailKind struct {
	template string
	subject  string
}

var emailKinds = map[application.SwapEvent]emailKind{
	application.SwapEventRequested: {template: "swap_requested.html", subject: "%s would like to swap cabin dates with you"},
	application.SwapEventAccepted:  {template: "swap_accepted.html", subject: "%s accepted your swap request"},
	application.SwapEventDeclined:  {template: "swap_declined.html", subject: "%s declined your swap request"},
	application.SwapEventCancelled: {template: "swap_cancelled.html", subject: "%s withdrew a swap request"},
}

// emailData is the template context shared by every swap email.
type emailData struct {
	RecipientName  string
	ActorName      string
	Message        string
	OfferedDates   string
	RequestedDates string
	ExpiresAt      string
	AcceptURL      string
	DeclineURL     string
}

func render(event application.SwapEvent, data emailData) (subject, body string, err error) {
	kind, ok := emailKinds[event]
	if !ok {
		return "", "", fmt.Errorf("no email template for swap event %q", event)
	}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, kind.template, data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", kind.template, err)
	}
	return fmt.Sprintf(kind.subject, data.ActorName), buf.String(), nil
}

// Package report renders a failure context into the subject and body
// dispatched over the notification channels.
package report

import (
	"fmt"
	"time"

	"github.com/EvanWAppel/hermes/pkg/failure"
)

// Report is the rendered failure notification. It is derived, ephemeral and
// passed by value to each channel driver; no driver can mutate it for
// another.
type Report struct {
	Subject string
	Body    string
}

// Subject returns the report subject line for a failure context. Failures
// from the same module group under one subject.
func Subject(fc failure.Context) string {
	return fmt.Sprintf("%s has failed.", fc.Module)
}

// Render produces the report for a failure context. A nil template selects
// the built-in default body. Templates are validated at parse time, so
// rendering a parsed template cannot fail.
func Render(fc failure.Context, tmpl *Template) Report {
	body := ""
	if tmpl != nil {
		body = tmpl.render(fc)
	} else {
		body = defaultBody(fc)
	}
	return Report{Subject: Subject(fc), Body: body}
}

func defaultBody(fc failure.Context) string {
	return fmt.Sprintf(
		"Function %s initiated at %s\n"+
			"Failed at %s\n"+
			"Machine: %s\n"+
			"User: %s\n"+
			"Error: %s\n\n"+
			"Traceback:\n%s",
		fc.Function,
		fc.Start.Format(time.RFC3339),
		fc.FailTime.Format(time.RFC3339),
		fc.Machine,
		fc.User,
		fc.Err,
		fc.Traceback,
	)
}

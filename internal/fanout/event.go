// Package fanout runs best-effort side effects after a submission is stored.
package fanout

import (
	"time"

	"github.com/formgate/formgate/internal/formsettings"
)

// EventFormSubmitted is the only event emitted today.
const EventFormSubmitted = "form_submitted"

// Event describes one stored submission.
type Event struct {
	Name string

	FormID      string
	OwnerID     uint64
	FormTitle   string
	Fields      []formsettings.Field
	Notify      formsettings.Notifications
	SubmittedAt time.Time

	SubmissionID string
	IPAddress    string
	Data         map[string]any
}

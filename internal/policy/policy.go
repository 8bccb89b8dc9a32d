// Package policy holds the ordered acceptance checks a submission must pass
// before it is stored.
package policy

import (
	"context"
	"time"

	"github.com/formgate/formgate/internal/formsettings"
	"github.com/formgate/formgate/internal/identity"
	"github.com/formgate/formgate/internal/models"
)

// Channel identifies the entry point a submission arrived through.
type Channel string

// Submission channels.
const (
	ChannelPublic Channel = "public"
	ChannelAPI    Channel = "api"
)

// Submission is the request state shared by every stage.
type Submission struct {
	Channel  Channel
	Form     *models.Form
	Schema   *formsettings.Schema
	Settings formsettings.Effective
	Identity identity.Identity
	// Data is the payload to persist; stages may replace it.
	Data map[string]any
	Now  time.Time

	duplicate *duplicateMark
}

// Stage is one acceptance check. A nil rejection and nil error accept.
// Errors are unexpected failures and end the request as Internal.
type Stage interface {
	Name() string
	Evaluate(ctx context.Context, sub *Submission) (*Rejection, error)
}

// Releaser is implemented by stages that reserve state while evaluating.
// Release undoes the reservation when the submission is rejected by a
// later stage or is not stored.
type Releaser interface {
	Release(ctx context.Context, sub *Submission) error
}

package policy

import (
	"github.com/formgate/formgate/internal/botcheck"
	"github.com/formgate/formgate/internal/duplicate"
	"github.com/formgate/formgate/internal/premium"
	"github.com/formgate/formgate/internal/ratelimit"
)

// Deps are the collaborators the stages need.
type Deps struct {
	Premium       premium.Checker
	Verifier      botcheck.Verifier
	Limiter       ratelimit.Limiter
	Counter       SubmissionCounter
	Duplicates    duplicate.Store
	Fingerprinter *duplicate.Fingerprinter
}

// Stages returns the ordered stages for channel. Only the public channel
// checks premium entitlement.
func Stages(channel Channel, deps Deps) []Stage {
	stages := make([]Stage, 0, 6)
	if channel == ChannelPublic {
		stages = append(stages, NewEntitlementStage(deps.Premium))
	}
	return append(stages,
		NewBotStage(deps.Verifier),
		NewRateLimitStage(deps.Limiter),
		NewResponseLimitStage(deps.Counter),
		NewContentStage(),
		NewDuplicateStage(deps.Duplicates, deps.Fingerprinter),
	)
}

package policy

import (
	"context"

	"github.com/formgate/formgate/internal/profanity"
	"github.com/formgate/formgate/internal/sanitize"
)

// ContentStage strips script markup from every submission and, when the
// profanity filter is enabled, rejects or masks disallowed words.
type ContentStage struct{}

// NewContentStage constructs a ContentStage.
func NewContentStage() *ContentStage { return &ContentStage{} }

// Name implements Stage.
func (s *ContentStage) Name() string { return "content" }

// Evaluate implements Stage. Sanitizing runs regardless of settings.
func (s *ContentStage) Evaluate(_ context.Context, sub *Submission) (*Rejection, error) {
	sub.Data = sanitize.Map(sub.Data)

	cfg := sub.Settings.ProfanityFilter
	if !cfg.Enabled {
		return nil, nil
	}
	filter := profanity.New(profanity.Options{
		StrictMode:       cfg.StrictMode,
		CustomWords:      cfg.CustomWords,
		WhitelistedWords: cfg.WhitelistedWords,
	})
	res := filter.FilterData(sub.Data)
	if res.Valid() {
		return nil, nil
	}
	if cfg.ReplaceWithAsterisks {
		sub.Data = res.Filtered
		return nil, nil
	}
	rej := Reject(KindContentFiltered, cfg.CustomMessage)
	rej.Violations = len(res.Violations)
	return rej, nil
}

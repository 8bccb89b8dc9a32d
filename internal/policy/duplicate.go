package policy

import (
	"context"
	"fmt"

	"github.com/formgate/formgate/internal/duplicate"
)

type duplicateMark struct {
	fingerprint string
	strategy    string
}

// DuplicateStage rejects submitters that already submitted the form. The
// check and the record write are one atomic claim; Release hands the
// claim back when the submission is not stored.
type DuplicateStage struct {
	store         duplicate.Store
	fingerprinter *duplicate.Fingerprinter
}

// NewDuplicateStage constructs a DuplicateStage.
func NewDuplicateStage(store duplicate.Store, fingerprinter *duplicate.Fingerprinter) *DuplicateStage {
	return &DuplicateStage{store: store, fingerprinter: fingerprinter}
}

// Name implements Stage.
func (s *DuplicateStage) Name() string { return "duplicate" }

// Evaluate implements Stage.
func (s *DuplicateStage) Evaluate(ctx context.Context, sub *Submission) (*Rejection, error) {
	cfg := sub.Settings.DuplicatePrevention
	if !cfg.Enabled || s.store == nil || s.fingerprinter == nil {
		return nil, nil
	}
	identifier, strategy := duplicate.Identifier(cfg.Strategy, duplicate.Submitter{
		IP:      sub.Identity.IP,
		Email:   duplicate.ExtractEmail(sub.Data),
		Session: sub.Identity.Session,
	})
	mark := &duplicateMark{
		fingerprint: s.fingerprinter.Fingerprint(sub.Form.ID, identifier),
		strategy:    strategy,
	}
	admitted, errClaim := s.store.Claim(ctx, sub.Form.ID, mark.fingerprint, mark.strategy, cfg.Window(), duplicate.AttemptLimit(cfg))
	if errClaim != nil {
		return nil, fmt.Errorf("duplicate: %w", errClaim)
	}
	if !admitted {
		return Reject(KindDuplicate, cfg.Message), nil
	}
	sub.duplicate = mark
	return nil, nil
}

// Release implements Releaser.
func (s *DuplicateStage) Release(ctx context.Context, sub *Submission) error {
	if sub.duplicate == nil || s.store == nil {
		return nil
	}
	mark := sub.duplicate
	sub.duplicate = nil
	return s.store.Release(ctx, sub.Form.ID, mark.fingerprint)
}

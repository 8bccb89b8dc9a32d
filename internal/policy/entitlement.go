package policy

import (
	"context"
	"fmt"

	"github.com/formgate/formgate/internal/premium"
)

// EntitlementStage requires authenticated submitters to hold premium.
// Anonymous submitters pass.
type EntitlementStage struct {
	checker premium.Checker
}

// NewEntitlementStage constructs an EntitlementStage.
func NewEntitlementStage(checker premium.Checker) *EntitlementStage {
	return &EntitlementStage{checker: checker}
}

// Name implements Stage.
func (s *EntitlementStage) Name() string { return "entitlement" }

// Evaluate implements Stage.
func (s *EntitlementStage) Evaluate(ctx context.Context, sub *Submission) (*Rejection, error) {
	if s.checker == nil || !sub.Identity.Authenticated() {
		return nil, nil
	}
	ok, errCheck := s.checker.HasPremium(ctx, *sub.Identity.UserID)
	if errCheck != nil {
		return nil, fmt.Errorf("entitlement: %w", errCheck)
	}
	if !ok {
		return Reject(KindPremiumRequired, ""), nil
	}
	return nil, nil
}

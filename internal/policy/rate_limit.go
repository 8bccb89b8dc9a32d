package policy

import (
	"context"
	"fmt"

	"github.com/formgate/formgate/internal/ratelimit"
)

// RateLimitStage limits submissions per client address and form.
type RateLimitStage struct {
	limiter ratelimit.Limiter
}

// NewRateLimitStage constructs a RateLimitStage.
func NewRateLimitStage(limiter ratelimit.Limiter) *RateLimitStage {
	return &RateLimitStage{limiter: limiter}
}

// Name implements Stage.
func (s *RateLimitStage) Name() string { return "rate_limit" }

// Evaluate implements Stage.
func (s *RateLimitStage) Evaluate(ctx context.Context, sub *Submission) (*Rejection, error) {
	cfg := sub.Settings.RateLimit
	if !cfg.Enabled || s.limiter == nil {
		return nil, nil
	}
	rule := ratelimit.Rule{
		Limit:  int64(cfg.MaxSubmissions),
		Window: cfg.Window(),
		Block:  cfg.Block(),
	}
	decision, errAllow := s.limiter.Allow(ctx, ratelimit.Key(sub.Form.ID, sub.Identity.IP), rule)
	if errAllow != nil {
		return nil, fmt.Errorf("rate limit: %w", errAllow)
	}
	if decision.Allowed {
		return nil, nil
	}
	rej := Reject(KindRateLimited, cfg.Message)
	rej.RateLimit = &RateLimitInfo{
		Limit:     decision.Limit,
		Remaining: decision.Remaining,
		ResetAt:   decision.ResetAt,
	}
	return rej, nil
}

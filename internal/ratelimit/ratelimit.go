// Package ratelimit implements fixed-window submission limits with an
// optional block after a violation.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Rule is the limit applied to one key.
type Rule struct {
	Limit  int64
	Window time.Duration
	// Block, when positive, rejects the key for this long after the first
	// rejected request of a window.
	Block time.Duration
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	// ResetAt is when the key can submit again: the window end, or the
	// block expiry while blocked.
	ResetAt time.Time
}

// RetryAfter returns the wait until ResetAt, at least one second.
func (d *Decision) RetryAfter(now time.Time) time.Duration {
	if d == nil {
		return 0
	}
	wait := d.ResetAt.Sub(now)
	if wait < time.Second {
		return time.Second
	}
	return wait
}

// Limiter admits or rejects one request for key. Implementations update the
// counter atomically per key; rejected requests are not counted.
type Limiter interface {
	Allow(ctx context.Context, key string, rule Rule) (*Decision, error)
}

var errInvalidRule = errors.New("ratelimit: rule needs a positive limit and window")

func (r Rule) valid() bool {
	return r.Limit > 0 && r.Window > 0
}

// Key scopes a limiter key to a form and client address.
func Key(formID, ip string) string {
	return "form:" + formID + ":ip:" + ip
}

// state is the shared fixed-window state machine used by the memory and
// database backends.
type state struct {
	count        int64
	windowEndsAt time.Time
	blockedUntil time.Time
}

func (s *state) apply(now time.Time, rule Rule) Decision {
	if s.blockedUntil.After(now) {
		return Decision{Limit: rule.Limit, ResetAt: s.blockedUntil}
	}
	if !s.windowEndsAt.After(now) {
		s.count = 0
		s.windowEndsAt = now.Add(rule.Window)
	}
	if s.count >= rule.Limit {
		reset := s.windowEndsAt
		if rule.Block > 0 {
			s.blockedUntil = now.Add(rule.Block)
			reset = s.blockedUntil
		}
		return Decision{Limit: rule.Limit, ResetAt: reset}
	}
	s.count++
	return Decision{
		Allowed:   true,
		Limit:     rule.Limit,
		Remaining: rule.Limit - s.count,
		ResetAt:   s.windowEndsAt,
	}
}

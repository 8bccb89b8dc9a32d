package duplicate

import (
	"context"
	"time"

	"github.com/formgate/formgate/internal/formsettings"
)

// Record is the remembered state for one fingerprint.
type Record struct {
	Attempts  int64
	ExpiresAt *time.Time
}

// Expired reports whether the record no longer counts at now.
func (r *Record) Expired(now time.Time) bool {
	return r != nil && r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}

// Store persists duplicate records.
type Store interface {
	// Claim admits fingerprint when its live record holds fewer than
	// limit attempts, and counts the attempt in the same atomic step. A
	// ttl of zero keeps the record forever. Expired records restart at
	// one attempt.
	Claim(ctx context.Context, formID, fingerprint, strategy string, ttl time.Duration, limit int64) (bool, error)
	// Release takes back one claimed attempt for a submission that was
	// not stored. A record left with no attempts is removed.
	Release(ctx context.Context, formID, fingerprint string) error
}

// AttemptLimit is the number of accepted submissions a fingerprint may
// make while its record is live.
func AttemptLimit(cfg formsettings.DuplicatePrevention) int64 {
	if cfg.AllowOverride && cfg.MaxAttempts > 1 {
		return cfg.MaxAttempts
	}
	return 1
}

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/formgate/formgate/internal/db"
	"github.com/formgate/formgate/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DBLimiter stores counters in the rate_limit_states table. Each Allow runs
// in one transaction holding a row lock on the key.
type DBLimiter struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDBLimiter constructs a DBLimiter.
func NewDBLimiter(conn *gorm.DB) *DBLimiter {
	return &DBLimiter{db: conn, now: time.Now}
}

// Allow implements Limiter.
func (l *DBLimiter) Allow(ctx context.Context, key string, rule Rule) (*Decision, error) {
	if !rule.valid() {
		return nil, errInvalidRule
	}
	if l == nil || l.db == nil {
		return nil, fmt.Errorf("ratelimit: db limiter not configured")
	}
	var decision Decision
	errTx := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := l.now().UTC()
		seed := models.RateLimitState{Key: key, WindowEndsAt: now}
		if errSeed := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; errSeed != nil {
			return fmt.Errorf("seed state: %w", errSeed)
		}
		var row models.RateLimitState
		if errFind := db.ForUpdate(tx).Where("limiter_key = ?", key).First(&row).Error; errFind != nil {
			return fmt.Errorf("lock state: %w", errFind)
		}

		st := state{count: row.Count, windowEndsAt: row.WindowEndsAt}
		if row.BlockedUntil != nil {
			st.blockedUntil = *row.BlockedUntil
		}
		decision = st.apply(now, rule)

		updates := map[string]any{
			"count":          st.count,
			"window_ends_at": st.windowEndsAt,
			"blocked_until":  nil,
			"updated_at":     now,
		}
		if !st.blockedUntil.IsZero() {
			blocked := st.blockedUntil
			updates["blocked_until"] = &blocked
		}
		return tx.Model(&models.RateLimitState{}).Where("limiter_key = ?", key).Updates(updates).Error
	})
	if errTx != nil {
		return nil, fmt.Errorf("ratelimit: %w", errTx)
	}
	return &decision, nil
}

// Purge deletes rows whose window and block have both ended before cutoff.
func (l *DBLimiter) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res := l.db.WithContext(ctx).
		Where("window_ends_at < ? AND (blocked_until IS NULL OR blocked_until < ?)", cutoff, cutoff).
		Delete(&models.RateLimitState{})
	return res.RowsAffected, res.Error
}

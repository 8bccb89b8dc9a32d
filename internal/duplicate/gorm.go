package duplicate

import (
	"context"
	"fmt"
	"time"

	"github.com/formgate/formgate/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DBStore keeps duplicate records in the duplicate_records table, one row
// per (form_id, fingerprint).
type DBStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDBStore constructs a DBStore.
func NewDBStore(conn *gorm.DB) *DBStore {
	return &DBStore{db: conn, now: time.Now}
}

// Claim implements Store. The seed row is inserted once, then a single
// conditional update counts the attempt only while the record is expired
// or below limit, so concurrent claims for one fingerprint serialize on
// the row.
func (s *DBStore) Claim(ctx context.Context, formID, fingerprint, strategy string, ttl time.Duration, limit int64) (bool, error) {
	now := s.now().UTC()
	var expiresAt *time.Time
	if ttl > 0 {
		exp := now.Add(ttl)
		expiresAt = &exp
	}
	conn := s.db.WithContext(ctx)
	seed := models.DuplicateRecord{
		FormID:      formID,
		Fingerprint: fingerprint,
		Strategy:    strategy,
		Attempts:    0,
		ExpiresAt:   expiresAt,
		LastSeenAt:  now,
	}
	errSeed := conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "form_id"}, {Name: "fingerprint"}},
		DoNothing: true,
	}).Create(&seed).Error
	if errSeed != nil {
		return false, fmt.Errorf("duplicate: seed: %w", errSeed)
	}

	res := conn.Model(&models.DuplicateRecord{}).
		Where("form_id = ? AND fingerprint = ?", formID, fingerprint).
		Where("(expires_at IS NOT NULL AND expires_at <= ?) OR attempts < ?", now, limit).
		Updates(map[string]any{
			"attempts":     gorm.Expr("CASE WHEN expires_at IS NOT NULL AND expires_at <= ? THEN 1 ELSE attempts + 1 END", now),
			"expires_at":   expiresAt,
			"strategy":     strategy,
			"last_seen_at": now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("duplicate: claim: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Release implements Store.
func (s *DBStore) Release(ctx context.Context, formID, fingerprint string) error {
	errRelease := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scope := func() *gorm.DB {
			return tx.Model(&models.DuplicateRecord{}).Where("form_id = ? AND fingerprint = ?", formID, fingerprint)
		}
		if errDec := scope().Where("attempts > 0").
			Update("attempts", gorm.Expr("attempts - 1")).Error; errDec != nil {
			return errDec
		}
		return scope().Where("attempts <= 0").Delete(&models.DuplicateRecord{}).Error
	})
	if errRelease != nil {
		return fmt.Errorf("duplicate: release: %w", errRelease)
	}
	return nil
}

// Purge deletes records that expired before cutoff.
func (s *DBStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", cutoff).
		Delete(&models.DuplicateRecord{})
	return res.RowsAffected, res.Error
}

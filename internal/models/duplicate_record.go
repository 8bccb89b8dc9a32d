package models

import "time"

// DuplicateRecord remembers that a submitter fingerprint already submitted a form.
type DuplicateRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	FormID      string `gorm:"type:varchar(36);not null;uniqueIndex:idx_duplicate_form_fingerprint"`
	Fingerprint string `gorm:"type:varchar(64);not null;uniqueIndex:idx_duplicate_form_fingerprint"` // Keyed BLAKE3 hex digest.
	Strategy    string `gorm:"type:text;not null"`                                                   // Strategy that produced the fingerprint.

	Attempts  int64      `gorm:"not null;default:0"` // Accepted submissions recorded for this fingerprint.
	ExpiresAt *time.Time `gorm:"index"`              // Nil for one-time records.

	CreatedAt  time.Time `gorm:"not null;autoCreateTime"` // First accepted submission.
	LastSeenAt time.Time `gorm:"not null"`                // Latest accepted submission.
}

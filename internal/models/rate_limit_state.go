package models

import "time"

// RateLimitState is the database-backed counter for one (form, identity) window.
type RateLimitState struct {
	Key string `gorm:"column:limiter_key;type:varchar(255);primaryKey"` // Limiter key.

	Count        int64      `gorm:"not null;default:0"` // Admitted requests in the current window.
	WindowEndsAt time.Time  `gorm:"not null;index"`     // End of the current window.
	BlockedUntil *time.Time // Set after a violation when a block duration applies.

	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

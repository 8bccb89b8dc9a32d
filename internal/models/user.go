package models

import "time"

// User is a form owner or an authenticated submitter.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Email string `gorm:"type:text;not null;uniqueIndex"` // Login email.
	Name  string `gorm:"type:text"`                      // Display name.

	Disabled     bool       `gorm:"not null;default:false"` // Disabled users cannot submit as themselves.
	PremiumUntil *time.Time // Premium entitlement expiry; nil means no entitlement.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// HasPremium reports whether the user holds an unexpired premium entitlement at now.
func (u *User) HasPremium(now time.Time) bool {
	if u == nil || u.Disabled || u.PremiumUntil == nil {
		return false
	}
	return u.PremiumUntil.After(now)
}

package models

import "time"

// APIKey grants the API submission channel access to exactly one form.
type APIKey struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	FormID string `gorm:"type:varchar(36);not null;index"` // Bound form ID.
	Form   *Form  `gorm:"foreignKey:FormID"`               // Bound form record.

	Name   string `gorm:"type:text;not null"`             // Display name for the key.
	APIKey string `gorm:"type:text;not null;uniqueIndex"` // Full API key string.

	Active     bool       `gorm:"not null;default:true"` // Whether the key is enabled.
	ExpiresAt  *time.Time // Optional expiration timestamp.
	RevokedAt  *time.Time // Revocation timestamp when disabled.
	LastUsedAt *time.Time // Last successful usage time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Status returns the current key status based on revocation, expiry, and active flag.
func (k *APIKey) Status(now time.Time) string {
	if k.RevokedAt != nil {
		return "revoked"
	}
	if k.ExpiresAt != nil && !k.ExpiresAt.After(now) {
		return "expired"
	}
	if k.ExpiresAt != nil && k.ExpiresAt.Before(now.AddDate(0, 0, 7)) {
		return "expiring"
	}
	if k.Active {
		return "active"
	}
	return "inactive"
}

// Usable reports whether the key may authenticate a request at now.
func (k *APIKey) Usable(now time.Time) bool {
	switch k.Status(now) {
	case "active", "expiring":
		return true
	default:
		return false
	}
}

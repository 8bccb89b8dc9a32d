package models

import (
	"time"

	"gorm.io/datatypes"
)

// Form is a published or draft form owned by a user.
type Form struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	UserID uint64 `gorm:"not null;index"`    // Owning user ID.
	User   *User  `gorm:"foreignKey:UserID"` // Owning user record.

	Title       string `gorm:"type:text;not null"` // Internal form title.
	Slug        string `gorm:"type:text;index"`    // Optional public slug.
	IsPublished bool   `gorm:"not null;default:false;index"`

	Schema datatypes.JSON `gorm:"type:jsonb;not null"` // Fields and settings as authored in the builder.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission is one accepted response to a form. Rows are never updated in place.
type Submission struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	FormID string `gorm:"type:varchar(36);not null;index"` // Owning form ID.

	SubmissionData datatypes.JSON `gorm:"type:jsonb;not null"` // Sanitized field-keyed values.
	IPAddress      string         `gorm:"type:text;not null;default:'unknown'"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Submission timestamp.
}

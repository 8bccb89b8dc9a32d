package models

import (
	"time"

	"gorm.io/datatypes"
)

// Webhook is an outbound HTTP subscription to form events.
type Webhook struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64  `gorm:"not null;index"`           // Owning user ID.
	FormID *string `gorm:"type:varchar(36);index"`   // Form scope; nil subscribes to all of the owner's forms.
	Name   string  `gorm:"type:text"`                // Display name.
	URL    string  `gorm:"type:text;not null"`       // Delivery target.
	Method string  `gorm:"type:text;default:'POST'"` // HTTP method, POST when empty.
	Secret string  `gorm:"type:text"`                // HMAC signing secret; empty disables signing.

	Events  datatypes.JSON `gorm:"type:jsonb"` // JSON array of subscribed event names.
	Headers datatypes.JSON `gorm:"type:jsonb"` // Optional extra headers as a JSON object.

	Enabled bool `gorm:"not null;default:true"` // Whether deliveries are attempted.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// WebhookDelivery records one delivery attempt.
type WebhookDelivery struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	WebhookID    uint64 `gorm:"not null;index"`         // Delivered webhook.
	Event        string `gorm:"type:text;not null"`     // Event name.
	SubmissionID string `gorm:"type:varchar(36);index"` // Related submission.
	StatusCode   int    `gorm:"not null;default:0"`     // Response status, 0 on transport failure.
	Success      bool   `gorm:"not null;default:false"` // 2xx response received.
	Error        string `gorm:"type:text"`              // Transport or status error.
	DurationMs   int64  `gorm:"not null;default:0"`     // Round trip time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Attempt timestamp.
}

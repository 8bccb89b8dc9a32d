package models

import (
	"encoding/json"
	"time"
)

// Setting is a runtime override such as BASE_URL, stored as a JSON value so
// operators can write either strings or numbers.
type Setting struct {
	Key       string          `gorm:"type:varchar(128);primaryKey"`
	Value     json.RawMessage `gorm:"type:jsonb"`
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime"`
}

// Package premium answers entitlement questions for authenticated submitters.
package premium

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/formgate/formgate/internal/models"
	"gorm.io/gorm"
)

// Checker reports whether a user holds a premium entitlement.
type Checker interface {
	HasPremium(ctx context.Context, userID uint64) (bool, error)
}

// DBChecker reads entitlements from the users table.
type DBChecker struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDBChecker constructs a DBChecker.
func NewDBChecker(conn *gorm.DB) *DBChecker {
	return &DBChecker{db: conn, now: time.Now}
}

// HasPremium returns false for unknown users.
func (c *DBChecker) HasPremium(ctx context.Context, userID uint64) (bool, error) {
	if c == nil || c.db == nil {
		return false, fmt.Errorf("premium: checker not configured")
	}
	var user models.User
	errFind := c.db.WithContext(ctx).
		Select("id", "disabled", "premium_until").
		Where("id = ?", userID).
		First(&user).Error
	switch {
	case errFind == nil:
		return user.HasPremium(c.now().UTC()), nil
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("premium: load user: %w", errFind)
	}
}

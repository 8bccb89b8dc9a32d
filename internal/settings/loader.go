package settings

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/formgate/formgate/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RefreshDBConfigSnapshot replaces the in-memory snapshot with the current
// contents of the settings table. The server calls it at startup and on every
// retention sweep.
func RefreshDBConfigSnapshot(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("settings: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var rows []models.Setting
	if errFind := db.WithContext(ctx).Find(&rows).Error; errFind != nil {
		return errFind
	}

	values := make(map[string]json.RawMessage, len(rows))
	var latest time.Time
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if key == "" {
			continue
		}
		values[key] = row.Value
		if updated := row.UpdatedAt.UTC(); updated.After(latest) {
			latest = updated
		}
	}
	StoreDBConfig(latest, values)
	log.WithFields(log.Fields{"keys": len(values), "updated_at": DBConfigUpdatedAt()}).Debug("settings: snapshot refreshed")
	return nil
}

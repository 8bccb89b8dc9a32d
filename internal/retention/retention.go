// Package retention periodically removes expired policy state and old
// webhook delivery logs.
package retention

import (
	"context"
	"time"

	"github.com/formgate/formgate/internal/config"
	internalsettings "github.com/formgate/formgate/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultRetentionInterval  = 6 * time.Hour
	defaultDeliveryBatchSize  = 5000
	maxDeleteBatchesPerRun    = 2000
	defaultDeliveryRetainDays = 30
)

// Purger deletes state that expired before cutoff.
type Purger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// PurgeFunc adapts a function to Purger.
type PurgeFunc func(ctx context.Context, cutoff time.Time) (int64, error)

// Purge implements Purger.
func (f PurgeFunc) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	return f(ctx, cutoff)
}

type target struct {
	name   string
	purger Purger
}

// Cleaner runs the retention loop.
type Cleaner struct {
	db          *gorm.DB
	interval    time.Duration
	defaultDays int
	batchSize   int
	targets     []target
	now         func() time.Time
}

// NewCleaner builds a cleaner for db using cfg. It returns nil for a nil db.
func NewCleaner(db *gorm.DB, cfg config.RetentionConfig) *Cleaner {
	if db == nil {
		return nil
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultRetentionInterval
	}
	days := cfg.WebhookDeliveryDays
	if days <= 0 {
		days = defaultDeliveryRetainDays
	}
	return &Cleaner{
		db:          db,
		interval:    interval,
		defaultDays: days,
		batchSize:   defaultDeliveryBatchSize,
		now:         time.Now,
	}
}

// Track adds a purger run on every sweep.
func (c *Cleaner) Track(name string, p Purger) {
	if c == nil || p == nil {
		return
	}
	c.targets = append(c.targets, target{name: name, purger: p})
}

// Start launches the cleanup loop in a background goroutine.
func (c *Cleaner) Start(ctx context.Context) {
	if c == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go c.run(ctx)
	log.Infof("retention cleaner started (interval=%s)", c.interval)
}

func (c *Cleaner) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.Sweep(ctx)
		if ctx.Err() != nil {
			return
		}
		timer := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

// Sweep runs one cleanup pass.
func (c *Cleaner) Sweep(ctx context.Context) {
	if c == nil || c.db == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if errRefresh := internalsettings.RefreshDBConfigSnapshot(ctx, c.db); errRefresh != nil {
		log.WithError(errRefresh).Warn("retention cleaner: refresh settings failed")
	}

	now := c.now().UTC()
	for _, t := range c.targets {
		n, err := t.purger.Purge(ctx, now)
		if err != nil {
			log.WithError(err).WithField("target", t.name).Warn("retention cleaner: purge failed")
			continue
		}
		if n > 0 {
			log.Infof("retention cleaner: purged %d %s rows", n, t.name)
		}
	}

	retentionDays := internalsettings.WebhookDeliveryRetentionDays(c.defaultDays)
	cutoff := now.AddDate(0, 0, -retentionDays)

	deletedTotal := int64(0)
	for i := 0; i < maxDeleteBatchesPerRun; i++ {
		if ctx.Err() != nil {
			return
		}
		n, err := c.deleteDeliveryBatch(ctx, cutoff)
		if err != nil {
			log.WithError(err).Warn("retention cleaner: delete delivery batch failed")
			break
		}
		if n <= 0 {
			break
		}
		deletedTotal += n
	}

	if deletedTotal > 0 {
		log.Infof("retention cleaner: deleted %d webhook deliveries (cutoff=%s retention_days=%d)", deletedTotal, cutoff.Format(time.RFC3339), retentionDays)
	}
}

func (c *Cleaner) deleteDeliveryBatch(ctx context.Context, cutoff time.Time) (int64, error) {
	limit := c.batchSize
	if limit <= 0 {
		limit = defaultDeliveryBatchSize
	}

	// Limited subquery keeps each delete short.
	res := c.db.WithContext(ctx).Exec(`
		DELETE FROM webhook_deliveries
		WHERE id IN (
			SELECT id FROM webhook_deliveries
			WHERE created_at < ?
			ORDER BY created_at ASC
			LIMIT ?
		)
	`, cutoff, limit)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

package settings

// DB config keys and defaults for settings.
const (
	// SiteNameKey is the DB config key for the site name used in notification mail.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback site name.
	DefaultSiteName = "Formgate"
	// BaseURLKey overrides app.base-url for links in notification mail.
	BaseURLKey = "BASE_URL"
	// WebhookDeliveryRetentionDaysKey controls how long webhook delivery logs are kept.
	WebhookDeliveryRetentionDaysKey = "WEBHOOK_DELIVERY_RETENTION_DAYS"
)

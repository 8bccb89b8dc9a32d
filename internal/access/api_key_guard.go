package access

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/formgate/formgate/internal/formsettings"
	"github.com/formgate/formgate/internal/models"
	"github.com/formgate/formgate/internal/security"
	"github.com/formgate/formgate/internal/util"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Caller-facing messages for API key failures.
const (
	MessageMissingCredential = "Missing or invalid authorization header. Use 'Bearer <api_key>'"
	MessageInvalidAPIKey     = "Invalid API key"
	MessageKeyFormMismatch   = "API key is not valid for this form"
	MessageAPIDisabled       = "API access is disabled for this form"
	MessageExternalDisabled  = "External submissions are disabled for this form"
)

// APIKeyGuard authenticates requests with a form-bound API key.
type APIKeyGuard struct {
	db *gorm.DB

	// requireExternal additionally demands api.allowExternalSubmissions.
	requireExternal bool

	now func() time.Time
}

// NewAPIKeyGuard returns a guard for read access, such as schema introspection.
func NewAPIKeyGuard(db *gorm.DB) *APIKeyGuard {
	return &APIKeyGuard{db: db, now: time.Now}
}

// NewSubmitAPIKeyGuard returns a guard for API submissions.
func NewSubmitAPIKeyGuard(db *gorm.DB) *APIKeyGuard {
	return &APIKeyGuard{db: db, requireExternal: true, now: time.Now}
}

// Authorize validates the bearer key, its binding to formID and the form's
// API settings, then stamps the key's last use.
func (g *APIKeyGuard) Authorize(ctx context.Context, r *http.Request, formID string) (*models.Form, error) {
	if g == nil || g.db == nil {
		return nil, errNilGuard
	}
	token := bearerToken(r)
	if token == "" {
		return nil, deny(ErrMissingCredential, MessageMissingCredential)
	}
	if !security.LooksLikeAPIKey(token) {
		return nil, deny(ErrInvalidAPIKey, MessageInvalidAPIKey)
	}

	var apiKey models.APIKey
	errFind := g.db.WithContext(ctx).
		Preload("Form").
		Where("api_key = ?", token).
		First(&apiKey).Error
	switch {
	case errFind == nil:
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		log.WithField("api_key", util.HideAPIKey(token)).Debug("access: unknown api key")
		return nil, deny(ErrInvalidAPIKey, MessageInvalidAPIKey)
	default:
		return nil, fmt.Errorf("access: query api key: %w", errFind)
	}

	now := g.now().UTC()
	if !apiKey.Usable(now) || apiKey.Form == nil {
		return nil, deny(ErrInvalidAPIKey, MessageInvalidAPIKey)
	}
	if apiKey.FormID != formID {
		return nil, deny(ErrKeyFormMismatch, MessageKeyFormMismatch)
	}

	form := apiKey.Form
	settings, errSettings := formSettings(form)
	if errSettings != nil {
		log.WithError(errSettings).WithField("form_id", form.ID).Warn("access: api form settings unreadable")
	}
	api, errResolve := formsettings.Resolve(formsettings.DefaultAPI, settings.API)
	if errResolve != nil {
		log.WithError(errResolve).WithField("form_id", form.ID).Warn("access: api settings malformed")
	}
	if !api.Enabled {
		return nil, deny(ErrAPIDisabled, MessageAPIDisabled)
	}
	if g.requireExternal && !api.AllowExternalSubmissions {
		return nil, deny(ErrExternalDisabled, MessageExternalDisabled)
	}

	if errStamp := g.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("id = ?", apiKey.ID).
		Update("last_used_at", &now).Error; errStamp != nil {
		log.WithError(errStamp).WithField("api_key_id", apiKey.ID).Warn("access: stamp api key last use")
	}
	return form, nil
}

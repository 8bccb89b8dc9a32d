package access

import (
	"context"
	"net/http"
	"strings"

	"github.com/formgate/formgate/internal/formsettings"
	"github.com/formgate/formgate/internal/models"
	"github.com/formgate/formgate/internal/security"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// HeaderFormPassword carries the password for protected public forms.
const HeaderFormPassword = "X-Form-Password"

// PublicGuard admits any caller to a published form, subject to the form's
// optional password protection.
type PublicGuard struct {
	db *gorm.DB
}

// NewPublicGuard constructs a PublicGuard.
func NewPublicGuard(db *gorm.DB) *PublicGuard {
	return &PublicGuard{db: db}
}

// Authorize loads the form and rejects missing or unpublished forms.
func (g *PublicGuard) Authorize(ctx context.Context, r *http.Request, formID string) (*models.Form, error) {
	if g == nil || g.db == nil {
		return nil, errNilGuard
	}
	form, errLoad := loadForm(ctx, g.db, formID)
	if errLoad != nil {
		return nil, errLoad
	}
	if !form.IsPublished {
		return nil, ErrFormNotFound
	}

	settings, errSettings := formSettings(form)
	if errSettings != nil {
		log.WithError(errSettings).WithField("form_id", form.ID).Warn("access: public form settings unreadable")
		return form, nil
	}
	protection, errResolve := formsettings.Resolve(formsettings.DefaultPasswordProtection, settings.PasswordProtection)
	if errResolve != nil {
		log.WithError(errResolve).WithField("form_id", form.ID).Warn("access: password protection settings malformed")
	}
	if !protection.Enabled || protection.Password == "" {
		return form, nil
	}
	submitted := ""
	if r != nil {
		submitted = strings.TrimSpace(r.Header.Get(HeaderFormPassword))
	}
	if !security.MatchFormPassword(protection.Password, submitted) {
		message := strings.TrimSpace(protection.Message)
		if message == "" {
			message = formsettings.DefaultPasswordProtection.Message
		}
		return nil, deny(ErrPasswordRequired, message)
	}
	return form, nil
}

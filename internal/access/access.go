// Package access authorizes the two submission channels against a form.
package access

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/formgate/formgate/internal/formsettings"
	"github.com/formgate/formgate/internal/models"
	"gorm.io/gorm"
)

// Guard authorizes a request for a form and returns the form on success.
type Guard interface {
	Authorize(ctx context.Context, r *http.Request, formID string) (*models.Form, error)
}

// Authorization failures. Guards wrap the credential failures in a
// DeniedError carrying the caller-facing message.
var (
	ErrFormNotFound           = errors.New("form not found or not published")
	ErrMissingCredential      = errors.New("missing credential")
	ErrInvalidAPIKey          = errors.New("invalid api key")
	ErrKeyFormMismatch        = errors.New("api key bound to another form")
	ErrAPIDisabled            = errors.New("api access disabled")
	ErrExternalDisabled       = errors.New("external submissions disabled")
	ErrPasswordRequired       = errors.New("form password required")
	ErrFormSettingsUnreadable = errors.New("form settings unreadable")
	errNilGuard               = errors.New("access: guard not configured")
)

// DeniedError is a credential failure with the message shown to the caller.
type DeniedError struct {
	Reason  error
	Message string
}

func (e *DeniedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("access denied: %v", e.Reason)
}

func (e *DeniedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Reason
}

func deny(reason error, message string) error {
	return &DeniedError{Reason: reason, Message: message}
}

// DeniedMessage returns the caller-facing message of a DeniedError.
func DeniedMessage(err error) (string, bool) {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return denied.Message, true
	}
	return "", false
}

func loadForm(ctx context.Context, db *gorm.DB, formID string) (*models.Form, error) {
	formID = strings.TrimSpace(formID)
	if formID == "" {
		return nil, ErrFormNotFound
	}
	var form models.Form
	errFind := db.WithContext(ctx).Where("id = ?", formID).First(&form).Error
	switch {
	case errFind == nil:
		return &form, nil
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		return nil, ErrFormNotFound
	default:
		return nil, fmt.Errorf("access: load form: %w", errFind)
	}
}

func formSettings(form *models.Form) (formsettings.Settings, error) {
	schema, errParse := formsettings.ParseSchema(form.Schema)
	if errParse != nil {
		return formsettings.Settings{}, fmt.Errorf("%w: %v", ErrFormSettingsUnreadable, errParse)
	}
	return schema.Settings, nil
}

// bearerToken extracts a token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	if r == nil {
		return ""
	}
	val := r.Header.Get("Authorization")
	if !strings.HasPrefix(val, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(val, "Bearer "))
}

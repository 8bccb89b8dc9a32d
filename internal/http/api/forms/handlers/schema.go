package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/formgate/formgate/internal/access"
	"github.com/formgate/formgate/internal/formsettings"
	"github.com/formgate/formgate/internal/pipeline"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// SchemaHandler describes a form to API integrators.
type SchemaHandler struct {
	guard access.Guard
}

// NewSchemaHandler constructs a SchemaHandler. guard should be a read-only API key guard.
func NewSchemaHandler(guard access.Guard) *SchemaHandler {
	return &SchemaHandler{guard: guard}
}

// Describe returns the form's fields, policy settings and submission instructions.
func (h *SchemaHandler) Describe(c *gin.Context) {
	formID := c.Param("id")
	form, errAuth := h.guard.Authorize(c.Request.Context(), c.Request, formID)
	if errAuth != nil {
		writeRejection(c, pipeline.AccessRejection(log.WithField("form_id", formID), errAuth), time.Now())
		return
	}

	schema, errSchema := formsettings.ParseSchema(form.Schema)
	if errSchema != nil {
		log.WithError(errSchema).WithField("form_id", form.ID).Warn("forms: schema unreadable")
		schema = &formsettings.Schema{}
	}
	settings, errSettings := formsettings.ResolveAll(schema.Settings)
	if errSettings != nil {
		log.WithError(errSettings).WithField("form_id", form.ID).Warn("forms: malformed settings, defaults applied")
	}
	title := settings.Title
	if title == "" {
		title = form.Title
	}
	fields := schema.Fields
	if fields == nil {
		fields = []formsettings.Field{}
	}

	c.JSON(http.StatusOK, gin.H{
		"formId":      form.ID,
		"title":       title,
		"description": settings.Description,
		"fields":      fields,
		"settings": gin.H{
			"rateLimit":           settings.RateLimit,
			"responseLimit":       settings.ResponseLimit,
			"duplicatePrevention": settings.DuplicatePrevention,
			"profanityFilter":     settings.ProfanityFilter,
		},
		"apiEndpoint": fmt.Sprintf("/api/forms/%s/api-submit", form.ID),
		"documentation": gin.H{
			"method": http.MethodPost,
			"headers": gin.H{
				"Authorization": "Bearer YOUR_API_KEY",
				"Content-Type":  "application/json",
			},
			"body": gin.H{
				"data": exampleData(fields),
			},
		},
	})
}

func exampleData(fields []formsettings.Field) gin.H {
	out := gin.H{}
	for _, f := range fields {
		if f.ID == "" {
			continue
		}
		label := f.Label
		if label == "" {
			label = f.ID
		}
		out[f.ID] = fmt.Sprintf("<%s>", label)
	}
	return out
}

// Package forms registers the form submission and introspection routes.
package forms

import (
	"github.com/formgate/formgate/internal/access"
	"github.com/formgate/formgate/internal/http/api/forms/handlers"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// RegisterFormRoutes registers the public and API-key submission routes,
// schema introspection and the health check. rdb may be nil.
func RegisterFormRoutes(r *gin.Engine, db *gorm.DB, public, api handlers.Runner, rdb redis.UniversalClient) {
	if r == nil || db == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db, rdb)
	r.GET("/healthz", healthHandler.Healthz)

	forms := r.Group("/api/forms/:id")

	submitHandler := handlers.NewSubmitHandler(public)
	forms.POST("/submit", submitHandler.Submit)

	apiSubmitHandler := handlers.NewAPISubmitHandler(api)
	forms.POST("/api-submit", apiSubmitHandler.Submit)

	schemaHandler := handlers.NewSchemaHandler(access.NewAPIKeyGuard(db))
	forms.GET("/api-submit", schemaHandler.Describe)
}

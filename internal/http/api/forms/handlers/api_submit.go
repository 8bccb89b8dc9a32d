package handlers

import (
	"net/http"
	"time"

	"github.com/formgate/formgate/internal/pipeline"
	"github.com/gin-gonic/gin"
)

// APISubmitHandler serves the API-key submission endpoint.
type APISubmitHandler struct {
	runner Runner
	now    func() time.Time
}

// NewAPISubmitHandler constructs an APISubmitHandler around the API pipeline.
func NewAPISubmitHandler(runner Runner) *APISubmitHandler {
	return &APISubmitHandler{runner: runner, now: time.Now}
}

type apiSubmitRequest struct {
	Data map[string]any `json:"data"`
}

// Submit accepts a submission authenticated by a form-bound API key.
func (h *APISubmitHandler) Submit(c *gin.Context) {
	var body apiSubmitRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		writeBadRequest(c)
		return
	}

	res, rej := h.runner.Run(c.Request.Context(), pipeline.Input{
		FormID:  c.Param("id"),
		Request: c.Request,
		Data:    body.Data,
	})
	if rej != nil {
		writeRejection(c, rej, h.now())
		return
	}

	message := res.Settings.SuccessMessage
	if message == "" {
		message = defaultSuccessMessage
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      message,
		"submissionId": res.Submission.ID,
		"timestamp":    res.Submission.CreatedAt.UTC().Format(time.RFC3339),
	})
}

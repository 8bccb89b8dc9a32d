package handlers

import (
	"net/http"
	"time"

	"github.com/formgate/formgate/internal/pipeline"
	"github.com/gin-gonic/gin"
)

// SubmitHandler serves the public submission endpoint.
type SubmitHandler struct {
	runner Runner
	now    func() time.Time
}

// NewSubmitHandler constructs a SubmitHandler around the public pipeline.
func NewSubmitHandler(runner Runner) *SubmitHandler {
	return &SubmitHandler{runner: runner, now: time.Now}
}

type submitRequest struct {
	SubmissionData map[string]any `json:"submissionData"`
}

// Submit accepts a public form submission.
func (h *SubmitHandler) Submit(c *gin.Context) {
	var body submitRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		writeBadRequest(c)
		return
	}

	res, rej := h.runner.Run(c.Request.Context(), pipeline.Input{
		FormID:  c.Param("id"),
		Request: c.Request,
		Data:    body.SubmissionData,
	})
	if rej != nil {
		writeRejection(c, rej, h.now())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"submissionId": res.Submission.ID,
		"message":      defaultSuccessMessage,
	})
}

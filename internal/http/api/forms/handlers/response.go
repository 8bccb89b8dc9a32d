package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/formgate/formgate/internal/pipeline"
	"github.com/formgate/formgate/internal/policy"
	"github.com/gin-gonic/gin"
)

// Runner executes one submission attempt.
type Runner interface {
	Run(ctx context.Context, in pipeline.Input) (*pipeline.Result, *policy.Rejection)
}

const defaultSuccessMessage = "Form submitted successfully"

// writeRejection renders rej with its status, error string and optional details.
func writeRejection(c *gin.Context, rej *policy.Rejection, now time.Time) {
	body := gin.H{"error": rej.ErrorString()}
	if rej.Message != "" {
		body["message"] = rej.Message
	}
	if info := rej.RateLimit; info != nil {
		body["limit"] = info.Limit
		body["remaining"] = info.Remaining
		body["reset"] = info.ResetAt.UnixMilli()
		retry := info.ResetAt.Sub(now)
		if retry < time.Second {
			retry = time.Second
		}
		c.Header("Retry-After", strconv.FormatInt(int64((retry+time.Second-1)/time.Second), 10))
	}
	if rej.Violations > 0 {
		body["violations"] = rej.Violations
	}
	c.JSON(rej.Status(), body)
}

func writeBadRequest(c *gin.Context) {
	writeRejection(c, policy.Reject(policy.KindBadRequest, ""), time.Now())
}

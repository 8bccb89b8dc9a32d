package policy

import (
	"net/http"
	"time"
)

// Kind classifies why a submission was refused.
type Kind string

// Rejection kinds in pipeline order.
const (
	KindBadRequest      Kind = "bad_request"
	KindUnauthorized    Kind = "unauthorized"
	KindNotFound        Kind = "not_found"
	KindPremiumRequired Kind = "premium_required"
	KindBotDetected     Kind = "bot_detected"
	KindRateLimited     Kind = "rate_limited"
	KindLimitReached    Kind = "limit_reached"
	KindContentFiltered Kind = "content_filtered"
	KindDuplicate       Kind = "duplicate"
	KindStorageError    Kind = "storage_error"
	KindInternal        Kind = "internal"
)

var kindStatus = map[Kind]int{
	KindBadRequest:      http.StatusBadRequest,
	KindUnauthorized:    http.StatusUnauthorized,
	KindNotFound:        http.StatusNotFound,
	KindPremiumRequired: http.StatusForbidden,
	KindBotDetected:     http.StatusForbidden,
	KindRateLimited:     http.StatusTooManyRequests,
	KindLimitReached:    http.StatusForbidden,
	KindContentFiltered: http.StatusBadRequest,
	KindDuplicate:       http.StatusConflict,
	KindStorageError:    http.StatusInternalServerError,
	KindInternal:        http.StatusInternalServerError,
}

var kindError = map[Kind]string{
	KindBadRequest:      "Invalid request body",
	KindNotFound:        "Form not found or not published",
	KindPremiumRequired: "Premium subscription required",
	KindBotDetected:     "Bot detected",
	KindRateLimited:     "Rate limit exceeded",
	KindLimitReached:    "Response limit reached",
	KindContentFiltered: "Content validation failed",
	KindDuplicate:       "Duplicate submission",
	KindStorageError:    "Failed to submit form",
	KindInternal:        "Internal server error",
}

// RateLimitInfo is attached to RateLimited rejections.
type RateLimitInfo struct {
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// Rejection is a terminal pipeline outcome.
type Rejection struct {
	Kind Kind
	// Error overrides the kind's fixed error string. Unauthorized carries
	// the guard message here.
	Error string
	// Message is the stage's user-facing explanation, when it has one.
	Message string

	RateLimit  *RateLimitInfo
	Violations int

	// Cause is logged, never returned to callers.
	Cause error
}

// Reject builds a rejection of kind with an optional user message.
func Reject(kind Kind, message string) *Rejection {
	return &Rejection{Kind: kind, Message: message}
}

// Status returns the HTTP status for the rejection.
func (r *Rejection) Status() int {
	if r == nil {
		return http.StatusOK
	}
	if status, ok := kindStatus[r.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorString returns the stable error string for the rejection.
func (r *Rejection) ErrorString() string {
	if r == nil {
		return ""
	}
	if r.Error != "" {
		return r.Error
	}
	if s, ok := kindError[r.Kind]; ok {
		return s
	}
	return kindError[KindInternal]
}

package policy

import (
	"context"
	"fmt"
)

// SubmissionCounter counts stored submissions for a form.
type SubmissionCounter interface {
	CountFormSubmissions(ctx context.Context, formID string) (int64, error)
}

// ResponseLimitStage closes a form once it holds maxResponses submissions.
// The count is read before the insert, so concurrent submissions near the
// cap may all be admitted.
type ResponseLimitStage struct {
	counter SubmissionCounter
}

// NewResponseLimitStage constructs a ResponseLimitStage.
func NewResponseLimitStage(counter SubmissionCounter) *ResponseLimitStage {
	return &ResponseLimitStage{counter: counter}
}

// Name implements Stage.
func (s *ResponseLimitStage) Name() string { return "response_limit" }

// Evaluate implements Stage.
func (s *ResponseLimitStage) Evaluate(ctx context.Context, sub *Submission) (*Rejection, error) {
	cfg := sub.Settings.ResponseLimit
	if !cfg.Enabled || s.counter == nil {
		return nil, nil
	}
	count, errCount := s.counter.CountFormSubmissions(ctx, sub.Form.ID)
	if errCount != nil {
		return nil, fmt.Errorf("response limit: %w", errCount)
	}
	if count >= cfg.MaxResponses {
		return Reject(KindLimitReached, cfg.Message), nil
	}
	return nil, nil
}

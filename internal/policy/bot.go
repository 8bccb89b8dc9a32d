package policy

import (
	"context"

	"github.com/formgate/formgate/internal/botcheck"
	log "github.com/sirupsen/logrus"
)

// BotStage rejects requests the verifier classifies as automation.
// Verifier errors admit the request.
type BotStage struct {
	verifier botcheck.Verifier
}

// NewBotStage constructs a BotStage.
func NewBotStage(verifier botcheck.Verifier) *BotStage {
	return &BotStage{verifier: verifier}
}

// Name implements Stage.
func (s *BotStage) Name() string { return "bot" }

// Evaluate implements Stage.
func (s *BotStage) Evaluate(ctx context.Context, sub *Submission) (*Rejection, error) {
	cfg := sub.Settings.BotProtection
	if !cfg.Enabled || s.verifier == nil {
		return nil, nil
	}
	verdict, errVerify := s.verifier.Verify(ctx, botcheck.Signal{
		IP:             sub.Identity.IP,
		UserAgent:      sub.Identity.UserAgent,
		AcceptLanguage: sub.Identity.AcceptLanguage,
		ServerToServer: sub.Channel == ChannelAPI,
	})
	if errVerify != nil {
		log.WithError(errVerify).WithField("form_id", sub.Form.ID).Warn("policy: bot verification failed, admitting")
		return nil, nil
	}
	if !verdict.IsBot {
		return nil, nil
	}
	log.WithFields(log.Fields{"form_id": sub.Form.ID, "reason": verdict.Reason}).Info("policy: bot rejected")
	return Reject(KindBotDetected, cfg.Message), nil
}

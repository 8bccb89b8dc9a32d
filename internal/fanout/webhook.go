package fanout

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/formgate/formgate/internal/models"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Webhook request headers.
const (
	HeaderSignature = "X-Formgate-Signature"
	HeaderEvent     = "X-Formgate-Event"
)

// Sign returns the hex HMAC-SHA256 of body under secret, prefixed "sha256=".
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// WebhookSender delivers events to subscribed webhooks and logs each attempt.
type WebhookSender struct {
	db     *gorm.DB
	client *http.Client
	now    func() time.Time
	// maxParallel bounds concurrent deliveries for one event.
	maxParallel int
}

// NewWebhookSender constructs a WebhookSender.
func NewWebhookSender(conn *gorm.DB, timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSender{
		db:          conn,
		client:      &http.Client{Timeout: timeout},
		now:         time.Now,
		maxParallel: 8,
	}
}

// Subscribers returns the enabled webhooks for ev: those scoped to the form,
// and the owner's unscoped webhooks, that list ev.Name in their events.
func (s *WebhookSender) Subscribers(ctx context.Context, ev Event) ([]models.Webhook, error) {
	var rows []models.Webhook
	errFind := s.db.WithContext(ctx).
		Where("enabled = ?", true).
		Where("form_id = ? OR (form_id IS NULL AND user_id = ?)", ev.FormID, ev.OwnerID).
		Order("id ASC").
		Find(&rows).Error
	if errFind != nil {
		return nil, fmt.Errorf("fanout: load webhooks: %w", errFind)
	}
	out := rows[:0]
	for _, hook := range rows {
		if subscribes(hook.Events, ev.Name) {
			out = append(out, hook)
		}
	}
	return out, nil
}

func subscribes(events []byte, name string) bool {
	if len(bytes.TrimSpace(events)) == 0 {
		return false
	}
	for _, v := range gjson.ParseBytes(events).Array() {
		if v.String() == name {
			return true
		}
	}
	return false
}

// Deliver posts the payload to every subscriber concurrently. Individual
// failures are logged and recorded, never returned.
func (s *WebhookSender) Deliver(ctx context.Context, ev Event, payload Payload) error {
	if s == nil || s.db == nil {
		return nil
	}
	hooks, errHooks := s.Subscribers(ctx, ev)
	if errHooks != nil {
		return errHooks
	}
	if len(hooks) == 0 {
		return nil
	}
	body, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		return fmt.Errorf("fanout: encode payload: %w", errMarshal)
	}

	var g errgroup.Group
	g.SetLimit(s.maxParallel)
	for i := range hooks {
		hook := hooks[i]
		g.Go(func() error {
			s.deliverOne(ctx, hook, ev, body)
			return nil
		})
	}
	return g.Wait()
}

func (s *WebhookSender) deliverOne(ctx context.Context, hook models.Webhook, ev Event, body []byte) {
	start := s.now()
	status, errSend := s.send(ctx, hook, ev.Name, body)
	delivery := models.WebhookDelivery{
		WebhookID:    hook.ID,
		Event:        ev.Name,
		SubmissionID: ev.SubmissionID,
		StatusCode:   status,
		Success:      errSend == nil,
		DurationMs:   s.now().Sub(start).Milliseconds(),
	}
	entry := log.WithFields(log.Fields{
		"webhook_id":    hook.ID,
		"form_id":       ev.FormID,
		"submission_id": ev.SubmissionID,
		"status":        status,
	})
	if errSend != nil {
		delivery.Error = errSend.Error()
		entry.WithError(errSend).Warn("fanout: webhook delivery failed")
	} else {
		entry.Debug("fanout: webhook delivered")
	}
	if errLog := s.db.WithContext(context.WithoutCancel(ctx)).Create(&delivery).Error; errLog != nil {
		entry.WithError(errLog).Warn("fanout: record webhook delivery")
	}
}

func (s *WebhookSender) send(ctx context.Context, hook models.Webhook, event string, body []byte) (int, error) {
	method := strings.ToUpper(strings.TrimSpace(hook.Method))
	if method == "" {
		method = http.MethodPost
	}
	req, errReq := http.NewRequestWithContext(ctx, method, hook.URL, bytes.NewReader(body))
	if errReq != nil {
		return 0, fmt.Errorf("build request: %w", errReq)
	}
	// Custom headers go first so they cannot replace the protocol headers.
	if len(bytes.TrimSpace(hook.Headers)) > 0 {
		gjson.ParseBytes(hook.Headers).ForEach(func(key, value gjson.Result) bool {
			if k := strings.TrimSpace(key.String()); k != "" {
				req.Header.Set(k, value.String())
			}
			return true
		})
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "formgate-webhooks/1")
	req.Header.Set(HeaderEvent, event)
	req.Header.Del(HeaderSignature)
	if hook.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(hook.Secret, body))
	}

	resp, errDo := s.client.Do(req)
	if errDo != nil {
		return 0, errDo
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

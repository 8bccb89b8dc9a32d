package fanout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/formgate/formgate/internal/config"
	"github.com/formgate/formgate/internal/db"
	"github.com/formgate/formgate/internal/formsettings"
	"github.com/formgate/formgate/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func openFanoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:fanout_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func sampleEvent() Event {
	return Event{
		Name:      EventFormSubmitted,
		FormID:    "form-1",
		OwnerID:   1,
		FormTitle: "Contact",
		Fields: []formsettings.Field{
			{ID: "f_email", Type: "email", Label: "Email"},
			{ID: "f_name", Type: "text", Label: "Name"},
			{ID: "f_unused", Type: "text", Label: "Unused"},
		},
		SubmittedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		SubmissionID: "sub-1",
		IPAddress:    "203.0.113.1",
		Data: map[string]any{
			"f_name":  "Ann",
			"f_email": "ann@example.com",
			"extra":   "x",
		},
	}
}

func TestFormatPayloadUsesSchemaLabels(t *testing.T) {
	p := FormatPayload(sampleEvent())
	if p.Event != EventFormSubmitted || p.SubmittedAt != "2026-03-01T12:00:00Z" {
		t.Fatalf("unexpected envelope %+v", p)
	}
	if len(p.Fields) != 3 {
		t.Fatalf("expected 3 fields, got %+v", p.Fields)
	}
	if p.Fields[0].Label != "Email" || p.Fields[1].Label != "Name" || p.Fields[2].Label != "extra" {
		t.Fatalf("unexpected field order or labels %+v", p.Fields)
	}
}

func TestSign(t *testing.T) {
	got := Sign("secret", []byte(`{"a":1}`))
	if !strings.HasPrefix(got, "sha256=") || len(got) != len("sha256=")+64 {
		t.Fatalf("unexpected signature %q", got)
	}
	if got != Sign("secret", []byte(`{"a":1}`)) || got == Sign("other", []byte(`{"a":1}`)) {
		t.Fatalf("signature must depend on secret only")
	}
}

func TestWebhookSenderDeliversAndRecords(t *testing.T) {
	conn := openFanoutTestDB(t)

	var mu sync.Mutex
	var received []*http.Request
	var bodies [][]byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		received = append(received, r)
		bodies = append(bodies, body)
		mu.Unlock()
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	formID := "form-1"
	otherForm := "form-2"
	hooks := []models.Webhook{
		{UserID: 1, FormID: &formID, URL: srv.URL + "/ok", Secret: "s3cret", Events: datatypes.JSON(`["form_submitted"]`), Headers: datatypes.JSON(`{"X-Custom":"yes"}`), Enabled: true},
		{UserID: 1, URL: srv.URL + "/fail", Events: datatypes.JSON(`["form_submitted"]`), Enabled: true},
		{UserID: 1, FormID: &formID, URL: srv.URL + "/other-event", Events: datatypes.JSON(`["form_updated"]`), Enabled: true},
		{UserID: 1, FormID: &otherForm, URL: srv.URL + "/other-form", Events: datatypes.JSON(`["form_submitted"]`), Enabled: true},
		{UserID: 2, URL: srv.URL + "/other-owner", Events: datatypes.JSON(`["form_submitted"]`), Enabled: true},
	}
	for i := range hooks {
		if errCreate := conn.Create(&hooks[i]).Error; errCreate != nil {
			t.Fatalf("create webhook: %v", errCreate)
		}
	}
	disabled := models.Webhook{UserID: 1, FormID: &formID, URL: srv.URL + "/disabled", Events: datatypes.JSON(`["form_submitted"]`), Enabled: true}
	conn.Create(&disabled)
	conn.Model(&disabled).Update("enabled", false)

	ev := sampleEvent()
	sender := NewWebhookSender(conn, time.Second)
	if err := sender.Deliver(context.Background(), ev, FormatPayload(ev)); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if len(received) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(received))
	}
	for i, r := range received {
		if r.Header.Get(HeaderEvent) != EventFormSubmitted {
			t.Fatalf("missing event header")
		}
		if r.URL.Path == "/ok" {
			if r.Header.Get(HeaderSignature) != Sign("s3cret", bodies[i]) {
				t.Fatalf("bad signature header %q", r.Header.Get(HeaderSignature))
			}
			if r.Header.Get("X-Custom") != "yes" {
				t.Fatalf("custom header not applied")
			}
			var p Payload
			if errDecode := json.Unmarshal(bodies[i], &p); errDecode != nil || p.SubmissionID != "sub-1" {
				t.Fatalf("payload = %s (%v)", bodies[i], errDecode)
			}
		}
	}

	var deliveries []models.WebhookDelivery
	conn.Order("webhook_id ASC").Find(&deliveries)
	if len(deliveries) != 2 {
		t.Fatalf("expected 2 delivery rows, got %d", len(deliveries))
	}
	if !deliveries[0].Success || deliveries[0].StatusCode != http.StatusNoContent {
		t.Fatalf("first delivery = %+v", deliveries[0])
	}
	if deliveries[1].Success || deliveries[1].StatusCode != http.StatusInternalServerError || deliveries[1].Error == "" {
		t.Fatalf("second delivery = %+v", deliveries[1])
	}
}

func TestWebhookCustomHeadersCannotReplaceProtocolHeaders(t *testing.T) {
	conn := openFanoutTestDB(t)
	got := make(chan http.Header, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		got <- r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	formID := "form-1"
	custom := datatypes.JSON(`{"Content-Type":"text/plain","X-Formgate-Event":"spoofed","X-Formgate-Signature":"forged","X-Custom":"yes"}`)
	hooks := []models.Webhook{
		{UserID: 1, FormID: &formID, URL: srv.URL + "/signed", Secret: "s3cret", Events: datatypes.JSON(`["form_submitted"]`), Headers: custom, Enabled: true},
		{UserID: 1, FormID: &formID, URL: srv.URL + "/unsigned", Events: datatypes.JSON(`["form_submitted"]`), Headers: custom, Enabled: true},
	}
	for i := range hooks {
		if errCreate := conn.Create(&hooks[i]).Error; errCreate != nil {
			t.Fatalf("create webhook: %v", errCreate)
		}
	}

	ev := sampleEvent()
	if err := NewWebhookSender(conn, time.Second).Deliver(context.Background(), ev, FormatPayload(ev)); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	close(got)
	signed := 0
	for h := range got {
		if h.Get("Content-Type") != "application/json" || h.Get(HeaderEvent) != EventFormSubmitted {
			t.Fatalf("protocol headers replaced: %v", h)
		}
		if h.Get("X-Custom") != "yes" {
			t.Fatalf("custom header dropped: %v", h)
		}
		switch sig := h.Get(HeaderSignature); sig {
		case "forged":
			t.Fatalf("stored signature header was sent")
		case "":
		default:
			signed++
		}
	}
	if signed != 1 {
		t.Fatalf("expected one signed delivery, got %d", signed)
	}
}

func TestBuildMessageEncodesSubject(t *testing.T) {
	message, err := buildMessage("forms@example.com", Message{
		To:      "owner@example.com",
		Subject: "Nouvelle réponse\r\nBcc: victim@example.com",
		Body:    "line one\nline two",
	})
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}
	var buf bytes.Buffer
	if _, errWrite := message.WriteTo(&buf); errWrite != nil {
		t.Fatalf("WriteTo: %v", errWrite)
	}
	raw := buf.String()
	if strings.Contains(raw, "\r\nBcc:") {
		t.Fatalf("subject injected a header:\n%s", raw)
	}
	if !strings.Contains(strings.ToLower(raw), "subject: =?utf-8?") {
		t.Fatalf("subject not encoded:\n%s", raw)
	}
	if !strings.Contains(raw, "owner@example.com") || !strings.Contains(raw, "forms@example.com") {
		t.Fatalf("addresses missing:\n%s", raw)
	}

	if _, err = buildMessage("forms@example.com", Message{To: "not an address"}); err == nil {
		t.Fatalf("expected invalid recipient error")
	}
}

func TestNewMailer(t *testing.T) {
	if _, ok := NewMailer(config.SMTPConfig{}).(LogMailer); !ok {
		t.Fatalf("empty host should log notifications")
	}
	m, ok := NewMailer(config.SMTPConfig{Host: "smtp.example.com", Username: "bot@example.com"}).(*SMTPMailer)
	if !ok {
		t.Fatalf("host should build an SMTP mailer")
	}
	if m.from() != "bot@example.com" {
		t.Fatalf("from falls back to the username, got %q", m.from())
	}
	if n := len(m.clientOptions()); n != 6 {
		t.Fatalf("expected port, timeout, tls and auth options, got %d", n)
	}
}

func TestBuildNotification(t *testing.T) {
	ev := sampleEvent()
	ev.Notify = formsettings.Notifications{
		Enabled:     true,
		Email:       "owner@example.com",
		CustomLinks: []formsettings.NotificationLink{{Label: "CRM", URL: "https://crm.example.com"}},
	}
	msg := BuildNotification(ev, FormatPayload(ev), "https://forms.example.com/")
	if msg.To != "owner@example.com" || msg.Subject != "New Submission: Contact" {
		t.Fatalf("unexpected message header %+v", msg)
	}
	for _, want := range []string{
		"You have received a new submission on your form: Contact.",
		"Name: Ann",
		"https://forms.example.com/dashboard/forms/form-1/analytics",
		"CRM: https://crm.example.com",
	} {
		if !strings.Contains(msg.Body, want) {
			t.Fatalf("body missing %q:\n%s", want, msg.Body)
		}
	}

	ev.Notify.Subject = "Hi"
	ev.Notify.Message = "Custom intro"
	msg = BuildNotification(ev, FormatPayload(ev), "")
	if msg.Subject != "Hi" || !strings.HasPrefix(msg.Body, "Custom intro") {
		t.Fatalf("custom subject/message ignored: %+v", msg)
	}
}

type recordingDeliverer struct {
	mu     sync.Mutex
	events []Event
	done   chan struct{}
}

func (r *recordingDeliverer) Deliver(_ context.Context, ev Event, _ Payload) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	if r.done != nil {
		r.done <- struct{}{}
	}
	return fmt.Errorf("downstream unavailable")
}

type recordingMailer struct {
	mu   sync.Mutex
	msgs []Message
	done chan struct{}
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	m.msgs = append(m.msgs, msg)
	m.mu.Unlock()
	m.done <- struct{}{}
	return nil
}

func waitFor(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for fan-out task")
	}
}

func TestDispatcherRunsWebhookAndEmail(t *testing.T) {
	deliverer := &recordingDeliverer{done: make(chan struct{}, 1)}
	mailer := &recordingMailer{done: make(chan struct{}, 1)}
	d := NewDispatcher(deliverer, mailer, Options{
		Workers:  1,
		BaseURL:  func() string { return "https://forms.example.com" },
		SiteName: func() string { return "Acme Forms" },
	})
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	ev := sampleEvent()
	ev.Notify = formsettings.Notifications{Enabled: true, Email: "owner@example.com"}
	if !d.Dispatch(ev) {
		t.Fatalf("dispatch rejected")
	}
	waitFor(t, deliverer.done)
	waitFor(t, mailer.done)
	cancel()
	d.Wait()

	if len(mailer.msgs) != 1 || !strings.Contains(mailer.msgs[0].Body, "https://forms.example.com/dashboard/forms/form-1/analytics") {
		t.Fatalf("unexpected mail %+v", mailer.msgs)
	}
	if !strings.HasSuffix(mailer.msgs[0].Body, "-- \nAcme Forms\n") {
		t.Fatalf("missing signature in %q", mailer.msgs[0].Body)
	}
}

func TestDispatcherSkipsEmailWithoutAddress(t *testing.T) {
	deliverer := &recordingDeliverer{done: make(chan struct{}, 1)}
	mailer := &recordingMailer{done: make(chan struct{}, 1)}
	d := NewDispatcher(deliverer, mailer, Options{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	ev := sampleEvent()
	ev.Notify = formsettings.Notifications{Enabled: true}
	d.Dispatch(ev)
	waitFor(t, deliverer.done)
	cancel()
	d.Wait()

	if len(mailer.msgs) != 0 {
		t.Fatalf("mail sent without address: %+v", mailer.msgs)
	}
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	deliverer := &recordingDeliverer{}
	d := NewDispatcher(deliverer, nil, Options{Workers: 1, QueueSize: 1})

	if !d.Dispatch(sampleEvent()) {
		t.Fatalf("first event should be queued")
	}
	if d.Dispatch(sampleEvent()) {
		t.Fatalf("second event should be dropped while the queue is full")
	}
}

func TestNilDispatcher(t *testing.T) {
	var d *Dispatcher
	if d.Dispatch(sampleEvent()) {
		t.Fatalf("nil dispatcher must not accept events")
	}
	d.Start(context.Background())
	d.Wait()
}

package fanout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/formgate/formgate/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends notification emails.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// NewMailer returns an SMTP mailer, or a LogMailer when no host is configured.
func NewMailer(cfg config.SMTPConfig) Mailer {
	if strings.TrimSpace(cfg.Host) == "" {
		return LogMailer{}
	}
	return &SMTPMailer{cfg: cfg}
}

// LogMailer writes notifications to the log instead of sending them.
type LogMailer struct{}

// Send implements Mailer.
func (LogMailer) Send(_ context.Context, msg Message) error {
	log.WithFields(log.Fields{"to": msg.To, "subject": msg.Subject}).Info("fanout: smtp not configured, notification logged")
	return nil
}

// SMTPMailer delivers through an SMTP relay with optional PLAIN auth.
// STARTTLS is used when the relay offers it; port 465 uses implicit TLS.
type SMTPMailer struct {
	cfg config.SMTPConfig
}

// Send implements Mailer. The context bounds the whole exchange and the
// configured timeout bounds each connection step.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	message, errBuild := buildMessage(m.from(), msg)
	if errBuild != nil {
		return fmt.Errorf("fanout: build mail: %w", errBuild)
	}
	client, errClient := mail.NewClient(m.cfg.Host, m.clientOptions()...)
	if errClient != nil {
		return fmt.Errorf("fanout: smtp client: %w", errClient)
	}
	if errSend := client.DialAndSendWithContext(ctx, message); errSend != nil {
		return fmt.Errorf("fanout: smtp send: %w", errSend)
	}
	return nil
}

func (m *SMTPMailer) from() string {
	if m.cfg.From != "" {
		return m.cfg.From
	}
	return m.cfg.Username
}

func (m *SMTPMailer) clientOptions() []mail.Option {
	port := m.cfg.Port
	if port <= 0 {
		port = 587
	}
	timeout := m.cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opts := []mail.Option{mail.WithPort(port), mail.WithTimeout(timeout)}
	if port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	return opts
}

// buildMessage renders msg as a plain-text UTF-8 email. Header values are
// encoded by the mail library.
func buildMessage(from string, msg Message) (*mail.Msg, error) {
	message := mail.NewMsg()
	if errFrom := message.From(from); errFrom != nil {
		return nil, fmt.Errorf("from: %w", errFrom)
	}
	if errTo := message.To(msg.To); errTo != nil {
		return nil, fmt.Errorf("to: %w", errTo)
	}
	message.Subject(msg.Subject)
	message.SetDate()
	message.SetBodyString(mail.TypeTextPlain, msg.Body)
	return message, nil
}

// BuildNotification renders the owner notification for ev. Subject and
// message fall back to text derived from the form title.
func BuildNotification(ev Event, payload Payload, baseURL string) Message {
	title := ev.FormTitle
	subject := strings.TrimSpace(ev.Notify.Subject)
	if subject == "" {
		subject = "New Submission: " + title
	}
	intro := strings.TrimSpace(ev.Notify.Message)
	if intro == "" {
		intro = "You have received a new submission on your form: " + title + "."
	}

	var b strings.Builder
	b.WriteString(intro)
	b.WriteString("\n\n")
	for _, f := range payload.Fields {
		fmt.Fprintf(&b, "%s: %v\n", f.Label, f.Value)
	}
	b.WriteString("\nView analytics: ")
	b.WriteString(AnalyticsURL(baseURL, ev.FormID))
	b.WriteString("\n")
	for _, link := range ev.Notify.CustomLinks {
		if strings.TrimSpace(link.URL) == "" {
			continue
		}
		label := strings.TrimSpace(link.Label)
		if label == "" {
			label = link.URL
		}
		fmt.Fprintf(&b, "%s: %s\n", label, link.URL)
	}
	return Message{To: strings.TrimSpace(ev.Notify.Email), Subject: subject, Body: b.String()}
}

// AnalyticsURL links to the form's analytics dashboard.
func AnalyticsURL(baseURL, formID string) string {
	return strings.TrimRight(baseURL, "/") + "/dashboard/forms/" + formID + "/analytics"
}

// Package delivery sends rendered reports to client recipients over SMTP.
package delivery

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/wneessen/go-mail"
)

// Document is the deliverable: either the PDF bytes (sent as an attachment)
// or a pre-hosted URL (sent as a download link). Exactly one should be set;
// the caller chooses based on whether the archival upload succeeded.
type Document struct {
	PDF []byte
	URL string
}

// Receipt acknowledges a handed-off message.
type Receipt struct {
	MessageID string
	SentAt    time.Time
}

// DeliveryError wraps mail transport failures.
type DeliveryError struct {
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver report to %s: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// SMTPConfig holds mail transport settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer sends weekly report emails. The underlying SMTP client is
// provisioned lazily on first use and reused for the process lifetime; sends
// are serialised so concurrent jobs can share it safely.
type Mailer struct {
	cfg    SMTPConfig
	logger *log.Logger

	mu     sync.Mutex
	client *mail.Client
}

// NewMailer constructs a Mailer. No connection is made until the first send.
func NewMailer(cfg SMTPConfig) *Mailer {
	return &Mailer{
		cfg:    cfg,
		logger: log.New(log.Writer(), "[mail] ", log.LstdFlags),
	}
}

// SendWeeklyReport emails the report to the recipient, attaching the PDF or
// linking the hosted document.
func (m *Mailer) SendWeeklyReport(ctx context.Context, to, projectName string, doc Document, dateRange string) (*Receipt, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, &DeliveryError{Recipient: to, Err: err}
	}
	if err := msg.To(to); err != nil {
		return nil, &DeliveryError{Recipient: to, Err: err}
	}
	msg.SetMessageID()
	msg.Subject(fmt.Sprintf("Weekly Report: %s (%s)", projectName, dateRange))
	msg.SetBodyString(mail.TypeTextPlain,
		fmt.Sprintf("Your weekly progress report for %s is ready.", projectName))
	msg.AddAlternativeString(mail.TypeTextHTML, reportBody(projectName, dateRange, doc))

	if doc.URL == "" && len(doc.PDF) > 0 {
		filename := fmt.Sprintf("Report-%s-%d.pdf", strings.ReplaceAll(projectName, " ", "-"), time.Now().Unix())
		if err := msg.AttachReader(filename, bytes.NewReader(doc.PDF)); err != nil {
			return nil, &DeliveryError{Recipient: to, Err: err}
		}
	}

	client, err := m.transport()
	if err != nil {
		return nil, &DeliveryError{Recipient: to, Err: err}
	}

	m.mu.Lock()
	err = client.DialAndSendWithContext(ctx, msg)
	m.mu.Unlock()
	if err != nil {
		return nil, &DeliveryError{Recipient: to, Err: err}
	}

	receipt := &Receipt{MessageID: msg.GetMessageID(), SentAt: time.Now().UTC()}
	m.logger.Printf("report email sent (to=%s, message=%s)", to, receipt.MessageID)
	return receipt, nil
}

// transport returns the shared SMTP client, building it on first use.
func (m *Mailer) transport() (*mail.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		return m.client, nil
	}

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return nil, err
	}
	m.client = client
	return client, nil
}

func reportBody(projectName, dateRange string, doc Document) string {
	var b strings.Builder
	b.WriteString(`<div style="font-family: sans-serif; padding: 20px;">`)
	b.WriteString("<h2>Weekly Report Ready</h2>")
	fmt.Fprintf(&b, "<p>Here is your progress report for <strong>%s</strong> covering %s.</p>", projectName, dateRange)
	if doc.URL != "" {
		fmt.Fprintf(&b, `<p>You can download the PDF here: <a href="%s">Download Report</a></p>`, doc.URL)
	} else {
		b.WriteString("<p>Please find the PDF attached.</p>")
	}
	b.WriteString(`<br><p style="color: #666; font-size: 12px;">Powered by WorkLoop</p></div>`)
	return b.String()
}

// Package report e-mails attendance exports through SendGrid.
package report

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"net/mail"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/example/geo-attendance/internal/application"
)

const defaultSenderName = "Attendance"

// Sender delivers a prepared message. *sendgrid.Client satisfies it.
type Sender interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

// Config identifies the sender and the recipients of reports.
type Config struct {
	From       string
	FromName   string
	Recipients []string
}

// Mailer implements application.ReportMailer on top of SendGrid.
type Mailer struct {
	sender Sender
	from   *sgmail.Email
	to     []*sgmail.Email
}

// NewSendGridMailer returns a Mailer backed by the SendGrid API client.
func NewSendGridMailer(apiKey string, cfg Config) (*Mailer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("report: sendgrid api key is required")
	}
	return NewMailer(sendgrid.NewSendClient(apiKey), cfg)
}

// NewMailer returns a Mailer that sends through sender.
func NewMailer(sender Sender, cfg Config) (*Mailer, error) {
	if sender == nil {
		return nil, errors.New("report: sender is required")
	}
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("report: invalid from address %q: %w", cfg.From, err)
	}
	if len(cfg.Recipients) == 0 {
		return nil, errors.New("report: at least one recipient is required")
	}

	name := cfg.FromName
	if name == "" {
		name = from.Name
	}
	if name == "" {
		name = defaultSenderName
	}

	m := &Mailer{sender: sender, from: sgmail.NewEmail(name, from.Address)}
	for _, raw := range cfg.Recipients {
		addr, err := mail.ParseAddress(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("report: invalid recipient %q: %w", raw, err)
		}
		m.to = append(m.to, sgmail.NewEmail(addr.Name, addr.Address))
	}
	return m, nil
}

// SendReport mails the export as a CSV attachment.
func (m *Mailer) SendReport(ctx context.Context, report application.Report) error {
	message := sgmail.NewV3Mail()
	message.SetFrom(m.from)
	message.Subject = report.Subject

	personalization := sgmail.NewPersonalization()
	personalization.AddTos(m.to...)
	message.AddPersonalizations(personalization)

	message.AddContent(
		sgmail.NewContent("text/plain", report.Summary),
		sgmail.NewContent("text/html", "<p>"+html.EscapeString(report.Summary)+"</p>"),
	)

	attachment := sgmail.NewAttachment()
	attachment.SetContent(base64.StdEncoding.EncodeToString(report.Export.Body))
	attachment.SetType(report.Export.ContentType)
	attachment.SetFilename(report.Export.Filename)
	attachment.SetDisposition("attachment")
	message.AddAttachment(attachment)

	response, err := m.sender.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("report: send: %w", err)
	}
	if response.StatusCode >= 300 {
		return fmt.Errorf("report: sendgrid responded %d: %s", response.StatusCode, response.Body)
	}
	return nil
}

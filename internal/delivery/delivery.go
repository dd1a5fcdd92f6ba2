// Package delivery sends rendered reports to their owners by email.
package delivery

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/web"
)

// Message is one outbound email with a single attachment held in memory.
type Message struct {
	From           string
	To             string
	Subject        string
	HTMLBody       string
	AttachmentName string
	Attachment     []byte
	ContentType    string
}

// Transport hands a message to an email service.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Dispatcher reads attachments from disk and passes complete messages to
// its transport.
type Dispatcher struct {
	transport Transport
	from      string
	logger    *log.Logger
}

func NewDispatcher(t Transport, from string, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{transport: t, from: from, logger: logger.WithComponent(log.ComponentDelivery)}
}

// Send emails attachmentPath to one recipient. Failures wrap
// core.ErrDeliveryFailed and concern only this recipient.
func (d *Dispatcher) Send(ctx context.Context, subject, htmlBody, to, attachmentPath, attachmentName string) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("%w: empty recipient", core.ErrDeliveryFailed)
	}
	data, err := os.ReadFile(attachmentPath)
	if err != nil {
		return fmt.Errorf("%w: read attachment: %v", core.ErrDeliveryFailed, err)
	}
	msg := Message{
		From:           d.from,
		To:             to,
		Subject:        subject,
		HTMLBody:       htmlBody,
		AttachmentName: attachmentName,
		Attachment:     data,
		ContentType:    contentTypeFor(attachmentName),
	}
	if err := d.transport.Send(ctx, msg); err != nil {
		d.logger.WarnContext(ctx, "Email not sent",
			log.FieldOperation, log.OpSend,
			log.FieldRecipient, to,
			log.FieldError, err)
		return fmt.Errorf("%w: %v", core.ErrDeliveryFailed, err)
	}
	d.logger.InfoContext(ctx, "Email sent",
		log.FieldOperation, log.OpSend,
		log.FieldRecipient, to,
		"attachment_bytes", len(data))
	return nil
}

func contentTypeFor(name string) string {
	switch {
	case strings.HasSuffix(name, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(name, ".xlsx"):
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}

var templates = template.Must(template.ParseFS(web.TemplatesFS, "templates/*.html"))

// MonthlyEmail is the content of the automated monthly report email.
type MonthlyEmail struct {
	Subject        string
	HTMLBody       string
	AttachmentName string
}

// ComposeMonthly renders the subject, body and attachment name for one
// user's monthly report.
func ComposeMonthly(user core.User, ledger core.Ledger, period core.Period, ext string) (MonthlyEmail, error) {
	var body bytes.Buffer
	err := templates.ExecuteTemplate(&body, "monthly_report", struct {
		Username   string
		LedgerName string
		Period     string
	}{user.Username, ledger.Name, period.String()})
	if err != nil {
		return MonthlyEmail{}, fmt.Errorf("render email body: %w", err)
	}
	return MonthlyEmail{
		Subject:        fmt.Sprintf("Monthly Financial Report - %s", period),
		HTMLBody:       body.String(),
		AttachmentName: fmt.Sprintf("Monthly Financial Report - %s (%s)%s", ledger.Name, period, ext),
	}, nil
}

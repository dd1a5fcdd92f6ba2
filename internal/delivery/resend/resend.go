// Package resend delivers report emails through the Resend HTTP API.
package resend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/resend/resend-go/v2"

	"fintrack/internal/delivery"
	"fintrack/internal/log"
)

type Transport struct {
	client *resend.Client
	logger *log.Logger
}

type Option func(*Transport)

// WithBaseURL points the client at another API endpoint.
func WithBaseURL(u *url.URL) Option {
	return func(t *Transport) { t.client.BaseURL = u }
}

func New(apiKey string, logger *log.Logger, opts ...Option) (*Transport, error) {
	if apiKey == "" {
		return nil, errors.New("resend: api key is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	t := &Transport{
		client: resend.NewCustomClient(&http.Client{Timeout: 30 * time.Second}, apiKey),
		logger: logger.WithComponent(log.ComponentDelivery),
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Send posts one message. The idempotency key is derived from recipient,
// subject and attachment name, so a retried batch message is not mailed
// twice.
func (t *Transport) Send(ctx context.Context, msg delivery.Message) error {
	req := &resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTMLBody,
	}
	if len(msg.Attachment) > 0 {
		req.Attachments = []*resend.Attachment{{
			Content:     msg.Attachment,
			Filename:    msg.AttachmentName,
			ContentType: msg.ContentType,
		}}
	}
	sent, err := t.client.Emails.SendWithOptions(ctx, req, &resend.SendEmailOptions{
		IdempotencyKey: idempotencyKey(msg),
	})
	if err != nil {
		if errors.Is(err, resend.ErrRateLimit) {
			return fmt.Errorf("resend rate limited: %w", err)
		}
		return fmt.Errorf("resend send: %w", err)
	}
	t.logger.DebugContext(ctx, "Resend accepted message",
		log.FieldRecipient, msg.To,
		log.FieldMessageID, sent.Id)
	return nil
}

func idempotencyKey(msg delivery.Message) string {
	sum := sha256.Sum256([]byte(msg.To + "\x00" + msg.Subject + "\x00" + msg.AttachmentName))
	return "fintrack-" + hex.EncodeToString(sum[:16])
}

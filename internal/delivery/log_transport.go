package delivery

import (
	"context"
	"sync"

	"fintrack/internal/log"
)

// LogTransport records messages instead of sending them. It backs the
// "log" mail transport in development.
type LogTransport struct {
	logger *log.Logger

	mu   sync.Mutex
	sent []Message
}

func NewLogTransport(logger *log.Logger) *LogTransport {
	if logger == nil {
		logger = log.Default()
	}
	return &LogTransport{logger: logger.WithComponent(log.ComponentDelivery)}
}

func (t *LogTransport) Send(ctx context.Context, msg Message) error {
	t.mu.Lock()
	t.sent = append(t.sent, msg)
	t.mu.Unlock()
	t.logger.InfoContext(ctx, "Email captured",
		log.FieldRecipient, msg.To,
		"subject", msg.Subject,
		"attachment", msg.AttachmentName,
		"attachment_bytes", len(msg.Attachment))
	return nil
}

// Sent returns a copy of the captured messages.
func (t *LogTransport) Sent() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.sent...)
}

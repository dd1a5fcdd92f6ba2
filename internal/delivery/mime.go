package delivery

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// NewMail converts msg into a go-mail message: an HTML body and one
// attachment, dated now.
func NewMail(msg Message, now time.Time) (*mail.Msg, error) {
	m := mail.NewMsg(mail.WithNoDefaultUserAgent())
	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDateWithValue(now)
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)

	if len(msg.Attachment) > 0 {
		ct := msg.ContentType
		if ct == "" {
			ct = string(mail.TypeAppOctetStream)
		}
		err := m.AttachReader(msg.AttachmentName, bytes.NewReader(msg.Attachment),
			mail.WithFileContentType(mail.ContentType(ct)))
		if err != nil {
			return nil, fmt.Errorf("attach %s: %w", msg.AttachmentName, err)
		}
	}
	return m, nil
}

// BuildMIME encodes msg as a multipart/mixed RFC 5322 message.
func BuildMIME(msg Message, now time.Time) ([]byte, error) {
	m, err := NewMail(msg, now)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return buf.Bytes(), nil
}

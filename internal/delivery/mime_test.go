package delivery

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"
)

func TestBuildMIMERoundTrip(t *testing.T) {
	raw, err := BuildMIME(Message{
		From:           "reports@fintrack.app",
		To:             "a@example.com",
		Subject:        "Monthly Financial Report - March 2024",
		HTMLBody:       "<p>Hello</p>",
		AttachmentName: "Monthly Financial Report - Main (March 2024).pdf",
		Attachment:     bytes.Repeat([]byte("%PDF"), 100),
		ContentType:    "application/pdf",
	}, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("BuildMIME: %v", err)
	}

	m, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	subject, _ := new(mime.WordDecoder).DecodeHeader(m.Header.Get("Subject"))
	if subject != "Monthly Financial Report - March 2024" {
		t.Fatalf("unexpected subject %q", subject)
	}
	mediaType, params, err := mime.ParseMediaType(m.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/mixed" {
		t.Fatalf("unexpected content type %q (%v)", mediaType, err)
	}

	mr := multipart.NewReader(m.Body, params["boundary"])
	var parts []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart: %v", err)
		}
		parts = append(parts, p.Header.Get("Content-Type"))
		if strings.HasPrefix(p.Header.Get("Content-Disposition"), "attachment") && p.FileName() != "Monthly Financial Report - Main (March 2024).pdf" {
			t.Fatalf("unexpected attachment name %q", p.FileName())
		}
	}
	if len(parts) != 2 || !strings.HasPrefix(parts[0], "text/html") || !strings.HasPrefix(parts[1], "application/pdf") {
		t.Fatalf("unexpected parts %v", parts)
	}
	if date, err := m.Header.Date(); err != nil || !date.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date %v (%v)", date, err)
	}
}

func TestBuildMIMEEncodesNonASCIISubject(t *testing.T) {
	raw, err := BuildMIME(Message{
		From:     "reports@fintrack.app",
		To:       "a@example.com",
		Subject:  "Rapport financier - Février 2024",
		HTMLBody: "<p>Bonjour</p>",
	}, time.Now())
	if err != nil {
		t.Fatalf("BuildMIME: %v", err)
	}
	m, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if strings.Contains(m.Header.Get("Subject"), "é") {
		t.Fatalf("subject not encoded: %q", m.Header.Get("Subject"))
	}
	subject, _ := new(mime.WordDecoder).DecodeHeader(m.Header.Get("Subject"))
	if subject != "Rapport financier - Février 2024" {
		t.Fatalf("unexpected subject %q", subject)
	}
}

func TestBuildMIMERejectsBadAddress(t *testing.T) {
	_, err := BuildMIME(Message{From: "reports@fintrack.app", To: "not an address"}, time.Now())
	if err == nil {
		t.Fatal("expected an address error")
	}
}

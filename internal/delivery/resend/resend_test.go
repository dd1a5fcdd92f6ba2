package resend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/resend/resend-go/v2"

	"fintrack/internal/delivery"
	"fintrack/internal/log"
)

func newTestTransport(t *testing.T, h http.HandlerFunc) *Transport {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	u, _ := url.Parse(srv.URL + "/")
	tr, err := New("re_test", log.Discard(), WithBaseURL(u))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

var report = delivery.Message{
	From:           "reports@fintrack.app",
	To:             "a@example.com",
	Subject:        "Monthly Financial Report - March 2024",
	HTMLBody:       "<p>Hello</p>",
	AttachmentName: "report.pdf",
	Attachment:     []byte("%PDF"),
	ContentType:    "application/pdf",
}

func TestSend(t *testing.T) {
	var gotPath, gotAuth, gotKey string
	var body struct {
		From        string   `json:"from"`
		To          []string `json:"to"`
		Subject     string   `json:"subject"`
		HTML        string   `json:"html"`
		Attachments []struct {
			Content     []int  `json:"content"`
			Filename    string `json:"filename"`
			ContentType string `json:"content_type"`
		} `json:"attachments"`
	}
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("Idempotency-Key")
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"em_1"}`))
	})

	if err := tr.Send(context.Background(), report); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotPath != "/emails" || gotAuth != "Bearer re_test" {
		t.Fatalf("unexpected request %s with %q", gotPath, gotAuth)
	}
	if gotKey != idempotencyKey(report) {
		t.Fatalf("idempotency key %q", gotKey)
	}
	if body.From != report.From || len(body.To) != 1 || body.To[0] != report.To || body.HTML != report.HTMLBody {
		t.Fatalf("unexpected payload %+v", body)
	}
	if len(body.Attachments) != 1 || body.Attachments[0].Filename != "report.pdf" ||
		body.Attachments[0].ContentType != "application/pdf" || len(body.Attachments[0].Content) != 4 {
		t.Fatalf("unexpected attachment %+v", body.Attachments)
	}
}

func TestSendFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		rateLimit bool
	}{
		{"rejected", http.StatusUnprocessableEntity, false},
		{"rate limited", http.StatusTooManyRequests, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprintf(w, `{"statusCode":%d,"name":"error","message":"refused"}`, tt.status)
			})
			err := tr.Send(context.Background(), report)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), "refused") {
				t.Fatalf("api message lost: %v", err)
			}
			if got := errors.Is(err, resend.ErrRateLimit); got != tt.rateLimit {
				t.Fatalf("rate limit detection = %v for %v", got, err)
			}
		})
	}
}

func TestIdempotencyKeyDistinguishesReports(t *testing.T) {
	other := report
	other.AttachmentName = "report-2.pdf"
	if idempotencyKey(report) == idempotencyKey(other) {
		t.Fatal("different attachments share an idempotency key")
	}
	if idempotencyKey(report) != idempotencyKey(report) {
		t.Fatal("key is not stable")
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New("", log.Discard()); err == nil {
		t.Fatal("expected error without api key")
	}
}

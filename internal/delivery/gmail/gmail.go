// Package gmail delivers report emails through the Gmail API.
package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"fintrack/internal/delivery"
	"fintrack/internal/log"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gm "google.golang.org/api/gmail/v1"
	goption "google.golang.org/api/option"
)

// Credentials selects how the transport authenticates. Exactly one of
// ServiceAccountJSON or (OAuthClientJSON, TokenFile) must be set.
type Credentials struct {
	// ServiceAccountJSON is a service account key with domain-wide
	// delegation. Subject is the mailbox it impersonates.
	ServiceAccountJSON []byte
	Subject            string

	// OAuthClientJSON and TokenFile come from the oauth-init tool.
	OAuthClientJSON []byte
	TokenFile       string
}

type Transport struct {
	svc    *gm.Service
	logger *log.Logger
	now    func() time.Time
}

// New builds a Gmail transport from credentials. Extra client options are
// appended last, which lets tests point the service at a local endpoint.
func New(ctx context.Context, creds Credentials, logger *log.Logger, opts ...goption.ClientOption) (*Transport, error) {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithComponent(log.ComponentDelivery)

	base, err := httpClient(ctx, creds)
	if err != nil {
		return nil, err
	}
	all := append([]goption.ClientOption{goption.WithHTTPClient(base)}, opts...)
	svc, err := gm.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	logger.Info("Gmail transport ready", "mode", creds.mode())
	return &Transport{svc: svc, logger: logger, now: time.Now}, nil
}

func (c Credentials) mode() string {
	if len(c.ServiceAccountJSON) > 0 {
		return "service_account"
	}
	return "oauth_token"
}

func httpClient(ctx context.Context, creds Credentials) (*http.Client, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, pooledClient())
	switch {
	case len(creds.ServiceAccountJSON) > 0:
		cfg, err := google.JWTConfigFromJSON(creds.ServiceAccountJSON, gm.GmailSendScope)
		if err != nil {
			return nil, fmt.Errorf("parse service account: %w", err)
		}
		cfg.Subject = creds.Subject
		return cfg.Client(ctx), nil
	case len(creds.OAuthClientJSON) > 0:
		cfg, err := google.ConfigFromJSON(creds.OAuthClientJSON, gm.GmailSendScope)
		if err != nil {
			return nil, fmt.Errorf("parse oauth client: %w", err)
		}
		tok, err := LoadToken(creds.TokenFile)
		if err != nil {
			return nil, err
		}
		return cfg.Client(ctx, tok), nil
	default:
		return nil, errors.New("missing gmail credentials (set a service account or an oauth client with token file)")
	}
}

// LoadToken reads a token saved by oauth-init.
func LoadToken(path string) (*oauth2.Token, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("missing oauth token file")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	return &tok, nil
}

// pooledClient keeps connections to Google warm across a batch.
func pooledClient() *http.Client {
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

func (t *Transport) Send(ctx context.Context, msg delivery.Message) error {
	raw, err := delivery.BuildMIME(msg, t.now())
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}
	sent, err := t.svc.Users.Messages.
		Send("me", &gm.Message{Raw: base64.URLEncoding.EncodeToString(raw)}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("gmail send: %w", err)
	}
	t.logger.DebugContext(ctx, "Gmail accepted message",
		log.FieldRecipient, msg.To,
		log.FieldMessageID, sent.Id)
	return nil
}

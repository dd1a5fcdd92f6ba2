// Package smtp delivers report emails over implicit-TLS SMTP, the way
// Gmail and most providers expose port 465.
package smtp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"fintrack/internal/delivery"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// StartTLS switches from implicit TLS to mandatory STARTTLS on a plain
	// connection (port 587).
	StartTLS bool
	Timeout  time.Duration
}

type Transport struct {
	cfg Config
	// dial replaces the TLS dialer; nil dials the configured host.
	dial mail.DialContextFunc
	now  func() time.Time
}

func New(cfg Config) (*Transport, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp: host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = mail.DefaultPortSSL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Transport{cfg: cfg, now: time.Now}, nil
}

func (t *Transport) options() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(t.cfg.Port),
		mail.WithTimeout(t.cfg.Timeout),
	}
	if t.cfg.StartTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithSSL())
	}
	if t.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(t.cfg.Username),
			mail.WithPassword(t.cfg.Password))
	}
	if t.dial != nil {
		opts = append(opts, mail.WithDialContextFunc(t.dial))
	}
	return opts
}

// Send opens one connection per message. The batch pool bounds how many
// are open at once.
func (t *Transport) Send(ctx context.Context, msg delivery.Message) error {
	m, err := delivery.NewMail(msg, t.now())
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}
	client, err := mail.NewClient(t.cfg.Host, t.options()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp %s: %w", client.ServerAddr(), err)
	}
	return nil
}

package notifications

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/smtp"
	"strings"

	"marketplace/internal/config"
	"marketplace/internal/services"
)

// Message is one outgoing e-mail.
type Message struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// Validate reports whether the message can be delivered.
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return services.Wrap(services.ErrValidation, "mail", "validate", "message has no recipients", nil)
	}
	for _, addr := range m.To {
		if !strings.Contains(addr, "@") {
			return services.Wrap(services.ErrValidation, "mail", "validate", fmt.Sprintf("invalid recipient %q", addr), nil)
		}
	}
	if strings.TrimSpace(m.Subject) == "" {
		return services.Wrap(services.ErrValidation, "mail", "validate", "message has no subject", nil)
	}
	return nil
}

// Mailer delivers e-mail.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// NewMailer picks SMTP, then ntfy, then a mailer that discards messages.
func NewMailer(cfg *config.Config) Mailer {
	if addr := strings.TrimSpace(cfg.Mail.SMTPAddr); addr != "" {
		return &smtpMailer{
			addr:     addr,
			from:     cfg.Mail.From,
			username: cfg.Mail.Username,
			password: cfg.Mail.Password,
			send:     smtp.SendMail,
		}
	}
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		return &ntfyMailer{endpoint: topic, client: &http.Client{Timeout: requestTimeout(cfg)}}
	}
	return noopMailer{}
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type smtpMailer struct {
	addr     string
	from     string
	username string
	password string
	send     sendFunc
}

func (s *smtpMailer) Name() string { return "smtp" }

func (s *smtpMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if s.username != "" {
		host, _, err := net.SplitHostPort(s.addr)
		if err != nil {
			return services.Wrap(services.ErrConfiguration, "mail", "smtp", "invalid mail.smtp_addr", err)
		}
		auth = smtp.PlainAuth("", s.username, s.password, host)
	}
	if err := s.send(s.addr, auth, s.from, msg.To, s.render(msg)); err != nil {
		return services.Wrap(services.ErrTransient, "mail", "smtp", "deliver message", err)
	}
	return nil
}

func (s *smtpMailer) render(msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + s.from + "\r\n")
	b.WriteString("To: " + strings.Join(msg.To, ", ") + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(msg.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

func sanitizeHeader(value string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
}

type ntfyMailer struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyMailer) Name() string { return "ntfy" }

func (n *ntfyMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	err := postNtfy(ctx, n.client, n.endpoint, payload{
		title:   sanitizeHeader(msg.Subject),
		message: "To: " + strings.Join(msg.To, ", ") + "\n\n" + msg.Body,
		tags:    []string{"marketplace", "mail"},
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return services.Wrap(services.ErrTransient, "mail", "ntfy", "deliver message", err)
	}
	return err
}

type noopMailer struct{}

func (noopMailer) Name() string { return "noop" }

func (noopMailer) Send(_ context.Context, msg Message) error { return msg.Validate() }

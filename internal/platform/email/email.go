package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"workforce/internal/domain/notifications"
	"workforce/internal/platform/config"
)

type noopMailer struct{}

func (noopMailer) Send(ctx context.Context, from, to, subject, body string) error {
	return nil
}

type smtpMailer struct {
	host     string
	port     int
	user     string
	password string
	useTLS   bool
}

// New returns an SMTP mailer when e-mail is enabled and a no-op mailer otherwise.
func New(cfg config.Config) notifications.Mailer {
	if !cfg.EmailEnabled || cfg.SMTPHost == "" {
		return noopMailer{}
	}
	return &smtpMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		useTLS:   cfg.SMTPUseTLS,
	}
}

func (s *smtpMailer) Send(ctx context.Context, from, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return nil
	}
	addr := net.JoinHostPort(s.host, fmt.Sprint(s.port))

	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return goerr.Wrap(err, "failed to dial smtp server", goerr.V("addr", addr))
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return goerr.Wrap(err, "failed to start smtp session")
	}
	defer client.Close()

	if s.useTLS {
		if err := client.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return goerr.Wrap(err, "failed to start tls")
		}
	}
	if s.user != "" {
		if err := client.Auth(smtp.PlainAuth("", s.user, s.password, s.host)); err != nil {
			return goerr.Wrap(err, "smtp auth failed")
		}
	}

	if err := client.Mail(from); err != nil {
		return goerr.Wrap(err, "smtp MAIL FROM rejected", goerr.V("from", from))
	}
	if err := client.Rcpt(to); err != nil {
		return goerr.Wrap(err, "smtp RCPT TO rejected", goerr.V("to", to))
	}
	w, err := client.Data()
	if err != nil {
		return goerr.Wrap(err, "smtp DATA failed")
	}
	if _, err := w.Write(BuildMessage(from, to, subject, body)); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write message")
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finish message")
	}
	return client.Quit()
}

func BuildMessage(from, to, subject, body string) []byte {
	headers := []string{
		"From: " + from,
		"To: " + to,
		"Subject: " + strings.ReplaceAll(subject, "\n", " "),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
	}
	return []byte(strings.Join(headers, "\r\n") + "\r\n" + body)
}

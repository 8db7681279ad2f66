// internal/app/system/mailer/mailer.go
package mailer

import (
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// Email is a single outbound message with both text and HTML bodies.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Config holds SMTP settings.
type Config struct {
	Host     string // e.g., localhost for Mailpit, email-smtp.us-east-1.amazonaws.com for SES
	Port     int    // e.g., 1025 for Mailpit, 587 for SES
	User     string // empty for Mailpit
	Pass     string
	From     string // e.g., noreply@taskhub.app
	FromName string // e.g., TaskHub
}

// Mailer sends email over SMTP.
type Mailer struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a Mailer. It does not dial; connection problems surface on Send.
func New(cfg Config, logger *zap.Logger) *Mailer {
	return &Mailer{cfg: cfg, logger: logger}
}

// Send delivers the email. Auth is skipped when no SMTP user is
// configured (local Mailpit-style servers reject AUTH).
func (m *Mailer) Send(e Email) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	}

	msg := m.buildMessage(e)
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{e.To}, msg); err != nil {
		m.logger.Error("failed to send email",
			zap.String("to", e.To),
			zap.String("subject", e.Subject),
			zap.Error(err))
		return fmt.Errorf("send email: %w", err)
	}

	m.logger.Info("email sent",
		zap.String("to", e.To),
		zap.String("subject", e.Subject))
	return nil
}

const mimeBoundary = "taskhub-alt-boundary"

// buildMessage assembles a multipart/alternative MIME message so mail
// clients can pick the text or HTML body.
func (m *Mailer) buildMessage(e Email) []byte {
	var b strings.Builder

	from := m.cfg.From
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", m.cfg.FromName), m.cfg.From)
	}

	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", e.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", e.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", mimeBoundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(e.TextBody)
	b.WriteString("\r\n")

	if e.HTMLBody != "" {
		fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
		b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		b.WriteString(e.HTMLBody)
		b.WriteString("\r\n")
	}

	fmt.Fprintf(&b, "--%s--\r\n", mimeBoundary)
	return []byte(b.String())
}

// Package mail delivers verification codes. The core treats delivery as
// fire-and-forget: a failure surfaces as one infrastructure error and is
// never retried here.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// Sender delivers a verification code to an email address.
type Sender interface {
	SendCode(ctx context.Context, email, code string) error
}

// SMTPSender sends codes over plain SMTP with optional AUTH.
type SMTPSender struct {
	addr string
	auth smtp.Auth
	from string
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender constructs a sender for the given host:port. username may be
// empty for unauthenticated relays.
func NewSMTPSender(addr, username, password, from string) *SMTPSender {
	var auth smtp.Auth
	if username != "" {
		host := addr
		if i := strings.LastIndex(addr, ":"); i >= 0 {
			host = addr[:i]
		}
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPSender{addr: addr, auth: auth, from: from}
}

func (s *SMTPSender) SendCode(ctx context.Context, email, code string) error {
	msg := buildMessage(s.from, email, code)
	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{email}, msg); err != nil {
		return fmt.Errorf("send verification mail: %w", err)
	}
	return nil
}

func buildMessage(from, to, code string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	b.WriteString("Subject: Verify your email\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, `<html><body style="font-family: Arial, sans-serif;">
<div style="background-color: #f5f5f5; padding: 20px;">
<h2>Welcome to Mochi!</h2>
<p>Please enter the verification code below to continue:</p>
<div style="background-color: #fff; padding: 20px; border-radius: 5px;">
<h3>Verification Code:</h3>
<p style="font-size: 18px; font-weight: bold; color: #007bff;">%s</p>
</div>
</div>
</body></html>`, code)
	return []byte(b.String())
}

// LogSender writes codes to the log instead of sending mail. Used in
// development when no SMTP relay is configured.
type LogSender struct {
	logger *zap.Logger
}

var _ Sender = (*LogSender)(nil)

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.L()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendCode(ctx context.Context, email, code string) error {
	s.logger.Info("verification code issued",
		zap.String("email", email),
		zap.String("code", code),
	)
	return nil
}

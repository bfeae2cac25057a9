// Package mailer sends job-outcome notifications over SMTP. A nil
// *Mailer means email is not configured; callers check for that rather
// than receiving a distinct error type. Send on a nil *Mailer is a
// no-op.
package mailer

import (
	"fmt"

	"github.com/minicd/minicd/internal/config"
	"gopkg.in/gomail.v2"
)

// Mailer sends mail through a fixed SMTP transport.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

// New builds a Mailer from cfg, or returns (nil, nil) if cfg has no
// SMTP server and From address configured.
func New(cfg config.MailConfig) (*Mailer, error) {
	if !cfg.Configured() {
		return nil, nil
	}
	dialer := gomail.NewDialer(cfg.SMTPServer, cfg.SMTPPort, cfg.Username, cfg.Password)
	return &Mailer{dialer: dialer, from: cfg.From}, nil
}

// Send delivers a plain-text message to to with the given subject and
// body. It is a no-op returning nil if m is nil.
func (m *Mailer) Send(to, subject, body string) error {
	if m == nil {
		return nil
	}
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, "minicd")
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending mail to %s: %w", to, err)
	}
	return nil
}

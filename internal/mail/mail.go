package mail

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/lekha-app/lekha-server/internal/config"
)

// Mailer delivers one-time codes to users.
type Mailer interface {
	// SendAccountVerification mails an account verification code.
	SendAccountVerification(to, code string) error
	// SendAdminPinSetup mails an admin PIN setup code.
	SendAdminPinSetup(to, code string) error
}

// SMTPMailer sends mail through an SMTP relay via gomail.
type SMTPMailer struct {
	cfg config.SMTPConfig
}

// NewSMTPMailer constructs an SMTPMailer.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// SendAccountVerification mails an account verification code.
func (m *SMTPMailer) SendAccountVerification(to, code string) error {
	subject, text, html := accountVerificationMail(to, code)
	return m.send(to, subject, text, html)
}

// SendAdminPinSetup mails an admin PIN setup code.
func (m *SMTPMailer) SendAdminPinSetup(to, code string) error {
	subject, text, html := adminPinSetupMail(to, code)
	return m.send(to, subject, text, html)
}

func (m *SMTPMailer) send(to, subject, text, html string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", text)
	msg.AddAlternative("text/html", html)

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	if errSend := dialer.DialAndSend(msg); errSend != nil {
		return fmt.Errorf("mail: send to %s: %w", to, errSend)
	}
	return nil
}

// LogMailer logs codes instead of sending mail. Used when SMTP is not configured.
type LogMailer struct{}

// NewLogMailer constructs a LogMailer.
func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

// SendAccountVerification logs an account verification code.
func (m *LogMailer) SendAccountVerification(to, code string) error {
	log.Infof("mail (smtp not configured): account verification code for %s: %s", to, code)
	return nil
}

// SendAdminPinSetup logs an admin PIN setup code.
func (m *LogMailer) SendAdminPinSetup(to, code string) error {
	log.Infof("mail (smtp not configured): admin pin setup code for %s: %s", to, code)
	return nil
}

// NewFromConfig picks the SMTP mailer when configured, the log mailer otherwise.
func NewFromConfig(cfg config.SMTPConfig) Mailer {
	if cfg.Enabled() {
		return NewSMTPMailer(cfg)
	}
	return NewLogMailer()
}

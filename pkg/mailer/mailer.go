package mailer

import (
	"log"

	"github.com/go-gomail/gomail"
)

// Mailer sends plain-text notification email over SMTP. A nil Mailer is
// valid and drops everything, so callers never need to branch on config.
type Mailer struct {
	host     string
	port     int
	from     string
	password string
}

// New returns a Mailer, or nil when SMTP is not configured.
func New(host string, port int, from, password string) *Mailer {
	if from == "" || password == "" {
		return nil
	}
	return &Mailer{host: host, port: port, from: from, password: password}
}

// Send delivers one message. Failures are the caller's to log; dispatch is
// always fire-and-forget from the service layer.
func (m *Mailer) Send(to, subject, body string) error {
	if m == nil || to == "" {
		return nil
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	d := gomail.NewDialer(m.host, m.port, m.from, m.password)
	if err := d.DialAndSend(msg); err != nil {
		log.Printf("[Mailer] send to %s failed: %v", to, err)
		return err
	}
	return nil
}

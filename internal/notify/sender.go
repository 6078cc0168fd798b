// Package notify turns reservation events into outbound mail.  It is invoked
// from the queue consumer, strictly after the originating transaction has
// committed; a failed send is logged and dropped, never escalated.
package notify

import (
	"bytes"
	"context"

	gomail "github.com/wneessen/go-mail"
)

// Mail is one outbound message.  Attachment, when present, is a calendar
// blob delivered as text/calendar.
type Mail struct {
	ToEmail        string
	ToName         string
	Subject        string
	HTMLBody       string
	Attachment     []byte
	AttachmentName string
}

// Sender delivers mail.  Implementations report failure through the error;
// callers log and move on.
type Sender interface {
	Send(ctx context.Context, m Mail) error
}

// SMTPConfig carries the SMTP endpoint and sender identity.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	BCCEmail  string // optional archive copy of every mail
}

// SMTPSender delivers mail over authenticated STARTTLS SMTP.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender returns a Sender for the given SMTP endpoint.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender { return &SMTPSender{cfg: cfg} }

// Send composes and delivers one message, dialing per send.
func (s *SMTPSender) Send(ctx context.Context, m Mail) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.cfg.FromName, s.cfg.FromEmail); err != nil {
		return err
	}
	if err := msg.AddToFormat(m.ToName, m.ToEmail); err != nil {
		return err
	}
	if s.cfg.BCCEmail != "" {
		if err := msg.Bcc(s.cfg.BCCEmail); err != nil {
			return err
		}
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(gomail.TypeTextHTML, m.HTMLBody)
	if len(m.Attachment) > 0 {
		name := m.AttachmentName
		if name == "" {
			name = "calendar.ics"
		}
		msg.AttachReadSeeker(name, bytes.NewReader(m.Attachment),
			gomail.WithFileContentType("text/calendar; charset=UTF-8"))
	}

	client, err := gomail.NewClient(s.cfg.Host,
		gomail.WithPort(s.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.Username),
		gomail.WithPassword(s.cfg.Password),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
	)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}

package mailer

import (
	"context"

	"github.com/diagnosis/hotel-bookings/pkg/config"
)

// Message is one outgoing email. Text or HTML may be empty but not both.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New picks the transport from configuration: dev mode logs, a MailerSend
// key uses the API, anything else goes through SMTP.
func New(cfg config.EmailConfig) Sender {
	switch {
	case cfg.DevMode:
		return NewDevMailer(nil)
	case cfg.MailerSendKey != "":
		return NewMailerSend(cfg.MailerSendKey, cfg.FromName, cfg.SMTPFrom)
	default:
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS)
	}
}

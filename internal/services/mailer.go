package services

import (
	"context"

	"gopkg.in/gomail.v2"
)

type MailMessage struct {
	To      string
	Subject string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SMTPMailer sends one message per connection.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
	name   string
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		name:   cfg.FromName,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg MailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	message := gomail.NewMessage()
	message.SetAddressHeader("From", m.from, m.name)
	message.SetHeader("To", msg.To)
	message.SetHeader("Subject", msg.Subject)
	message.SetBody("text/html", msg.HTML)
	return m.dialer.DialAndSend(message)
}

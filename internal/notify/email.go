package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"thsrbook/internal/config"
)

// Sender is the part of *gomail.Dialer that Email uses.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Email sends a text/plain message with an HTML alternative.
type Email struct {
	cfg    config.EmailConfig
	sender Sender
}

// NewEmail dials cfg.Host for every message. Port 465 uses implicit TLS; other
// ports upgrade with STARTTLS when the server offers it.
func NewEmail(cfg config.EmailConfig) *Email {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.Port == 465
	return NewEmailWithSender(cfg, d)
}

func NewEmailWithSender(cfg config.EmailConfig, s Sender) *Email {
	return &Email{cfg: cfg, sender: s}
}

func (e *Email) Send(ctx context.Context, subject, bodyHTML string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.sender.DialAndSend(e.message(subject, bodyHTML)); err != nil {
		return fmt.Errorf("send e-mail: %w", err)
	}
	return nil
}

func (e *Email) message(subject, bodyHTML string) *gomail.Message {
	from := e.cfg.From
	if from == "" {
		from = e.cfg.Username
	}
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", e.cfg.To...)
	m.SetHeader("Subject", e.cfg.SubjectPrefix+subject)
	m.SetBody("text/plain", PlainText(bodyHTML))
	m.AddAlternative("text/html", bodyHTML)
	return m
}

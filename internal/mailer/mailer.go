// Package mailer sends outbound email. The reporting engine only sees the
// Mailer interface; SMTP wiring lives behind it.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	gomail "gopkg.in/gomail.v2"

	"github.com/kmalloy/workhours/internal/envutil"
)

// Attachment is a binary payload carried with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is a single outbound email.
type Message struct {
	To         []string
	Subject    string
	Text       string
	HTML       string
	Attachment *Attachment
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig holds delivery settings, typically loaded from the environment.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func SMTPConfigFromEnv() SMTPConfig {
	port, err := strconv.Atoi(envutil.OrDefault("SMTP_PORT", "587"))
	if err != nil {
		port = 587
	}
	return SMTPConfig{
		Host:     envutil.OrDefault("SMTP_HOST", "smtp.gmail.com"),
		Port:     port,
		Username: envutil.OrDefault("EMAIL_USER", ""),
		Password: envutil.OrDefault("EMAIL_PASS", ""),
		From:     envutil.OrDefault("EMAIL_FROM", envutil.OrDefault("EMAIL_USER", "")),
	}
}

// SMTPMailer delivers messages over authenticated SMTP.
type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("SMTP_HOST, EMAIL_USER, and EMAIL_PASS are required")
	}
	return &SMTPMailer{cfg: cfg}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	out := gomail.NewMessage()
	out.SetHeader("From", m.cfg.From)
	out.SetHeader("To", msg.To...)
	out.SetHeader("Subject", msg.Subject)
	out.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		out.AddAlternative("text/html", msg.HTML)
	}
	if att := msg.Attachment; att != nil {
		out.Attach(att.Filename,
			gomail.SetHeader(map[string][]string{"Content-Type": {att.ContentType}}),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(att.Content)
				return err
			}),
		)
	}

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	if err := dialer.DialAndSend(out); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

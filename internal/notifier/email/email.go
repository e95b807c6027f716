// Package email implements an SMTP-based email notifier
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/newthinker/etfadvisor/internal/core"
	"github.com/newthinker/etfadvisor/internal/notifier"
)

// Config holds SMTP settings
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email implements the Notifier interface for SMTP email
type Email struct {
	cfg  Config
	send sendFunc
}

// New creates a new Email notifier
func New(cfg Config) (*Email, error) {
	if cfg.Host == "" || cfg.From == "" || len(cfg.To) == 0 {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("email: host, from, and to are required"))
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Email{cfg: cfg, send: smtp.SendMail}, nil
}

func (e *Email) Name() string { return "email" }

// Send mails the HTML daily report
func (e *Email) Send(ctx context.Context, report *core.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := e.buildMessage(Subject(report.RunDate), RenderHTML(report))

	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}

	if err := e.send(addr, auth, e.cfg.From, e.cfg.To, msg); err != nil {
		return fmt.Errorf("email: sending report: %w", err)
	}
	return nil
}

func (e *Email) buildMessage(subject, body string) []byte {
	msg := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=UTF-8\r\n"+
		"\r\n"+
		"%s",
		e.cfg.From,
		strings.Join(e.cfg.To, ","),
		subject,
		body,
	)
	return []byte(msg)
}

var _ notifier.Notifier = (*Email)(nil)

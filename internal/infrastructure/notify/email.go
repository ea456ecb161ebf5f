package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"MarketScanner/internal/config"
	"MarketScanner/internal/ports"
)

type sendMailFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// Email sends completion messages to the project owner over SMTP.
type Email struct {
	cfg  config.SMTPConfig
	send sendMailFunc
}

var _ ports.Notifier = (*Email)(nil)

// NewEmail returns a notifier that is a no-op while Host or From is empty.
func NewEmail(cfg config.SMTPConfig) *Email {
	return &Email{cfg: cfg, send: smtp.SendMail}
}

func (e *Email) SendReportCompletion(ctx context.Context, msg ports.ReportNotification) (bool, error) {
	if e.cfg.Host == "" || e.cfg.From == "" || msg.Email == "" {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}
	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))

	if err := e.send(addr, auth, e.cfg.From, []string{msg.Email}, emailBody(e.cfg.From, msg)); err != nil {
		return false, fmt.Errorf("send mail to %s: %w", msg.Email, err)
	}
	return true, nil
}

func emailBody(from string, msg ports.ReportNotification) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.Email)
	fmt.Fprintf(&b, "Subject: Competitive analysis ready: %s\r\n", msg.ProjectName)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")

	name := msg.Name
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hi %s,\r\n\r\n", name)
	fmt.Fprintf(&b, "Run %s for %s finished with %d finding(s).\r\n", msg.RunID, msg.ProjectName, len(msg.Findings))
	if top := highlights(msg, 5); len(top) > 0 {
		b.WriteString("\r\nHighlights:\r\n")
		for _, line := range top {
			fmt.Fprintf(&b, "  - %s\r\n", line)
		}
	}
	return []byte(b.String())
}

package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// SMTPConfig holds mail relay settings. User may be empty for relays that
// accept unauthenticated submission.
type SMTPConfig struct {
	Addr     string
	User     string
	Password string
	From     string
}

// SMTPNotifier sends codes as plain-text mail.
type SMTPNotifier struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, sendMail: smtp.SendMail}
}

func (n *SMTPNotifier) SendOneTimeCode(ctx context.Context, email, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if n.cfg.User != "" {
		host, _, err := net.SplitHostPort(n.cfg.Addr)
		if err != nil {
			return fmt.Errorf("smtp addr %q: %w", n.cfg.Addr, err)
		}
		auth = smtp.PlainAuth("", n.cfg.User, n.cfg.Password, host)
	}

	if err := n.sendMail(n.cfg.Addr, auth, n.cfg.From, []string{email}, buildMessage(n.cfg.From, email, code)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildMessage(from, to, code string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: Your Hortus verification code\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString("Your verification code is " + code + ".\r\n")
	b.WriteString("If you did not request it, you can ignore this message.\r\n")
	return []byte(b.String())
}

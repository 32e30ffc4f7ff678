package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"gopkg.in/gomail.v2"
)

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailNotifier struct {
	dialer mailSender
	from   string
	to     []string
}

func NewEmailNotifier(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string, to []string) *EmailNotifier {
	return &EmailNotifier{
		dialer: gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword),
		from:   fromEmail,
		to:     to,
	}
}

func (n *EmailNotifier) Alert(_ context.Context, subject, body string) error {
	if len(n.to) == 0 {
		return nil
	}
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", n.to...)
	m.SetHeader("Subject", "[FurniPlan] "+subject)
	m.SetBody("text/html", fmt.Sprintf(`
		<h3>%s</h3>
		<p>%s</p>
	`, html.EscapeString(subject), strings.ReplaceAll(html.EscapeString(body), "\n", "<br>")))

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	return nil
}

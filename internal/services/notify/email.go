// Package notify delivers issued tickets to purchasers and publishes gate
// activity. Delivery is best effort: callers report failures but never undo
// issuance or redemption because of them.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"ticket-gate/internal/status"

	"github.com/pocketbase/pocketbase/tools/mailer"
)

type EmailConfig struct {
	SenderName    string
	SenderAddress string
	Subject       string
	Timeout       time.Duration
}

// EmailSender renders the ticket receipt and hands it to a mailer, usually
// a *mailer.SMTPClient.
type EmailSender struct {
	mailer  mailer.Mailer
	from    mail.Address
	subject string
	timeout time.Duration
	now     func() time.Time
}

func NewEmailSender(m mailer.Mailer, cfg EmailConfig) *EmailSender {
	subject := cfg.Subject
	if subject == "" {
		subject = "🎟️ Your Event Tickets - Payment Confirmed"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &EmailSender{
		mailer:  m,
		from:    mail.Address{Name: cfg.SenderName, Address: cfg.SenderAddress},
		subject: subject,
		timeout: timeout,
		now:     time.Now,
	}
}

// NewSMTPMailer builds the production mailer.
func NewSMTPMailer(host string, port int, username, password string, tls bool) *mailer.SMTPClient {
	return &mailer.SMTPClient{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		TLS:      tls,
	}
}

type receipt struct {
	Name    string
	Email   string
	Tickets []string
	Count   int
	Date    string
}

// SendTickets emails the ordered ticket numbers to recipient. It gives up
// after the configured timeout; a mail still in flight at that point may
// or may not arrive.
func (s *EmailSender) SendTickets(ctx context.Context, recipient, holderName string, ticketIDs []string) error {
	if len(ticketIDs) == 0 {
		return fmt.Errorf("%w: no tickets to send", status.ErrNotificationFailed)
	}
	to, err := mail.ParseAddress(recipient)
	if err != nil {
		return fmt.Errorf("%w: recipient %q: %v", status.ErrNotificationFailed, recipient, err)
	}
	to.Name = holderName

	data := receipt{
		Name:    holderName,
		Email:   to.Address,
		Tickets: ticketIDs,
		Count:   len(ticketIDs),
		Date:    s.now().Format("2006-01-02 15:04:05"),
	}

	var html, text bytes.Buffer
	if err := htmlTemplate.Execute(&html, data); err != nil {
		return fmt.Errorf("%w: render html: %v", status.ErrNotificationFailed, err)
	}
	if err := renderText(&text, data); err != nil {
		return fmt.Errorf("%w: render text: %v", status.ErrNotificationFailed, err)
	}

	msg := &mailer.Message{
		From:    s.from,
		To:      []mail.Address{*to},
		Subject: s.subject,
		HTML:    html.String(),
		Text:    text.String(),
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.mailer.Send(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			slog.Error("Failed to send ticket email", "recipient", to.Address, "tickets", len(ticketIDs), "error", err)
			return fmt.Errorf("%w: %v", status.ErrNotificationFailed, err)
		}
	case <-ctx.Done():
		slog.Error("Timed out sending ticket email", "recipient", to.Address, "error", ctx.Err())
		return fmt.Errorf("%w: %v", status.ErrNotificationFailed, ctx.Err())
	}

	slog.Info("Ticket email sent", "recipient", to.Address, "tickets", len(ticketIDs))
	return nil
}

func renderText(buf *bytes.Buffer, r receipt) error {
	var lines strings.Builder
	for i, id := range r.Tickets {
		fmt.Fprintf(&lines, "Ticket %d: %s\n", i+1, id)
	}
	_, err := fmt.Fprintf(buf, `Hi %s,

Your payment has been confirmed!
Below are your ticket details:

%s
IMPORTANT:
- Save these ticket numbers - you'll need them at the event gate
- Each ticket can only be used once
- Keep your tickets secure and don't share them publicly

Thank you for your purchase!

-- Event Team
`, r.Name, lines.String())
	return err
}

var htmlTemplate = template.Must(template.New("tickets").Parse(`<html>
<body style="font-family: Arial, sans-serif; background-color: #f5f5f5; margin: 0; padding: 20px;">
<div style="max-width: 600px; margin: 0 auto; background-color: white; border-radius: 10px; overflow: hidden;">
	<div style="background: #667eea; color: white; padding: 30px; text-align: center;">
		<h1 style="margin: 0; font-size: 28px;">Payment Successful!</h1>
		<p style="margin: 10px 0 0 0; font-size: 16px;">Your tickets have been generated</p>
	</div>
	<div style="padding: 30px;">
		<p style="font-size: 16px; color: #333;">Hi <strong>{{.Name}}</strong>,</p>
		<p style="font-size: 14px; color: #666;">Your payment has been confirmed! Below are your ticket details:</p>
		<div style="background: #f9f9f9; padding: 20px; border-radius: 8px; margin: 20px 0; border-left: 4px solid #667eea;">
			<h3 style="margin: 0 0 15px 0; color: #667eea; font-size: 16px;">Your Ticket Numbers:</h3>
			{{range .Tickets}}<div style="font-size: 20px; font-weight: bold; font-family: 'Courier New', monospace; background: #f0f0f0; padding: 12px; margin: 10px 0; border-radius: 5px; letter-spacing: 2px;">{{.}}</div>
			{{end}}
		</div>
		<div style="background: #fff3cd; padding: 15px; border-radius: 8px; margin: 20px 0; border-left: 4px solid #ffc107;">
			<h4 style="margin: 0 0 10px 0; color: #856404; font-size: 14px;">Important:</h4>
			<ul style="margin: 0; padding-left: 20px; color: #856404; font-size: 13px;">
				<li>Save these ticket numbers - you'll need them at the event gate</li>
				<li>Each ticket can only be used once</li>
				<li>Keep your tickets secure and don't share them publicly</li>
				<li>Ticket format: SP-NUMBER-QUANTITY (e.g., SP-1223324-25)</li>
			</ul>
		</div>
		<table style="width: 100%; border-collapse: collapse; font-size: 13px; color: #666;">
			<tr><td><strong>Name:</strong></td><td style="text-align: right;">{{.Name}}</td></tr>
			<tr><td><strong>Email:</strong></td><td style="text-align: right;">{{.Email}}</td></tr>
			<tr><td><strong>Quantity:</strong></td><td style="text-align: right;">{{.Count}} ticket(s)</td></tr>
			<tr><td><strong>Date:</strong></td><td style="text-align: right;">{{.Date}}</td></tr>
		</table>
		<p style="font-size: 13px; color: #999; text-align: center; margin: 20px 0 0 0;">Thank you for your purchase! See you at the event!</p>
	</div>
	<div style="background-color: #f5f5f5; padding: 20px; text-align: center; border-top: 1px solid #ddd;">
		<p style="margin: 0; font-size: 12px; color: #999;">-- Event Team</p>
	</div>
</div>
</body>
</html>`))

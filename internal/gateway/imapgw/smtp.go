package imapgw

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/jsean662/MailFlowAI/internal/model"
)

// connectSMTP dials the submission endpoint over implicit TLS and
// authenticates with the account credentials.
func (g *Gateway) connectSMTP() (*smtp.Client, error) {
	conn, err := tls.Dial("tcp", g.cfg.SMTPAddr, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to SMTP %s: %w", g.cfg.SMTPAddr, err)
	}

	client := smtp.NewClient(conn)
	auth := sasl.NewPlainClient("", g.cfg.Username, g.cfg.Password)
	if err := client.Auth(auth); err != nil {
		client.Close()
		return nil, fmt.Errorf("SMTP auth failed for %s: %w", g.cfg.Username, err)
	}
	return client, nil
}

// submit runs one SMTP transaction for the raw message.
func (g *Gateway) submit(recipients []string, raw []byte) error {
	client, err := g.connectSMTP()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(g.cfg.Username, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt, nil); err != nil {
			return fmt.Errorf("RCPT TO %q failed: %w", rcpt, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := writer.Write(raw); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalizing message: %w", err)
	}

	return client.Quit()
}

// buildMessage assembles a plain-text RFC 822 message.
func (g *Gateway) buildMessage(to []string, subject, body string, extra map[string]string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", g.cfg.Username)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	for name, value := range extra {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\r\n", name, value)
		}
	}
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// SendMessage implements gateway.Gateway.
func (g *Gateway) SendMessage(_ context.Context, payload model.SendEmailPayload) error {
	raw := g.buildMessage(payload.To, payload.Subject, payload.Body, nil)
	return g.submit(payload.To, raw)
}

// ReplyToMessage implements gateway.Gateway. The original envelope
// supplies the recipient and the threading headers.
func (g *Gateway) ReplyToMessage(ctx context.Context, id string, payload model.ReplyEmailPayload) error {
	buf, _, err := g.fetchFull(ctx, id)
	if err != nil {
		return err
	}
	if buf.Envelope == nil {
		return fmt.Errorf("message %s has no envelope", id)
	}

	var to string
	if len(buf.Envelope.From) > 0 {
		to = buf.Envelope.From[0].Addr()
	}
	if to == "" {
		return fmt.Errorf("message %s has no sender to reply to", id)
	}

	subject := buf.Envelope.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	raw := g.buildMessage([]string{to}, subject, payload.Body, map[string]string{
		"In-Reply-To": buf.Envelope.MessageID,
		"References":  buf.Envelope.MessageID,
	})
	return g.submit([]string{to}, raw)
}

// ForwardMessage implements gateway.Gateway.
func (g *Gateway) ForwardMessage(ctx context.Context, id string, payload model.ForwardEmailPayload) error {
	orig, err := g.GetMessage(ctx, id)
	if err != nil {
		return err
	}

	subject := orig.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "fwd:") {
		subject = "Fwd: " + subject
	}

	var b strings.Builder
	b.WriteString(payload.Body)
	b.WriteString("\n\n---------- Forwarded message ---------\n")
	fmt.Fprintf(&b, "From: %s\n", orig.Sender)
	fmt.Fprintf(&b, "Date: %s\n", orig.Date.Format("Mon, Jan 2, 2006 at 3:04 PM"))
	fmt.Fprintf(&b, "Subject: %s\n\n", orig.Subject)
	b.WriteString(orig.Body)

	raw := g.buildMessage(payload.To, subject, b.String(), nil)
	return g.submit(payload.To, raw)
}

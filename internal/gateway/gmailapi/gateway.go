// Package gmailapi implements the mail gateway directly against the
// Gmail REST API, for accounts configured without the MailFlow backend.
package gmailapi

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/jsean662/MailFlowAI/internal/gateway"
	"github.com/jsean662/MailFlowAI/internal/model"
)

const (
	inboxPageSize = 20
	sentPageSize  = 10

	// searchResultCap bounds hydration work per search; each result
	// costs one messages.get round trip.
	searchResultCap = 20
)

// Gateway talks to the Gmail API for a single account ("me").
type Gateway struct {
	srv *gmail.Service
}

var _ gateway.Gateway = (*Gateway)(nil)

// New builds a gateway from an OAuth token source.
func New(ctx context.Context, ts oauth2.TokenSource) (*Gateway, error) {
	srv, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}
	return &Gateway{srv: srv}, nil
}

// NewWithService wraps an existing Gmail service, used by tests.
func NewWithService(srv *gmail.Service) *Gateway {
	return &Gateway{srv: srv}
}

// wrapErr maps Gmail API errors onto the gateway error taxonomy.
func wrapErr(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 401:
			return &gateway.AuthError{Message: apiErr.Message}
		case 404:
			return fmt.Errorf("%s: %w", op, gateway.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func header(headers []*gmail.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// decodeBodyData decodes a body part. The API serves unpadded base64url,
// so padded decoding is tried first and raw decoding as a fallback.
func decodeBodyData(data string) ([]byte, error) {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
	}
	return decoded, err
}

// messageBody extracts the displayable body, preferring HTML over plain
// text the way the original webmail view renders it.
func messageBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}

	if len(payload.Parts) > 0 {
		body := ""
		for _, part := range payload.Parts {
			data := ""
			if part.Body != nil {
				data = part.Body.Data
			}
			if data == "" {
				continue
			}
			decoded, err := decodeBodyData(data)
			if err != nil {
				continue
			}
			switch part.MimeType {
			case "text/html":
				return string(decoded)
			case "text/plain":
				body = string(decoded)
			}
		}
		return body
	}

	if payload.Body != nil && payload.Body.Data != "" {
		if decoded, err := decodeBodyData(payload.Body.Data); err == nil {
			return string(decoded)
		}
	}
	return ""
}

func hasLabel(m *gmail.Message, label string) bool {
	for _, l := range m.LabelIds {
		if l == label {
			return true
		}
	}
	return false
}

// preview converts a hydrated message into a list row. For the sent
// mailbox the counterparty (To) is shown in the sender column.
func preview(m *gmail.Message, box model.Mailbox) model.EmailPreview {
	headers := m.Payload.Headers

	senderHeader := "From"
	if box == model.MailboxSent {
		senderHeader = "To"
	}

	unread := false
	if box != model.MailboxSent {
		unread = hasLabel(m, "UNREAD")
	}

	return model.EmailPreview{
		ID:      m.Id,
		Sender:  header(headers, senderHeader),
		Subject: header(headers, "Subject"),
		Snippet: m.Snippet,
		Date:    time.UnixMilli(m.InternalDate),
		Unread:  unread,
	}
}

// hydrate fetches the full form of each listed message id. Individual
// fetch failures drop the row rather than failing the page.
func (g *Gateway) hydrate(ctx context.Context, refs []*gmail.Message, box model.Mailbox) []model.EmailPreview {
	previews := make([]model.EmailPreview, 0, len(refs))
	for _, ref := range refs {
		m, err := g.srv.Users.Messages.Get("me", ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			continue
		}
		previews = append(previews, preview(m, box))
	}
	return previews
}

// ListMessages implements gateway.Gateway.
func (g *Gateway) ListMessages(ctx context.Context, box model.Mailbox, pageToken string) (model.PaginatedEmails, error) {
	label := "INBOX"
	pageSize := int64(inboxPageSize)
	if box == model.MailboxSent {
		label = "SENT"
		pageSize = sentPageSize
	}

	req := g.srv.Users.Messages.List("me").
		LabelIds(label).
		MaxResults(pageSize).
		Context(ctx)
	if pageToken != "" {
		req = req.PageToken(pageToken)
	}

	res, err := req.Do()
	if err != nil {
		return model.PaginatedEmails{}, wrapErr("listing "+string(box), err)
	}

	return model.PaginatedEmails{
		Messages:      g.hydrate(ctx, res.Messages, box),
		NextPageToken: res.NextPageToken,
	}, nil
}

// GetMessage implements gateway.Gateway.
func (g *Gateway) GetMessage(ctx context.Context, id string) (*model.EmailDetail, error) {
	m, err := g.srv.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, wrapErr("getting message "+id, err)
	}

	headers := m.Payload.Headers
	return &model.EmailDetail{
		EmailPreview: model.EmailPreview{
			ID:      m.Id,
			Sender:  header(headers, "From"),
			Subject: header(headers, "Subject"),
			Snippet: m.Snippet,
			Date:    time.UnixMilli(m.InternalDate),
			Unread:  hasLabel(m, "UNREAD"),
		},
		Body: messageBody(m.Payload),
	}, nil
}

// rawMessage assembles an RFC 822 message and encodes it the way the
// Gmail API expects raw payloads.
func rawMessage(headers map[string]string, body string) string {
	var b strings.Builder
	for name, value := range headers {
		if value == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\r\n", name, value)
	}
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}

// SendMessage implements gateway.Gateway.
func (g *Gateway) SendMessage(ctx context.Context, payload model.SendEmailPayload) error {
	raw := rawMessage(map[string]string{
		"To":      strings.Join(payload.To, ", "),
		"Subject": payload.Subject,
	}, payload.Body)

	_, err := g.srv.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return wrapErr("sending message", err)
	}
	return nil
}

// replySubject prefixes Re: unless the subject already carries one.
func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

// ReplyToMessage implements gateway.Gateway. The reply is threaded onto
// the original conversation via In-Reply-To and References plus the
// Gmail thread id.
func (g *Gateway) ReplyToMessage(ctx context.Context, id string, payload model.ReplyEmailPayload) error {
	orig, err := g.srv.Users.Messages.Get("me", id).Format("metadata").
		MetadataHeaders("From", "Subject", "Message-ID", "References").
		Context(ctx).Do()
	if err != nil {
		return wrapErr("getting message "+id, err)
	}

	headers := orig.Payload.Headers
	messageID := header(headers, "Message-ID")
	references := strings.TrimSpace(header(headers, "References") + " " + messageID)

	raw := rawMessage(map[string]string{
		"To":          header(headers, "From"),
		"Subject":     replySubject(header(headers, "Subject")),
		"In-Reply-To": messageID,
		"References":  references,
	}, payload.Body)

	_, err = g.srv.Users.Messages.Send("me", &gmail.Message{
		Raw:      raw,
		ThreadId: orig.ThreadId,
	}).Context(ctx).Do()
	if err != nil {
		return wrapErr("replying to "+id, err)
	}
	return nil
}

// forwardSubject prefixes Fwd: unless the subject already carries one.
func forwardSubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "fwd:") {
		return subject
	}
	return "Fwd: " + subject
}

// ForwardMessage implements gateway.Gateway. The original message rides
// below the standard forwarded-message block.
func (g *Gateway) ForwardMessage(ctx context.Context, id string, payload model.ForwardEmailPayload) error {
	orig, err := g.GetMessage(ctx, id)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(payload.Body)
	b.WriteString("\n\n---------- Forwarded message ---------\n")
	fmt.Fprintf(&b, "From: %s\n", orig.Sender)
	fmt.Fprintf(&b, "Date: %s\n", orig.Date.Format("Mon, Jan 2, 2006 at 3:04 PM"))
	fmt.Fprintf(&b, "Subject: %s\n\n", orig.Subject)
	b.WriteString(orig.Body)

	raw := rawMessage(map[string]string{
		"To":      strings.Join(payload.To, ", "),
		"Subject": forwardSubject(orig.Subject),
	}, b.String())

	_, err = g.srv.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return wrapErr("forwarding "+id, err)
	}
	return nil
}

// DeleteMessage implements gateway.Gateway. Messages are trashed rather
// than permanently deleted.
func (g *Gateway) DeleteMessage(ctx context.Context, id string) error {
	_, err := g.srv.Users.Messages.Trash("me", id).Context(ctx).Do()
	if err != nil {
		return wrapErr("trashing "+id, err)
	}
	return nil
}

// SearchMessages implements gateway.Gateway. Results are capped at
// searchResultCap before hydration.
func (g *Gateway) SearchMessages(ctx context.Context, query string) ([]model.EmailPreview, error) {
	res, err := g.srv.Users.Messages.List("me").Q(query).Context(ctx).Do()
	if err != nil {
		return nil, wrapErr("searching messages", err)
	}

	refs := res.Messages
	if len(refs) > searchResultCap {
		refs = refs[:searchResultCap]
	}
	return g.hydrate(ctx, refs, model.MailboxInbox), nil
}

// CheckAuthenticated implements gateway.Authenticator.
func (g *Gateway) CheckAuthenticated(ctx context.Context) bool {
	_, err := g.srv.Users.GetProfile("me").Context(ctx).Do()
	return err == nil
}

// CurrentUserProfile implements gateway.Authenticator. The Gmail profile
// only carries the address, so Name mirrors it.
func (g *Gateway) CurrentUserProfile(ctx context.Context) (*model.UserProfile, error) {
	profile, err := g.srv.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return nil, wrapErr("getting profile", err)
	}
	return &model.UserProfile{
		Email: profile.EmailAddress,
		Name:  profile.EmailAddress,
	}, nil
}

// Logout implements gateway.Authenticator. Token revocation happens at
// the credential store, not here.
func (g *Gateway) Logout(context.Context) error {
	return nil
}

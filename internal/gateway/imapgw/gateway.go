// Package imapgw implements the mail gateway over plain IMAP and SMTP,
// for accounts that are not Gmail at all. Reads go through go-imap,
// submission through go-smtp. A connection is dialed per operation and
// torn down afterwards, keeping the gateway free of session state.
package imapgw

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/jsean662/MailFlowAI/internal/gateway"
	"github.com/jsean662/MailFlowAI/internal/model"
)

const (
	pageSize = 20

	searchResultCap = 20
)

// sentMailboxes are tried in order when the sent folder is not
// configured explicitly.
var sentMailboxes = []string{
	"Sent", "[Gmail]/Sent Mail", "Sent Items", "INBOX.Sent",
}

// trashMailboxes are tried in order before falling back to \Deleted.
var trashMailboxes = []string{
	"Trash", "[Gmail]/Trash", "Deleted Items", "INBOX.Trash",
}

// Config carries the account settings for one IMAP/SMTP pair.
type Config struct {
	IMAPHost string
	IMAPPort string
	SMTPAddr string
	Username string
	Password string
	TLS      bool

	// SentMailbox overrides sent folder detection when set.
	SentMailbox string
}

// Gateway serves mail operations for a single IMAP account.
type Gateway struct {
	cfg Config
}

var _ gateway.Gateway = (*Gateway)(nil)

// New creates a gateway for the given account.
func New(cfg Config) *Gateway {
	return &Gateway{cfg: cfg}
}

// connect dials the IMAP server and authenticates. The caller owns the
// returned client and must Logout.
func (g *Gateway) connect(_ context.Context) (*imapclient.Client, error) {
	addr := g.cfg.IMAPHost + ":" + g.cfg.IMAPPort

	var client *imapclient.Client
	var err error
	if g.cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(g.cfg.Username, g.cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &gateway.AuthError{
			Message: fmt.Sprintf("IMAP login failed for %s: %v", g.cfg.Username, err),
		}
	}

	return client, nil
}

// selectMailbox selects the IMAP folder backing the given mailbox and
// returns its name together with the select data.
func (g *Gateway) selectMailbox(client *imapclient.Client, box model.Mailbox) (string, *imap.SelectData, error) {
	if box == model.MailboxInbox {
		data, err := client.Select("INBOX", nil).Wait()
		if err != nil {
			return "", nil, fmt.Errorf("selecting INBOX: %w", err)
		}
		return "INBOX", data, nil
	}

	candidates := sentMailboxes
	if g.cfg.SentMailbox != "" {
		candidates = []string{g.cfg.SentMailbox}
	}
	for _, name := range candidates {
		if data, err := client.Select(name, nil).Wait(); err == nil {
			return name, data, nil
		}
	}
	return "", nil, fmt.Errorf("no sent mailbox found among %v", candidates)
}

// messageID builds the stable id a list row carries: the folder name and
// the message UID.
func messageID(folder string, uid imap.UID) string {
	return folder + "/" + strconv.FormatUint(uint64(uid), 10)
}

func parseMessageID(id string) (string, imap.UID, error) {
	idx := strings.LastIndex(id, "/")
	if idx < 0 {
		return "", 0, fmt.Errorf("malformed message id %q: %w", id, gateway.ErrNotFound)
	}
	uid, err := strconv.ParseUint(id[idx+1:], 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("malformed message id %q: %w", id, gateway.ErrNotFound)
	}
	return id[:idx], imap.UID(uid), nil
}

// mailboxFor maps the folder encoded in a message id back to the mailbox
// its rows belong to.
func mailboxFor(folder string) model.Mailbox {
	if folder == "INBOX" {
		return model.MailboxInbox
	}
	return model.MailboxSent
}

// preview converts a fetched envelope buffer into a list row.
func preview(folder string, buf *imapclient.FetchMessageBuffer, box model.Mailbox) model.EmailPreview {
	p := model.EmailPreview{
		ID:     messageID(folder, buf.UID),
		Unread: box == model.MailboxInbox,
	}

	if buf.Envelope != nil {
		p.Subject = buf.Envelope.Subject
		p.Date = buf.Envelope.Date

		addrs := buf.Envelope.From
		if box == model.MailboxSent {
			addrs = buf.Envelope.To
		}
		if len(addrs) > 0 {
			if addrs[0].Name != "" {
				p.Sender = addrs[0].Name
			} else {
				p.Sender = addrs[0].Addr()
			}
		}
	}

	for _, flag := range buf.Flags {
		if flag == imap.FlagSeen {
			p.Unread = false
		}
	}
	if box == model.MailboxSent {
		p.Unread = false
	}

	return p
}

// ListMessages implements gateway.Gateway. The mailbox is paged newest
// first by sequence-number windows; the token encodes how far from the
// newest end the next page starts.
func (g *Gateway) ListMessages(ctx context.Context, box model.Mailbox, pageToken string) (model.PaginatedEmails, error) {
	offset, err := decodeToken(pageToken)
	if err != nil {
		return model.PaginatedEmails{}, err
	}

	client, err := g.connect(ctx)
	if err != nil {
		return model.PaginatedEmails{}, err
	}
	defer func() { _ = client.Logout().Wait() }()

	folder, data, err := g.selectMailbox(client, box)
	if err != nil {
		return model.PaginatedEmails{}, err
	}

	total := int(data.NumMessages)
	end := total - offset
	if end <= 0 {
		return model.PaginatedEmails{Messages: []model.EmailPreview{}}, nil
	}
	start := end - pageSize + 1
	if start < 1 {
		start = 1
	}

	var seqSet imap.SeqSet
	seqSet.AddRange(uint32(start), uint32(end))

	fetchCmd := client.Fetch(seqSet, &imap.FetchOptions{
		Envelope: true,
		Flags:    true,
		UID:      true,
	})
	defer fetchCmd.Close()

	var previews []model.EmailPreview
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		previews = append(previews, preview(folder, buf, box))
	}
	if err := fetchCmd.Close(); err != nil {
		return model.PaginatedEmails{}, fmt.Errorf("fetching %s page: %w", folder, err)
	}

	// The server returns ascending sequence numbers; the list shows
	// newest first.
	for i, j := 0, len(previews)-1; i < j; i, j = i+1, j-1 {
		previews[i], previews[j] = previews[j], previews[i]
	}

	nextToken := ""
	if start > 1 {
		nextToken = encodeToken(offset + (end - start + 1))
	}

	return model.PaginatedEmails{
		Messages:      previews,
		NextPageToken: nextToken,
	}, nil
}

// fetchFull fetches one message with its body section.
func (g *Gateway) fetchFull(ctx context.Context, id string) (*imapclient.FetchMessageBuffer, *imap.FetchItemBodySection, error) {
	folder, uid, err := parseMessageID(id)
	if err != nil {
		return nil, nil, err
	}

	client, err := g.connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(folder, nil).Wait(); err != nil {
		return nil, nil, fmt.Errorf("selecting %s: %w", folder, err)
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, nil, fmt.Errorf("message %s: %w", id, gateway.ErrNotFound)
	}
	buf, err := msg.Collect()
	if err != nil {
		return nil, nil, fmt.Errorf("collecting message %s: %w", id, err)
	}
	return buf, bodySection, nil
}

// GetMessage implements gateway.Gateway.
func (g *Gateway) GetMessage(ctx context.Context, id string) (*model.EmailDetail, error) {
	buf, bodySection, err := g.fetchFull(ctx, id)
	if err != nil {
		return nil, err
	}

	folder, _, _ := parseMessageID(id)
	detail := &model.EmailDetail{
		EmailPreview: preview(folder, buf, mailboxFor(folder)),
	}

	if raw := buf.FindBodySection(bodySection); raw != nil {
		text, html := parseBody(raw)
		detail.Body = html
		if detail.Body == "" {
			detail.Body = text
		}
	}

	return detail, nil
}

// parseBody parses a raw RFC 822 body and returns its plain and HTML
// variants.
func parseBody(raw []byte) (textBody, htmlBody string) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw), ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html"):
			htmlBody = string(body)
		}
	}

	return textBody, htmlBody
}

// DeleteMessage implements gateway.Gateway. The message is moved to a
// trash folder when one exists, otherwise flagged deleted and expunged.
func (g *Gateway) DeleteMessage(ctx context.Context, id string) error {
	folder, uid, err := parseMessageID(id)
	if err != nil {
		return err
	}

	client, err := g.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(folder, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", folder, err)
	}

	uidSet := imap.UIDSetNum(uid)
	for _, trash := range trashMailboxes {
		if _, err := client.Move(uidSet, trash).Wait(); err == nil {
			return nil
		}
	}

	storeCmd := client.Store(uidSet, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("flagging %s deleted: %w", id, err)
	}
	return client.Expunge().Close()
}

// SearchMessages implements gateway.Gateway. The Gmail-style query is
// translated into IMAP criteria and run against the inbox; the newest
// matches are hydrated up to the search cap.
func (g *Gateway) SearchMessages(ctx context.Context, query string) ([]model.EmailPreview, error) {
	client, err := g.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting INBOX: %w", err)
	}

	searchData, err := client.UIDSearch(queryCriteria(query), nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return []model.EmailPreview{}, nil
	}
	if len(uids) > searchResultCap {
		uids = uids[len(uids)-searchResultCap:]
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope: true,
		Flags:    true,
		UID:      true,
	})
	defer fetchCmd.Close()

	var previews []model.EmailPreview
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		previews = append(previews, preview("INBOX", buf, model.MailboxInbox))
	}
	if err := fetchCmd.Close(); err != nil {
		return previews, fmt.Errorf("fetching search results: %w", err)
	}

	for i, j := 0, len(previews)-1; i < j; i, j = i+1, j-1 {
		previews[i], previews[j] = previews[j], previews[i]
	}
	return previews, nil
}

// CheckAuthenticated implements gateway.Authenticator by attempting a
// login round trip.
func (g *Gateway) CheckAuthenticated(ctx context.Context) bool {
	client, err := g.connect(ctx)
	if err != nil {
		return false
	}
	_ = client.Logout().Wait()
	return true
}

// CurrentUserProfile implements gateway.Authenticator. IMAP has no
// profile concept, so the configured account name stands in.
func (g *Gateway) CurrentUserProfile(context.Context) (*model.UserProfile, error) {
	return &model.UserProfile{
		Name:  g.cfg.Username,
		Email: g.cfg.Username,
	}, nil
}

// Logout implements gateway.Authenticator. Connections are per
// operation, so there is no session to tear down.
func (g *Gateway) Logout(context.Context) error {
	return nil
}

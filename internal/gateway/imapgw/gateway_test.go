package imapgw

import (
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsean662/MailFlowAI/internal/gateway"
	"github.com/jsean662/MailFlowAI/internal/model"
)

func TestTokenRoundTrip(t *testing.T) {
	for _, offset := range []int{0, 1, 20, 400} {
		got, err := decodeToken(encodeToken(offset))
		require.NoError(t, err)
		assert.Equal(t, offset, got)
	}
}

func TestDecodeTokenEmptyIsFirstPage(t *testing.T) {
	offset, err := decodeToken("")
	require.NoError(t, err)
	assert.Equal(t, 0, offset)
}

func TestDecodeTokenRejectsGarbage(t *testing.T) {
	_, err := decodeToken("!!not-base64!!")
	assert.Error(t, err)

	_, err = decodeToken(encodeToken(-5))
	assert.Error(t, err)
}

func TestMessageIDRoundTrip(t *testing.T) {
	id := messageID("[Gmail]/Sent Mail", 123)

	folder, uid, err := parseMessageID(id)
	require.NoError(t, err)
	assert.Equal(t, "[Gmail]/Sent Mail", folder)
	assert.Equal(t, imap.UID(123), uid)
}

func TestParseMessageIDMalformed(t *testing.T) {
	_, _, err := parseMessageID("no-slash")
	assert.ErrorIs(t, err, gateway.ErrNotFound)

	_, _, err = parseMessageID("INBOX/not-a-number")
	assert.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestMailboxForFolder(t *testing.T) {
	assert.Equal(t, model.MailboxInbox, mailboxFor("INBOX"))
	assert.Equal(t, model.MailboxSent, mailboxFor("Sent"))
	assert.Equal(t, model.MailboxSent, mailboxFor("[Gmail]/Sent Mail"))
}

func TestPreviewSentFolderNeverUnread(t *testing.T) {
	// A sent message carries no \Seen flag but must not render unread.
	buf := &imapclient.FetchMessageBuffer{
		UID: 7,
		Envelope: &imap.Envelope{
			Subject: "hello",
			To:      []imap.Address{{Mailbox: "bob", Host: "example.com"}},
		},
	}

	folder := "[Gmail]/Sent Mail"
	p := preview(folder, buf, mailboxFor(folder))

	assert.False(t, p.Unread)
	assert.Equal(t, "bob@example.com", p.Sender)
}

func TestQueryCriteriaTranslation(t *testing.T) {
	c := queryCriteria("quarterly report from:alice@example.com is:unread after:2024/01/09 before:2024/01/11")

	require.Len(t, c.Header, 1)
	assert.Equal(t, "From", c.Header[0].Key)
	assert.Equal(t, "alice@example.com", c.Header[0].Value)
	assert.Equal(t, []imap.Flag{imap.FlagSeen}, c.NotFlag)
	assert.Equal(t, time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), c.Since)
	assert.Equal(t, time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), c.Before)
	assert.Equal(t, []string{"quarterly report"}, c.Text)
}

func TestQueryCriteriaNewerThan(t *testing.T) {
	c := queryCriteria("newer_than:7d")

	assert.False(t, c.Since.IsZero())
	assert.WithinDuration(t, time.Now().AddDate(0, 0, -7), c.Since, time.Minute)
}

func TestQueryCriteriaDropsAttachmentClause(t *testing.T) {
	c := queryCriteria("has:attachment hello")

	assert.Equal(t, []string{"hello"}, c.Text)
	assert.Empty(t, c.Header)
}

func TestBuildMessageHeaders(t *testing.T) {
	g := New(Config{Username: "me@example.com"})

	raw := string(g.buildMessage(
		[]string{"a@example.com", "b@example.com"},
		"subject line",
		"body",
		map[string]string{"In-Reply-To": "<orig@mail>", "References": ""},
	))

	assert.Contains(t, raw, "From: me@example.com\r\n")
	assert.Contains(t, raw, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, raw, "Subject: subject line\r\n")
	assert.Contains(t, raw, "In-Reply-To: <orig@mail>\r\n")
	assert.NotContains(t, raw, "References:")
	assert.Contains(t, raw, "\r\n\r\nbody")
}

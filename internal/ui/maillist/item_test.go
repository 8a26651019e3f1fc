package maillist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jsean662/MailFlowAI/internal/model"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly10!", truncate("exactly10!", 10))
	assert.Equal(t, "long stri…", truncate("long string here", 10))
	assert.Equal(t, "héll…", truncate("héllo wörld", 5))
}

func TestRelativeTime(t *testing.T) {
	now := time.Now()

	assert.Equal(t, "", relativeTime(time.Time{}))
	assert.Equal(t, "just now", relativeTime(now.Add(-10*time.Second)))
	assert.Equal(t, "1m ago", relativeTime(now.Add(-90*time.Second)))
	assert.Equal(t, "5m ago", relativeTime(now.Add(-5*time.Minute)))
	assert.Equal(t, "1h ago", relativeTime(now.Add(-1*time.Hour)))
	assert.Equal(t, "3d ago", relativeTime(now.Add(-3*24*time.Hour)))

	old := now.Add(-30 * 24 * time.Hour)
	assert.Equal(t, old.Format("Jan 02"), relativeTime(old))
}

func TestMailboxTitle(t *testing.T) {
	assert.Equal(t, "Inbox", mailboxTitle(model.MailboxInbox, 1))
	assert.Equal(t, "Inbox (page 3)", mailboxTitle(model.MailboxInbox, 3))
	assert.Equal(t, "Sent", mailboxTitle(model.MailboxSent, 0))
	assert.Equal(t, "Sent (page 2)", mailboxTitle(model.MailboxSent, 2))
}

func TestEmailItemDescription(t *testing.T) {
	item := EmailItem{Email: model.EmailPreview{
		ID:      "m1",
		Sender:  "alice@example.com",
		Subject: "Status update",
		Date:    time.Now().Add(-2 * time.Hour),
	}}

	assert.Equal(t, "Status update", item.Title())
	assert.Equal(t, "Status update", item.FilterValue())
	assert.Equal(t, "alice@example.com | 2h ago", item.Description())
}

package model

import "time"

// Mailbox identifies one of the two independently paginated mailbox views.
type Mailbox string

const (
	MailboxInbox Mailbox = "inbox"
	MailboxSent  Mailbox = "sent"
)

// EmailPreview is the list representation of a message. Previews are
// immutable once fetched; a re-fetch supersedes them wholesale.
type EmailPreview struct {
	// ID is the opaque, provider-assigned message identifier.
	ID string `json:"id"`

	// Sender is the display string of the originating address. For the
	// sent mailbox this holds the recipient instead.
	Sender string `json:"sender"`

	// Subject is the message subject line.
	Subject string `json:"subject"`

	// Snippet is a truncated preview of the message body.
	Snippet string `json:"snippet"`

	// Date is the message timestamp.
	Date time.Time `json:"date"`

	// Unread reports whether the message still carries the unread flag.
	Unread bool `json:"unread"`
}

// EmailDetail extends EmailPreview with the full message body. At most one
// detail is held at a time (the selected message).
type EmailDetail struct {
	EmailPreview

	// Body is the raw HTML or plain-text message body.
	Body string `json:"body"`
}

// PaginatedEmails is one page of a mailbox listing. NextPageToken is the
// opaque continuation token for the following page; empty means last page.
type PaginatedEmails struct {
	Messages      []EmailPreview `json:"messages"`
	NextPageToken string         `json:"nextPageToken"`
}

// SendEmailPayload carries a new outgoing message.
type SendEmailPayload struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// ReplyEmailPayload carries the body of a reply to an existing message.
type ReplyEmailPayload struct {
	Body string `json:"body"`
}

// ForwardEmailPayload carries the recipients and cover note of a forward.
type ForwardEmailPayload struct {
	To   []string `json:"to"`
	Body string   `json:"body"`
}

// UserProfile describes the authenticated account owner.
type UserProfile struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture,omitempty"`
}

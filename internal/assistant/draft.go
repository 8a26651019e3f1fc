package assistant

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jsean662/MailFlowAI/internal/model"
)

// Draft is the compose working state shared between the compose form and
// the assistant's compose tools.
type Draft struct {
	To      string
	Subject string
	Body    string
}

// Empty reports whether nothing has been drafted yet.
func (d Draft) Empty() bool {
	return d.To == "" && d.Subject == "" && d.Body == ""
}

// Recipients splits the To line into individual addresses.
func (d Draft) Recipients() []string {
	parts := strings.Split(d.To, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// DraftManager holds the single compose draft. Both the UI and the
// assistant read and write it.
type DraftManager struct {
	mu    sync.Mutex
	draft Draft
}

// NewDraftManager creates an empty draft manager.
func NewDraftManager() *DraftManager {
	return &DraftManager{}
}

// Current returns the draft as it stands.
func (m *DraftManager) Current() Draft {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draft
}

// Set replaces the draft wholesale.
func (m *DraftManager) Set(d Draft) {
	m.mu.Lock()
	m.draft = d
	m.mu.Unlock()
}

// Clear drops the draft.
func (m *DraftManager) Clear() {
	m.mu.Lock()
	m.draft = Draft{}
	m.mu.Unlock()
}

// SetReply seeds the draft as a reply to the given message: recipient is
// the original sender, the subject gains a Re: prefix unless it already
// has one, and the original body rides below as a quote.
func (m *DraftManager) SetReply(email *model.EmailDetail, additionalContent string) {
	if email == nil {
		return
	}

	subject := email.Subject
	if !strings.HasPrefix(subject, "Re:") {
		subject = "Re: " + subject
	}

	prefix := ""
	if additionalContent != "" {
		prefix = additionalContent + "\n\n"
	}

	m.Set(Draft{
		To:      email.Sender,
		Subject: subject,
		Body:    prefix + "\n\n> " + email.Body,
	})
}

// SetForward seeds the draft as a forward of the given message, with the
// original riding below the standard forwarded-message block.
func (m *DraftManager) SetForward(email *model.EmailDetail, additionalContent, to string) {
	if email == nil {
		return
	}

	subject := email.Subject
	if !strings.HasPrefix(subject, "Fwd:") {
		subject = "Fwd: " + subject
	}

	prefix := ""
	if additionalContent != "" {
		prefix = additionalContent + "\n\n"
	}

	body := fmt.Sprintf(
		"%s---------- Forwarded message ---------\nFrom: %s\nDate: %s\nSubject: %s\n\n%s",
		prefix, email.Sender, email.Date.Format("2006-01-02 15:04"), email.Subject, email.Body,
	)

	m.Set(Draft{
		To:      to,
		Subject: subject,
		Body:    body,
	})
}

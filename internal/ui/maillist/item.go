package maillist

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jsean662/MailFlowAI/internal/model"
	"github.com/jsean662/MailFlowAI/internal/theme"
)

// EmailItem wraps a model.EmailPreview so it can be used in a bubbles/list.
type EmailItem struct {
	Email model.EmailPreview
}

// FilterValue returns the string used for fuzzy filtering.
func (i EmailItem) FilterValue() string { return i.Email.Subject }

// Title returns the message subject for the list.
func (i EmailItem) Title() string { return i.Email.Subject }

// Description returns a short summary line for the list.
func (i EmailItem) Description() string {
	return i.Email.Sender + " | " + relativeTime(i.Email.Date)
}

// ItemDelegate implements list.ItemDelegate for rendering message rows.
type ItemDelegate struct{}

// Height returns the number of lines each row takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between rows.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single message row.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ei, ok := item.(EmailItem)
	if !ok {
		return
	}

	email := ei.Email
	isSelected := index == m.Index()

	var prefix string
	var senderStyle lipgloss.Style
	if email.Unread {
		prefix = "●"
		senderStyle = theme.UnreadStyle
	} else {
		prefix = " "
		senderStyle = theme.ReadStyle
	}

	sender := senderStyle.Render(truncate(email.Sender, 24))
	subject := email.Subject
	if subject == "" {
		subject = "(no subject)"
	}

	snippet := ""
	if email.Snippet != "" {
		snippet = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Render("  " + truncate(email.Snippet, 48))
	}

	timeStr := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(email.Date))

	line := fmt.Sprintf(
		"%s %-26s %s%s  %s",
		prefix, sender, subject, snippet, timeStr,
	)

	if isSelected {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// truncate shortens s to at most n runes, appending an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case d < 24*time.Hour:
		hrs := int(d.Hours())
		if hrs == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hrs)
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("Jan 02")
	}
}

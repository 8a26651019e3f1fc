package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jsean662/MailFlowAI/internal/keys"
	"github.com/jsean662/MailFlowAI/internal/mailstore"
	"github.com/jsean662/MailFlowAI/internal/model"
	"github.com/jsean662/MailFlowAI/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// ReplyRequestMsg asks the parent to open a reply draft for the message.
type ReplyRequestMsg struct {
	ID string
}

// ForwardRequestMsg asks the parent to open a forward draft for the message.
type ForwardRequestMsg struct {
	ID string
}

// DeleteRequestMsg asks the parent to delete the message.
type DeleteRequestMsg struct {
	ID string
}

// Model is the message detail view component.
type Model struct {
	store    *mailstore.Store
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new detail view model.
func New(s *mailstore.Store, k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		store:    s,
		viewport: vp,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Refresh re-renders the viewport from the store's selected message.
func (m *Model) Refresh() {
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		email := m.store.Selected()

		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg {
				return BackMsg{}
			}

		case key.Matches(msg, m.keys.Reply):
			if email != nil {
				return m, func() tea.Msg {
					return ReplyRequestMsg{ID: email.ID}
				}
			}

		case key.Matches(msg, m.keys.Forward):
			if email != nil {
				return m, func() tea.Msg {
					return ForwardRequestMsg{ID: email.ID}
				}
			}

		case key.Matches(msg, m.keys.Delete):
			if email != nil {
				return m, func() tea.Msg {
					return DeleteRequestMsg{ID: email.ID}
				}
			}
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.store.Loading() {
		return m.centered("Loading message...")
	}

	if m.store.Selected() == nil {
		return m.centered("No message selected")
	}

	return m.viewport.View()
}

func (m Model) centered(text string) string {
	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray).
		Render(text)
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	email := m.store.Selected()
	if email == nil {
		return ""
	}

	var sections []string

	subject := email.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(subject))

	boxBadge := theme.MailboxLabelStyle(m.store.ActiveMailbox()).
		Render(strings.ToUpper(string(m.store.ActiveMailbox())))
	badgeLine := boxBadge
	if email.Unread {
		badgeLine = lipgloss.JoinHorizontal(
			lipgloss.Top,
			boxBadge,
			"  ",
			theme.UnreadStyle.Render("UNREAD"),
		)
	}
	sections = append(sections, badgeLine)
	sections = append(sections, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	sections = append(sections, fmt.Sprintf(
		"%s  %s",
		metaStyle.Render("From:"),
		valStyle.Render(email.Sender),
	))
	if !email.Date.IsZero() {
		sections = append(sections, fmt.Sprintf(
			"%s  %s",
			metaStyle.Render("Date:"),
			valStyle.Render(email.Date.Format("2006-01-02 15:04")),
		))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", min(m.width-4, 80)))
	sections = append(sections, "")
	sections = append(sections, separator)
	sections = append(sections, "")

	body := renderBody(email)
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No content")
	}
	sections = append(sections, body)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderBody flattens the message body for terminal display. HTML bodies
// get their tags stripped; plain text passes through.
func renderBody(email *model.EmailDetail) string {
	body := strings.TrimSpace(email.Body)
	if body == "" {
		return strings.TrimSpace(email.Snippet)
	}
	if strings.Contains(body, "<") && strings.Contains(body, ">") {
		return stripTags(body)
	}
	return body
}

// stripTags removes HTML tags and collapses runs of blank lines.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}

	lines := strings.Split(b.String(), "\n")
	var out []string
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if blank {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
}

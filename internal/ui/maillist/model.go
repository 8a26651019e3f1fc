package maillist

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jsean662/MailFlowAI/internal/keys"
	"github.com/jsean662/MailFlowAI/internal/mailstore"
	"github.com/jsean662/MailFlowAI/internal/model"
	"github.com/jsean662/MailFlowAI/internal/theme"
)

// ReloadMsg signals that the mail store changed and views should re-read it.
type ReloadMsg struct{}

// OpenRequestMsg asks the parent to open the message with the given ID.
type OpenRequestMsg struct {
	ID string
}

// Model is the mailbox list view component.
type Model struct {
	list        list.Model
	store       *mailstore.Store
	keys        *keys.KeyMap
	searchMode  bool
	searchInput textinput.Model
	width       int
	height      int
}

// New creates a new mail list model over the shared store.
func New(s *mailstore.Store, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = "Inbox"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "search mail..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:        l,
		store:       s,
		keys:        k,
		searchInput: si,
		width:       width,
		height:      height,
	}
}

// Init returns a command that loads the first inbox page.
func (m Model) Init() tea.Cmd {
	s := m.store
	return func() tea.Msg {
		s.FetchPage(context.Background(), model.MailboxInbox, "", false)
		return ReloadMsg{}
	}
}

// SyncFromStore re-reads the store and replaces the list contents. The
// search overlay, when active, takes precedence over the mailbox page.
func (m *Model) SyncFromStore() tea.Cmd {
	var emails []model.EmailPreview

	if results, query, ok := m.store.SearchResults(); ok {
		emails = results
		m.list.Title = fmt.Sprintf("Search: %s (%d)", query, len(results))
	} else {
		box := m.store.ActiveMailbox()
		emails = m.store.Emails(box)
		m.list.Title = mailboxTitle(box, m.store.Page(box))
	}

	items := make([]list.Item, len(emails))
	for i, e := range emails {
		items[i] = EmailItem{Email: e}
	}
	return m.list.SetItems(items)
}

// mailboxTitle formats the list title for the given mailbox and page.
func mailboxTitle(box model.Mailbox, page int) string {
	name := "Inbox"
	if box == model.MailboxSent {
		name = "Sent"
	}
	if page <= 1 {
		return name
	}
	return fmt.Sprintf("%s (page %d)", name, page)
}

// TypingActive reports whether the search prompt currently owns the
// keyboard, so parents should not intercept character keys.
func (m Model) TypingActive() bool {
	return m.searchMode
}

// SelectedID returns the ID of the currently focused message, if any.
func (m Model) SelectedID() (string, bool) {
	item, ok := m.list.SelectedItem().(EmailItem)
	if !ok {
		return "", false
	}
	return item.Email.ID, true
}

// Update handles messages for the mail list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ReloadMsg:
		return m, m.SyncFromStore()

	case tea.KeyMsg:
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleSearchKeys processes key input while the search prompt is open.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		query := m.searchInput.Value()
		s := m.store
		return m, func() tea.Msg {
			s.Search(context.Background(), query)
			return ReloadMsg{}
		}

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// handleNormalKeys processes key input in normal (non-search) mode.
func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	s := m.store

	switch {
	case key.Matches(msg, m.keys.Select):
		item, ok := m.list.SelectedItem().(EmailItem)
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return OpenRequestMsg{ID: item.Email.ID}
		}

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.Reset()
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.Back):
		if m.store.SearchActive() {
			return m, func() tea.Msg {
				s.ClearSearch()
				return ReloadMsg{}
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Inbox):
		return m, m.switchMailbox(model.MailboxInbox)

	case key.Matches(msg, m.keys.Sent):
		return m, m.switchMailbox(model.MailboxSent)

	case key.Matches(msg, m.keys.NextPage):
		if m.store.SearchActive() {
			return m, nil
		}
		box := m.store.ActiveMailbox()
		return m, func() tea.Msg {
			s.GoToNextPage(context.Background(), box)
			return ReloadMsg{}
		}

	case key.Matches(msg, m.keys.PrevPage):
		if m.store.SearchActive() {
			return m, nil
		}
		box := m.store.ActiveMailbox()
		return m, func() tea.Msg {
			s.GoToPrevPage(context.Background(), box)
			return ReloadMsg{}
		}

	case key.Matches(msg, m.keys.Delete):
		item, ok := m.list.SelectedItem().(EmailItem)
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			s.DeleteMessage(context.Background(), item.Email.ID)
			return ReloadMsg{}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// switchMailbox activates the given mailbox. Opening the inbox
// acknowledges pending new mail and refreshes page 1; other mailboxes
// fetch their first page only when not loaded yet.
func (m Model) switchMailbox(box model.Mailbox) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		if box == model.MailboxInbox {
			s.ViewInbox(context.Background())
			return ReloadMsg{}
		}
		s.SetActiveMailbox(box)
		if len(s.Emails(box)) == 0 {
			s.FetchPage(context.Background(), box, "", false)
		}
		return ReloadMsg{}
	}
}

// View renders the mail list view.
func (m Model) View() string {
	if m.searchMode {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		return lipgloss.JoinVertical(lipgloss.Left, searchBar, m.list.View())
	}

	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}

	return m.list.View()
}

// renderEmptyState shows guidance text when no messages are available.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.store.SearchActive() {
		return style.Render("No matching messages.\nPress esc to clear the search.")
	}
	if m.store.Loading() {
		return style.Render("Loading...")
	}
	return style.Render("No messages.")
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchInput.Width = width - 4
}

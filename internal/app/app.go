package app

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jsean662/MailFlowAI/internal/assistant"
	"github.com/jsean662/MailFlowAI/internal/gateway"
	"github.com/jsean662/MailFlowAI/internal/mailstore"
	"github.com/jsean662/MailFlowAI/internal/model"
	appsync "github.com/jsean662/MailFlowAI/internal/sync"
	"github.com/jsean662/MailFlowAI/internal/theme"
	"github.com/jsean662/MailFlowAI/internal/ui"
	aiview "github.com/jsean662/MailFlowAI/internal/ui/ai"
	"github.com/jsean662/MailFlowAI/internal/ui/command"
	"github.com/jsean662/MailFlowAI/internal/ui/compose"
	"github.com/jsean662/MailFlowAI/internal/ui/detail"
	"github.com/jsean662/MailFlowAI/internal/ui/filterform"
	helpview "github.com/jsean662/MailFlowAI/internal/ui/help"
	"github.com/jsean662/MailFlowAI/internal/ui/maillist"
)

// sendResultMsg reports the outcome of a compose form submission.
type sendResultMsg struct {
	err error
}

// profileLoadedMsg signals that the account profile has been stored.
type profileLoadedMsg struct{}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewCompose
	ViewFilter
	ViewAI
	ViewHelp
	ViewCommand
	ViewConfirmSend
)

// Model is the root Bubble Tea model that manages view routing, layout,
// and access to the mail state store.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	store        *mailstore.Store
	gw           gateway.Gateway
	auth         gateway.Authenticator
	keys         *KeyMap
	mailList     maillist.Model
	detailView   detail.Model
	composeView  compose.Model
	filterView   filterform.Model
	aiView       aiview.Model
	helpView     helpview.Model
	commandView  command.Model
	poller       *appsync.Poller
	drafts       *assistant.DraftManager
	sink         *NotificationSink
	bridge       *assistantBridge

	ready            bool
	banner           string
	authErrorMessage string
	pendingConfirm   *confirmRequestMsg
}

// New creates the root application model. auth and ai may be nil when the
// gateway has no session layer or no API key is configured.
func New(
	s *mailstore.Store,
	gw gateway.Gateway,
	auth gateway.Authenticator,
	p *appsync.Poller,
	ai *assistant.Assistant,
	drafts *assistant.DraftManager,
	sink *NotificationSink,
) Model {
	keys := DefaultKeyMap()
	bridge := newAssistantBridge()

	if ai != nil {
		ai.SetNavigate(bridge.navigate)
		ai.SetConfirmSend(bridge.confirmSend)
	}

	return Model{
		currentView: ViewList,
		store:       s,
		gw:          gw,
		auth:        auth,
		keys:        keys,
		mailList:    maillist.New(s, keys, 80, 24),
		detailView:  detail.New(s, keys, 80, 24),
		composeView: compose.New(80, 24),
		filterView:  filterform.New(80, 24),
		aiView:      aiview.New(ai, keys, 80, 24),
		helpView:    helpview.New(keys, 80, 24),
		commandView: command.New(80, 24),
		poller:      p,
		drafts:      drafts,
		sink:        sink,
		bridge:      bridge,
	}
}

// Init loads the first inbox page, starts polling, and opens the
// long-lived subscriptions for notifications and assistant callbacks.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.mailList.Init(),
		m.poller.Start(),
		m.sink.wait(),
		m.bridge.waitForNav(),
		m.bridge.waitForConfirm(),
		m.loadProfile(),
	)
}

// loadProfile fetches the account owner's profile into the store.
func (m Model) loadProfile() tea.Cmd {
	auth := m.auth
	s := m.store
	if auth == nil {
		return nil
	}
	return func() tea.Msg {
		profile, err := auth.CurrentUserProfile(context.Background())
		if err == nil && profile != nil {
			s.SetProfile(profile)
		}
		return profileLoadedMsg{}
	}
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.mailList.SetSize(contentWidth, contentHeight)
		m.detailView.SetSize(contentWidth, contentHeight)
		m.composeView.SetSize(contentWidth, contentHeight)
		m.filterView.SetSize(contentWidth, contentHeight)
		m.aiView.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case maillist.ReloadMsg:
		cmd := m.mailList.SyncFromStore()
		m.detailView.Refresh()
		return m, cmd

	case profileLoadedMsg:
		return m, nil

	case maillist.OpenRequestMsg:
		m.previousView = m.currentView
		m.currentView = ViewDetail
		s := m.store
		id := msg.ID
		return m, func() tea.Msg {
			s.OpenMessage(context.Background(), id)
			return maillist.ReloadMsg{}
		}

	case detail.BackMsg:
		m.store.ClearSelected()
		m.currentView = ViewList
		return m, m.mailList.SyncFromStore()

	case detail.ReplyRequestMsg:
		email := m.store.Selected()
		if email == nil {
			return m, nil
		}
		m.drafts.SetReply(email, "")
		m.previousView = m.currentView
		m.currentView = ViewCompose
		return m, m.composeView.Start(compose.ModeReply, msg.ID, m.drafts.Current())

	case detail.ForwardRequestMsg:
		email := m.store.Selected()
		if email == nil {
			return m, nil
		}
		m.drafts.SetForward(email, "", "")
		m.previousView = m.currentView
		m.currentView = ViewCompose
		return m, m.composeView.Start(compose.ModeForward, msg.ID, m.drafts.Current())

	case detail.DeleteRequestMsg:
		m.currentView = ViewList
		s := m.store
		id := msg.ID
		return m, func() tea.Msg {
			s.DeleteMessage(context.Background(), id)
			return maillist.ReloadMsg{}
		}

	case compose.SubmitMsg:
		m.currentView = m.previousView
		return m, m.deliverDraft(msg)

	case compose.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case sendResultMsg:
		if msg.err != nil {
			m.banner = theme.ErrorStyle.Render("Send failed: " + msg.err.Error())
		} else {
			m.banner = "Message sent"
			m.drafts.Clear()
		}
		return m, func() tea.Msg { return maillist.ReloadMsg{} }

	case filterform.AppliedMsg:
		m.currentView = ViewList
		s := m.store
		criteria := msg.Criteria
		return m, func() tea.Msg {
			s.SetFilters(criteria)
			s.ApplyFilters(context.Background())
			return maillist.ReloadMsg{}
		}

	case filterform.ClearedMsg:
		m.currentView = ViewList
		s := m.store
		return m, func() tea.Msg {
			s.ClearFilters(context.Background())
			return maillist.ReloadMsg{}
		}

	case filterform.CancelMsg:
		m.currentView = ViewList
		return m, nil

	case aiview.PanelCloseMsg:
		m.aiView.Reset()
		m.currentView = ViewList
		return m, m.mailList.SyncFromStore()

	case aiview.ResponseChunkMsg:
		// Tool calls mutate the store mid-stream, so keep the list fresh.
		var cmd tea.Cmd
		m.aiView, cmd = m.aiView.Update(msg)
		return m, tea.Batch(cmd, m.mailList.SyncFromStore())

	case navigateMsg:
		return m.handleNavigate(msg.view)

	case confirmRequestMsg:
		m.pendingConfirm = &msg
		if m.currentView != ViewConfirmSend {
			m.previousView = m.currentView
		}
		m.currentView = ViewConfirmSend
		return m, nil

	case notificationMsg:
		m.banner = theme.NotificationStyle(msg.notification.Level).
			Render(msg.notification.Message)
		return m, tea.Batch(m.sink.wait(), m.mailList.SyncFromStore())

	case appsync.PollResultMsg:
		if msg.AuthExpired {
			m.authErrorMessage = "Session expired. Please sign in again."
		} else if msg.Error == nil {
			m.authErrorMessage = ""
		}
		return m, tea.Batch(
			m.mailList.SyncFromStore(),
			m.poller.WaitForResult(),
		)

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case tea.KeyMsg:
		m.banner = ""
		if newModel, cmd, handled := m.handleGlobalKeys(msg); handled {
			return newModel, cmd
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleNavigate switches the view at an assistant tool's request and
// re-arms the navigation subscription.
func (m Model) handleNavigate(view string) (tea.Model, tea.Cmd) {
	wait := m.bridge.waitForNav()

	switch view {
	case "inbox":
		m.currentView = ViewList
		s := m.store
		fetch := func() tea.Msg {
			s.ViewInbox(context.Background())
			return maillist.ReloadMsg{}
		}
		return m, tea.Batch(wait, fetch)

	case "sent":
		m.store.SetActiveMailbox(model.MailboxSent)
		m.currentView = ViewList
		s := m.store
		fetch := func() tea.Msg {
			if len(s.Emails(model.MailboxSent)) == 0 {
				s.FetchPage(context.Background(), model.MailboxSent, "", false)
			}
			return maillist.ReloadMsg{}
		}
		return m, tea.Batch(wait, fetch)

	case "compose":
		m.previousView = ViewList
		m.currentView = ViewCompose
		return m, tea.Batch(
			wait,
			m.composeView.Start(compose.ModeNew, "", m.drafts.Current()),
		)

	case "detail":
		m.previousView = ViewList
		m.currentView = ViewDetail
		m.detailView.Refresh()
		return m, wait
	}

	return m, wait
}

// deliverDraft sends a submitted compose form through the appropriate
// store or gateway operation.
func (m Model) deliverDraft(msg compose.SubmitMsg) tea.Cmd {
	s := m.store
	gw := m.gw

	switch msg.Mode {
	case compose.ModeReply:
		return func() tea.Msg {
			err := s.ReplyTo(context.Background(), msg.SourceID, msg.Draft.Body)
			return sendResultMsg{err: err}
		}

	case compose.ModeForward:
		return func() tea.Msg {
			err := s.Forward(
				context.Background(),
				msg.SourceID,
				msg.Draft.Recipients(),
				msg.Draft.Body,
			)
			return sendResultMsg{err: err}
		}

	default:
		payload := model.SendEmailPayload{
			To:      msg.Draft.Recipients(),
			Subject: msg.Draft.Subject,
			Body:    msg.Draft.Body,
		}
		return func() tea.Msg {
			err := gw.SendMessage(context.Background(), payload)
			return sendResultMsg{err: err}
		}
	}
}

// handleGlobalKeys processes keys that apply across views. Views with
// free-text input only honor ctrl+c here.
func (m Model) handleGlobalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		m.poller.Stop()
		return m, tea.Quit, true
	}

	if m.currentView == ViewConfirmSend {
		return m.handleConfirmKeys(msg)
	}

	// Text-entry views consume every other key themselves.
	switch m.currentView {
	case ViewCompose, ViewFilter, ViewAI, ViewCommand:
		return m, nil, false
	}
	if m.currentView == ViewList && m.mailList.TypingActive() {
		return m, nil, false
	}

	switch msg.String() {
	case "q":
		if m.currentView == ViewList {
			m.poller.Stop()
			return m, tea.Quit, true
		}

	case "?":
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true

	case ":":
		if m.currentView == ViewCommand {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m, m.commandView.Focus(), true

	case "a":
		if m.currentView == ViewList {
			m.previousView = m.currentView
			m.currentView = ViewAI
			return m, m.aiView.Focus(), true
		}

	case "c":
		if m.currentView == ViewList {
			m.previousView = m.currentView
			m.currentView = ViewCompose
			return m, m.composeView.Start(
				compose.ModeNew, "", assistant.Draft{},
			), true
		}

	case "F":
		if m.currentView == ViewList {
			m.previousView = m.currentView
			m.currentView = ViewFilter
			return m, m.filterView.Start(m.store.Filters()), true
		}

	case "r":
		if m.currentView == ViewList {
			m.store.ResetNewEmailsCount()
			m.poller.Refresh()
			return m, m.mailList.SyncFromStore(), true
		}
	}

	return m, nil, false
}

// handleConfirmKeys resolves a pending send confirmation.
func (m Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if m.pendingConfirm == nil {
		m.currentView = m.previousView
		return m, nil, true
	}

	switch msg.String() {
	case "y", "Y":
		m.pendingConfirm.reply <- true
		m.pendingConfirm = nil
		m.currentView = m.previousView
		return m, m.bridge.waitForConfirm(), true

	case "n", "N", "esc":
		m.pendingConfirm.reply <- false
		m.pendingConfirm = nil
		m.currentView = m.previousView
		return m, m.bridge.waitForConfirm(), true
	}

	return m, nil, true
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.mailList, cmd = m.mailList.Update(msg)
	case ViewDetail:
		m.detailView, cmd = m.detailView.Update(msg)
	case ViewCompose:
		m.composeView, cmd = m.composeView.Update(msg)
	case ViewFilter:
		m.filterView, cmd = m.filterView.Update(msg)
	case ViewAI:
		m.aiView, cmd = m.aiView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	headerTitle := "MailFlow"
	if profile := m.store.Profile(); profile != nil && profile.Email != "" {
		headerTitle = "MailFlow " + profile.Email
	}
	if n := m.store.NewEmailsCount(); n > 0 {
		headerTitle = fmt.Sprintf("%s [%d new]", headerTitle, n)
	}

	header := m.layout.RenderHeader(headerTitle, m.pollStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.statusLine())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		return m.mailList.View()
	case ViewDetail:
		return m.detailView.View()
	case ViewCompose:
		return m.composeView.View()
	case ViewFilter:
		return m.filterView.View()
	case ViewAI:
		return m.aiView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewConfirmSend:
		return m.renderConfirmSend()
	default:
		return ""
	}
}

// renderConfirmSend shows the draft awaiting the user's approval.
func (m Model) renderConfirmSend() string {
	if m.pendingConfirm == nil {
		return ""
	}
	d := m.pendingConfirm.draft

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Render("Send this message?"),
		fmt.Sprintf("%s      %s", metaStyle.Render("To:"), valStyle.Render(d.To)),
		fmt.Sprintf("%s %s", metaStyle.Render("Subject:"), valStyle.Render(d.Subject)),
		"",
		valStyle.Render(d.Body),
		"",
		theme.HelpStyle.Render("y send | n cancel"),
	)

	return theme.DetailPanelStyle.
		Width(m.layout.ContentWidth() - 4).
		Render(content)
}

// pollStatus returns a short string describing the background poll state.
func (m Model) pollStatus() string {
	status := m.poller.Status()
	switch status.State {
	case appsync.PollRunning:
		return "checking mail"
	case appsync.PollError:
		return "⚠ poll failed"
	default:
		if status.LastPoll.IsZero() {
			return "idle"
		}
		return "checked " + status.LastPoll.Format("15:04")
	}
}

// statusLine returns the text for the bottom status bar.
func (m Model) statusLine() string {
	if m.banner != "" {
		return m.banner
	}
	if m.authErrorMessage != "" && m.currentView == ViewList {
		return theme.ErrorStyle.Render(m.authErrorMessage)
	}
	if errMsg := m.store.Err(); errMsg != "" && m.currentView == ViewList {
		return theme.ErrorStyle.Render(errMsg)
	}
	return m.keyHints()
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return ": close command | enter execute | esc back"
	case ViewDetail:
		return "esc back | R reply | f forward | d delete | j/k scroll"
	case ViewCompose:
		return "enter submit | esc cancel"
	case ViewFilter:
		return "enter submit | esc cancel"
	case ViewAI:
		return "enter send | esc close"
	case ViewConfirmSend:
		return "y send | n cancel"
	default:
		return "q quit | ? help | 1 inbox | 2 sent | / search | F filters | c compose | a assistant"
	}
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	s := m.store

	switch cmd {
	case "inbox":
		m.currentView = ViewList
		return func() tea.Msg {
			s.ViewInbox(context.Background())
			return maillist.ReloadMsg{}
		}
	case "sent":
		m.currentView = ViewList
		return func() tea.Msg {
			s.SetActiveMailbox(model.MailboxSent)
			if len(s.Emails(model.MailboxSent)) == 0 {
				s.FetchPage(context.Background(), model.MailboxSent, "", false)
			}
			return maillist.ReloadMsg{}
		}
	case "refresh", "sync":
		m.poller.Refresh()
		return m.mailList.SyncFromStore()
	case "compose", "new":
		m.previousView = ViewList
		m.currentView = ViewCompose
		return m.composeView.Start(compose.ModeNew, "", assistant.Draft{})
	case "filters", "filter":
		m.previousView = ViewList
		m.currentView = ViewFilter
		return m.filterView.Start(m.store.Filters())
	case "clear", "clear filters":
		m.currentView = ViewList
		return func() tea.Msg {
			s.ClearFilters(context.Background())
			return maillist.ReloadMsg{}
		}
	case "assistant", "ai":
		m.previousView = ViewList
		m.currentView = ViewAI
		return m.aiView.Focus()
	case "logout":
		auth := m.auth
		p := m.poller
		if auth == nil {
			return nil
		}
		return func() tea.Msg {
			_ = auth.Logout(context.Background())
			p.Stop()
			return tea.Quit()
		}
	case "quit", "q":
		m.poller.Stop()
		return tea.Quit
	default:
		return nil
	}
}

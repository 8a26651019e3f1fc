package compose

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/jsean662/MailFlowAI/internal/assistant"
	"github.com/jsean662/MailFlowAI/internal/theme"
)

// Mode selects how the submitted draft is delivered.
type Mode int

const (
	// ModeNew sends a fresh message.
	ModeNew Mode = iota
	// ModeReply replies to the source message.
	ModeReply
	// ModeForward forwards the source message.
	ModeForward
)

// SubmitMsg is dispatched when the user submits the compose form.
type SubmitMsg struct {
	Mode     Mode
	SourceID string
	Draft    assistant.Draft
}

// CancelMsg is dispatched when the user cancels the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	to      string
	subject string
	body    string
}

// Model is the Bubble Tea model for the compose/reply/forward form.
type Model struct {
	form     *huh.Form
	fb       *formBindings
	mode     Mode
	sourceID string
	width    int
	height   int
}

// New creates a new compose form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start initializes the form for the given mode, prefilled from the draft.
// sourceID identifies the message being replied to or forwarded and is
// ignored for ModeNew.
func (m *Model) Start(mode Mode, sourceID string, draft assistant.Draft) tea.Cmd {
	m.mode = mode
	m.sourceID = sourceID
	m.fb.to = strings.Join(draft.Recipients(), ", ")
	m.fb.subject = draft.Subject
	m.fb.body = draft.Body
	m.form = m.buildForm()
	return m.form.Init()
}

func (m *Model) buildForm() *huh.Form {
	var fields []huh.Field

	// Replies go back to the original sender; the address is fixed.
	if m.mode != ModeReply {
		fields = append(fields,
			huh.NewInput().
				Title("To").
				Placeholder("alice@example.com, bob@example.com").
				Value(&m.fb.to).
				Validate(validateRecipients),
		)
	}

	fields = append(fields,
		huh.NewInput().
			Title("Subject").
			Value(&m.fb.subject),
		huh.NewText().
			Title("Body").
			Value(&m.fb.body),
	)

	return huh.NewForm(
		huh.NewGroup(fields...),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

// Update handles messages for the compose form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.handleSubmit()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

func (m Model) handleSubmit() tea.Cmd {
	draft := assistant.Draft{
		To:      m.fb.to,
		Subject: m.fb.subject,
		Body:    m.fb.body,
	}
	mode := m.mode
	sourceID := m.sourceID

	return func() tea.Msg {
		return SubmitMsg{Mode: mode, SourceID: sourceID, Draft: draft}
	}
}

// View renders the compose form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Message"
	switch m.mode {
	case ModeReply:
		titleText = "Reply"
	case ModeForward:
		titleText = "Forward"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render(titleText) + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

func validateRecipients(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("at least one recipient is required")
	}
	for _, addr := range strings.Split(s, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if !strings.Contains(addr, "@") {
			return fmt.Errorf("invalid address: %s", addr)
		}
	}
	return nil
}

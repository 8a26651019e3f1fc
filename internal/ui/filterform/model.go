package filterform

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/jsean662/MailFlowAI/internal/model"
	"github.com/jsean662/MailFlowAI/internal/theme"
)

// AppliedMsg is dispatched when the user applies the filter form.
type AppliedMsg struct {
	Criteria model.FilterCriteria
}

// ClearedMsg is dispatched when the user clears all filters.
type ClearedMsg struct{}

// CancelMsg is dispatched when the user cancels the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	keyword    string
	sender     string
	dateRange  string
	dateCenter string
	readStatus string
	attachment bool
	clear      bool
}

// Model is the Bubble Tea model for the search filter form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	width  int
	height int
}

// New creates a new filter form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start initializes the form, prefilled from the given criteria.
func (m *Model) Start(c model.FilterCriteria) tea.Cmd {
	m.fb.keyword = c.Keyword
	m.fb.sender = c.Sender
	m.fb.dateRange = c.DateRange
	if m.fb.dateRange == "" {
		m.fb.dateRange = model.DateRangeAll
	}
	m.fb.dateCenter = c.DateCenter
	if m.fb.dateCenter == "" {
		m.fb.dateCenter = time.Now().Format("2006/01/02")
	}
	m.fb.readStatus = string(c.ReadStatus)
	if m.fb.readStatus == "" {
		m.fb.readStatus = string(model.ReadStatusAll)
	}
	m.fb.attachment = c.HasAttachment
	m.fb.clear = false
	m.form = m.buildForm()
	return m.form.Init()
}

func (m *Model) buildForm() *huh.Form {
	rangeOpts := make([]huh.Option[string], len(model.DateRanges))
	for i, r := range model.DateRanges {
		label := r
		if r == model.DateRangeAll {
			label = "Any time"
		}
		rangeOpts[i] = huh.NewOption(label, r)
	}

	fields := []huh.Field{
		huh.NewInput().
			Title("Keyword").
			Placeholder("words or raw query syntax").
			Value(&m.fb.keyword),
		huh.NewInput().
			Title("From").
			Placeholder("sender address (optional)").
			Value(&m.fb.sender),
		huh.NewSelect[string]().
			Title("Date range").
			Options(rangeOpts...).
			Value(&m.fb.dateRange),
		huh.NewInput().
			Title("Around date").
			Placeholder("YYYY/MM/DD").
			Value(&m.fb.dateCenter).
			Validate(validateDate),
		huh.NewSelect[string]().
			Title("Read status").
			Options(
				huh.NewOption("All", string(model.ReadStatusAll)),
				huh.NewOption("Unread only", string(model.ReadStatusUnread)),
				huh.NewOption("Read only", string(model.ReadStatusRead)),
			).
			Value(&m.fb.readStatus),
		huh.NewConfirm().
			Title("Has attachment").
			Value(&m.fb.attachment),
		huh.NewConfirm().
			Title("Clear all filters instead").
			Value(&m.fb.clear),
	}

	return huh.NewForm(
		huh.NewGroup(fields...),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

// Update handles messages for the filter form.
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
	if m.fb.clear {
		return func() tea.Msg { return ClearedMsg{} }
	}

	criteria := model.FilterCriteria{
		Keyword:       strings.TrimSpace(m.fb.keyword),
		Sender:        strings.TrimSpace(m.fb.sender),
		DateRange:     m.fb.dateRange,
		DateCenter:    strings.TrimSpace(m.fb.dateCenter),
		ReadStatus:    model.ReadStatus(m.fb.readStatus),
		HasAttachment: m.fb.attachment,
	}

	return func() tea.Msg {
		return AppliedMsg{Criteria: criteria}
	}
}

// View renders the filter form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("Search Filters") + "\n" + m.form.View()

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

func validateDate(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	_, err := time.Parse("2006/01/02", s)
	if err != nil {
		return fmt.Errorf("invalid date format, use YYYY/MM/DD")
	}
	return nil
}

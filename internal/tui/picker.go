package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/skybox-dev/skybox/internal/health"
	"github.com/skybox-dev/skybox/internal/session"
)

// Action is what the user chose in the picker.
type Action int

const (
	ActionNone Action = iota
	ActionAttach
	ActionNew
	ActionRemove
	ActionQuit
)

// Entry pairs a session with its probed health for display. The cmd
// layer probes; the picker only renders.
type Entry struct {
	Session *session.Session
	Status  health.Status
	Uptime  string
}

// PickerResult is the picker's outcome.
type PickerResult struct {
	Action  Action
	Session *session.Session
}

// sessionItem implements list.Item for one session row.
type sessionItem struct {
	entry Entry
}

func (i sessionItem) Title() string {
	return i.entry.Session.Name
}

func (i sessionItem) Description() string {
	sess := i.entry.Session
	return fmt.Sprintf("%s %s | %s | %s | %s",
		i.entry.Status.Icon(),
		sess.Agent,
		sess.Provider,
		i.entry.Uptime,
		sess.Branch,
	)
}

func (i sessionItem) FilterValue() string {
	return i.entry.Session.Name
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)
)

// Model is the bubbletea model for the session picker.
type Model struct {
	list     list.Model
	result   PickerResult
	quitting bool
	width    int
	height   int
}

// NewPicker builds the picker over the given entries, grouped by
// repository.
func NewPicker(entries []Entry) Model {
	items := buildGroupedItems(entries)

	l := list.New(items, newGroupedDelegate(), 80, 20)
	l.Title = fmt.Sprintf("skybox sessions (%d)", len(items)-headerCount(items))
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle

	// The first item is a group header; start on a session.
	skipHeaders(&l, 1)

	return Model{list: l}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, msg.Height-4)
		return m, nil

	case tea.KeyMsg:
		// Don't handle keys if filtering
		if m.list.FilterState() == list.Filtering {
			break
		}

		switch msg.String() {
		case "enter":
			if item, ok := m.list.SelectedItem().(sessionItem); ok {
				m.result = PickerResult{
					Action:  ActionAttach,
					Session: item.entry.Session,
				}
				m.quitting = true
				return m, tea.Quit
			}

		case "n":
			m.result = PickerResult{Action: ActionNew}
			m.quitting = true
			return m, tea.Quit

		case "d":
			if item, ok := m.list.SelectedItem().(sessionItem); ok {
				m.result = PickerResult{
					Action:  ActionRemove,
					Session: item.entry.Session,
				}
				m.quitting = true
				return m, tea.Quit
			}

		case "q", "esc", "ctrl+c":
			m.result = PickerResult{Action: ActionQuit}
			m.quitting = true
			return m, tea.Quit
		}

		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		if isHeaderSelected(&m.list) {
			skipHeaders(&m.list, navigationDirection(msg))
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	help := helpStyle.Render("[enter] Attach  [n] New  [d] Remove  [/] Filter  [q] Quit")

	return m.list.View() + "\n" + help
}

// Result returns the picker result.
func (m Model) Result() PickerResult {
	return m.result
}

// RunPicker runs the interactive session picker. With nothing to show
// it short-circuits to ActionNew.
func RunPicker(entries []Entry) (PickerResult, error) {
	if len(entries) == 0 {
		return PickerResult{Action: ActionNew}, nil
	}

	m := NewPicker(entries)
	p := tea.NewProgram(m, tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		return PickerResult{}, err
	}

	return finalModel.(Model).Result(), nil
}

// SimplePicker renders a plain listing for non-interactive terminals.
func SimplePicker(entries []Entry) string {
	var sb strings.Builder

	sb.WriteString("skybox sessions\n")
	sb.WriteString(strings.Repeat("─", 60) + "\n\n")

	if len(entries) == 0 {
		sb.WriteString("No sessions found.\n")
		sb.WriteString("Create one with: skybox up <name>\n")
		return sb.String()
	}

	for i, e := range entries {
		sess := e.Session
		sb.WriteString(fmt.Sprintf("%d. %s %s (%s on %s)\n",
			i+1, e.Status.Icon(), sess.Name, sess.Agent, sess.Provider))
		sb.WriteString(fmt.Sprintf("   Branch: %s | Up: %s\n\n",
			sess.Branch, e.Uptime))
	}

	return sb.String()
}

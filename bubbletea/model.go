package bubbletea

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/relay/terminal"
)

var _ tea.Model = Model{}

const label = "Enter your prompt: "

// Model is a single-line prompt. Enter submits, Esc or Ctrl+C cancels.
type Model struct {
	// Input is the text input component. Exported for test access.
	Input textinput.Model

	styles    terminal.Styles
	value     string
	submitted bool
	canceled  bool
}

// New creates a prompt Model.
func New(styles terminal.Styles) Model {
	ti := textinput.New()
	ti.Placeholder = DefaultPrompt
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 0

	return Model{Input: ti, styles: styles}
}

// Value returns the submitted prompt, or DefaultPrompt when it was blank.
func (m Model) Value() string { return orDefault(m.value) }

// Submitted reports whether the user pressed Enter.
func (m Model) Submitted() bool { return m.submitted }

// Canceled reports whether the user dismissed the prompt.
func (m Model) Canceled() bool { return m.canceled }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Input.Width = max(msg.Width-len(label)-1, 1)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			m.value = m.Input.Value()
			m.submitted = true
			m.Input.Blur()
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.canceled = true
			m.Input.Blur()
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if m.submitted || m.canceled {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.styles.Accent.Render(strings.TrimSpace(label)))
	b.WriteString(" ")
	b.WriteString(m.Input.View())
	b.WriteString("\n")
	b.WriteString(m.styles.Muted.Render("Enter to send, Esc to cancel"))
	return b.String()
}

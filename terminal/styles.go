// Package terminal renders agent events as streamed text.
package terminal

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/relay"
)

// Styles maps a Theme to lipgloss styles for streamed output.
type Styles struct {
	Accent   lipgloss.Style
	Thinking lipgloss.Style
	ToolCall lipgloss.Style
	Success  lipgloss.Style
	Error    lipgloss.Style
	Muted    lipgloss.Style
}

// NewStyles creates Styles from a Theme. The renderer decides whether the
// output supports color; a renderer over a non-terminal writer renders plain
// text.
func NewStyles(r *lipgloss.Renderer, t relay.Theme) Styles {
	return Styles{
		Accent:   r.NewStyle().Foreground(ansiColor(t.Accent)).Bold(true),
		Thinking: r.NewStyle().Foreground(ansiColor(t.Thinking)).Faint(true),
		ToolCall: r.NewStyle().Foreground(ansiColor(t.ToolCall)),
		Success:  r.NewStyle().Foreground(ansiColor(t.Success)),
		Error:    r.NewStyle().Foreground(ansiColor(t.Error)),
		Muted:    r.NewStyle().Foreground(ansiColor(t.Muted)).Faint(true),
	}
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}

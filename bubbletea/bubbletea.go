// Package bubbletea reads the user's prompt, interactively with a Bubble Tea
// text input when stdin is a terminal.
package bubbletea

import (
	"context"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/cockroachdb/errors"
	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/terminal"
	"github.com/mattn/go-isatty"
)

// DefaultPrompt is used when the user enters nothing.
const DefaultPrompt = "Demonstrate your tool usage."

// ErrCanceled indicates the user dismissed the interactive prompt.
var ErrCanceled = errors.New("prompt canceled")

// ReadPrompt returns the prompt for one turn. When in is a terminal the user
// is asked interactively; otherwise in is read to EOF. Blank input yields
// DefaultPrompt.
func ReadPrompt(ctx context.Context, in io.Reader, out io.Writer, theme relay.Theme) (string, error) {
	if f, ok := in.(*os.File); ok && isTerminal(f) {
		styles := terminal.NewStyles(lipgloss.NewRenderer(out), theme)
		return Run(ctx, New(styles), tea.WithInput(in), tea.WithOutput(out))
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", errors.Wrap(err, "read prompt")
	}
	return orDefault(string(data)), nil
}

// Run runs the prompt model until the user submits or cancels. The context
// quits the program when cancelled.
func Run(ctx context.Context, m Model, opts ...tea.ProgramOption) (string, error) {
	opts = append(opts, tea.WithContext(ctx))
	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.Wrap(err, "prompt")
	}
	fm, ok := final.(Model)
	if !ok || fm.Canceled() {
		return "", ErrCanceled
	}
	return fm.Value(), nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func orDefault(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultPrompt
	}
	return s
}

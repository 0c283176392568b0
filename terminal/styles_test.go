package terminal_test

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/terminal"
	"github.com/stretchr/testify/assert"
)

func TestNewStyles(t *testing.T) {
	t.Parallel()

	styles := terminal.NewStyles(lipgloss.NewRenderer(&bytes.Buffer{}), relay.DefaultTheme())

	assert.Equal(t, lipgloss.Color("5"), styles.Accent.GetForeground())
	assert.True(t, styles.Accent.GetBold())

	assert.Equal(t, lipgloss.Color("8"), styles.Thinking.GetForeground())
	assert.True(t, styles.Thinking.GetFaint())

	assert.Equal(t, lipgloss.Color("3"), styles.ToolCall.GetForeground())
	assert.Equal(t, lipgloss.Color("2"), styles.Success.GetForeground())
	assert.Equal(t, lipgloss.Color("1"), styles.Error.GetForeground())

	assert.Equal(t, lipgloss.Color("8"), styles.Muted.GetForeground())
	assert.True(t, styles.Muted.GetFaint())
}

func TestNewStylesPlainThemeYieldsNoColor(t *testing.T) {
	t.Parallel()

	styles := terminal.NewStyles(lipgloss.NewRenderer(&bytes.Buffer{}), relay.PlainTheme())

	assert.Equal(t, lipgloss.NoColor{}, styles.Accent.GetForeground())
	assert.Equal(t, lipgloss.NoColor{}, styles.Error.GetForeground())
}

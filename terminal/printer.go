package terminal

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/relay"
	rw "github.com/mattn/go-runewidth"
)

// Speaker prefixes.
const (
	speakerAssistant = "Assistant"
	speakerReasoning = "Assistant (reasoning)"
	speakerTool      = "Tool"
)

const (
	defaultArgWidth    = 200
	defaultResultLines = 20
)

// Printer writes agent events to a writer as they arrive. A speaker prefix is
// printed only when the speaker changes. Printer is not safe for concurrent
// use; the agent loop serializes event handler calls.
type Printer struct {
	w           io.Writer
	styles      Styles
	argWidth    int
	resultLines int
	speaker     string
	lineStart   bool
	held        string // unterminated escape sequence from the last delta
	err         error
}

// PrinterOption configures a Printer.
type PrinterOption func(*Printer)

// WithArgWidth truncates tool call arguments to n display cells. Zero
// disables truncation.
func WithArgWidth(n int) PrinterOption {
	return func(p *Printer) { p.argWidth = n }
}

// WithResultLines shows at most n lines of each tool result. Zero shows
// everything.
func WithResultLines(n int) PrinterOption {
	return func(p *Printer) { p.resultLines = n }
}

// WithStyles overrides the styles derived from the writer.
func WithStyles(s Styles) PrinterOption {
	return func(p *Printer) { p.styles = s }
}

// NewPrinter creates a Printer writing to w with theme colors. Color is used
// only when w is a terminal that supports it.
func NewPrinter(w io.Writer, theme relay.Theme, opts ...PrinterOption) *Printer {
	p := &Printer{
		w:           w,
		styles:      NewStyles(lipgloss.NewRenderer(w), theme),
		argWidth:    defaultArgWidth,
		resultLines: defaultResultLines,
		lineStart:   true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle renders one event. Its signature matches agent.WithEventHandler.
func (p *Printer) Handle(evt relay.Event) {
	switch e := evt.(type) {
	case relay.EventTextDelta:
		p.speak(speakerAssistant)
		p.write(p.cleanDelta(e.Delta))
		return
	case relay.EventThinkingDelta:
		p.speak(speakerReasoning)
		p.write(paint(p.styles.Thinking, p.cleanDelta(e.Delta)))
		return
	}

	p.held = ""
	switch e := evt.(type) {
	case relay.EventToolCallEnd:
		if !p.speak(speakerAssistant) {
			p.newline()
		}
		args := Sanitize(string(e.Call.Arguments))
		if args == "" {
			args = "{}"
		}
		if p.argWidth > 0 {
			args = rw.Truncate(args, p.argWidth, "…")
		}
		p.write(p.styles.ToolCall.Render("Calling tool -> "+Sanitize(e.Call.Name)) +
			" with args: " + paint(p.styles.Muted, args))
		p.newline()
	case relay.EventToolResult:
		if !p.speak(speakerTool) {
			p.newline()
		}
		style := p.styles.Success
		if e.IsError {
			style = p.styles.Error
		}
		content := limitLines(strings.TrimSpace(Sanitize(e.Content)), p.resultLines)
		p.write(paint(style, fmt.Sprintf("[Tool %s] -> %s", Sanitize(e.ToolName), content)))
		p.newline()
	case relay.EventState:
		if e.To == relay.StateFailed && e.Err != nil {
			p.newline()
			p.write(paint(p.styles.Error, "Error: "+Sanitize(e.Err.Error())))
			p.newline()
		}
	}
}

// cleanDelta sanitizes a streamed delta. A trailing escape sequence that the
// delta leaves open is held back and joined with the next delta.
func (p *Printer) cleanDelta(delta string) string {
	s := p.held + delta
	complete, tail := splitEscape(s)
	if len(tail) > maxHeld {
		complete, tail = s, ""
	}
	p.held = tail
	return Sanitize(complete)
}

// Finish ends the output with a newline and returns the first write error.
func (p *Printer) Finish() error {
	p.newline()
	return p.err
}

// speak prints the speaker prefix when the speaker changes and reports
// whether it did.
func (p *Printer) speak(who string) bool {
	if who == p.speaker {
		return false
	}
	p.speaker = who
	p.held = ""
	p.newline()
	p.write(p.styles.Accent.Render(who+":") + " ")
	return true
}

func (p *Printer) newline() {
	if !p.lineStart {
		p.write("\n")
	}
}

// paint styles each line of s separately so multi-line text is not padded
// into a block.
func paint(style lipgloss.Style, s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = style.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}

func (p *Printer) write(s string) {
	if s == "" || p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
	p.lineStart = strings.HasSuffix(s, "\n")
}

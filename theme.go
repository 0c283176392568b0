package relay

// Theme defines semantic color mappings using ANSI color indices (0-15).
// The user's terminal theme determines the actual RGB values, so the app
// automatically matches any color scheme. A negative index disables color.
type Theme struct {
	UserMsg  int // User message accent
	Thinking int // Reasoning text
	ToolCall int // Tool call header
	Error    int // Error messages
	Success  int // Tool results
	Muted    int // Placeholders, tool arguments
	Accent   int // Speaker prefixes
}

// DefaultTheme returns the default ANSI color mapping.
func DefaultTheme() Theme {
	return Theme{
		UserMsg:  4,
		Thinking: 8,
		ToolCall: 3,
		Error:    1,
		Success:  2,
		Muted:    8,
		Accent:   5,
	}
}

// PlainTheme returns a theme with every color disabled.
func PlainTheme() Theme {
	return Theme{-1, -1, -1, -1, -1, -1, -1}
}

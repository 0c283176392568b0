package agent

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// promptTimeLayout renders e.g. "Sunday, October 18, 2026 02:30:00 PM UTC (+0000)".
const promptTimeLayout = "Monday, January 02, 2006 03:04:05 PM MST (-0700)"

// SystemPrompt builds the system instruction for a turn. It embeds now and
// tells the model to answer in the user's language, or in fallback when the
// input gives no clear signal.
func SystemPrompt(now time.Time, fallback language.Tag) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an AI assistant operating in a tool-calling agent loop with MCP tools. Current date/time: %s\n", now.Format(promptTimeLayout))
	b.WriteString(`
Objectives:
- Be helpful, accurate, and concise.
- Use the available MCP tools when they improve correctness or save effort.
- Do not reveal internal chain-of-thought. Share conclusions and short justifications only.
`)
	fmt.Fprintf(&b, `
Language:
- Reply in the user's language if it is clear from the input; otherwise default to %s.
`, LanguageName(fallback))
	b.WriteString(`
Tool use policy:
- Call a tool only when it is needed to answer, and pass arguments that match its schema exactly.
- If a tool returns an error, explain it briefly and either correct the arguments or answer without the tool.
- Never invent tool results.

Output formatting:
- Prefer short paragraphs and lists.
- Show the final result clearly at the end of the answer.

Safety and quality:
- If a request is ambiguous, state your assumption before answering.
- If you cannot complete a request, say so and suggest a next step.
`)
	return b.String()
}

// LanguageName returns the English name of tag's base language, e.g.
// "French" for fr-CA. It falls back to the tag itself for unnamed languages.
func LanguageName(tag language.Tag) string {
	base, _ := tag.Base()
	if name := display.English.Languages().Name(base); name != "" {
		return name
	}
	return tag.String()
}

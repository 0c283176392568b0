package terminal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Sanitize makes text from the model or tool host safe to print: escape
// sequences and control characters are removed, CRLF becomes LF and tabs
// and newlines are kept.
func Sanitize(s string) string {
	s = ansi.Strip(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || (r > 0x1F && r != 0x7F) {
			return r
		}
		return -1
	}, s)
}

// maxHeld bounds how much of an unterminated escape sequence is held back
// waiting for the next delta.
const maxHeld = 256

// splitEscape splits s before a trailing escape sequence that is not yet
// terminated, so a sequence cut across two stream deltas can be completed by
// the next one.
func splitEscape(s string) (complete, tail string) {
	for i := 0; i < len(s); i++ {
		if s[i] != 0x1b {
			continue
		}
		end, ok := escapeEnd(s, i)
		if !ok {
			return s[:i], s[i:]
		}
		i = end - 1
	}
	return s, ""
}

// escapeEnd returns the index just past the escape sequence starting at i.
func escapeEnd(s string, i int) (int, bool) {
	if i+1 >= len(s) {
		return 0, false
	}
	switch s[i+1] {
	case '[':
		for j := i + 2; j < len(s); j++ {
			if s[j] >= 0x40 && s[j] <= 0x7e {
				return j + 1, true
			}
		}
		return 0, false
	case ']', 'P', '_', '^', 'X':
		for j := i + 2; j < len(s); j++ {
			switch {
			case s[j] == 0x07:
				return j + 1, true
			case s[j] == 0x1b && j+1 < len(s) && s[j+1] == '\\':
				return j + 2, true
			case s[j] == 0x1b && j+1 >= len(s):
				return 0, false
			}
		}
		return 0, false
	}
	j := i + 1
	for j < len(s) && s[j] >= 0x20 && s[j] <= 0x2f {
		j++
	}
	if j >= len(s) {
		return 0, false
	}
	return j + 1, true
}

// limitLines keeps the first n lines of s and notes how many were dropped.
// A non-positive n keeps everything.
func limitLines(s string, n int) string {
	if n <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	kept := strings.Join(lines[:n], "\n")
	return kept + fmt.Sprintf("\n… (%d more lines)", len(lines)-n)
}

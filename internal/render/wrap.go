package render

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// tabWidth is the number of spaces a tab expands to.
const tabWidth = 4

// Wrap splits text into lines no wider than width display columns. Words are
// kept whole unless a single word is wider than width; such a word is cut
// into chunks of width-1 columns followed by "-". Width 1 cuts every rune
// without hyphens. Width <= 0 yields nil.
func Wrap(text string, width int) []string {
	if width <= 0 {
		return nil
	}
	if runewidth.StringWidth(text) <= width {
		return []string{text}
	}
	if width == 1 {
		return splitRunes(text)
	}

	var (
		lines   []string
		current string
	)
	for _, word := range strings.Split(text, " ") {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if runewidth.StringWidth(candidate) <= width {
			current = candidate
			continue
		}
		if current != "" {
			lines = append(lines, current)
		}
		current = word
		for runewidth.StringWidth(current) > width {
			head, rest := cutColumns(current, width-1)
			if rest == "" {
				// A single rune wider than the hyphen budget.
				head, rest = cutColumns(current, width)
				lines = append(lines, head)
			} else {
				lines = append(lines, head+"-")
			}
			current = rest
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// cutColumns splits s after at most columns display columns. At least one
// rune is always taken so callers make progress.
func cutColumns(s string, columns int) (string, string) {
	used := 0
	for index, r := range s {
		w := runewidth.RuneWidth(r)
		if used+w > columns && index > 0 {
			return s[:index], s[index:]
		}
		used += w
	}
	return s, ""
}

// splitRunes returns each rune of s as its own line.
func splitRunes(s string) []string {
	lines := make([]string, 0, len(s))
	for _, r := range s {
		lines = append(lines, string(r))
	}
	return lines
}

// cleanLine expands tabs and drops control characters so record text can
// never move the terminal cursor or change attributes.
func cleanLine(s string) string {
	if !strings.ContainsFunc(s, isControl) {
		return s
	}
	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\t':
			builder.WriteString(strings.Repeat(" ", tabWidth))
		case isControl(r):
		default:
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f || (r >= 0x80 && r < 0xa0)
}

package render

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const (
	// ellipsis marks input hidden on either side of the window.
	ellipsis = "…"
	// busyIndicator is shown at the end of the input row while generating.
	busyIndicator = "[bot]"
	// minIndicatorSpace is the input width below which the indicator is hidden.
	minIndicatorSpace = 16
)

// inputWindow is the visible slice of the input buffer.
type inputWindow struct {
	// before is the text left of the cursor, including a leading marker.
	before string
	// under is the glyph under the cursor; a space past the end.
	under string
	// after is the text right of the cursor, including a trailing marker.
	after string
	// column is the cursor offset from the window start in display columns.
	column int
	// width is the display width of before+under+after.
	width int
	// start is the first visible rune index.
	start int
}

// windowInput fits buffer into columns, keeping the cursor visible. start is
// the previous first visible rune; the window only scrolls when the cursor
// would leave it.
func windowInput(buffer []rune, cursor int, columns int, start int) inputWindow {
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(buffer) {
		cursor = len(buffer)
	}

	// One extra cell past the end holds the cursor when it sits at the end.
	widths := make([]int, len(buffer)+1)
	total := 0
	for index, r := range buffer {
		widths[index] = runewidth.RuneWidth(r)
		total += widths[index]
	}
	widths[len(buffer)] = 1
	total++
	if widths[cursor] == 0 {
		widths[cursor] = 1
	}

	cells := len(widths)
	span := func(from, to int) int {
		used := 0
		for index := from; index < to; index++ {
			used += widths[index]
		}
		if from > 0 {
			used++
		}
		if to < cells {
			used++
		}
		return used
	}

	if total <= columns {
		start = 0
	}
	if start > cursor {
		start = cursor
	}
	if start < 0 {
		start = 0
	}

	end := start
	for end < cells && span(start, end+1) <= columns {
		end++
	}
	if end <= cursor {
		// Cursor ran off the right edge: pin it to the last column.
		end = cursor + 1
		start = cursor
		for start > 0 && span(start-1, end) <= columns {
			start--
		}
		for end < cells && span(start, end+1) <= columns {
			end++
		}
	}
	// Pull the window left when it has spare room at the tail.
	for end == cells && start > 0 && span(start-1, end) <= columns {
		start--
	}

	var before, after strings.Builder
	column := 0
	if start > 0 {
		before.WriteString(ellipsis)
		column++
	}
	for index := start; index < cursor; index++ {
		before.WriteRune(buffer[index])
		column += widths[index]
	}
	under := " "
	if cursor < len(buffer) {
		under = string(buffer[cursor])
	}
	for index := cursor + 1; index < end && index < len(buffer); index++ {
		after.WriteRune(buffer[index])
	}
	if end < cells {
		after.WriteString(ellipsis)
	}

	window := inputWindow{
		before: before.String(),
		under:  under,
		after:  after.String(),
		column: column,
		start:  start,
	}
	window.width = runewidth.StringWidth(window.before) + runewidth.StringWidth(window.under) + runewidth.StringWidth(window.after)
	return window
}

package render

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// screen is a minimal terminal model: it understands cursor positioning,
// erase display and printable text, and ignores every other sequence.
type screen struct {
	width  int
	height int
	cells  [][]string
	row    int
	col    int
	// moves counts cursor-position sequences seen.
	moves int
	// rowsTouched records every row a cursor-position sequence targeted.
	rowsTouched map[int]bool
}

func newScreen(width int, height int) *screen {
	s := &screen{width: width, height: height, row: 1, col: 1, rowsTouched: make(map[int]bool)}
	s.clear()
	return s
}

func (s *screen) clear() {
	s.cells = make([][]string, s.height)
	for row := range s.cells {
		s.cells[row] = make([]string, s.width)
		for col := range s.cells[row] {
			s.cells[row][col] = " "
		}
	}
}

// Feed applies raw output to the model.
func (s *screen) Feed(data string) {
	for len(data) > 0 {
		if data[0] == 0x1b && len(data) > 1 && data[1] == '[' {
			end := 2
			for end < len(data) && (data[end] < 0x40 || data[end] > 0x7e) {
				end++
			}
			if end >= len(data) {
				return
			}
			s.apply(data[2:end], data[end])
			data = data[end+1:]
			continue
		}
		r, size := utf8.DecodeRuneInString(data)
		data = data[size:]
		s.put(r)
	}
}

func (s *screen) apply(params string, final byte) {
	switch final {
	case 'H':
		row, col := 1, 1
		parts := strings.Split(params, ";")
		if len(parts) >= 1 && parts[0] != "" {
			row, _ = strconv.Atoi(parts[0])
		}
		if len(parts) >= 2 && parts[1] != "" {
			col, _ = strconv.Atoi(parts[1])
		}
		s.row, s.col = row, col
		s.moves++
		s.rowsTouched[row] = true
	case 'J':
		if params == "2" || params == "3" {
			s.clear()
		}
	}
}

func (s *screen) put(r rune) {
	if s.row < 1 || s.row > s.height || s.col < 1 {
		return
	}
	width := runewidth.RuneWidth(r)
	if s.col <= s.width {
		s.cells[s.row-1][s.col-1] = string(r)
		for extra := 1; extra < width && s.col+extra <= s.width; extra++ {
			s.cells[s.row-1][s.col-1+extra] = ""
		}
	}
	s.col += width
}

// Row returns the 1-based row as text.
func (s *screen) Row(row int) string {
	return strings.Join(s.cells[row-1], "")
}

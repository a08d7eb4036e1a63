// Package render paints the chat frame onto a character-cell terminal with
// absolute cursor addressing, so any region can be repainted on its own.
package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"

	"github.com/openclaude/termchat/internal/chatlog"
	"github.com/openclaude/termchat/internal/lineedit"
)

const (
	// MinWidth and MinHeight are the smallest sizes that are painted.
	MinWidth  = 10
	MinHeight = 7

	// chromeRows is the number of rows not used for messages.
	chromeRows = 7
	// firstMessageRow is the 1-based row of the first message line.
	firstMessageRow = 4
	// promptText is the input prompt between the border and the buffer.
	promptText = "➤"
	// inputColumn is the 1-based column where input text starts.
	inputColumn = 5
	// timeLayout formats record timestamps.
	timeLayout = "15:04:05"
)

// LogView is the read side of the message log.
type LogView interface {
	Snapshot() []chatlog.Record
}

// InputView is the read side of the line editor.
type InputView interface {
	State() lineedit.State
}

// Options configures an Engine.
type Options struct {
	// Title is shown centred in the second row.
	Title string
	// Palette overrides frame colours; empty fields keep the defaults.
	Palette Palette
	// Profile is the colour profile; see DetectProfile.
	Profile termenv.Profile
	// Markdown formats completed assistant records through glamour.
	Markdown bool
	// Width and Height are the initial terminal size.
	Width  int
	Height int
}

// Engine owns every write to the terminal. Each Draw call builds a complete
// update in memory and flushes it with a single Write.
type Engine struct {
	// mu serialises painting and guards the fields below.
	mu sync.Mutex
	// out is the terminal.
	out io.Writer
	// log and input are read on every paint.
	log   LogView
	input InputView
	// theme holds the lipgloss styles.
	theme Theme
	// profile is the colour profile used for escape sequences.
	profile termenv.Profile
	// markdown is nil when markdown formatting is off.
	markdown *MarkdownFormatter
	// title is the frame title.
	title string
	// width and height are the terminal size in cells.
	width  int
	height int
	// blinkOn shows the highlighted cursor glyph.
	blinkOn bool
	// busy shows the indicator and suppresses markdown for streamed records.
	busy bool
	// busyFrom is the first record index that belongs to the running generation.
	busyFrom int
	// inputStart is the first visible rune of a scrolled input line.
	inputStart int
	// closed is set by Restore; later draws write nothing.
	closed bool
}

// New returns an engine painting onto out.
func New(out io.Writer, log LogView, input InputView, options Options) *Engine {
	engine := &Engine{
		out:     out,
		log:     log,
		input:   input,
		theme:   NewTheme(newRenderer(out, options.Profile), DefaultPalette().Merge(options.Palette)),
		profile: options.Profile,
		title:   options.Title,
		width:   options.Width,
		height:  options.Height,
		blinkOn: true,
	}
	if options.Markdown {
		engine.markdown = NewMarkdownFormatter()
	}
	return engine
}

// Resize records a new terminal size. Callers follow it with DrawFrame.
func (e *Engine) Resize(width int, height int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.width = width
	e.height = height
}

// Size returns the current terminal size.
func (e *Engine) Size() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.width, e.height
}

// SetTitle replaces the frame title. Callers follow it with DrawFrame.
func (e *Engine) SetTitle(title string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.title = title
}

// SetBusy toggles the busy indicator. Records appended after the latest user
// record are treated as streaming while busy.
func (e *Engine) SetBusy(busy bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if busy && !e.busy {
		records := e.log.Snapshot()
		e.busyFrom = 0
		for index := len(records) - 1; index >= 0; index-- {
			if records[index].Role == chatlog.RoleUser {
				e.busyFrom = index + 1
				break
			}
		}
	}
	e.busy = busy
}

// ToggleBlink flips the cursor highlight.
func (e *Engine) ToggleBlink() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.blinkOn = !e.blinkOn
}

// ResetBlink turns the cursor highlight on, typically after a keystroke.
func (e *Engine) ResetBlink() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.blinkOn = true
}

// Prepare hides the cursor and clears the screen before the first frame.
func (e *Engine) Prepare() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	frame := e.newFrame()
	frame.term.HideCursor()
	frame.term.ClearScreen()
	return e.flush(frame)
}

// Restore clears the screen and scrollback, shows the cursor and resets
// attributes. It is the last thing written before the terminal is released;
// draws after it are ignored and a second call writes nothing.
func (e *Engine) Restore() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	frame := e.newFrame()
	frame.term.ClearScreen()
	fmt.Fprintf(&frame.buf, termenv.CSI+termenv.EraseDisplaySeq, 3)
	frame.term.MoveCursor(1, 1)
	frame.term.ShowCursor()
	frame.term.Reset()
	return e.flush(frame)
}

// DrawFrame repaints the whole screen. Sizes below MinWidth x MinHeight only
// clear it; non-positive sizes write nothing.
func (e *Engine) DrawFrame() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.width <= 0 || e.height <= 0 {
		return nil
	}
	frame := e.newFrame()
	frame.term.HideCursor()
	frame.term.ClearScreen()
	if e.usable() {
		e.paintRule(frame, 1, "┌", "┐")
		e.paintTitle(frame)
		e.paintRule(frame, 3, "├", "┤")
		e.paintMessages(frame)
		e.paintBottom(frame)
	}
	return e.flush(frame)
}

// DrawMessages repaints the message rows and everything below them.
func (e *Engine) DrawMessages() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.usable() {
		return nil
	}
	frame := e.newFrame()
	e.paintMessages(frame)
	e.paintBottom(frame)
	return e.flush(frame)
}

// DrawInput repaints only the input row.
func (e *Engine) DrawInput() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.usable() {
		return nil
	}
	frame := e.newFrame()
	e.paintInput(frame)
	return e.flush(frame)
}

// frame accumulates one update.
type frame struct {
	buf  bytes.Buffer
	term *termenv.Output
}

func (e *Engine) newFrame() *frame {
	f := &frame{}
	f.term = termenv.NewOutput(&f.buf, termenv.WithProfile(e.profile))
	return f
}

func (e *Engine) flush(f *frame) error {
	if f.buf.Len() == 0 {
		return nil
	}
	if _, err := e.out.Write(f.buf.Bytes()); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (e *Engine) usable() bool {
	return !e.closed && e.width >= MinWidth && e.height >= MinHeight
}

// contentWidth is the message area between "│ " and " │".
func (e *Engine) contentWidth() int {
	return e.width - 4
}

func (e *Engine) paintRule(f *frame, row int, left string, right string) {
	f.term.MoveCursor(row, 1)
	f.buf.WriteString(e.theme.Border.Render(left + strings.Repeat("─", e.width-2) + right))
}

func (e *Engine) paintTitle(f *frame) {
	inner := e.width - 2
	title := runewidth.Truncate(" "+cleanLine(e.title)+" ", inner, ellipsis)
	padding := inner - runewidth.StringWidth(title)
	left := padding / 2

	f.term.MoveCursor(2, 1)
	f.buf.WriteString(e.theme.Border.Render("│"))
	f.buf.WriteString(strings.Repeat(" ", left))
	f.buf.WriteString(e.theme.Title.Render(title))
	f.buf.WriteString(strings.Repeat(" ", padding-left))
	f.buf.WriteString(e.theme.Border.Render("│"))
}

func (e *Engine) paintMessages(f *frame) {
	rows := e.height - chromeRows
	if rows <= 0 {
		return
	}
	width := e.contentWidth()
	lines := e.displayLines(width)
	start := len(lines) - rows
	if start < 0 {
		start = 0
	}

	edge := e.theme.Border.Render("│")
	for offset := 0; offset < rows; offset++ {
		f.term.MoveCursor(firstMessageRow+offset, 1)
		f.buf.WriteString(edge)
		f.buf.WriteByte(' ')
		used := 0
		if index := start + offset; index < len(lines) {
			used = lines[index].write(&f.buf, width)
		}
		f.buf.WriteString(strings.Repeat(" ", width-used))
		f.buf.WriteByte(' ')
		f.buf.WriteString(edge)
	}
}

// paintBottom repaints the separator, the bottom border and the input row,
// leaving the cursor on the input row.
func (e *Engine) paintBottom(f *frame) {
	e.paintRule(f, e.height-3, "├", "┤")
	e.paintRule(f, e.height-1, "└", "┘")
	e.paintInput(f)
}

func (e *Engine) paintInput(f *frame) {
	row := e.height - 2
	available := e.width - 5
	columns := available
	showBusy := e.busy && available >= minIndicatorSpace
	if showBusy {
		columns -= runewidth.StringWidth(busyIndicator) + 1
	}

	state := e.input.State()
	window := windowInput([]rune(state.Buffer), state.Cursor, columns, e.inputStart)
	e.inputStart = window.start

	f.term.MoveCursor(row, 1)
	f.buf.WriteString(e.theme.Border.Render("│"))
	f.buf.WriteByte(' ')
	f.buf.WriteString(e.theme.Prompt.Render(promptText))
	f.buf.WriteByte(' ')
	f.buf.WriteString(window.before)
	if e.blinkOn {
		f.buf.WriteString(e.theme.Cursor.Render(window.under))
	} else {
		f.buf.WriteString(window.under)
	}
	f.buf.WriteString(window.after)
	if pad := columns - window.width; pad > 0 {
		f.buf.WriteString(strings.Repeat(" ", pad))
	}
	if showBusy {
		f.buf.WriteByte(' ')
		f.buf.WriteString(e.theme.Indicator.Render(busyIndicator))
	}
	f.buf.WriteString(e.theme.Border.Render("│"))

	f.term.MoveCursor(row, inputColumn+window.column)
	if e.profile == termenv.Ascii {
		// Without colour the highlight is invisible, so use the real cursor.
		f.term.ShowCursor()
	}
}

// displayLine is one wrapped row of the message pane.
type displayLine struct {
	// label is the styled prefix; continuation lines carry plain spaces.
	label string
	// labelWidth is the display width of label.
	labelWidth int
	// text is the unstyled content.
	text string
	// style colours text.
	style lipgloss.Style
}

// write renders the line clipped to width and returns the columns used.
func (l displayLine) write(buf *bytes.Buffer, width int) int {
	buf.WriteString(l.label)
	text := l.text
	room := width - l.labelWidth
	if room < 0 {
		room = 0
	}
	if runewidth.StringWidth(text) > room {
		text = runewidth.Truncate(text, room, "")
	}
	buf.WriteString(l.style.Render(text))
	return l.labelWidth + runewidth.StringWidth(text)
}

// displayLines flattens the log into wrapped rows for a pane of width columns.
func (e *Engine) displayLines(width int) []displayLine {
	var lines []displayLine
	for index, record := range e.log.Snapshot() {
		label, labelWidth := e.label(record, width)
		textWidth := width - labelWidth
		if textWidth < 1 {
			textWidth = 1
		}
		style := e.theme.Foreground(record.TextColor)
		indent := strings.Repeat(" ", labelWidth)

		first := true
		for _, logical := range e.recordLines(index, record, textWidth) {
			for _, wrapped := range Wrap(cleanLine(logical), textWidth) {
				line := displayLine{label: indent, labelWidth: labelWidth, text: wrapped, style: style}
				if first {
					line.label = label
					first = false
				}
				lines = append(lines, line)
			}
		}
	}
	return lines
}

// recordLines returns the logical lines of a record, formatted as markdown
// when enabled and the record is not being streamed.
func (e *Engine) recordLines(index int, record chatlog.Record, width int) []string {
	if e.markdown == nil || record.Role != chatlog.RoleAssistant {
		return record.Lines
	}
	if e.busy && index >= e.busyFrom {
		return record.Lines
	}
	if lines, ok := e.markdown.Lines(record.ID, record.Text, width); ok {
		return lines
	}
	return record.Lines
}

// label renders "[15:04:05] Sender: ". On narrow panes the timestamp is
// dropped first and the sender truncated next, so text keeps half the width.
func (e *Engine) label(record chatlog.Record, width int) (string, int) {
	budget := width / 2
	stamp := "[" + record.CreatedAt.Format(timeLayout) + "] "
	sender := cleanLine(record.Sender)
	plainWidth := func() int {
		return runewidth.StringWidth(stamp) + runewidth.StringWidth(sender) + 2
	}
	if plainWidth() > budget {
		stamp = ""
	}
	if plainWidth() > budget {
		sender = runewidth.Truncate(sender, budget-2, ellipsis)
	}

	var builder strings.Builder
	if stamp != "" {
		builder.WriteString(e.theme.Timestamp.Render(stamp[:len(stamp)-1]))
		builder.WriteByte(' ')
	}
	builder.WriteString(e.theme.Foreground(record.LabelColor).Render(sender + ":"))
	builder.WriteByte(' ')
	return builder.String(), plainWidth()
}

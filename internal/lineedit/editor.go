// Package lineedit owns the single-line input buffer of the chat prompt.
package lineedit

import (
	"strings"

	"github.com/openclaude/termchat/internal/keys"
)

// maxHistory caps the number of remembered submissions.
const maxHistory = 200

// State is a read-only view of the editor.
type State struct {
	// Buffer is the current input text.
	Buffer string
	// Cursor is the cursor offset in runes, within [0, len(Buffer runes)].
	Cursor int
}

// Editor is a rune-based single-line editor with submission history.
// It is not safe for concurrent use; the session event loop owns it.
type Editor struct {
	// buffer holds the input text.
	buffer []rune
	// cursor is the insertion offset into buffer.
	cursor int
	// history stores prior submissions for recall.
	history []string
	// historyIndex is the recalled entry; len(history) means the draft.
	historyIndex int
	// historyDraft preserves the in-progress input while browsing history.
	historyDraft string
}

// New returns an empty editor.
func New() *Editor {
	return &Editor{}
}

// State returns the buffer and cursor.
func (e *Editor) State() State {
	return State{Buffer: string(e.buffer), Cursor: e.cursor}
}

// Len returns the buffer length in runes.
func (e *Editor) Len() int {
	return len(e.buffer)
}

// Insert splices text at the cursor and advances past it as one edit.
func (e *Editor) Insert(text string) {
	if text == "" {
		return
	}
	inserted := []rune(text)
	next := make([]rune, 0, len(e.buffer)+len(inserted))
	next = append(next, e.buffer[:e.cursor]...)
	next = append(next, inserted...)
	next = append(next, e.buffer[e.cursor:]...)
	e.buffer = next
	e.cursor += len(inserted)
}

// Backspace removes the rune before the cursor; no-op at offset 0.
func (e *Editor) Backspace() bool {
	if e.cursor == 0 {
		return false
	}
	e.buffer = append(e.buffer[:e.cursor-1], e.buffer[e.cursor:]...)
	e.cursor--
	return true
}

// Delete removes the rune under the cursor; no-op at the end of the buffer.
func (e *Editor) Delete() bool {
	if e.cursor >= len(e.buffer) {
		return false
	}
	e.buffer = append(e.buffer[:e.cursor], e.buffer[e.cursor+1:]...)
	return true
}

// MoveLeft moves the cursor one rune left, clamped at 0.
func (e *Editor) MoveLeft() bool {
	if e.cursor == 0 {
		return false
	}
	e.cursor--
	return true
}

// MoveRight moves the cursor one rune right, clamped at the buffer end.
func (e *Editor) MoveRight() bool {
	if e.cursor >= len(e.buffer) {
		return false
	}
	e.cursor++
	return true
}

// Home moves the cursor to the start of the buffer.
func (e *Editor) Home() bool {
	if e.cursor == 0 {
		return false
	}
	e.cursor = 0
	return true
}

// End moves the cursor past the last rune.
func (e *Editor) End() bool {
	if e.cursor == len(e.buffer) {
		return false
	}
	e.cursor = len(e.buffer)
	return true
}

// TakeAndClear returns the trimmed buffer and resets the editor. When the
// trimmed text is empty the buffer is left as is and "" is returned.
func (e *Editor) TakeAndClear() string {
	value := strings.TrimSpace(string(e.buffer))
	if value == "" {
		return ""
	}
	e.buffer = nil
	e.cursor = 0
	e.remember(value)
	return value
}

// Apply routes an editing event. It reports whether the state changed.
// Enter and Interrupt are not editing events and are ignored here.
func (e *Editor) Apply(event keys.Event) bool {
	switch event.Kind {
	case keys.Char, keys.Paste:
		if event.Text == "" {
			return false
		}
		e.Insert(event.Text)
		return true
	case keys.Backspace:
		return e.Backspace()
	case keys.Delete:
		return e.Delete()
	case keys.ArrowLeft:
		return e.MoveLeft()
	case keys.ArrowRight:
		return e.MoveRight()
	case keys.Home:
		return e.Home()
	case keys.End:
		return e.End()
	case keys.ArrowUp:
		return e.HistoryPrev()
	case keys.ArrowDown:
		return e.HistoryNext()
	default:
		return false
	}
}

// HistoryPrev replaces the buffer with the previous submission.
func (e *Editor) HistoryPrev() bool {
	return e.cycleHistory(-1)
}

// HistoryNext replaces the buffer with the next submission or the draft.
func (e *Editor) HistoryNext() bool {
	return e.cycleHistory(1)
}

// remember records a submission for history recall.
func (e *Editor) remember(value string) {
	e.history = append(e.history, value)
	if len(e.history) > maxHistory {
		e.history = e.history[len(e.history)-maxHistory:]
	}
	e.historyIndex = len(e.history)
	e.historyDraft = ""
}

// cycleHistory moves the buffer through stored history entries.
func (e *Editor) cycleHistory(delta int) bool {
	if len(e.history) == 0 {
		return false
	}
	if e.historyIndex == len(e.history) {
		e.historyDraft = string(e.buffer)
	}
	next := e.historyIndex + delta
	if next < 0 {
		next = 0
	}
	if next > len(e.history) {
		next = len(e.history)
	}
	if next == e.historyIndex {
		return false
	}
	e.historyIndex = next
	if next == len(e.history) {
		e.setBuffer(e.historyDraft)
		return true
	}
	e.setBuffer(e.history[next])
	return true
}

// setBuffer replaces the buffer and parks the cursor at its end.
func (e *Editor) setBuffer(value string) {
	e.buffer = []rune(value)
	e.cursor = len(e.buffer)
}

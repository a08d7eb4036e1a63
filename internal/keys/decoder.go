// Package keys turns the raw byte stream of a terminal in raw mode into
// discrete editing events.
package keys

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind identifies a decoded input event.
type Kind int

const (
	// Char is a single printable rune.
	Char Kind = iota + 1
	// Paste is a run of printable text that arrived as one chunk.
	Paste
	// Backspace deletes the rune before the cursor.
	Backspace
	// Delete removes the rune under the cursor.
	Delete
	// Enter submits the current line.
	Enter
	// ArrowLeft moves the cursor one rune left.
	ArrowLeft
	// ArrowRight moves the cursor one rune right.
	ArrowRight
	// ArrowUp recalls the previous history entry.
	ArrowUp
	// ArrowDown recalls the next history entry.
	ArrowDown
	// Home jumps to the start of the line.
	Home
	// End jumps to the end of the line.
	End
	// Interrupt is Ctrl+C.
	Interrupt
)

// String returns a short name for the event kind.
func (k Kind) String() string {
	switch k {
	case Char:
		return "char"
	case Paste:
		return "paste"
	case Backspace:
		return "backspace"
	case Delete:
		return "delete"
	case Enter:
		return "enter"
	case ArrowLeft:
		return "left"
	case ArrowRight:
		return "right"
	case ArrowUp:
		return "up"
	case ArrowDown:
		return "down"
	case Home:
		return "home"
	case End:
		return "end"
	case Interrupt:
		return "interrupt"
	default:
		return "unknown"
	}
}

// Event is a decoded keystroke or paste burst.
type Event struct {
	// Kind classifies the event.
	Kind Kind
	// Text holds the rune for Char and the full text for Paste.
	Text string
}

const (
	esc = 0x1b
	// maxSequenceLen bounds an escape sequence; longer input is abandoned.
	maxSequenceLen = 32
)

// sequences maps recognised escape sequences to events.
var sequences = map[string]Kind{
	"\x1b[A":  ArrowUp,
	"\x1b[B":  ArrowDown,
	"\x1b[C":  ArrowRight,
	"\x1b[D":  ArrowLeft,
	"\x1b[H":  Home,
	"\x1b[F":  End,
	"\x1b[1~": Home,
	"\x1b[7~": Home,
	"\x1b[4~": End,
	"\x1b[8~": End,
	"\x1b[3~": Delete,
	"\x1bOA":  ArrowUp,
	"\x1bOB":  ArrowDown,
	"\x1bOC":  ArrowRight,
	"\x1bOD":  ArrowLeft,
	"\x1bOH":  Home,
	"\x1bOF":  End,
}

// Decoder accumulates raw terminal input across reads. The zero value is ready to use.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	// sequence holds an escape sequence that has not reached its final byte.
	sequence []byte
	// partial holds the leading bytes of a UTF-8 rune split across reads.
	partial []byte
	// escapeAlone is set when sequence is a bare ESC that ended the last chunk.
	escapeAlone bool
}

// Feed decodes one chunk of raw input. Escape sequences and multi-byte runes
// that are cut by the chunk boundary are completed by later calls.
func (d *Decoder) Feed(chunk []byte) []Event {
	if len(d.partial) > 0 {
		chunk = append(append([]byte(nil), d.partial...), chunk...)
		d.partial = nil
	}

	var (
		events []Event
		run    strings.Builder
		runes  int
	)
	flush := func() {
		if runes == 0 {
			return
		}
		kind := Paste
		if runes == 1 {
			kind = Char
		}
		events = append(events, Event{Kind: kind, Text: run.String()})
		run.Reset()
		runes = 0
	}

	for index := 0; index < len(chunk); {
		b := chunk[index]

		if d.sequence != nil {
			if d.escapeAlone && len(d.sequence) == 1 && b != '[' && b != 'O' {
				// The previous chunk ended with the Esc key itself.
				d.sequence = nil
				d.escapeAlone = false
				continue
			}
			d.escapeAlone = false
			index++
			if kind, done := d.continueSequence(b); done && kind != 0 {
				events = append(events, Event{Kind: kind})
			}
			continue
		}

		if b == esc {
			flush()
			d.sequence = []byte{esc}
			index++
			continue
		}

		if b < utf8.RuneSelf {
			index++
			switch b {
			case 0x03:
				flush()
				events = append(events, Event{Kind: Interrupt})
			case 0x7f, 0x08:
				flush()
				events = append(events, Event{Kind: Backspace})
			case '\r', '\n':
				if b == '\r' && index < len(chunk) && chunk[index] == '\n' {
					index++
				}
				if runes > 0 && hasPrintable(chunk[index:]) {
					run.WriteByte(' ')
					runes++
					continue
				}
				flush()
				events = append(events, Event{Kind: Enter})
			case '\t':
				run.WriteByte(' ')
				runes++
			default:
				if b >= 0x20 {
					run.WriteByte(b)
					runes++
				}
			}
			continue
		}

		if !utf8.FullRune(chunk[index:]) {
			d.partial = append(d.partial[:0], chunk[index:]...)
			break
		}
		r, size := utf8.DecodeRune(chunk[index:])
		index += size
		if r == utf8.RuneError || !unicode.IsPrint(r) {
			continue
		}
		run.WriteRune(r)
		runes++
	}
	flush()
	d.escapeAlone = len(d.sequence) == 1
	return events
}

// Pending reports whether an escape sequence or rune is waiting for more bytes.
func (d *Decoder) Pending() bool {
	return d.sequence != nil || len(d.partial) > 0
}

// continueSequence appends a byte to the open escape sequence. It reports
// done when the sequence was terminated or abandoned; kind is zero for
// sequences that are discarded.
func (d *Decoder) continueSequence(b byte) (Kind, bool) {
	d.sequence = append(d.sequence, b)
	if len(d.sequence) == 2 {
		if b == '[' || b == 'O' {
			return 0, false
		}
		// Alt+key and other two-byte escapes are not supported.
		d.sequence = nil
		return 0, true
	}
	if (b >= 'A' && b <= 'Z') || b == '~' {
		kind := sequences[string(d.sequence)]
		d.sequence = nil
		return kind, true
	}
	if len(d.sequence) >= maxSequenceLen {
		d.sequence = nil
		return 0, true
	}
	return 0, false
}

// hasPrintable reports whether rest contains text that would extend a paste.
func hasPrintable(rest []byte) bool {
	for _, r := range string(rest) {
		if r == esc {
			return false
		}
		if r == '\t' || (r >= 0x20 && r != 0x7f && r != utf8.RuneError) {
			return true
		}
	}
	return false
}

// Package chatlog holds the ordered message log shown in the chat pane and
// the streaming sink that response generators write into.
package chatlog

import (
	"strings"
	"time"
)

// Role is the author role of a record.
type Role string

const (
	// RoleUser marks text typed by the person at the keyboard.
	RoleUser Role = "user"
	// RoleAssistant marks generated responses.
	RoleAssistant Role = "assistant"
	// RoleSystem marks host notices injected through SendMessage.
	RoleSystem Role = "system"
)

const (
	// SenderUser is the display label for user records.
	SenderUser = "You"
	// SenderAssistant is the display label for assistant records.
	SenderAssistant = "Bot"
)

// Record is one message in the log.
type Record struct {
	// ID uniquely identifies the record for render caches.
	ID string
	// Role classifies the author.
	Role Role
	// Sender is the label printed before the text.
	Sender string
	// Text is the full message content.
	Text string
	// Lines is Text split on "\n"; it is updated together with Text.
	Lines []string
	// CreatedAt is when the record was appended.
	CreatedAt time.Time
	// UpdatedAt is when Text last changed.
	UpdatedAt time.Time
	// LabelColor is the colour of the timestamp and sender label.
	LabelColor string
	// TextColor is the colour of the message body.
	TextColor string
}

// Colors pairs a label colour with a body colour.
type Colors struct {
	Label string
	Text  string
}

// Palette resolves record colours by role. Values are ANSI colour numbers
// or hex strings understood by lipgloss.
type Palette map[Role]Colors

// DefaultPalette returns the stock role colours.
func DefaultPalette() Palette {
	return Palette{
		RoleUser:      {Label: "2", Text: "7"},
		RoleAssistant: {Label: "6", Text: "5"},
		RoleSystem:    {Label: "3", Text: "7"},
	}
}

// Resolve returns the colours for role, with hint overriding the label colour.
func (p Palette) Resolve(role Role, hint string) Colors {
	colors, ok := p[role]
	if !ok {
		colors = DefaultPalette()[RoleSystem]
	}
	if hint != "" {
		colors.Label = hint
	}
	return colors
}

// clone returns a deep copy so callers cannot reach stored slices.
func (r Record) clone() Record {
	r.Lines = append([]string(nil), r.Lines...)
	return r
}

// splitLines derives Lines from Text.
func splitLines(text string) []string {
	return strings.Split(text, "\n")
}

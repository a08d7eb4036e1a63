package render

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Palette lists the frame colours. Values are ANSI colour numbers or hex
// strings; lipgloss downsamples them to the active profile.
type Palette struct {
	// Border colours the frame lines.
	Border string
	// Title colours the centred title.
	Title string
	// Timestamp colours the "[15:04:05]" label prefix.
	Timestamp string
	// Prompt colours the input prompt glyph.
	Prompt string
	// CursorForeground is the glyph colour under the block cursor.
	CursorForeground string
	// CursorBackground is the block cursor colour.
	CursorBackground string
	// Indicator colours the busy indicator.
	Indicator string
}

// DefaultPalette returns the stock 256-colour frame palette.
func DefaultPalette() Palette {
	return Palette{
		Border:           "39",
		Title:            "220",
		Timestamp:        "8",
		Prompt:           "220",
		CursorForeground: "0",
		CursorBackground: "220",
		Indicator:        "8",
	}
}

// Merge returns p with every non-empty field of override applied.
func (p Palette) Merge(override Palette) Palette {
	pick := func(base string, next string) string {
		if next != "" {
			return next
		}
		return base
	}
	return Palette{
		Border:           pick(p.Border, override.Border),
		Title:            pick(p.Title, override.Title),
		Timestamp:        pick(p.Timestamp, override.Timestamp),
		Prompt:           pick(p.Prompt, override.Prompt),
		CursorForeground: pick(p.CursorForeground, override.CursorForeground),
		CursorBackground: pick(p.CursorBackground, override.CursorBackground),
		Indicator:        pick(p.Indicator, override.Indicator),
	}
}

// Theme holds the lipgloss styles bound to one renderer.
type Theme struct {
	renderer *lipgloss.Renderer

	Border    lipgloss.Style
	Title     lipgloss.Style
	Timestamp lipgloss.Style
	Prompt    lipgloss.Style
	Cursor    lipgloss.Style
	Indicator lipgloss.Style
}

// NewTheme builds the styles for palette on renderer.
func NewTheme(renderer *lipgloss.Renderer, palette Palette) Theme {
	return Theme{
		renderer:  renderer,
		Border:    renderer.NewStyle().Foreground(lipgloss.Color(palette.Border)),
		Title:     renderer.NewStyle().Bold(true).Foreground(lipgloss.Color(palette.Title)),
		Timestamp: renderer.NewStyle().Foreground(lipgloss.Color(palette.Timestamp)),
		Prompt:    renderer.NewStyle().Foreground(lipgloss.Color(palette.Prompt)),
		Cursor: renderer.NewStyle().
			Foreground(lipgloss.Color(palette.CursorForeground)).
			Background(lipgloss.Color(palette.CursorBackground)),
		Indicator: renderer.NewStyle().Italic(true).Foreground(lipgloss.Color(palette.Indicator)),
	}
}

// Foreground returns a style colouring text with color; empty means unstyled.
func (t Theme) Foreground(color string) lipgloss.Style {
	style := t.renderer.NewStyle()
	if color == "" {
		return style
	}
	return style.Foreground(lipgloss.Color(color))
}

// DetectProfile returns the colour profile for w. NO_COLOR forces Ascii and
// CLICOLOR_FORCE forces colour on non-terminals.
func DetectProfile(w io.Writer) termenv.Profile {
	return termenv.NewOutput(w).EnvColorProfile()
}

// newRenderer binds a lipgloss renderer to w with a fixed profile.
func newRenderer(w io.Writer, profile termenv.Profile) *lipgloss.Renderer {
	renderer := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	renderer.SetColorProfile(profile)
	return renderer
}

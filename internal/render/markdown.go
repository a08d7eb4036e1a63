package render

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	xansi "github.com/charmbracelet/x/ansi"
)

// markdownCacheLimit bounds the number of formatted records kept.
const markdownCacheLimit = 256

// markdownKey identifies one formatted rendition of a record.
type markdownKey struct {
	id    string
	text  string
	width int
}

// MarkdownFormatter turns assistant markdown into plain display lines using
// glamour's notty style. Colour is applied by the engine, so escape codes
// in glamour's output are stripped.
type MarkdownFormatter struct {
	mu        sync.Mutex
	renderers map[int]*glamour.TermRenderer
	cache     map[markdownKey][]string
}

// NewMarkdownFormatter returns an empty formatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{
		renderers: make(map[int]*glamour.TermRenderer),
		cache:     make(map[markdownKey][]string),
	}
}

// Lines formats text for the given wrap width. It reports false when
// glamour fails, in which case callers fall back to the raw text.
func (f *MarkdownFormatter) Lines(id string, text string, width int) ([]string, bool) {
	if width <= 0 {
		return nil, false
	}
	key := markdownKey{id: id, text: text, width: width}

	f.mu.Lock()
	defer f.mu.Unlock()

	if lines, ok := f.cache[key]; ok {
		return lines, true
	}
	renderer, err := f.rendererLocked(width)
	if err != nil {
		return nil, false
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		return nil, false
	}
	lines := tidyMarkdown(rendered)
	if len(f.cache) >= markdownCacheLimit {
		clear(f.cache)
	}
	f.cache[key] = lines
	return lines, true
}

func (f *MarkdownFormatter) rendererLocked(width int) (*glamour.TermRenderer, error) {
	if renderer, ok := f.renderers[width]; ok {
		return renderer, nil
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("notty"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	f.renderers[width] = renderer
	return renderer, nil
}

// tidyMarkdown strips escapes, right padding, blank edges and the shared
// left margin from glamour output.
func tidyMarkdown(rendered string) []string {
	lines := strings.Split(xansi.Strip(rendered), "\n")
	for index, line := range lines {
		lines[index] = strings.TrimRight(line, " ")
	}
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return []string{""}
	}

	margin := -1
	for _, line := range lines {
		if line == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " "))
		if margin < 0 || indent < margin {
			margin = indent
		}
	}
	if margin > 0 {
		for index, line := range lines {
			if len(line) >= margin {
				lines[index] = line[margin:]
			}
		}
	}
	return lines
}

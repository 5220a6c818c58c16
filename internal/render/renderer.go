// Package render builds the presentation models the timeline cache hands to
// the view: pre-rendered, width-aware line blocks derived from stored
// messages.
package render

import (
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"
)

const (
	// minMarkdownWidth is the narrowest pane glamour output stays legible
	// at; below it bodies fall back to plain wrapping.
	minMarkdownWidth = 30

	// maxBodyCacheEntries bounds the rendered-body cache before it is
	// dropped wholesale.
	maxBodyCacheEntries = 512
)

// BodyRenderer renders markdown message bodies to styled lines, caching per
// content+width. Rebuild sweeps hit the same bodies over and over, so the
// cache makes a full timeline rebuild cheap after the first pass.
type BodyRenderer struct {
	mu        sync.Mutex
	tr        *glamour.TermRenderer
	lastWidth int
	cache     map[uint64][]string
}

// NewBodyRenderer returns an empty renderer; glamour instances are created
// lazily per width.
func NewBodyRenderer() *BodyRenderer {
	return &BodyRenderer{cache: make(map[uint64][]string)}
}

// Markdown renders body as markdown at the given width, falling back to
// plain wrapping for narrow panes or render errors.
func (r *BodyRenderer) Markdown(body string, width int) []string {
	if width < minMarkdownWidth {
		return Wrap(body, width)
	}
	if body == "" {
		return nil
	}

	key := bodyKey(body, width)

	r.mu.Lock()
	defer r.mu.Unlock()
	if lines, ok := r.cache[key]; ok {
		return lines
	}

	tr, err := r.rendererLocked(width)
	if err != nil {
		return Wrap(body, width)
	}
	rendered, err := tr.Render(body)
	if err != nil {
		return Wrap(body, width)
	}

	rendered = strings.TrimRight(rendered, "\n\r\t ")
	lines := strings.Split(rendered, "\n")

	if len(r.cache) >= maxBodyCacheEntries {
		r.cache = make(map[uint64][]string)
	}
	r.cache[key] = lines
	return lines
}

func (r *BodyRenderer) rendererLocked(width int) (*glamour.TermRenderer, error) {
	if r.tr != nil && r.lastWidth == width {
		return r.tr, nil
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	r.tr = tr
	r.lastWidth = width
	r.cache = make(map[uint64][]string)
	return tr, nil
}

func bodyKey(body string, width int) uint64 {
	h := xxhash.New()
	h.WriteString(body)
	h.Write([]byte{byte(width >> 8), byte(width)})
	return h.Sum64()
}

// Wrap word-wraps text to maxWidth, one paragraph per input line.
func Wrap(text string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{text}
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		current := words[0]
		for _, word := range words[1:] {
			if runewidth.StringWidth(current)+1+runewidth.StringWidth(word) <= maxWidth {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		lines = append(lines, current)
	}
	return lines
}

// SenderSlot maps a sender to a stable color slot.
func SenderSlot(sender string) int {
	return int(xxhash.Sum64String(sender) % 64)
}

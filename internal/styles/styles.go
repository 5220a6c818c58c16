// Package styles centralizes the lipgloss styles and the small color
// palette shared by the timeline renderer and the app chrome.
package styles

import (
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Palette holds the theme colors.
type Palette struct {
	Accent     string `json:"accent"`
	TextMuted  string `json:"textMuted"`
	TextSubtle string `json:"textSubtle"`
	Selection  string `json:"selection"`
	StatusBg   string `json:"statusBg"`
	StatusFg   string `json:"statusFg"`
	Error      string `json:"error"`

	// Senders rotates per sender nick.
	Senders []string `json:"senders"`
}

var themes = map[string]Palette{
	"dusk": {
		Accent:     "#7aa2f7",
		TextMuted:  "#565f89",
		TextSubtle: "#3b4261",
		Selection:  "#283457",
		StatusBg:   "#1f2335",
		StatusFg:   "#c0caf5",
		Error:      "#f7768e",
		Senders:    []string{"#ff9e64", "#9ece6a", "#bb9af7", "#7dcfff", "#e0af68", "#f7768e"},
	},
	"plain": {
		Accent:     "12",
		TextMuted:  "8",
		TextSubtle: "8",
		Selection:  "0",
		StatusBg:   "0",
		StatusFg:   "7",
		Error:      "9",
		Senders:    []string{"3", "2", "5", "6", "4", "1"},
	},
}

var (
	mu      sync.RWMutex
	current = themes["dusk"]
)

// SetTheme switches the active palette; unknown names keep the current one.
func SetTheme(name string) bool {
	mu.Lock()
	defer mu.Unlock()
	p, ok := themes[name]
	if ok {
		current = p
	}
	return ok
}

// Current returns the active palette.
func Current() Palette {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Muted styles secondary text (timestamps, placeholders, separators).
func Muted() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(Current().TextMuted))
}

// Subtle styles barely-visible chrome like rulers.
func Subtle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(Current().TextSubtle))
}

// Accent styles highlighted interactive text.
func Accent() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(Current().Accent))
}

// Selected styles the row under the cursor.
func Selected() lipgloss.Style {
	return lipgloss.NewStyle().Background(lipgloss.Color(Current().Selection))
}

// StatusBar styles the bottom bar.
func StatusBar() lipgloss.Style {
	p := Current()
	return lipgloss.NewStyle().Background(lipgloss.Color(p.StatusBg)).Foreground(lipgloss.Color(p.StatusFg))
}

// ErrorText styles error messages in the status bar.
func ErrorText() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(Current().Error))
}

// Sender returns the style for a sender slot (see render.SenderSlot).
func Sender(slot int) lipgloss.Style {
	p := Current()
	if len(p.Senders) == 0 {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(p.Senders[slot%len(p.Senders)]))
}

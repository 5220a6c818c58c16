package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/tbell/backscroll/internal/render"
	"github.com/tbell/backscroll/internal/styles"
	"github.com/tbell/backscroll/internal/ui"
)

// View renders the room tab bar, the visible slice of the timeline, and
// the status bar.
func (m *Model) View() string {
	if !m.ready {
		return "loading..."
	}
	if len(m.rooms) == 0 {
		return styles.Muted().Render("no rooms ingested — drop .jsonl exports into " + m.cfg.ExportDir)
	}

	var b strings.Builder
	b.WriteString(m.tabBar())
	b.WriteByte('\n')
	b.WriteString(m.timelineView())
	b.WriteByte('\n')
	b.WriteString(m.statusBar())
	return b.String()
}

func (m *Model) tabBar() string {
	parts := make([]string, 0, len(m.rooms))
	for i, room := range m.rooms {
		label := fmt.Sprintf(" %s (%d) ", room.Name, room.Messages)
		if i == m.activeRoom {
			parts = append(parts, styles.Selected().Render(label))
		} else {
			parts = append(parts, styles.Muted().Render(label))
		}
	}
	bar := strings.Join(parts, styles.Subtle().Render("│"))
	return truncate.String(bar, uint(max(m.width, 1)))
}

func (m *Model) timelineView() string {
	h := m.viewHeight()
	if len(m.lines) == 0 {
		empty := styles.Muted().Render("(no messages)")
		return empty + strings.Repeat("\n", max(h-1, 0))
	}

	bar := ui.Scrollbar{Total: len(m.lines), Offset: m.scroll, Visible: h, Height: h}.Render()
	pad := lipgloss.NewStyle().Width(max(m.width-1, 1))

	end := min(m.scroll+h, len(m.lines))
	rows := make([]string, 0, h)
	for i := m.scroll; i < end; i++ {
		ln := m.lines[i]
		marker := " "
		if ln.model == m.cursor {
			marker = styles.Accent().Render("┃")
		}
		rows = append(rows, marker+" "+ln.text)
	}
	for len(rows) < h {
		rows = append(rows, "")
	}
	for i := range rows {
		rows[i] = pad.Render(rows[i]) + bar[i]
	}
	return strings.Join(rows, "\n")
}

func (m *Model) statusBar() string {
	left := ""
	if m.activeRoom < len(m.rooms) {
		room := m.rooms[m.activeRoom]
		loaded := 0
		if m.sess != nil {
			loaded = m.sess.length()
		}
		left = fmt.Sprintf(" %s · %d messages", room.ID, loaded)
		if len(m.models) > 0 {
			kind := "msg"
			if m.models[m.cursor].Kind != render.KindMessage {
				kind = "—"
			}
			left += fmt.Sprintf(" · %d/%d %s", m.cursor+1, len(m.models), kind)
		}
	}

	right := " j/k move · tab room · y copy · r reload · q quit "
	if m.statusMsg != "" && time.Now().Before(m.statusExpiry) {
		if m.statusIsErr {
			right = " " + styles.ErrorText().Render(m.statusMsg) + " "
		} else {
			right = " " + m.statusMsg + " "
		}
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	line := left + strings.Repeat(" ", gap) + right
	return styles.StatusBar().Render(truncate.String(line, uint(max(m.width, 1))))
}

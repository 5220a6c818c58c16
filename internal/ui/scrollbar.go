// Package ui holds small shared widgets for the terminal chrome.
package ui

import (
	"strings"

	"github.com/tbell/backscroll/internal/styles"
)

// Scrollbar describes a vertical scrollbar over a line-based viewport.
type Scrollbar struct {
	Total   int // total lines in the timeline
	Offset  int // first visible line
	Visible int // lines that fit in the viewport
	Height  int // track height in terminal rows
}

// Render returns one track row per line of Height. When everything fits
// it returns a column of spaces so the layout keeps its width.
func (s Scrollbar) Render() []string {
	if s.Height < 1 {
		return nil
	}
	rows := make([]string, s.Height)
	if s.Total <= s.Visible {
		for i := range rows {
			rows[i] = " "
		}
		return rows
	}

	thumb := s.Visible * s.Height / s.Total
	if thumb < 1 {
		thumb = 1
	}
	if thumb > s.Height {
		thumb = s.Height
	}

	span := max(s.Total-s.Visible, 1)
	pos := s.Offset * (s.Height - thumb) / span
	pos = min(max(pos, 0), s.Height-thumb)

	track := styles.Subtle().Render("│")
	knob := styles.Accent().Render("┃")
	for i := range rows {
		if i >= pos && i < pos+thumb {
			rows[i] = knob
		} else {
			rows[i] = track
		}
	}
	return rows
}

// Column renders the scrollbar as a newline-joined single column.
func (s Scrollbar) Column() string {
	return strings.Join(s.Render(), "\n")
}

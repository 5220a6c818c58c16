package app

import (
	"fmt"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/tbell/backscroll/internal/render"
	"github.com/tbell/backscroll/internal/store"
)

// viewportModel builds a Model holding synthetic models with the given
// line counts, bypassing store and executor wiring.
func viewportModel(height int, lineCounts ...int) *Model {
	m := &Model{height: height, ready: true}
	for i, n := range lineCounts {
		mm := &render.MessageModel{Kind: render.KindMessage}
		for j := 0; j < n; j++ {
			mm.Lines = append(mm.Lines, fmt.Sprintf("m%d.%d", i, j))
		}
		m.models = append(m.models, mm)
	}
	m.rebuildLines()
	return m
}

func TestRebuildLinesMapsEveryLine(t *testing.T) {
	m := viewportModel(10, 2, 1, 3)
	if len(m.lines) != 6 {
		t.Fatalf("lines = %d, want 6", len(m.lines))
	}
	wantModels := []int{0, 0, 1, 2, 2, 2}
	for i, want := range wantModels {
		if m.lines[i].model != want {
			t.Fatalf("line %d maps to model %d, want %d", i, m.lines[i].model, want)
		}
	}
}

func TestModelLineSpan(t *testing.T) {
	m := viewportModel(10, 2, 1, 3)
	tests := []struct {
		idx         int
		first, last int
	}{
		{0, 0, 1},
		{1, 2, 2},
		{2, 3, 5},
		{7, -1, -1},
	}
	for _, tt := range tests {
		first, last := m.modelLineSpan(tt.idx)
		if first != tt.first || last != tt.last {
			t.Errorf("span(%d) = (%d, %d), want (%d, %d)", tt.idx, first, last, tt.first, tt.last)
		}
	}
}

func TestEnsureCursorVisibleScrollsDownAndUp(t *testing.T) {
	// height 5 -> viewport of 3 lines; ten 1-line models
	m := viewportModel(5, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1)

	m.cursor = 7
	m.ensureCursorVisible()
	if m.scroll != 5 {
		t.Fatalf("scroll = %d, want 5", m.scroll)
	}

	m.cursor = 1
	m.ensureCursorVisible()
	if m.scroll != 1 {
		t.Fatalf("scroll = %d, want 1", m.scroll)
	}
}

func TestEnsureCursorVisibleTallModel(t *testing.T) {
	// A model taller than the viewport keeps its last line in view.
	m := viewportModel(4, 1, 5, 1)
	m.cursor = 1
	m.ensureCursorVisible()
	if m.scroll != 4 {
		t.Fatalf("scroll = %d, want 4", m.scroll)
	}
}

func TestScrollByDragsCursorIntoView(t *testing.T) {
	m := viewportModel(5, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1)

	m.scrollBy(6)
	if m.scroll != 6 {
		t.Fatalf("scroll = %d, want 6", m.scroll)
	}
	if m.cursor != 6 {
		t.Fatalf("cursor = %d, want 6 (dragged to first visible)", m.cursor)
	}

	m.scrollBy(-100)
	if m.scroll != 0 {
		t.Fatalf("scroll = %d, want 0", m.scroll)
	}
	if m.cursor != 2 {
		t.Fatalf("cursor = %d, want 2 (dragged to last visible)", m.cursor)
	}
}

func TestScrollByEmptyTimeline(t *testing.T) {
	m := viewportModel(5)
	m.scrollBy(3)
	if m.scroll != 0 || m.cursor != 0 {
		t.Fatalf("scroll/cursor = %d/%d, want 0/0", m.scroll, m.cursor)
	}
}

func TestStatusBarPadsStyledStatusToWidth(t *testing.T) {
	prev := lipgloss.ColorProfile()
	lipgloss.SetColorProfile(termenv.TrueColor)
	t.Cleanup(func() { lipgloss.SetColorProfile(prev) })

	m := &Model{
		width:  60,
		height: 10,
		ready:  true,
		rooms:  []store.Room{{ID: "!ops:example.org", Name: "ops"}},
	}
	m.setStatus("copy failed: no clipboard", true)

	if w := lipgloss.Width(m.statusBar()); w != 60 {
		t.Fatalf("status bar width = %d, want 60", w)
	}
}

func TestContainsRoom(t *testing.T) {
	rooms := []string{"!a:x", "!b:x"}
	if !containsRoom(rooms, "!b:x") {
		t.Fatal("expected match")
	}
	if containsRoom(rooms, "!c:x") {
		t.Fatal("unexpected match")
	}
}

package render

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/tbell/backscroll/internal/store"
)

func msgAt(sender, body string, ts time.Time) *store.Message {
	return &store.Message{
		EventID:   "$" + sender + ts.Format("150405"),
		Sender:    sender,
		Type:      "m.text",
		Body:      body,
		Timestamp: ts,
	}
}

func plain(lines []string) string {
	return ansi.Strip(strings.Join(lines, "\n"))
}

func TestBuild_PlaceholderForUnmaterialized(t *testing.T) {
	b := NewBuilder(80)
	items := []*store.Message{nil}

	models := b.Build(0, items)
	if len(models) != 1 || models[0].Kind != KindPlaceholder {
		t.Fatalf("expected a single placeholder, got %+v", models)
	}
}

func TestBuild_DaySeparatorInterleaving(t *testing.T) {
	day1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	items := []*store.Message{
		msgAt("@ana:example.org", "first", day1),
		msgAt("@ben:example.org", "same day", day1.Add(time.Hour)),
		msgAt("@ana:example.org", "next day", day2),
	}
	b := NewBuilder(80)

	// Position 0 opens the timeline: separator plus message.
	models := b.Build(0, items)
	if len(models) != 2 || models[0].Kind != KindSeparator || models[1].Kind != KindMessage {
		t.Fatalf("position 0: got %d models, kinds %v", len(models), kinds(models))
	}
	if !strings.Contains(plain(models[0].Lines), "01 Mar 2026") {
		t.Errorf("separator label missing date: %q", plain(models[0].Lines))
	}

	// Same day: message only.
	models = b.Build(1, items)
	if len(models) != 1 || models[0].Kind != KindMessage {
		t.Fatalf("position 1: got %d models, kinds %v", len(models), kinds(models))
	}

	// Day rollover: separator again.
	models = b.Build(2, items)
	if len(models) != 2 || models[0].Kind != KindSeparator {
		t.Fatalf("position 2: got %d models, kinds %v", len(models), kinds(models))
	}
}

func TestBuild_NoSeparatorAfterUnmaterializedNeighbor(t *testing.T) {
	day := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	items := []*store.Message{nil, msgAt("@ana:example.org", "hi", day)}
	b := NewBuilder(80)

	models := b.Build(1, items)
	if len(models) != 1 || models[0].Kind != KindMessage {
		t.Fatalf("expected message only next to placeholder, got %v", kinds(models))
	}
}

func TestBuild_HeaderAndBody(t *testing.T) {
	ts := time.Date(2026, 3, 1, 14, 45, 0, 0, time.UTC)
	items := []*store.Message{msgAt("@ana:example.org", "deploy done", ts)}
	// Narrow pane: bodies take the plain wrap path, keeping output exact.
	b := NewBuilder(24)

	models := b.Build(0, items)
	m := models[len(models)-1]
	text := plain(m.Lines)

	if !strings.Contains(text, "ana") {
		t.Errorf("header missing sender: %q", text)
	}
	if !strings.Contains(text, "14:45") {
		t.Errorf("header missing timestamp: %q", text)
	}
	if !strings.Contains(text, "deploy done") {
		t.Errorf("body missing: %q", text)
	}
	if m.Body != "deploy done" {
		t.Errorf("plain body = %q", m.Body)
	}
}

func TestBuild_EmoteAndNotice(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	emote := msgAt("@ana:example.org", "waves", ts)
	emote.Type = "m.emote"
	notice := msgAt("@bot:example.org", "build finished", ts.Add(time.Minute))
	notice.Type = "m.notice"
	items := []*store.Message{emote, notice}
	b := NewBuilder(60)

	em := b.Build(0, items)
	if got := plain(em[len(em)-1].Lines); !strings.Contains(got, "* ana waves") {
		t.Errorf("emote body = %q", got)
	}
	no := b.Build(1, items)
	if got := plain(no[0].Lines); !strings.Contains(got, "build finished") {
		t.Errorf("notice body = %q", got)
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{"fits", "short line", 20, []string{"short line"}},
		{"wraps at word boundary", "one two three four", 9, []string{"one two", "three", "four"}},
		{"preserves paragraphs", "first\nsecond", 20, []string{"first", "second"}},
		{"wide runes measured by cells", "デプロイ 完了", 13, []string{"デプロイ 完了"}},
		{"wide runes wrapped by cells", "デプロイ 完了", 10, []string{"デプロイ", "完了"}},
		{"zero width passthrough", "anything", 0, []string{"anything"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Wrap(tt.text, tt.width)
			if len(got) != len(tt.want) {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("line %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSenderName(t *testing.T) {
	if got := SenderName("@ana:example.org"); got != "ana" {
		t.Errorf("got %q", got)
	}
	if got := SenderName("plainnick"); got != "plainnick" {
		t.Errorf("got %q", got)
	}
}

func kinds(models []*MessageModel) []Kind {
	out := make([]Kind, len(models))
	for i, m := range models {
		out[i] = m.Kind
	}
	return out
}

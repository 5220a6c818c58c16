package render

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"

	"github.com/tbell/backscroll/internal/store"
	"github.com/tbell/backscroll/internal/styles"
)

// Kind discriminates the model variants a timeline position can produce.
type Kind int

const (
	KindMessage Kind = iota
	KindSeparator
	KindPlaceholder
)

// MessageModel is one built presentation unit. Models are handed out by
// pointer; the timeline cache keys on that identity.
type MessageModel struct {
	Kind    Kind
	EventID string
	Sender  string
	Body    string // plain body, for clipboard copy
	Lines   []string
}

// Height returns the number of terminal lines the model occupies.
func (m *MessageModel) Height() int { return len(m.Lines) }

const (
	senderColWidth = 14
	bodyIndent     = 2
)

// Builder derives the models for one timeline position: a day separator
// when the date rolls over, then the message itself. Unmaterialized
// positions produce a single placeholder. Builder satisfies the cache's
// BuildFunc via Build.
type Builder struct {
	bodies *BodyRenderer

	mu    sync.Mutex
	width int
}

// NewBuilder returns a builder rendering at the given pane width.
func NewBuilder(width int) *Builder {
	return &Builder{bodies: NewBodyRenderer(), width: width}
}

// SetWidth changes the render width for subsequent builds. The owner must
// force a cache rebuild afterwards; already-built models keep their width.
func (b *Builder) SetWidth(width int) {
	b.mu.Lock()
	b.width = width
	b.mu.Unlock()
}

// Build produces the models for one position of the message window.
func (b *Builder) Build(position int, items []*store.Message) []*MessageModel {
	b.mu.Lock()
	width := b.width
	b.mu.Unlock()
	if width < 10 {
		width = 10
	}

	msg := items[position]
	if msg == nil {
		return []*MessageModel{placeholderModel(width)}
	}

	var models []*MessageModel
	if sep := separatorFor(position, items, width); sep != nil {
		models = append(models, sep)
	}
	models = append(models, messageModel(msg, width, b.bodies))
	return models
}

func placeholderModel(width int) *MessageModel {
	return &MessageModel{
		Kind:  KindPlaceholder,
		Lines: []string{styles.Muted().Render("  ···")},
	}
}

// separatorFor emits a day-separator model when position starts a new day.
// With an unmaterialized predecessor the day boundary is unknowable, so no
// separator is emitted; the rebuild after that page lands fixes it up.
func separatorFor(position int, items []*store.Message, width int) *MessageModel {
	msg := items[position]
	if position > 0 {
		prev := items[position-1]
		if prev == nil {
			return nil
		}
		py, pm, pd := prev.Timestamp.Date()
		y, mo, d := msg.Timestamp.Date()
		if py == y && pm == mo && pd == d {
			return nil
		}
	}

	label := msg.Timestamp.Format("Mon, 02 Jan 2006")
	rule := strings.Repeat("─", max((width-len(label)-4)/2, 2))
	return &MessageModel{
		Kind:  KindSeparator,
		Lines: []string{styles.Subtle().Render(fmt.Sprintf("%s %s %s", rule, label, rule))},
	}
}

func messageModel(msg *store.Message, width int, bodies *BodyRenderer) *MessageModel {
	name := SenderName(msg.Sender)
	header := fmt.Sprintf("%s %s",
		styles.Sender(SenderSlot(msg.Sender)).Render(runewidth.Truncate(name, senderColWidth, "…")),
		styles.Muted().Render(msg.Timestamp.Format("15:04")),
	)

	bodyWidth := width - bodyIndent
	var body []string
	switch msg.Type {
	case "m.emote":
		for _, line := range Wrap(fmt.Sprintf("* %s %s", name, msg.Body), bodyWidth) {
			body = append(body, styles.Muted().Italic(true).Render(line))
		}
	case "m.notice":
		for _, line := range Wrap(msg.Body, bodyWidth) {
			body = append(body, styles.Muted().Render(line))
		}
	case "m.text":
		body = bodies.Markdown(msg.Body, bodyWidth)
	default:
		body = Wrap(msg.Body, bodyWidth)
	}

	indent := strings.Repeat(" ", bodyIndent)
	lines := make([]string, 0, len(body)+1)
	lines = append(lines, header)
	for _, l := range body {
		lines = append(lines, indent+l)
	}

	return &MessageModel{
		Kind:    KindMessage,
		EventID: msg.EventID,
		Sender:  msg.Sender,
		Body:    msg.Body,
		Lines:   lines,
	}
}

// SenderName strips Matrix-style id decoration for display: "@ana:host"
// becomes "ana".
func SenderName(sender string) string {
	name := strings.TrimPrefix(sender, "@")
	if i := strings.IndexByte(name, ':'); i > 0 {
		name = name[:i]
	}
	return name
}

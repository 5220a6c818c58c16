package app

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/tbell/backscroll/internal/config"
	"github.com/tbell/backscroll/internal/paging"
	"github.com/tbell/backscroll/internal/render"
	"github.com/tbell/backscroll/internal/store"
	"github.com/tbell/backscroll/internal/timeline"
)

// chromeWidth is what the cursor gutter and the scrollbar column take
// away from the text width.
const chromeWidth = 3

// modelsMsg carries a freshly rebuilt model list from the timeline
// executor into the program. Stale rooms are dropped on receipt.
type modelsMsg struct {
	room   string
	models []*render.MessageModel
}

// watchMsg wraps an export-file change event.
type watchMsg store.Event

// session is the per-room timeline state: one cache bound to one room,
// plus the paged list currently backing it. The list is swapped out when
// the room grows; the cache survives swaps so diffs stay incremental.
type session struct {
	roomID string
	cache  *timeline.ModelCache[*store.Message, *render.MessageModel]

	mu   sync.Mutex
	list *paging.PagedList[*store.Message]
}

func (s *session) setList(l *paging.PagedList[*store.Message]) {
	s.mu.Lock()
	s.list = l
	s.mu.Unlock()
}

// submitWindow pushes the list's current snapshot at the cache. Safe from
// any goroutine; page fetch completions call it directly.
func (s *session) submitWindow() {
	s.mu.Lock()
	l := s.list
	s.mu.Unlock()
	if l != nil {
		s.cache.SubmitList(l.Window())
	}
}

func (s *session) length() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.list == nil {
		return 0
	}
	return s.list.Len()
}

// timelineLine maps one rendered screen line back to the model it came
// from, for cursor highlighting and load-around triggers while scrolling.
type timelineLine struct {
	text  string
	model int
}

// Model is the root Bubble Tea model for the backscroll viewer.
type Model struct {
	cfg    config.Config
	logger *slog.Logger
	store  *store.Store

	rooms      []store.Room
	activeRoom int

	exec    *timeline.SerialExecutor
	builder *render.Builder
	sess    *session

	msgCh     chan tea.Msg
	refreshCh chan RefreshMsg
	coal      *coalescer

	watchEvents <-chan store.Event
	watchCloser io.Closer

	// Viewport state
	models []*render.MessageModel
	lines  []timelineLine
	scroll int
	cursor int

	width, height int
	ready         bool

	statusMsg    string
	statusIsErr  bool
	statusExpiry time.Time
}

// New builds the application model, opens the first room, and starts the
// export directory watcher. A watcher failure is downgraded to a warning;
// the viewer still works on whatever was ingested at startup.
func New(cfg config.Config, logger *slog.Logger, st *store.Store) (*Model, error) {
	rooms, err := st.Rooms()
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	m := &Model{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		rooms:     rooms,
		exec:      timeline.NewSerialExecutor(),
		builder:   render.NewBuilder(80 - chromeWidth),
		msgCh:     make(chan tea.Msg, 16),
		refreshCh: make(chan RefreshMsg, 4),
	}
	m.coal = newCoalescer(time.Duration(cfg.CoalesceWindowMS)*time.Millisecond, m.refreshCh)

	events, closer, err := store.Watch(cfg.ExportDir, logger)
	if err != nil {
		logger.Warn("export watcher unavailable", "dir", cfg.ExportDir, "error", err)
	} else {
		m.watchEvents = events
		m.watchCloser = closer
	}

	if len(rooms) > 0 {
		if err := m.openRoom(0); err != nil {
			m.shutdown()
			return nil, err
		}
	}
	return m, nil
}

// messageEquality is the diff policy for timeline items: identity is the
// event id, content changes are detected by fingerprint. Unmaterialized
// positions all share a nil identity so they match each other positionally.
func messageEquality() timeline.Equality[*store.Message] {
	return timeline.Equality[*store.Message]{
		ID: func(msg *store.Message) any {
			if msg == nil {
				return nil
			}
			return msg.EventID
		},
		Fingerprint: func(msg *store.Message) uint64 {
			if msg == nil {
				return 0
			}
			return msg.Fingerprint()
		},
	}
}

// openRoom tears down the current session and builds one for rooms[idx]:
// cache, differ, and paged list wired to the shared executor, positioned
// at the newest message.
func (m *Model) openRoom(idx int) error {
	if idx < 0 || idx >= len(m.rooms) {
		return nil
	}
	m.activeRoom = idx
	room := m.rooms[idx]

	sess := &session{roomID: room.ID}
	differ := timeline.NewLCSDiffer(m.exec, messageEquality())
	sess.cache = timeline.NewModelCache(m.exec, differ, m.builder.Build, func() {
		m.exec.Post(func() {
			models := sess.cache.Models()
			select {
			case m.msgCh <- modelsMsg{room: sess.roomID, models: models}:
			default:
				// Buffer full; a queued rebuild will deliver newer models.
			}
		})
	})

	list, err := paging.New[*store.Message](
		&store.RoomLoader{Store: m.store, RoomID: room.ID},
		paging.Config{PageSize: m.cfg.PageSize, Radius: m.cfg.PrefetchRadius},
		m.logger,
		sess.submitWindow,
	)
	if err != nil {
		return fmt.Errorf("open room %s: %w", room.ID, err)
	}
	sess.setList(list)
	m.sess = sess

	m.models = nil
	m.lines = nil
	m.cursor = 0
	m.scroll = 0

	m.exec.Post(func() {
		w := list.Window()
		sess.cache.SubmitList(w)
		if n := w.Len(); n > 0 {
			w.LoadAround(n - 1)
		}
	})
	return nil
}

// refreshActiveRoom rebuilds the paged list so its length tracks the
// store, then resubmits. The cache diffs the new window against the old
// one, so only genuinely new or edited positions invalidate.
func (m *Model) refreshActiveRoom() {
	sess := m.sess
	if sess == nil {
		return
	}
	list, err := paging.New[*store.Message](
		&store.RoomLoader{Store: m.store, RoomID: sess.roomID},
		paging.Config{PageSize: m.cfg.PageSize, Radius: m.cfg.PrefetchRadius},
		m.logger,
		sess.submitWindow,
	)
	if err != nil {
		m.setStatus(fmt.Sprintf("refresh failed: %v", err), true)
		return
	}
	sess.setList(list)
	m.exec.Post(func() {
		w := list.Window()
		sess.cache.SubmitList(w)
		if n := w.Len(); n > 0 {
			w.LoadAround(n - 1)
		}
	})
}

func (m *Model) reloadRooms() {
	rooms, err := m.store.Rooms()
	if err != nil {
		m.logger.Warn("room listing failed", "error", err)
		return
	}
	active := ""
	if m.sess != nil {
		active = m.sess.roomID
	}
	m.rooms = rooms
	for i, r := range rooms {
		if r.ID == active {
			m.activeRoom = i
			return
		}
	}
	if m.activeRoom >= len(rooms) {
		m.activeRoom = max(len(rooms)-1, 0)
	}
	if active == "" && len(rooms) > 0 {
		if err := m.openRoom(0); err != nil {
			m.setStatus(err.Error(), true)
		}
	}
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.statusMsg = msg
	m.statusIsErr = isErr
	m.statusExpiry = time.Now().Add(4 * time.Second)
}

func (m *Model) shutdown() {
	if m.watchCloser != nil {
		m.watchCloser.Close()
	}
	m.coal.Stop()
	m.exec.Close()
}

func waitForTimeline(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg { return <-ch }
}

func waitForRefresh(ch <-chan RefreshMsg) tea.Cmd {
	return func() tea.Msg { return <-ch }
}

func waitForWatch(ch <-chan store.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return watchMsg(ev)
	}
}

// Init starts the channel listeners.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitForTimeline(m.msgCh),
		waitForRefresh(m.refreshCh),
	}
	if m.watchEvents != nil {
		cmds = append(cmds, waitForWatch(m.watchEvents))
	}
	return tea.Batch(cmds...)
}

// Update handles all program messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.builder.SetWidth(max(msg.Width-chromeWidth, 20))
		if sess := m.sess; sess != nil {
			// Width changed under already-built models; force a full
			// rebuild by cycling the window through nil.
			m.exec.Post(func() {
				sess.cache.SubmitList(nil)
				sess.submitWindow()
			})
		}
		return m, nil

	case modelsMsg:
		cmd := waitForTimeline(m.msgCh)
		if m.sess == nil || msg.room != m.sess.roomID {
			return m, cmd
		}
		atBottom := len(m.models) == 0 || m.cursor >= len(m.models)-1
		m.models = msg.models
		m.rebuildLines()
		if len(m.models) == 0 {
			m.cursor, m.scroll = 0, 0
			return m, cmd
		}
		if atBottom {
			m.cursor = len(m.models) - 1
		} else if m.cursor >= len(m.models) {
			m.cursor = len(m.models) - 1
		}
		m.ensureCursorVisible()
		return m, cmd

	case watchMsg:
		ev := store.Event(msg)
		cmds := []tea.Cmd{waitForWatch(m.watchEvents)}
		cmds = append(cmds, func() tea.Msg {
			room, added, err := m.store.IngestFile(ev.Path, m.logger)
			if err != nil {
				m.logger.Warn("ingest on change failed", "path", ev.Path, "error", err)
				return nil
			}
			if added > 0 {
				m.coal.Add(room)
			}
			return nil
		})
		return m, tea.Batch(cmds...)

	case RefreshMsg:
		m.reloadRooms()
		if m.sess != nil {
			if msg.RefreshAll || containsRoom(msg.Rooms, m.sess.roomID) {
				m.refreshActiveRoom()
			}
		}
		return m, waitForRefresh(m.refreshCh)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func containsRoom(rooms []string, id string) bool {
	for _, r := range rooms {
		if r == id {
			return true
		}
	}
	return false
}

type keyMap struct {
	Quit         key.Binding
	NextRoom     key.Binding
	PrevRoom     key.Binding
	Down         key.Binding
	Up           key.Binding
	Top          key.Binding
	Bottom       key.Binding
	HalfDown     key.Binding
	HalfUp       key.Binding
	Copy         key.Binding
	CopyRendered key.Binding
	Reload       key.Binding
}

var keys = keyMap{
	Quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	NextRoom:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next room")),
	PrevRoom:     key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev room")),
	Down:         key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
	Up:           key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
	Top:          key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
	Bottom:       key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
	HalfDown:     key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "half page down")),
	HalfUp:       key.NewBinding(key.WithKeys("ctrl+u"), key.WithHelp("ctrl+u", "half page up")),
	Copy:         key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy body")),
	CopyRendered: key.NewBinding(key.WithKeys("Y"), key.WithHelp("Y", "copy rendered")),
	Reload:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload exports")),
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.shutdown()
		return m, tea.Quit

	case key.Matches(msg, keys.NextRoom):
		if len(m.rooms) > 1 {
			if err := m.openRoom((m.activeRoom + 1) % len(m.rooms)); err != nil {
				m.setStatus(err.Error(), true)
			}
		}
	case key.Matches(msg, keys.PrevRoom):
		if len(m.rooms) > 1 {
			idx := m.activeRoom - 1
			if idx < 0 {
				idx = len(m.rooms) - 1
			}
			if err := m.openRoom(idx); err != nil {
				m.setStatus(err.Error(), true)
			}
		}

	case key.Matches(msg, keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, keys.Top):
		m.setCursor(0)
	case key.Matches(msg, keys.Bottom):
		m.setCursor(len(m.models) - 1)
	case key.Matches(msg, keys.HalfDown):
		m.scrollBy(m.viewHeight() / 2)
	case key.Matches(msg, keys.HalfUp):
		m.scrollBy(-m.viewHeight() / 2)

	case key.Matches(msg, keys.Copy):
		m.copyCursor(false)
	case key.Matches(msg, keys.CopyRendered):
		m.copyCursor(true)

	case key.Matches(msg, keys.Reload):
		m.setStatus("reloading exports...", false)
		return m, func() tea.Msg {
			if _, err := m.store.IngestDir(m.cfg.ExportDir, m.logger); err != nil {
				m.logger.Warn("reload failed", "error", err)
			}
			return RefreshMsg{RefreshAll: true}
		}
	}
	return m, nil
}

// moveCursor shifts the cursor by delta models and tells the cache which
// model the user is looking at so nearby pages can prefetch.
func (m *Model) moveCursor(delta int) {
	m.setCursor(m.cursor + delta)
}

func (m *Model) setCursor(idx int) {
	if len(m.models) == 0 {
		return
	}
	idx = min(max(idx, 0), len(m.models)-1)
	m.cursor = idx
	m.ensureCursorVisible()
	if sess := m.sess; sess != nil {
		sess.cache.LoadAround(m.models[idx])
	}
}

// scrollBy moves the viewport by n lines and drags the cursor along so it
// stays inside the view.
func (m *Model) scrollBy(n int) {
	if len(m.lines) == 0 {
		return
	}
	maxScroll := max(len(m.lines)-m.viewHeight(), 0)
	m.scroll = min(max(m.scroll+n, 0), maxScroll)

	first, last := m.scroll, min(m.scroll+m.viewHeight(), len(m.lines))-1
	cs, ce := m.modelLineSpan(m.cursor)
	if ce < first {
		m.setCursorNoScroll(m.lines[first].model)
	} else if cs > last {
		m.setCursorNoScroll(m.lines[last].model)
	}
}

func (m *Model) setCursorNoScroll(idx int) {
	if len(m.models) == 0 {
		return
	}
	m.cursor = min(max(idx, 0), len(m.models)-1)
	if sess := m.sess; sess != nil {
		sess.cache.LoadAround(m.models[m.cursor])
	}
}

func (m *Model) copyCursor(rendered bool) {
	if m.cursor < 0 || m.cursor >= len(m.models) {
		return
	}
	mm := m.models[m.cursor]
	if mm.Kind != render.KindMessage {
		return
	}
	var text string
	if rendered {
		plain := make([]string, len(mm.Lines))
		for i, ln := range mm.Lines {
			plain[i] = ansi.Strip(ln)
		}
		text = strings.Join(plain, "\n")
	} else {
		text = mm.Body
	}
	if err := clipboard.WriteAll(text); err != nil {
		m.setStatus(fmt.Sprintf("copy failed: %v", err), true)
		return
	}
	m.setStatus("copied", false)
}

func (m *Model) rebuildLines() {
	m.lines = m.lines[:0]
	for i, mm := range m.models {
		for _, ln := range mm.Lines {
			m.lines = append(m.lines, timelineLine{text: ln, model: i})
		}
	}
}

// modelLineSpan returns the first and last line index occupied by model
// idx, or (-1, -1) when it renders no lines.
func (m *Model) modelLineSpan(idx int) (int, int) {
	first, last := -1, -1
	for i, ln := range m.lines {
		if ln.model == idx {
			if first == -1 {
				first = i
			}
			last = i
		} else if first != -1 {
			break
		}
	}
	return first, last
}

func (m *Model) viewHeight() int {
	return max(m.height-2, 1)
}

func (m *Model) ensureCursorVisible() {
	first, last := m.modelLineSpan(m.cursor)
	if first == -1 {
		return
	}
	h := m.viewHeight()
	if first < m.scroll {
		m.scroll = first
	} else if last >= m.scroll+h {
		m.scroll = last - h + 1
	}
	m.scroll = min(max(m.scroll, 0), max(len(m.lines)-h, 0))
}

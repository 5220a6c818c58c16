package app

import (
	"sync"
	"time"
)

const (
	defaultCoalesceWindow = 250 * time.Millisecond
	maxPendingRooms       = 8 // above this, refresh everything
)

// RefreshMsg is sent into the program when a coalesce window closes.
type RefreshMsg struct {
	Rooms      []string
	RefreshAll bool
}

// coalescer batches rapid export-file change events into single refreshes.
// Events arriving within the window accumulate; one RefreshMsg is emitted
// after a quiet period.
type coalescer struct {
	mu      sync.Mutex
	pending map[string]struct{}
	all     bool
	timer   *time.Timer
	window  time.Duration
	out     chan<- RefreshMsg
	closed  bool
}

func newCoalescer(window time.Duration, out chan<- RefreshMsg) *coalescer {
	if window == 0 {
		window = defaultCoalesceWindow
	}
	return &coalescer{
		pending: make(map[string]struct{}),
		window:  window,
		out:     out,
	}
}

// Add queues a room for refresh. An empty room id requests a full refresh.
func (c *coalescer) Add(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if room == "" {
		c.all = true
	} else {
		c.pending[room] = struct{}{}
	}

	// Reset the timer; we wait for a quiet period.
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.window, c.flush)
}

func (c *coalescer) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	rooms := make([]string, 0, len(c.pending))
	for room := range c.pending {
		rooms = append(rooms, room)
	}
	all := c.all || len(rooms) > maxPendingRooms

	c.pending = make(map[string]struct{})
	c.all = false
	c.timer = nil

	select {
	case c.out <- RefreshMsg{Rooms: rooms, RefreshAll: all}:
	default:
		// Channel full; the queued refresh covers these rooms too.
	}
}

// Stop cancels any pending flush.
func (c *coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

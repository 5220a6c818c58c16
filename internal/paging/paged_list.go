// Package paging implements the windowed list that backs the timeline: a
// fixed-length list whose contents are materialized page by page from a
// Loader as positions are accessed. Unmaterialized positions hold the zero
// value of the item type.
package paging

import (
	"fmt"
	"log/slog"
	"sync"
)

// Loader supplies the backing data one page at a time.
type Loader[T any] interface {
	Count() (int, error)
	Page(offset, limit int) ([]T, error)
}

const (
	// DefaultPageSize is the page granularity used when none is configured.
	DefaultPageSize = 50
	// DefaultRadius is how many positions around a load trigger are
	// materialized.
	DefaultRadius = 25
)

// Config tunes page granularity and prefetch reach.
type Config struct {
	PageSize int
	Radius   int
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.Radius <= 0 {
		c.Radius = DefaultRadius
	}
	return c
}

// PagedList is a windowed list of fixed length. Its length is decided once
// at construction; a data set that grew or shrank is represented by building
// a fresh list and submitting a new window downstream.
type PagedList[T any] struct {
	loader Loader[T]
	cfg    Config
	logger *slog.Logger

	// onFetch runs after every page fetch completes, success or failure.
	// The owner typically submits a fresh Window to the model cache here.
	onFetch func()

	mu       sync.Mutex
	items    []T
	loaded   []bool
	inflight map[int]bool
}

// New counts the backing data and returns an empty-bodied list of that
// length. No pages are fetched until the first LoadAround.
func New[T any](loader Loader[T], cfg Config, logger *slog.Logger, onFetch func()) (*PagedList[T], error) {
	count, err := loader.Count()
	if err != nil {
		return nil, fmt.Errorf("count backing items: %w", err)
	}
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	pages := (count + cfg.PageSize - 1) / cfg.PageSize
	return &PagedList[T]{
		loader:   loader,
		cfg:      cfg,
		logger:   logger,
		onFetch:  onFetch,
		items:    make([]T, count),
		loaded:   make([]bool, pages),
		inflight: make(map[int]bool),
	}, nil
}

// Len returns the fixed list length.
func (l *PagedList[T]) Len() int {
	return len(l.items)
}

// LoadAround materializes the pages covering position±radius. Pages already
// loaded or in flight are skipped; fetches run on their own goroutines and
// a failed fetch is logged and retried on the next trigger.
func (l *PagedList[T]) LoadAround(position int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.items) == 0 {
		return
	}
	lo := max(position-l.cfg.Radius, 0)
	hi := min(position+l.cfg.Radius, len(l.items)-1)

	for page := lo / l.cfg.PageSize; page <= hi/l.cfg.PageSize; page++ {
		if l.loaded[page] || l.inflight[page] {
			continue
		}
		l.inflight[page] = true
		go l.fetch(page)
	}
}

func (l *PagedList[T]) fetch(page int) {
	offset := page * l.cfg.PageSize
	limit := min(l.cfg.PageSize, len(l.items)-offset)
	rows, err := l.loader.Page(offset, limit)

	l.mu.Lock()
	delete(l.inflight, page)
	if err != nil {
		l.mu.Unlock()
		l.logger.Warn("page fetch failed", "page", page, "err", err)
		if l.onFetch != nil {
			l.onFetch()
		}
		return
	}
	copy(l.items[offset:], rows)
	l.loaded[page] = true
	l.mu.Unlock()

	if l.onFetch != nil {
		l.onFetch()
	}
}

// Loaded reports whether the page containing position has been materialized.
func (l *PagedList[T]) Loaded(position int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if position < 0 || position >= len(l.items) {
		return false
	}
	return l.loaded[position/l.cfg.PageSize]
}

// Window captures an immutable snapshot of the current contents. Load
// triggers on the window forward to the list, so later fetches show up in
// the next Window, never in this one.
func (l *PagedList[T]) Window() *Window[T] {
	l.mu.Lock()
	items := make([]T, len(l.items))
	copy(items, l.items)
	l.mu.Unlock()
	return &Window[T]{items: items, list: l}
}

// Window is one immutable snapshot of a PagedList.
type Window[T any] struct {
	items []T
	list  *PagedList[T]
}

// Len returns the snapshot length.
func (w *Window[T]) Len() int { return len(w.items) }

// Snapshot returns the snapshot contents. Callers must treat the slice as
// read-only.
func (w *Window[T]) Snapshot() []T { return w.items }

// LoadAround asks the backing list to materialize items near position.
func (w *Window[T]) LoadAround(position int) {
	w.list.LoadAround(position)
}

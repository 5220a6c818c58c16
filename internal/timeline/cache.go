package timeline

import (
	"sync"
	"sync/atomic"
)

// Window is the windowed data source the cache tracks: an incrementally
// materialized list that can report its size, hand out a read-only snapshot
// (unmaterialized positions hold the zero value), and be asked to load items
// near an index.
type Window[T any] interface {
	Len() int
	Snapshot() []T
	LoadAround(position int)
}

// BuildFunc derives the presentation models for one position. It must be
// pure, and it must not return the same model value for two different
// positions within one build pass; model identity is the cache key.
type BuildFunc[T any, M comparable] func(position int, items []T) []M

// ModelCache caches built models per backing item for the current window
// snapshot. The full mapping is invalidated on any reported list change and
// rebuilt lazily on the next Models call; no partial patching is attempted.
// That total-invalidation policy trades rebuild cost for simplicity and is
// load-bearing for consumers that count rebuilds.
//
// Mutations are confined to the serial executor, except during the extent of
// a SubmitList call, where a nil transition can fire a synchronous
// notification on the caller's goroutine. A notification arriving on any
// other goroutine is a wiring bug and panics.
type ModelCache[T any, M comparable] struct {
	exec   *SerialExecutor
	differ Differ[T]
	build  BuildFunc[T, M]
	onList func()

	// mu serializes SubmitList, Models and LoadAround against each other
	// and guards window and lastAccessed.
	mu           sync.Mutex
	window       Window[T]
	lastAccessed int

	// cacheMu guards the model mapping, which is also written from the
	// notification path.
	cacheMu   sync.Mutex
	models    []M
	positions map[M]int

	stale      atomic.Bool
	submitting atomic.Bool
}

// NewModelCache wires a cache to its collaborators. onListChanged is invoked
// once per invalidation so the owner can schedule a rebuild and repaint;
// it must not call back into the cache synchronously.
func NewModelCache[T any, M comparable](
	exec *SerialExecutor,
	differ Differ[T],
	build BuildFunc[T, M],
	onListChanged func(),
) *ModelCache[T, M] {
	c := &ModelCache[T, M]{
		exec:         exec,
		differ:       differ,
		build:        build,
		onList:       onListChanged,
		lastAccessed: -1,
		positions:    make(map[M]int),
	}
	c.stale.Store(true)
	return c
}

// SubmitList replaces the window being tracked and schedules a background
// diff against the previous snapshot. A nil-to-window or window-to-nil
// transition is reported synchronously instead of diffed.
func (c *ModelCache[T, M]) SubmitList(next Window[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.submitting.Store(true)
	defer c.submitting.Store(false)

	prev := c.window
	c.window = next

	cb := cacheCallback[T, M]{c}
	switch {
	case prev == nil && next == nil:
	case prev == nil:
		cb.Inserted(0, next.Len())
	case next == nil:
		cb.Removed(0, prev.Len())
	default:
		c.differ.Submit(prev.Snapshot(), next.Snapshot(), cb)
	}
}

// Models returns the full model list in ascending-position build order,
// performing a complete rebuild first if the cache is stale. After the
// rebuild it re-issues the load trigger for the last accessed position so
// prefetch keeps tracking the viewport between lookups.
func (c *ModelCache[T, M]) Models() []M {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stale.Load() {
		c.rebuildLocked()
	}
	if c.lastAccessed >= 0 {
		c.triggerLoadLocked(c.lastAccessed)
	}

	c.cacheMu.Lock()
	out := make([]M, len(c.models))
	copy(out, c.models)
	c.cacheMu.Unlock()
	return out
}

// LoadAround resolves a model back to the position that built it and issues
// the load trigger there, recording it as the last accessed position. A
// model no longer present (invalidated since it was handed out) is ignored.
func (c *ModelCache[T, M]) LoadAround(model M) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cacheMu.Lock()
	position, ok := c.positions[model]
	c.cacheMu.Unlock()
	if !ok {
		return
	}
	c.triggerLoadLocked(position)
	c.lastAccessed = position
}

// rebuildLocked sweeps every position of the current snapshot exactly once
// and replaces the mapping wholesale. Staleness clears only after the full
// sweep. Callers hold mu.
func (c *ModelCache[T, M]) rebuildLocked() {
	var items []T
	if c.window != nil {
		items = c.window.Snapshot()
	}

	models := make([]M, 0, len(items))
	positions := make(map[M]int, len(items))
	for position := range items {
		if position >= c.window.Len() {
			// Window shrank mid-sweep; positions past the end are gone.
			break
		}
		for _, m := range c.build(position, items) {
			models = append(models, m)
			positions[m] = position
		}
	}

	c.cacheMu.Lock()
	c.models = models
	c.positions = positions
	c.cacheMu.Unlock()
	c.stale.Store(false)
}

// triggerLoadLocked issues the window load trigger, clamped to the valid
// index range. Suppressed entirely for an empty or absent window.
func (c *ModelCache[T, M]) triggerLoadLocked(position int) {
	if c.window == nil {
		return
	}
	size := c.window.Len()
	if size == 0 {
		return
	}
	if position >= size {
		position = size - 1
	}
	c.window.LoadAround(position)
}

// invalidate clears the whole mapping and marks the cache stale. All four
// change kinds collapse to this one response.
func (c *ModelCache[T, M]) invalidate() {
	c.assertUpdateContext()

	c.cacheMu.Lock()
	c.models = nil
	c.positions = make(map[M]int)
	c.cacheMu.Unlock()
	c.stale.Store(true)

	if c.onList != nil {
		c.onList()
	}
}

// assertUpdateContext enforces the single-writer discipline: notifications
// must arrive on the serial executor, or synchronously inside an active
// SubmitList call. Anything else is a caller misconfiguration that cannot
// be worked around, so it fails hard.
func (c *ModelCache[T, M]) assertUpdateContext() {
	if c.submitting.Load() || c.exec.OnLoop() {
		return
	}
	panic("timeline: model cache notified off its executor; deliver diff results through the cache's SerialExecutor")
}

// cacheCallback adapts the cache to the differ's ChangeCallback. Every
// change kind invalidates the full mapping.
type cacheCallback[T any, M comparable] struct {
	c *ModelCache[T, M]
}

func (cb cacheCallback[T, M]) Inserted(position, count int) { cb.c.invalidate() }
func (cb cacheCallback[T, M]) Removed(position, count int)  { cb.c.invalidate() }
func (cb cacheCallback[T, M]) Moved(from, to int)           { cb.c.invalidate() }
func (cb cacheCallback[T, M]) Changed(position, count int)  { cb.c.invalidate() }

package timeline

import (
	"sync/atomic"

	lcs "github.com/yudai/golcs"
)

// ChangeCallback receives structural change notifications for one diff.
// Positions are in new-list coordinates. Consumers that respond to every
// kind with a full invalidation do not depend on exact positions.
type ChangeCallback interface {
	Inserted(position, count int)
	Removed(position, count int)
	Moved(from, to int)
	Changed(position, count int)
}

// Differ computes the structural difference between two snapshots and
// reports it asynchronously through a ChangeCallback. Implementations must
// deliver notifications on the cache's serial executor and may discard the
// results of a diff superseded by a newer submission.
type Differ[T any] interface {
	Submit(old, new []T, cb ChangeCallback)
}

// Equality is the caller-supplied item comparison policy. ID extracts a
// comparable identity key ("same item"); Fingerprint hashes the content
// ("same contents"). A nil Fingerprint disables content-change detection.
type Equality[T any] struct {
	ID          func(T) any
	Fingerprint func(T) uint64
}

// LCSDiffer diffs snapshots with a longest-common-subsequence pass over
// identity keys. Matched pairs whose fingerprints differ are reported as
// changed; everything else becomes remove/insert ranges. Moves are never
// reported, an LCS sees a move as a remove plus an insert.
type LCSDiffer[T any] struct {
	exec *SerialExecutor
	eq   Equality[T]
	gen  atomic.Uint64

	// Dispatch runs the diff computation concurrently with the loop.
	// Overridable for deterministic tests.
	Dispatch func(func())
}

// NewLCSDiffer returns a differ that computes on a fresh goroutine per
// submission and posts results to exec.
func NewLCSDiffer[T any](exec *SerialExecutor, eq Equality[T]) *LCSDiffer[T] {
	return &LCSDiffer[T]{
		exec:     exec,
		eq:       eq,
		Dispatch: func(fn func()) { go fn() },
	}
}

// Submit schedules a diff between old and new. A later Submit supersedes
// this one: the computation still runs, but its notifications are dropped.
func (d *LCSDiffer[T]) Submit(old, new []T, cb ChangeCallback) {
	gen := d.gen.Add(1)
	d.Dispatch(func() {
		script := buildScript(old, new, d.eq)
		d.exec.Post(func() {
			if d.gen.Load() != gen {
				return // superseded
			}
			for _, ch := range script {
				ch.report(cb)
			}
		})
	})
}

type changeKind int

const (
	changeRemoved changeKind = iota
	changeInserted
	changeChanged
)

type change struct {
	kind     changeKind
	position int
	count    int
}

func (ch change) report(cb ChangeCallback) {
	switch ch.kind {
	case changeRemoved:
		cb.Removed(ch.position, ch.count)
	case changeInserted:
		cb.Inserted(ch.position, ch.count)
	case changeChanged:
		cb.Changed(ch.position, ch.count)
	}
}

// buildScript walks the LCS index pairs and emits removals and insertions
// for the gaps between matches, plus content changes for matched items
// whose fingerprints moved. An identical pair of snapshots yields an empty
// script and therefore no notifications at all.
func buildScript[T any](old, new []T, eq Equality[T]) []change {
	left := make([]interface{}, len(old))
	for i, item := range old {
		left[i] = eq.ID(item)
	}
	right := make([]interface{}, len(new))
	for i, item := range new {
		right[i] = eq.ID(item)
	}

	var script []change
	oi, ni := 0, 0
	for _, pair := range lcs.New(left, right).IndexPairs() {
		if n := pair.Left - oi; n > 0 {
			script = append(script, change{changeRemoved, ni, n})
		}
		if n := pair.Right - ni; n > 0 {
			script = append(script, change{changeInserted, ni, n})
		}
		if eq.Fingerprint != nil && eq.Fingerprint(old[pair.Left]) != eq.Fingerprint(new[pair.Right]) {
			script = append(script, change{changeChanged, pair.Right, 1})
		}
		oi, ni = pair.Left+1, pair.Right+1
	}
	if n := len(old) - oi; n > 0 {
		script = append(script, change{changeRemoved, ni, n})
	}
	if n := len(new) - ni; n > 0 {
		script = append(script, change{changeInserted, ni, n})
	}
	return script
}

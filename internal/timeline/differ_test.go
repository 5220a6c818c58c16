package timeline

import (
	"fmt"
	"testing"
	"time"
)

type entry struct {
	id  string
	rev uint64
}

func entryEquality() Equality[entry] {
	return Equality[entry]{
		ID:          func(e entry) any { return e.id },
		Fingerprint: func(e entry) uint64 { return e.rev },
	}
}

type recordingCallback struct {
	events []string
}

func (r *recordingCallback) Inserted(position, count int) {
	r.events = append(r.events, fmt.Sprintf("ins %d %d", position, count))
}

func (r *recordingCallback) Removed(position, count int) {
	r.events = append(r.events, fmt.Sprintf("rem %d %d", position, count))
}

func (r *recordingCallback) Moved(from, to int) {
	r.events = append(r.events, fmt.Sprintf("mov %d %d", from, to))
}

func (r *recordingCallback) Changed(position, count int) {
	r.events = append(r.events, fmt.Sprintf("chg %d %d", position, count))
}

func TestLCSDiffer_Script(t *testing.T) {
	tests := []struct {
		name string
		old  []entry
		new  []entry
		want []string
	}{
		{
			name: "identical snapshots produce no notifications",
			old:  []entry{{"a", 0}, {"b", 0}},
			new:  []entry{{"a", 0}, {"b", 0}},
			want: nil,
		},
		{
			name: "removal",
			old:  []entry{{"a", 0}, {"b", 0}, {"c", 0}},
			new:  []entry{{"a", 0}, {"c", 0}},
			want: []string{"rem 1 1"},
		},
		{
			name: "insertion at tail",
			old:  []entry{{"a", 0}},
			new:  []entry{{"a", 0}, {"b", 0}},
			want: []string{"ins 1 1"},
		},
		{
			name: "content change on matched item",
			old:  []entry{{"a", 0}, {"b", 1}},
			new:  []entry{{"a", 0}, {"b", 2}},
			want: []string{"chg 1 1"},
		},
		{
			name: "mixed remove, change and insert",
			old:  []entry{{"a", 0}, {"b", 0}, {"c", 1}},
			new:  []entry{{"a", 0}, {"c", 2}, {"d", 0}},
			want: []string{"rem 1 1", "chg 1 1", "ins 2 1"},
		},
		{
			name: "full replacement",
			old:  []entry{{"a", 0}, {"b", 0}},
			new:  []entry{{"x", 0}, {"y", 0}},
			want: []string{"rem 0 2", "ins 0 2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := NewSerialExecutor()
			defer exec.Close()

			d := NewLCSDiffer(exec, entryEquality())
			d.Dispatch = func(fn func()) { fn() } // synchronous for determinism

			cb := &recordingCallback{}
			d.Submit(tt.old, tt.new, cb)
			runOn(t, exec, func() {}) // barrier: delivery task has run

			if len(cb.events) != len(tt.want) {
				t.Fatalf("events = %v, want %v", cb.events, tt.want)
			}
			for i := range tt.want {
				if cb.events[i] != tt.want[i] {
					t.Errorf("event %d = %q, want %q", i, cb.events[i], tt.want[i])
				}
			}
		})
	}
}

func TestLCSDiffer_SupersededDiffDropped(t *testing.T) {
	exec := NewSerialExecutor()
	defer exec.Close()

	d := NewLCSDiffer(exec, entryEquality())
	var pending []func()
	d.Dispatch = func(fn func()) { pending = append(pending, fn) }

	cb := &recordingCallback{}
	d.Submit([]entry{{"a", 0}}, []entry{{"a", 0}, {"b", 0}}, cb)
	d.Submit([]entry{{"a", 0}}, []entry{{"a", 0}, {"c", 0}, {"d", 0}}, cb)

	// Run both computations in submission order; only the newest one may
	// deliver.
	for _, fn := range pending {
		fn()
	}
	runOn(t, exec, func() {})

	want := []string{"ins 1 2"}
	if len(cb.events) != 1 || cb.events[0] != want[0] {
		t.Errorf("events = %v, want %v", cb.events, want)
	}
}

func TestLCSDiffer_EndToEndInvalidatesCache(t *testing.T) {
	exec := NewSerialExecutor()
	defer exec.Close()

	changed := make(chan struct{}, 8)
	d := NewLCSDiffer(exec, entryEquality())
	cache := NewModelCache(exec, d,
		func(position int, items []entry) []*testModel {
			return []*testModel{{item: items[position].id, position: position}}
		},
		func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		},
	)

	w1 := &entryWindow{items: []entry{{"a", 0}, {"b", 0}, {"c", 0}}}
	cache.SubmitList(w1)
	<-changed

	var models []*testModel
	runOn(t, exec, func() { models = cache.Models() })
	if len(models) != 3 {
		t.Fatalf("expected 3 models, got %d", len(models))
	}

	w2 := &entryWindow{items: []entry{{"a", 0}, {"c", 0}}}
	cache.SubmitList(w2)

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("diff never invalidated the cache")
	}

	runOn(t, exec, func() { models = cache.Models() })
	if len(models) != 2 || models[0].item != "a" || models[1].item != "c" {
		t.Fatalf("models after diff = %+v", models)
	}
}

type entryWindow struct {
	items []entry
	loads []int
}

func (w *entryWindow) Len() int { return len(w.items) }

func (w *entryWindow) Snapshot() []entry {
	out := make([]entry, len(w.items))
	copy(out, w.items)
	return out
}

func (w *entryWindow) LoadAround(position int) {
	w.loads = append(w.loads, position)
}

package memory

import (
	"container/list"
	"time"

	"github.com/goclaw/holomem/pkg/hrr"
)

// WorkingSet is a most-recently-touched window of persistent unit ids.
type WorkingSet struct {
	maxSize  int
	items    map[string]*list.Element
	eviction *list.List
}

// NewWorkingSet creates a working set holding at most maxSize ids.
func NewWorkingSet(maxSize int) *WorkingSet {
	return &WorkingSet{
		maxSize:  maxSize,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
	}
}

// Touch moves id to the front, evicting the least recently touched id
// when the set is full.
func (w *WorkingSet) Touch(id string) {
	if elem, ok := w.items[id]; ok {
		w.eviction.MoveToFront(elem)
		return
	}
	w.items[id] = w.eviction.PushFront(id)
	w.trim()
}

// Resize changes the capacity, evicting as needed.
func (w *WorkingSet) Resize(maxSize int) {
	w.maxSize = maxSize
	w.trim()
}

// IDs returns the ids from most to least recently touched.
func (w *WorkingSet) IDs() []string {
	ids := make([]string, 0, w.eviction.Len())
	for e := w.eviction.Front(); e != nil; e = e.Next() {
		ids = append(ids, e.Value.(string))
	}
	return ids
}

// Len returns the number of ids in the set.
func (w *WorkingSet) Len() int {
	return len(w.items)
}

func (w *WorkingSet) trim() {
	for w.maxSize > 0 && w.eviction.Len() > w.maxSize {
		back := w.eviction.Back()
		w.eviction.Remove(back)
		delete(w.items, back.Value.(string))
	}
}

// GlobalMemory is the decayed, importance-weighted superposition of the
// working set's embeddings. It is derived state and never persisted.
type GlobalMemory struct {
	codec    *hrr.Codec
	set      *WorkingSet
	halfLife time.Duration
}

// NewGlobalMemory creates a global memory over a working set of size.
func NewGlobalMemory(codec *hrr.Codec, size int, halfLife time.Duration) *GlobalMemory {
	return &GlobalMemory{
		codec:    codec,
		set:      NewWorkingSet(size),
		halfLife: halfLife,
	}
}

// WorkingSet returns the underlying working set.
func (g *GlobalMemory) WorkingSet() *WorkingSet { return g.set }

// State computes H = normalize(Σ decay_i(now) × importance_i × embedding_i)
// over the working set. It returns false when the working set is empty.
func (g *GlobalMemory) State(now time.Time, lookup func(id string) *PersistentUnit) (hrr.Vector, bool) {
	ids := g.set.IDs()
	vectors := make([]hrr.Vector, 0, len(ids))
	weights := make([]float64, 0, len(ids))
	for _, id := range ids {
		u := lookup(id)
		if u == nil {
			continue
		}
		vectors = append(vectors, u.Vector)
		weights = append(weights, u.EffectiveImportance(now, g.halfLife))
	}
	if len(vectors) == 0 {
		return nil, false
	}
	h, err := g.codec.Superpose(vectors, weights)
	if err != nil {
		return nil, false
	}
	return h, true
}

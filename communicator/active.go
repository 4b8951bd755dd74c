package communicator

import (
	"fmt"
	"maps"
	"slices"

	"github.com/magpierre/datacomm/monitoring"
)

// ActiveDataHandler tracks the rows known to the client. It is itself the
// first generator of a communicator and writes the row key.
//
// A key moves from active to dropped when the client releases it and is
// destroyed by the next CleanUp unless that push delivered the row again.
type ActiveDataHandler[T any] struct {
	keys    DataKeyMapper[T]
	active  map[string]struct{}
	dropped map[string]struct{}
	// destroy fans a destroyed item out to every registered generator,
	// this handler included.
	destroy func(item T)
	metrics *monitoring.Metrics
}

func newActiveDataHandler[T any](keys DataKeyMapper[T], metrics *monitoring.Metrics) *ActiveDataHandler[T] {
	h := &ActiveDataHandler[T]{
		keys:    keys,
		active:  make(map[string]struct{}),
		dropped: make(map[string]struct{}),
		metrics: metrics,
	}
	h.destroy = h.DestroyData
	return h
}

// AddActiveData marks items as known to the client, allocating keys as
// needed.
func (h *ActiveDataHandler[T]) AddActiveData(items []T) {
	added := 0
	for _, item := range items {
		key := h.keys.Key(item)
		if _, ok := h.active[key]; !ok {
			h.active[key] = struct{}{}
			added++
		}
	}
	h.metrics.ActiveDelta(added)
}

// DropActiveData marks an active key as released by the client. Unknown
// keys are ignored.
func (h *ActiveDataHandler[T]) DropActiveData(key string) {
	if _, ok := h.active[key]; ok {
		h.dropped[key] = struct{}{}
	}
}

// CleanUp destroys the dropped rows that are not among pushed, the rows just
// sent to the client, and clears the dropped set.
func (h *ActiveDataHandler[T]) CleanUp(pushed []T) {
	for _, item := range pushed {
		delete(h.dropped, h.keys.Key(item))
	}
	for _, key := range slices.Sorted(maps.Keys(h.dropped)) {
		item, ok := h.keys.Get(key)
		if !ok {
			panic(fmt.Sprintf("bookkeeping failure: no data object to match key %q", key))
		}
		h.destroy(item)
	}
	h.metrics.Destroyed(len(h.dropped))
	clear(h.dropped)
}

// GenerateData implements DataGenerator by writing the row key.
func (h *ActiveDataHandler[T]) GenerateData(item T, row JSONObject) {
	row[KeyField] = h.keys.Key(item)
}

// DestroyData implements DataGenerator. It removes item from the active set
// and retires its key. Destroying an item without a key panics.
func (h *ActiveDataHandler[T]) DestroyData(item T) {
	if !h.keys.Has(item) {
		panic(fmt.Sprintf("bookkeeping failure: destroying %v which has no key", item))
	}
	key := h.keys.Key(item)
	if _, ok := h.active[key]; ok {
		delete(h.active, key)
		h.metrics.ActiveDelta(-1)
	}
	h.keys.Remove(item)
}

// DestroyAllData implements AllDataDestroyer.
func (h *ActiveDataHandler[T]) DestroyAllData() {
	h.metrics.ActiveDelta(-len(h.active))
	clear(h.active)
	clear(h.dropped)
	h.keys.RemoveAll()
}

// ActiveData returns the items currently known to the client.
func (h *ActiveDataHandler[T]) ActiveData() []T {
	out := make([]T, 0, len(h.active))
	for _, key := range h.ActiveKeys() {
		item, ok := h.keys.Get(key)
		if !ok {
			panic(fmt.Sprintf("bookkeeping failure: active key %q has no data object", key))
		}
		out = append(out, item)
	}
	return out
}

// IsActive reports whether item is known to the client.
func (h *ActiveDataHandler[T]) IsActive(item T) bool {
	if !h.keys.Has(item) {
		return false
	}
	_, ok := h.active[h.keys.Key(item)]
	return ok
}

// ActiveKeys returns the active keys in ascending order.
func (h *ActiveDataHandler[T]) ActiveKeys() []string {
	return slices.Sorted(maps.Keys(h.active))
}

// DroppedKeys returns the keys released by the client and not yet cleaned
// up, in ascending order.
func (h *ActiveDataHandler[T]) DroppedKeys() []string {
	return slices.Sorted(maps.Keys(h.dropped))
}

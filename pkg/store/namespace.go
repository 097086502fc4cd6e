package store

import (
	"container/list"
	"sync"
	"time"
)

type record[K comparable, V any] struct {
	key   K
	entry Entry[V]
}

// namespace is an insertion-ordered collection of entries. All fields except
// elem are guarded by mu; elem belongs to the owning Store's order list.
type namespace[K comparable, V any] struct {
	mu         sync.Mutex
	data       map[K]*list.Element
	ll         *list.List // front is the oldest insertion
	lastSeenAt time.Time
	removed    bool

	// sorted holds while CreatedAt is non-decreasing front to back, which is
	// always the case unless the clock steps backwards.
	sorted bool

	elem *list.Element
}

func newNamespace[K comparable, V any](now time.Time) *namespace[K, V] {
	return &namespace[K, V]{
		data:       make(map[K]*list.Element),
		ll:         list.New(),
		lastSeenAt: now,
		sorted:     true,
	}
}

func (ns *namespace[K, V]) put(key K, val V, now time.Time) {
	ns.lastSeenAt = now
	el, ok := ns.data[key]
	if ok {
		el.Value.(*record[K, V]).entry = Entry[V]{Value: val, CreatedAt: now, LastAccessedAt: now}
		ns.ll.MoveToBack(el)
	} else {
		el = ns.ll.PushBack(&record[K, V]{key: key, entry: Entry[V]{Value: val, CreatedAt: now, LastAccessedAt: now}})
		ns.data[key] = el
	}
	if prev := el.Prev(); prev != nil && now.Before(prev.Value.(*record[K, V]).entry.CreatedAt) {
		ns.sorted = false
	}
}

func (ns *namespace[K, V]) get(key K, now time.Time) (V, bool) {
	el, ok := ns.data[key]
	if !ok {
		var zero V
		return zero, false
	}
	r := el.Value.(*record[K, V])
	r.entry.LastAccessedAt = now
	return r.entry.Value, true
}

func (ns *namespace[K, V]) remove(key K) bool {
	el, ok := ns.data[key]
	if !ok {
		return false
	}
	delete(ns.data, key)
	ns.ll.Remove(el)
	if ns.ll.Len() == 0 {
		ns.sorted = true
	}
	return true
}

func (ns *namespace[K, V]) size() int {
	return ns.ll.Len()
}

func (ns *namespace[K, V]) items() []Item[K, V] {
	out := make([]Item[K, V], 0, ns.ll.Len())
	for el := ns.ll.Front(); el != nil; el = el.Next() {
		r := el.Value.(*record[K, V])
		out = append(out, Item[K, V]{Key: r.key, Entry: r.entry})
	}
	return out
}

// enforceCapacity drops the oldest entries until at most limit remain. While
// the list is sorted the oldest entry is the front one.
func (ns *namespace[K, V]) enforceCapacity(limit int) []K {
	if ns.ll.Len() <= limit {
		return nil
	}
	if ns.sorted {
		victims := make([]K, 0, ns.ll.Len()-limit)
		for ns.ll.Len() > limit {
			k := ns.ll.Front().Value.(*record[K, V]).key
			ns.remove(k)
			victims = append(victims, k)
		}
		return victims
	}
	victims := CapacityRule(ns.items(), limit)
	for _, k := range victims {
		ns.remove(k)
	}
	return victims
}

// expire drops every entry older than ttl at now.
func (ns *namespace[K, V]) expire(ttl time.Duration, now time.Time) []K {
	victims := TTLRule(ns.items(), ttl, now)
	for _, k := range victims {
		ns.remove(k)
	}
	return victims
}

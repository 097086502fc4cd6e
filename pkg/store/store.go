package store

import (
	"container/list"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store is a bounded in-memory store of namespaces, each holding up to
// maxEntries entries. Entries leave the store in three ways: capacity eviction
// on Put, namespace eviction when a new namespace pushes the count past
// maxNamespaces, and TTL eviction during Cleanup.
//
// Locks are always taken store first, then namespace.
type Store[N, K comparable, V any] struct {
	mu     sync.RWMutex
	spaces map[N]*namespace[K, V]
	order  *list.List // of N, front is the oldest namespace

	// cleanupMu serializes cleanup passes.
	cleanupMu sync.Mutex

	maxNamespaces int
	maxEntries    int
	ttl           time.Duration

	now     func() time.Time
	clone   func(V) V
	log     *zap.Logger
	metrics Metrics
}

// Stats is a point-in-time count of the store's contents.
type Stats struct {
	Namespaces int
	Entries    int
}

type options struct {
	clock   func() time.Time
	clone   any
	log     *zap.Logger
	metrics Metrics
}

// Option configures a Store.
type Option func(*options)

// WithClock replaces time.Now as the source of entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// WithClone sets the function used to copy values on their way into and out
// of the store. Slice, map and pointer values need one for callers to be
// isolated from the stored copy. fn must match the store's value type.
func WithClone[V any](fn func(V) V) Option {
	return func(o *options) { o.clone = fn }
}

// WithLogger sets the logger used for eviction and cleanup events.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics sets the eviction and cleanup metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New returns an empty Store. Every bound must be positive.
func New[N, K comparable, V any](maxNamespaces, maxEntriesPerNamespace int, ttl time.Duration, opts ...Option) (*Store[N, K, V], error) {
	switch {
	case maxNamespaces <= 0:
		return nil, &ConfigError{Field: "maxNamespaces", Value: maxNamespaces}
	case maxEntriesPerNamespace <= 0:
		return nil, &ConfigError{Field: "maxEntriesPerNamespace", Value: maxEntriesPerNamespace}
	case ttl <= 0:
		return nil, &ConfigError{Field: "ttl", Value: ttl}
	}

	o := options{clock: time.Now, log: zap.NewNop(), metrics: NoopMetrics{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.metrics == nil {
		o.metrics = NoopMetrics{}
	}
	clone := func(v V) V { return v }
	if o.clone != nil {
		fn, ok := o.clone.(func(V) V)
		if !ok || fn == nil {
			return nil, &ConfigError{Field: "clone", Value: o.clone}
		}
		clone = fn
	}

	return &Store[N, K, V]{
		spaces:        make(map[N]*namespace[K, V]),
		order:         list.New(),
		maxNamespaces: maxNamespaces,
		maxEntries:    maxEntriesPerNamespace,
		ttl:           ttl,
		now:           o.clock,
		clone:         clone,
		log:           o.log,
		metrics:       o.metrics,
	}, nil
}

// MustNew is like New but panics on a configuration error.
func MustNew[N, K comparable, V any](maxNamespaces, maxEntriesPerNamespace int, ttl time.Duration, opts ...Option) *Store[N, K, V] {
	s, err := New[N, K, V](maxNamespaces, maxEntriesPerNamespace, ttl, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Put inserts or overwrites key in namespace ns. An overwrite counts as a new
// insertion for eviction order. Put never rejects a write: if the namespace is
// over capacity afterwards its oldest entry is evicted.
func (s *Store[N, K, V]) Put(ns N, key K, val V) {
	for {
		space := s.acquire(ns)

		space.mu.Lock()
		if space.removed {
			// evicted or cleaned up between lookup and lock
			space.mu.Unlock()
			continue
		}
		space.put(key, s.clone(val), s.now())
		victims := space.enforceCapacity(s.maxEntries)
		space.mu.Unlock()

		if len(victims) > 0 {
			s.log.Debug("capacity eviction",
				zap.Any("namespace", ns),
				zap.Int("evicted", len(victims)))
			s.metrics.Evicted(ReasonCapacity, len(victims))
		}
		return
	}
}

// Get returns the value stored under key in namespace ns and refreshes its
// access time. Access time never affects eviction.
func (s *Store[N, K, V]) Get(ns N, key K) (V, bool) {
	var zero V
	space := s.lookup(ns)
	if space == nil {
		return zero, false
	}
	space.mu.Lock()
	defer space.mu.Unlock()
	if space.removed {
		return zero, false
	}
	v, ok := space.get(key, s.now())
	if !ok {
		return zero, false
	}
	return s.clone(v), true
}

// Snapshot returns a copy of the entries in ns in insertion order. An absent
// namespace yields an empty slice.
func (s *Store[N, K, V]) Snapshot(ns N) []Item[K, V] {
	space := s.lookup(ns)
	if space == nil {
		return []Item[K, V]{}
	}
	space.mu.Lock()
	defer space.mu.Unlock()
	if space.removed {
		return []Item[K, V]{}
	}
	items := space.items()
	for i := range items {
		items[i].Value = s.clone(items[i].Value)
	}
	return items
}

// Delete removes key from ns. A namespace left empty is dropped.
func (s *Store[N, K, V]) Delete(ns N, key K) bool {
	space := s.lookup(ns)
	if space == nil {
		return false
	}
	space.mu.Lock()
	ok := !space.removed && space.remove(key)
	empty := space.size() == 0
	space.mu.Unlock()

	if ok && empty {
		s.dropIfEmpty(ns, space)
	}
	return ok
}

// DeleteNamespace removes ns and all of its entries.
func (s *Store[N, K, V]) DeleteNamespace(ns N) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	space, ok := s.spaces[ns]
	if !ok {
		return false
	}
	s.drop(ns, space)
	return true
}

// Namespaces returns the namespace keys in creation order.
func (s *Store[N, K, V]) Namespaces() []N {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]N, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(N))
	}
	return out
}

// Stats counts namespaces and entries.
func (s *Store[N, K, V]) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Namespaces: len(s.spaces)}
	for _, space := range s.spaces {
		space.mu.Lock()
		st.Entries += space.size()
		space.mu.Unlock()
	}
	return st
}

// Len returns the total number of entries across all namespaces.
func (s *Store[N, K, V]) Len() int {
	return s.Stats().Entries
}

func (s *Store[N, K, V]) lookup(ns N) *namespace[K, V] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spaces[ns]
}

// acquire returns the live namespace for key ns, creating it if needed.
// Creating a namespace may evict the least recently written other namespace.
func (s *Store[N, K, V]) acquire(ns N) *namespace[K, V] {
	if space := s.lookup(ns); space != nil {
		return space
	}

	s.mu.Lock()
	if space, ok := s.spaces[ns]; ok {
		s.mu.Unlock()
		return space
	}

	space := newNamespace[K, V](s.now())
	space.elem = s.order.PushBack(ns)
	s.spaces[ns] = space

	var (
		evicted []N
		lost    int
	)
	for len(s.spaces) > s.maxNamespaces {
		victim, ok := s.oldestNamespace(ns)
		if !ok {
			break
		}
		lost += s.drop(victim, s.spaces[victim])
		evicted = append(evicted, victim)
	}
	s.mu.Unlock()

	for _, victim := range evicted {
		s.log.Debug("namespace eviction", zap.Any("namespace", victim))
	}
	if len(evicted) > 0 {
		s.metrics.NamespacesEvicted(ReasonNamespace, len(evicted))
		if lost > 0 {
			s.metrics.Evicted(ReasonNamespace, lost)
		}
	}
	return space
}

// oldestNamespace picks the namespace with the earliest lastSeenAt, skipping
// keep. Ties go to the earlier-created namespace. Caller holds s.mu.
func (s *Store[N, K, V]) oldestNamespace(keep N) (N, bool) {
	var (
		victim N
		seen   time.Time
		found  bool
	)
	for el := s.order.Front(); el != nil; el = el.Next() {
		key := el.Value.(N)
		if key == keep {
			continue
		}
		space := s.spaces[key]
		space.mu.Lock()
		last := space.lastSeenAt
		space.mu.Unlock()
		if !found || last.Before(seen) {
			victim, seen, found = key, last, true
		}
	}
	return victim, found
}

// drop unlinks space from the store and marks it removed so that in-flight
// writers retry. It returns the number of entries dropped with it. Caller
// holds s.mu.
func (s *Store[N, K, V]) drop(ns N, space *namespace[K, V]) int {
	space.mu.Lock()
	space.removed = true
	n := space.size()
	space.mu.Unlock()
	delete(s.spaces, ns)
	s.order.Remove(space.elem)
	return n
}

// dropIfEmpty removes space if it is still the live namespace for ns and
// still holds no entries.
func (s *Store[N, K, V]) dropIfEmpty(ns N, space *namespace[K, V]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spaces[ns] != space {
		return false
	}
	space.mu.Lock()
	empty := !space.removed && space.size() == 0
	space.mu.Unlock()
	if !empty {
		return false
	}
	s.drop(ns, space)
	return true
}

package store

import "time"

// EvictionReason labels why data left the store.
type EvictionReason string

const (
	// ReasonCapacity is an entry removed because its namespace was full.
	ReasonCapacity EvictionReason = "capacity"
	// ReasonNamespace is a whole namespace, with its entries, removed because
	// the store held too many.
	ReasonNamespace EvictionReason = "namespace"
	// ReasonExpired is an entry removed by a cleanup pass, or a namespace that
	// pass left empty.
	ReasonExpired EvictionReason = "expired"
)

// Metrics receives eviction and cleanup events. Calls happen outside the store's locks.
//
// Evicted counts entries and NamespacesEvicted counts namespaces, so the two
// never share a unit.
type Metrics interface {
	Evicted(reason EvictionReason, entries int)
	NamespacesEvicted(reason EvictionReason, n int)
	CleanupCompleted(d time.Duration, evictedNamespaces, evictedEntries int)
}

// NoopMetrics discards every event.
type NoopMetrics struct{}

func (NoopMetrics) Evicted(EvictionReason, int) {}
func (NoopMetrics) NamespacesEvicted(EvictionReason, int) {}
func (NoopMetrics) CleanupCompleted(time.Duration, int, int) {}

package store

import "time"

// Entry is one stored value with its creation and last-access times.
// The Store hands out copies of V made by the WithClone function, or plain
// assignment without one, which shares the backing data of slice, map and pointer values.
type Entry[V any] struct {
	Value          V
	CreatedAt      time.Time
	LastAccessedAt time.Time
}

// Item pairs an item key with its Entry. Snapshot returns items in insertion order.
type Item[K comparable, V any] struct {
	Key K
	Entry[V]
}

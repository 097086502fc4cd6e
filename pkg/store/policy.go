package store

import (
	"slices"
	"time"
)

// CapacityRule returns the keys to remove from items, oldest CreatedAt first,
// until at most maxEntries remain. items must be in insertion order; among equal
// CreatedAt values the earlier item goes first.
func CapacityRule[K comparable, V any](items []Item[K, V], maxEntries int) []K {
	if len(items) <= maxEntries {
		return nil
	}
	remaining := slices.Clone(items)
	victims := make([]K, 0, len(items)-maxEntries)
	for len(remaining) > maxEntries {
		i := oldest(remaining)
		victims = append(victims, remaining[i].Key)
		remaining = slices.Delete(remaining, i, i+1)
	}
	return victims
}

// TTLRule returns the keys of every item older than ttl at now.
func TTLRule[K comparable, V any](items []Item[K, V], ttl time.Duration, now time.Time) []K {
	var victims []K
	for _, it := range items {
		if now.Sub(it.CreatedAt) > ttl {
			victims = append(victims, it.Key)
		}
	}
	return victims
}

func oldest[K comparable, V any](items []Item[K, V]) int {
	idx := 0
	for i := 1; i < len(items); i++ {
		if items[i].CreatedAt.Before(items[idx].CreatedAt) {
			idx = i
		}
	}
	return idx
}

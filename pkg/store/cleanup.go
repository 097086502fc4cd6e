package store

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type sweepTarget[N, K comparable, V any] struct {
	key   N
	space *namespace[K, V]
}

// Cleanup removes every entry older than the store's TTL at now and drops the
// namespaces left empty. Passes never overlap: a call that arrives while
// another pass is running waits for it and then runs its own full pass.
//
// Only the namespace currently being swept is locked, so writes to other
// namespaces proceed during a pass.
func (s *Store[N, K, V]) Cleanup(now time.Time) (evictedNamespaces, evictedEntries int) {
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()

	start := time.Now()

	s.mu.RLock()
	targets := make([]sweepTarget[N, K, V], 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		key := el.Value.(N)
		targets = append(targets, sweepTarget[N, K, V]{key: key, space: s.spaces[key]})
	}
	s.mu.RUnlock()

	for _, t := range targets {
		t.space.mu.Lock()
		if t.space.removed {
			t.space.mu.Unlock()
			continue
		}
		expired := t.space.expire(s.ttl, now)
		empty := t.space.size() == 0
		t.space.mu.Unlock()

		evictedEntries += len(expired)
		// a namespace that was already empty is mid-creation by a Put
		if len(expired) > 0 && empty && s.dropIfEmpty(t.key, t.space) {
			evictedNamespaces++
		}
	}

	elapsed := time.Since(start)
	if evictedEntries > 0 {
		s.metrics.Evicted(ReasonExpired, evictedEntries)
	}
	if evictedNamespaces > 0 {
		s.metrics.NamespacesEvicted(ReasonExpired, evictedNamespaces)
	}
	s.metrics.CleanupCompleted(elapsed, evictedNamespaces, evictedEntries)
	if evictedNamespaces > 0 || evictedEntries > 0 {
		s.log.Info("cleanup pass",
			zap.Int("namespaces_swept", len(targets)),
			zap.Int("evicted_namespaces", evictedNamespaces),
			zap.Int("evicted_entries", evictedEntries),
			zap.Duration("elapsed", elapsed))
	}
	return evictedNamespaces, evictedEntries
}

// CleanupNow runs Cleanup at the store clock's current time.
func (s *Store[N, K, V]) CleanupNow() (evictedNamespaces, evictedEntries int) {
	return s.Cleanup(s.now())
}

// RunJanitor calls CleanupNow every interval until ctx is done.
func (s *Store[N, K, V]) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CleanupNow()
		}
	}
}

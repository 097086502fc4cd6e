package store

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock hands out a fixed time that tests advance by hand.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestStore(t *testing.T, maxNamespaces, maxEntries int, ttl time.Duration) (*Store[string, string, int], *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	s, err := New[string, string, int](maxNamespaces, maxEntries, ttl, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, clock
}

func keys[K comparable, V any](items []Item[K, V]) []K {
	out := make([]K, 0, len(items))
	for _, it := range items {
		out = append(out, it.Key)
	}
	return out
}

func TestNew_RejectsNonPositiveBounds(t *testing.T) {
	cases := []struct {
		name          string
		maxNamespaces int
		maxEntries    int
		ttl           time.Duration
		field         string
	}{
		{"zero namespaces", 0, 10, time.Minute, "maxNamespaces"},
		{"negative entries", 10, -1, time.Minute, "maxEntriesPerNamespace"},
		{"zero ttl", 10, 10, 0, "ttl"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := New[string, string, int](tc.maxNamespaces, tc.maxEntries, tc.ttl)
			if s != nil {
				t.Fatalf("New returned a store for invalid config")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Field != tc.field {
				t.Fatalf("err = %#v, want ConfigError for %s", err, tc.field)
			}
		})
	}
}

func TestMustNew_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("MustNew did not panic on zero ttl")
		}
	}()
	MustNew[string, string, int](1, 1, 0)
}

func TestPutGetSnapshot(t *testing.T) {
	s, clock := newTestStore(t, 4, 4, time.Minute)

	s.Put("session", "a", 1)
	clock.Advance(time.Second)
	s.Put("session", "b", 2)

	v, ok := s.Get("session", "a")
	if !ok || v != 1 {
		t.Fatalf("Get(a) = %d,%v want 1,true", v, ok)
	}
	if _, ok := s.Get("session", "missing"); ok {
		t.Fatalf("Get(missing) ok")
	}
	if _, ok := s.Get("nope", "a"); ok {
		t.Fatalf("Get on absent namespace ok")
	}

	snap := s.Snapshot("session")
	if got := fmt.Sprint(keys(snap)); got != "[a b]" {
		t.Fatalf("Snapshot keys = %s, want [a b]", got)
	}
	if !snap[1].CreatedAt.Equal(clock.Now()) {
		t.Fatalf("b.CreatedAt = %v, want %v", snap[1].CreatedAt, clock.Now())
	}

	if snap := s.Snapshot("nope"); snap == nil || len(snap) != 0 {
		t.Fatalf("Snapshot(absent) = %#v, want empty slice", snap)
	}
}

func TestGetUpdatesLastAccessed(t *testing.T) {
	s, clock := newTestStore(t, 1, 1, time.Minute)
	s.Put("ns", "k", 1)
	created := clock.Now()

	clock.Advance(5 * time.Second)
	s.Get("ns", "k")

	snap := s.Snapshot("ns")
	if !snap[0].CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt moved on read: %v", snap[0].CreatedAt)
	}
	if !snap[0].LastAccessedAt.Equal(clock.Now()) {
		t.Fatalf("LastAccessedAt = %v, want %v", snap[0].LastAccessedAt, clock.Now())
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s, _ := newTestStore(t, 1, 2, time.Minute)
	s.Put("ns", "k", 1)

	snap := s.Snapshot("ns")
	snap[0].Value = 99

	if v, _ := s.Get("ns", "k"); v != 1 {
		t.Fatalf("mutating snapshot changed store: %d", v)
	}
}

func TestWithClone_IsolatesCallers(t *testing.T) {
	s := MustNew[string, string, []byte](1, 2, time.Minute, WithClone(bytes.Clone))

	in := []byte("abc")
	s.Put("ns", "k", in)
	in[0] = 'X'

	got, _ := s.Get("ns", "k")
	got[1] = 'Y'
	s.Snapshot("ns")[0].Value[2] = 'Z'

	if v, _ := s.Get("ns", "k"); string(v) != "abc" {
		t.Fatalf("stored value = %q, want abc", v)
	}
}

func TestWithClone_RejectsWrongValueType(t *testing.T) {
	_, err := New[string, string, int](1, 1, time.Minute, WithClone(bytes.Clone))
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "clone" {
		t.Fatalf("err = %v, want ConfigError for clone", err)
	}
}

func TestCapacity_OldestEvictedFirst(t *testing.T) {
	s, clock := newTestStore(t, 1, 3, time.Hour)

	for i := 1; i <= 4; i++ {
		s.Put("analogy", fmt.Sprint(i), i)
		clock.Advance(time.Millisecond)
		if n := len(s.Snapshot("analogy")); n > 3 {
			t.Fatalf("after put %d len = %d, want <= 3", i, n)
		}
	}

	if got := fmt.Sprint(keys(s.Snapshot("analogy"))); got != "[2 3 4]" {
		t.Fatalf("survivors = %s, want [2 3 4]", got)
	}
}

func TestCapacity_TiesBrokenByInsertionOrder(t *testing.T) {
	// clock never advances: every entry has the same CreatedAt
	s, _ := newTestStore(t, 1, 2, time.Hour)
	s.Put("ns", "x", 1)
	s.Put("ns", "y", 2)
	s.Put("ns", "z", 3)

	if got := fmt.Sprint(keys(s.Snapshot("ns"))); got != "[y z]" {
		t.Fatalf("survivors = %s, want [y z]", got)
	}
}

func TestCapacity_ClockStepBack(t *testing.T) {
	s, clock := newTestStore(t, 1, 2, time.Hour)
	s.Put("ns", "a", 1)
	clock.Advance(-5 * time.Second)
	s.Put("ns", "b", 2) // inserted after a but created before it
	clock.Advance(10 * time.Second)
	s.Put("ns", "c", 3)

	if got := fmt.Sprint(keys(s.Snapshot("ns"))); got != "[a c]" {
		t.Fatalf("survivors = %s, want [a c]", got)
	}
}

func TestCapacity_AccessDoesNotReorder(t *testing.T) {
	s, clock := newTestStore(t, 1, 3, time.Hour)
	for _, k := range []string{"a", "b", "c"} {
		s.Put("ns", k, 0)
		clock.Advance(time.Second)
	}

	for range 10 {
		if _, ok := s.Get("ns", "a"); !ok {
			t.Fatalf("precondition: a missing")
		}
		clock.Advance(time.Second)
	}

	s.Put("ns", "d", 0)

	if _, ok := s.Get("ns", "a"); ok {
		t.Fatalf("expected a to be evicted despite recent reads")
	}
	if got := fmt.Sprint(keys(s.Snapshot("ns"))); got != "[b c d]" {
		t.Fatalf("survivors = %s, want [b c d]", got)
	}
}

func TestOverwriteRestartsAge(t *testing.T) {
	s, clock := newTestStore(t, 1, 2, time.Hour)
	s.Put("ns", "a", 1)
	clock.Advance(time.Second)
	s.Put("ns", "b", 2)
	clock.Advance(time.Second)
	s.Put("ns", "a", 3) // a is now the newest
	clock.Advance(time.Second)
	s.Put("ns", "c", 4)

	if got := fmt.Sprint(keys(s.Snapshot("ns"))); got != "[a c]" {
		t.Fatalf("survivors = %s, want [a c]", got)
	}
	if v, _ := s.Get("ns", "a"); v != 3 {
		t.Fatalf("Get(a) = %d, want 3", v)
	}
}

func TestNamespaceCapacity(t *testing.T) {
	s, clock := newTestStore(t, 2, 10, time.Hour)

	for _, ns := range []string{"A", "B", "C"} {
		s.Put(ns, "k", 1)
		clock.Advance(time.Second)
		if n := s.Stats().Namespaces; n > 2 {
			t.Fatalf("after %s namespaces = %d, want <= 2", ns, n)
		}
	}

	if got := fmt.Sprint(s.Namespaces()); got != "[B C]" {
		t.Fatalf("Namespaces = %s, want [B C]", got)
	}
	if _, ok := s.Get("A", "k"); ok {
		t.Fatalf("expected namespace A to be evicted")
	}
}

func TestNamespaceCapacity_EvictsLeastRecentlyWritten(t *testing.T) {
	s, clock := newTestStore(t, 2, 10, time.Hour)
	s.Put("A", "k", 1)
	clock.Advance(time.Second)
	s.Put("B", "k", 1)
	clock.Advance(time.Second)
	s.Put("A", "k2", 2) // A written after B
	clock.Advance(time.Second)
	s.Put("C", "k", 1)

	if got := fmt.Sprint(s.Namespaces()); got != "[A C]" {
		t.Fatalf("Namespaces = %s, want [A C]", got)
	}
}

func TestNamespaceCapacity_NewNamespaceSurvivesItsOwnCreation(t *testing.T) {
	s, _ := newTestStore(t, 1, 1, time.Hour)
	s.Put("A", "k", 1)
	s.Put("B", "k", 2)

	if got := fmt.Sprint(s.Namespaces()); got != "[B]" {
		t.Fatalf("Namespaces = %s, want [B]", got)
	}
	if v, ok := s.Get("B", "k"); !ok || v != 2 {
		t.Fatalf("Get(B,k) = %d,%v want 2,true", v, ok)
	}
}

func TestDelete(t *testing.T) {
	s, _ := newTestStore(t, 2, 2, time.Hour)
	s.Put("ns", "a", 1)
	s.Put("ns", "b", 2)

	if !s.Delete("ns", "a") {
		t.Fatalf("Delete(a) = false, want true")
	}
	if s.Delete("ns", "a") {
		t.Fatalf("second Delete(a) = true, want false")
	}
	if !s.Delete("ns", "b") {
		t.Fatalf("Delete(b) = false, want true")
	}
	if n := len(s.Namespaces()); n != 0 {
		t.Fatalf("empty namespace kept: %v", s.Namespaces())
	}
	if s.Delete("gone", "x") {
		t.Fatalf("Delete on absent namespace = true")
	}
}

func TestDeleteNamespace(t *testing.T) {
	s, _ := newTestStore(t, 2, 2, time.Hour)
	s.Put("ns", "a", 1)
	s.Put("other", "a", 1)

	if !s.DeleteNamespace("ns") {
		t.Fatalf("DeleteNamespace(ns) = false")
	}
	if s.DeleteNamespace("ns") {
		t.Fatalf("second DeleteNamespace(ns) = true")
	}
	if got := fmt.Sprint(s.Namespaces()); got != "[other]" {
		t.Fatalf("Namespaces = %s, want [other]", got)
	}

	// writes after removal recreate the namespace
	s.Put("ns", "b", 2)
	if v, ok := s.Get("ns", "b"); !ok || v != 2 {
		t.Fatalf("Get after recreate = %d,%v", v, ok)
	}
}

func TestStatsAndLen(t *testing.T) {
	s, _ := newTestStore(t, 3, 3, time.Hour)
	s.Put("a", "1", 1)
	s.Put("a", "2", 1)
	s.Put("b", "1", 1)

	st := s.Stats()
	if st.Namespaces != 2 || st.Entries != 3 {
		t.Fatalf("Stats = %+v, want {2 3}", st)
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
}

func TestConcurrentPuts_BoundsHold(t *testing.T) {
	const (
		maxNamespaces = 4
		maxEntries    = 8
		G             = 16
		N             = 500
	)
	s, err := New[string, string, int](maxNamespaces, maxEntries, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for gid := range G {
		wg.Add(1)
		go func(gid int) {
			defer wg.Done()
			for i := range N {
				ns := fmt.Sprintf("ns-%d", (gid+i)%7)
				s.Put(ns, fmt.Sprintf("k-%d-%d", gid, i), i)
				if i%5 == 0 {
					s.Get(ns, fmt.Sprintf("k-%d-%d", gid, i))
				}
				if i%50 == 0 {
					s.CleanupNow()
				}
			}
		}(gid)
	}
	wg.Wait()

	names := s.Namespaces()
	if len(names) > maxNamespaces {
		t.Fatalf("namespaces = %d, want <= %d", len(names), maxNamespaces)
	}
	for _, ns := range names {
		if n := len(s.Snapshot(ns)); n > maxEntries {
			t.Fatalf("namespace %s has %d entries, want <= %d", ns, n, maxEntries)
		}
	}
	if st := s.Stats(); st.Namespaces != len(names) {
		t.Fatalf("Stats.Namespaces = %d, Namespaces() = %d", st.Namespaces, len(names))
	}
}
